/*
Package mockingmoby is a very minimalist Docker mock client designed for simple
unit tests in the whaleguardian packages. Only limited listing, inspecting and
sampling containers is supported, restarting, stopping and killing them, as well
as streaming container lifecycle events. Moreover, only very few container
properties are mocked, just to the extend needed in the whaleguardian packages.

But in contrast to using a real Docker client in unit tests mockingmoby offers
service API hooks which get called at the beginning and end of service API
calls. This can be used to synchronize certain "asynchronous" events with exact
logical timing without the need to instrument production code under test with
hooks. The service API hooks are passed in via (service) context values. In
addition, the whole mocked engine can be made unreachable using SetUnreachable
in order to simulate engine outages.

The mocked containers are not created and destroyed using the standard Docker
client service API but instead using AddContainer and RemoveContainer. In
addition, a mock container can be "stopped" using StopContainer, so it gets into
the "exited" state but still exists. Mutating calls through the Docker client
service API get logged, see Calls.
*/
package mockingmoby
