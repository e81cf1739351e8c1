/*
Package source gathers the raw container state the guardian evaluates its
policies against, from a container engine.

A [Source] either lists all containers in every cycle ("polling" mode), or
listens to the engine's container lifecycle events in the background and then
hands out only the changes since the previous cycle ("streaming" mode). As
event streams can drop events, a streaming source still reconciles with a full
listing every so many cycles, and always right after the event stream was
lost or the [Inbox] overflowed.

Optionally, a source samples the resource usage of running containers and runs
active probes against them.
*/
package source
