/*
Package engineclient defines the EngineClient interface between concrete
container engine adaptor implementations and the engine-neutral guardian core.

Use WithTimeout to bound each individual engine call, so that a single stuck
call only fails itself.

Sub-packages implement specific container engine adaptors.
*/
package engineclient
