/*
Package guardian implements the guardian loop: in each cycle it collects the
current container state, builds a new snapshot, evaluates the policies, and
dispatches the resulting violations. Cycles never overlap.

When the container engine cannot be reached the guardian backs off
exponentially and, after a number of consecutive failures, becomes
[StateDegraded]. While degraded, no snapshots get built, so no tombstones get
synthesized for containers that merely seem to have vanished. On recovery the
guardian picks up again against its last snapshot from before the outage.

After each phase the guardian publishes a read-only [Status] for concurrent
readers, such as the diagnostics HTTP server.
*/
package guardian
