/*
Package rules evaluates snapshots of containers against policies, producing
violations.

Policies get compiled into an immutable [Set] using a [Registry] of condition
variants. The built-in variants are:

  - "threshold": a metric ("cpu_percent", "memory_bytes", or
    "restart_count") is above a value.
  - "duration": a container has been in a particular status or health for
    more than a number of consecutive polls, or for longer than a duration.
  - "count": the number of "restart", "exit", or "unhealthy" transitions
    within a time window is above a value.
  - "removed": a container has vanished (alert-only).

[Set.Evaluate] is a pure function of the current snapshot, the previous
snapshot, and the container [History]: evaluating the same inputs again
results in the same violations, in the same order. Policies are evaluated in
declaration order, and containers in order of their IDs.
*/
package rules
