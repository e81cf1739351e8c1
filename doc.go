/*
Package whaleguardian guards the containers of a single Docker host: it watches
the containers as they change state, evaluates them against declarative
policies, and then restarts, stops, or kills misbehaving containers, or just
raises alerts about them.

Guarding happens in cycles: the guardian first collects the current container
state, either by listing all containers or by picking up the lifecycle events
received since the previous cycle (with periodic reconciliation listings, as
event streams can drop events). It then builds an immutable [Snapshot] from
this raw state, evaluates the policies against the snapshot and the container
history, and finally dispatches the resulting violations.

# Information Model

  - A [Snapshot] is an immutable point-in-time view on all tracked
    [Container] records, including the tombstones of containers that
    vanished since the previous snapshot.
  - A [Policy] selects containers using a [Selector], declares a condition
    using a [ConditionSpec], and names the [Action] to take on violation.
  - A [Violation] is a breach of a particular policy by a particular
    container.
  - An [ActionRecord] documents the [Outcome] of dispatching a violation.

Snapshots get built using [Build], which deduplicates observations and
synthesizes tombstones exactly once per vanished container.

# Usage

The guardian is meant to be run using the whaleguardian command, see
cmd/whaleguardian. Applications embedding the guardian wire up a
[github.com/thediveo/whaleguardian/source.Source] with a
[github.com/thediveo/whaleguardian/guardian.Guardian]:

	engine, err := moby.New("unix:///var/run/docker.sock")
	if err != nil {
	    panic(err)
	}
	timed := engineclient.WithTimeout(engine, 10*time.Second)
	src := source.New(timed, source.WithMode(source.ModeStreaming))
	policies, err := rules.NewRegistry().Compile(cfg.GuardianPolicies())
	if err != nil {
	    panic(err)
	}
	d := dispatch.New(timed, ledger.New(ledger.DefaultCapacity), alert.NewLog(log), policies)
	g := guardian.New(src, d, policies, guardian.WithLogger(log))
	err = g.Run(ctx)

See the example directory for a minimal single-cycle program.
*/
package whaleguardian
