/*
Package alert delivers guardian alerts to alert sinks: to the log ([Log]), to
a Kafka topic ([Kafka]), or to several sinks at once ([Multi]).

Alert delivery is best-effort: sinks report failures to the caller, which
logs them and carries on. Failed alerts are never retried synchronously, as
this would stall the guardian.
*/
package alert
