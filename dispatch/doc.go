/*
Package dispatch turns policy violations into action records: it checks the
cooldown and action limit of the violated policy for the particular
container, carries out the corrective action through the container engine,
records the outcome in the action ledger, and raises alerts.

A [Dispatcher] is not thread-safe: it must only be used from the guardian
loop goroutine that also owns the ledger.
*/
package dispatch
