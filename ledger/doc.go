/*
Package ledger keeps track of what the guardian did about violations, per
container and policy: when the most recent corrective action happened (for
enforcing cooldowns), which corrective actions happened within the policy's
action window (for enforcing action limits), and the most recent action
records.

Only corrective actions get ledger entries; alert-only records just go into
the ring of recent records. The [Ledger] is bounded: when it reaches its
capacity it evicts the least recently used entries that have expired, that is,
whose cooldown and action window have both run out. A ledger full of live
entries grows beyond its capacity rather than forgetting a cooldown. A [Store] optionally persists ledger entries so that
cooldowns and action windows survive restarts of the guardian.
*/
package ledger
