// Package dispatch holds the background machinery behind the command handlers:
// the ack monitor that pings offer holders, the registry of in-flight optimizer
// calls and the route recalculation worker pool.
//
// All three are process-local. Cross-instance state (acks) lives in the AckStore,
// and every state change still goes through a command handler, so the row locks
// of the unit of work arbitrate between instances.
package dispatch
