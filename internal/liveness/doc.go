// Package liveness implements bidirectional link-liveness tracking over
// LLDP heartbeats.
//
// This includes the per-interface state machine (ILSM), the link-level
// aggregate state machine (LSM), and the Manager that indexes link pairs,
// consumes hello events, and runs the periodic dead-interval reaper.
package liveness
