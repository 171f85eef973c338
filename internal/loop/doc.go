// Package loop implements self-wiring loop detection and mitigation.
//
// A loop is a switch observing its own LLDP announcement returning on a
// local port. The Manager keeps a durable per-(switch, port-pair) record
// of every loop ever seen, applies the configured mitigation actions with
// debouncing, and ages detected loops to stopped when their interfaces go
// inactive or their detections go stale.
package loop
