// Package l3groups owns Layer 3 (Groups) of the track-finding stack.
//
// Responsibilities: online clustering of per-slice peak bins into track
// candidates using asymmetric frequency margins, pruning of short-lived
// noise candidates, and draining of finished candidates as tracks.
// Key types: Grouper, Track, Point, Axis.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4+. A Grouper
// serves exactly one component; components never share grouping state.
package l3groups
