// Package pipeline wires the track-finding layers into one streaming flow.
//
// It is the composition root: it imports the layer packages (l1spectra,
// l2peaks, l3groups, l4windows) and hands their outputs to sinks
// (persistence, plotting, recording), but none of those packages import
// pipeline/. The pipeline owns no domain logic of its own; it enforces the
// stream contract (header first, one spectrum per component, constant bin
// count, increasing slice index) and stops on the first violation.
package pipeline
