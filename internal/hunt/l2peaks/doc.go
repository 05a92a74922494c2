// Package l2peaks owns Layer 2 (Peaks) of the track-finding stack.
//
// Responsibilities: noise baselines (mean, externally supplied and learned),
// threshold policies and the peak discriminator that turns one spectrum
// into an ascending set of above-threshold bins.
// Key types: Discriminator, Peak, PeakSet, Baseline, BackgroundBaseline.
//
// Dependency rule: L2 may depend on L1, but never on L3+. Discrimination
// is pure with respect to its inputs; the learned baseline is the only
// stateful type and is owned by a single component.
package l2peaks
