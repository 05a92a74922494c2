// Package l1spectra owns Layer 1 (Spectra) of the track-finding stack.
//
// Responsibilities: spectrum representations behind the View interface,
// acquisition headers, bin-exclusion masks, the sliding-window FFT front
// end, synthetic acquisitions and the bounded slice history.
// Key types: View, PowerSpectrum, Mask, Header, Slice, History.
//
// Dependency rule: L1 depends on nothing above it. No peak, grouping or
// persistence logic is allowed in this package.
package l1spectra
