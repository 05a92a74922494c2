// Package l4windows owns Layer 4 (Windows) of the track-finding stack.
//
// Responsibilities: turning finished tracks into collection windows,
// buffering every streamed spectrum that falls inside a window's time
// bounds (restricted to a fixed frequency-bin range), and emitting each
// window as a Spectrogram once the stream has passed its trailing bound.
// Key types: Collector, Spectrogram, Config.
//
// Dependency rule: L4 may depend on L1-L3, but never on the pipeline or
// storage. One Collector serves one component.
package l4windows
