// Package sqlite contains SQLite repository implementations for the track
// finder's outputs.
//
// All database reads and writes for tracks and spectrogram windows belong
// here rather than in the layer packages (L1-L4), which keeps domain logic
// free of SQL. TrackStore and SpectrogramStore satisfy the pipeline's sink
// interfaces, so a pipeline persists its output by listing them as sinks.
// Bulky payloads (track points, spectrogram rows) are stored as
// zstd-compressed gob blobs.
package sqlite
