// Package monitor renders finalised spectrogram windows as waterfall plots
// and serves the pipeline's status, metrics and stored results over HTTP.
package monitor
