// Command trackhunt finds drifting tones in a sampled signal. It slices the
// input into power spectra, picks peaks, groups them into tracks and cuts a
// spectrogram window around every track.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/banshee-data/cyclotron.report/internal/db"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l1spectra"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l2peaks"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l3groups"
	"github.com/banshee-data/cyclotron.report/internal/hunt/l4windows"
	"github.com/banshee-data/cyclotron.report/internal/hunt/monitor"
	"github.com/banshee-data/cyclotron.report/internal/hunt/pipeline"
	"github.com/banshee-data/cyclotron.report/internal/hunt/storage/sqlite"
	"github.com/banshee-data/cyclotron.report/internal/monitoring"
	"github.com/banshee-data/cyclotron.report/internal/version"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "migrate" {
		return runMigrate(args[1:], stdout, stderr)
	}
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "trackhunt: %v\n", err)
		return exitUsage
	}
	if o.version {
		fmt.Fprintln(stdout, version.String("trackhunt"))
		return exitOK
	}
	level, err := monitoring.ParseLevel(o.logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "trackhunt: %v\n", err)
		return exitUsage
	}
	setupLogging(stderr, level)

	tuning, err := o.tuning()
	if err != nil {
		monitoring.Logf("configuration: %v", err)
		return exitUsage
	}
	h, err := l1spectra.NewHeader(tuning.GetSampleRate(), tuning.GetSliceSize(), tuning.GetStepSize(), tuning.GetComponents())
	if err != nil {
		monitoring.Logf("configuration: %v", err)
		return exitUsage
	}
	pcfg, err := pipeline.ConfigFromTuning(tuning)
	if err != nil {
		monitoring.Logf("configuration: %v", err)
		return exitUsage
	}
	src, closeSrc, err := o.source(h, stdin)
	if err != nil {
		monitoring.Logf("input: %v", err)
		return exitUsage
	}
	defer closeSrc()

	metrics := monitoring.NewMetrics()
	pcfg.Metrics = metrics
	web := monitor.WebServerConfig{Address: o.listen, Metrics: metrics.Handler()}

	if o.dbFile != "" {
		database, err := db.NewDB(o.dbFile)
		if err != nil {
			monitoring.Logf("database: %v", err)
			return exitFailure
		}
		defer database.Close()
		tracks := sqlite.NewTrackStore(database.DB)
		spectrograms := sqlite.NewSpectrogramStore(database.DB)
		pcfg.TrackSinks = append(pcfg.TrackSinks, tracks)
		pcfg.SpectrogramSinks = append(pcfg.SpectrogramSinks, spectrograms)
		web.Tracks, web.Spectrograms = tracks, spectrograms
	}
	if o.plotDir != "" {
		name := o.input
		if o.synthetic {
			name = "synthetic"
		}
		plotter := monitor.NewWaterfallPlotter()
		if err := plotter.Start(monitor.MakePlotOutputDir(o.plotDir, name)); err != nil {
			monitoring.Logf("plots: %v", err)
			return exitFailure
		}
		defer plotter.Stop()
		pcfg.SpectrogramSinks = append(pcfg.SpectrogramSinks, plotter)
	}
	if o.jsonTracks {
		pcfg.TrackSinks = append(pcfg.TrackSinks, &jsonTrackSink{enc: json.NewEncoder(stdout)})
	}

	p, err := pipeline.New(pcfg)
	if err != nil {
		monitoring.Logf("configuration: %v", err)
		return exitUsage
	}
	web.Summary = p

	serverDone := make(chan error, 1)
	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	if o.listen != "" {
		ws := monitor.NewWebServer(web)
		go func() { serverDone <- ws.Start(serverCtx) }()
	} else {
		close(serverDone)
	}

	monitoring.Logf("acquisition: %g Hz, %d components, %d bins of %g Hz every %g s",
		h.SampleRate, h.Components, h.NBins, h.BinWidth, h.TimeStep())
	code := exitOK
	if err := process(ctx, p, h, src); err != nil {
		if errors.Is(err, context.Canceled) {
			monitoring.Logf("interrupted, finishing")
		} else {
			monitoring.Logf("processing stopped: %v", err)
			code = exitFailure
		}
	}

	// Drain even when interrupted so open tracks still reach the sinks.
	sum, err := p.Finish(context.WithoutCancel(ctx))
	if err != nil {
		code = exitFailure
	}
	monitoring.Logf("summary: slices=%d peaks=%d tracks=%d spectrograms=%d pruned=%d rejected=%d dropped=%d sink_errors=%d",
		sum.Slices, sum.Peaks, sum.Tracks, sum.Spectrograms, sum.Pruned, sum.RejectedWindows, sum.DroppedWindows, sum.SinkErrors)

	if o.listen != "" && ctx.Err() == nil {
		monitoring.Logf("input finished; serving on %s until interrupted", o.listen)
	}
	if err := <-serverDone; err != nil {
		monitoring.Logf("%v", err)
		code = exitFailure
	}
	return code
}

// process feeds every sample through the FFT front end into the pipeline.
func process(ctx context.Context, p *pipeline.Pipeline, h l1spectra.Header, src sampleSource) error {
	fft, err := l1spectra.NewSlidingWindowFFT(h)
	if err != nil {
		return err
	}
	if err := p.OnHeader(ctx, h); err != nil {
		return err
	}
	emit := func(s l1spectra.Slice) error { return p.ProcessSlice(ctx, s) }
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		samples, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fft.Push(samples, emit); err != nil {
			return err
		}
	}
}

// setupLogging sends every layer's streams enabled by level to w.
func setupLogging(w io.Writer, level monitoring.Level) {
	ops, diag, trace := monitoring.Writers(w, level)
	l1spectra.SetLogWriters(ops, diag, trace)
	l2peaks.SetLogWriters(ops, diag, trace)
	l3groups.SetLogWriters(ops, diag, trace)
	l4windows.SetLogWriters(ops, diag, trace)
	pipeline.SetLogWriters(ops, diag, trace)
	monitor.SetLogWriters(ops, diag, trace)

	logger := log.New(w, "", log.LstdFlags)
	monitoring.SetLogger(logger.Printf)
	log.SetOutput(w)
}

// jsonTrackSink prints one JSON object per track.
type jsonTrackSink struct {
	enc *json.Encoder
}

func (s *jsonTrackSink) WriteTrack(_ context.Context, t l3groups.Track) error {
	return s.enc.Encode(t)
}

// runMigrate handles "trackhunt migrate <action> --db path".
func runMigrate(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("trackhunt migrate", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	dbFile := fs.String("db", "", "SQLite database to migrate")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: trackhunt migrate <action> --db path\n\n%s", db.MigrateHelp)
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if *dbFile == "" {
		fmt.Fprintln(stderr, "trackhunt migrate: --db is required")
		return exitUsage
	}
	if err := db.RunMigrateCommand(stdout, *dbFile, fs.Args()); err != nil {
		fmt.Fprintf(stderr, "trackhunt migrate: %v\n", err)
		if errors.Is(err, db.ErrMigrateUsage) {
			fs.Usage()
			return exitUsage
		}
		return exitFailure
	}
	return exitOK
}
