package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/cyclotron.report/internal/hunt/l4windows"
	"github.com/google/uuid"
)

// spectrogramPayload is the blob part of a stored spectrogram.
type spectrogramPayload struct {
	Times []float64
	Power [][]float64
}

// SpectrogramStore provides persistence for finalised spectrogram windows.
type SpectrogramStore struct {
	db *sql.DB
}

// NewSpectrogramStore creates a new SpectrogramStore.
func NewSpectrogramStore(db *sql.DB) *SpectrogramStore {
	return &SpectrogramStore{db: db}
}

// InsertSpectrogram stores sg. If sg.ID is empty, a new UUID is assigned.
func (s *SpectrogramStore) InsertSpectrogram(ctx context.Context, sg *l4windows.Spectrogram) error {
	if sg.ID == "" {
		sg.ID = uuid.NewString()
	}
	blob, err := encodeBlob(spectrogramPayload{Times: sg.Times, Power: sg.Power})
	if err != nil {
		return fmt.Errorf("encode spectrogram: %w", err)
	}

	query := `
		INSERT INTO hunt_spectrograms (
			spectrogram_id, track_id, component, track_start, track_end,
			window_start, window_end, delta_t, first_bin, bin_width,
			min_frequency, n_spectra, n_bins, payload, created_unix_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		sg.ID, sg.TrackID, sg.Component, sg.TrackStart, sg.TrackEnd,
		sg.WindowStart, sg.WindowEnd, sg.DeltaT, sg.FirstBin, sg.BinWidth,
		sg.MinFrequency, sg.Len(), sg.NBins(), blob, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert spectrogram: %w", err)
	}
	return nil
}

// WriteSpectrogram implements the pipeline's SpectrogramSink.
func (s *SpectrogramStore) WriteSpectrogram(ctx context.Context, sg *l4windows.Spectrogram) error {
	return s.InsertSpectrogram(ctx, sg)
}

const spectrogramColumns = `
	spectrogram_id, track_id, component, track_start, track_end,
	window_start, window_end, delta_t, first_bin, bin_width,
	min_frequency, payload
`

func scanSpectrogram(row rowScanner) (*l4windows.Spectrogram, error) {
	sg := &l4windows.Spectrogram{}
	var blob []byte
	err := row.Scan(
		&sg.ID, &sg.TrackID, &sg.Component, &sg.TrackStart, &sg.TrackEnd,
		&sg.WindowStart, &sg.WindowEnd, &sg.DeltaT, &sg.FirstBin, &sg.BinWidth,
		&sg.MinFrequency, &blob,
	)
	if err != nil {
		return nil, err
	}
	var p spectrogramPayload
	if err := decodeBlob(blob, &p); err != nil {
		return nil, fmt.Errorf("decode spectrogram %s: %w", sg.ID, err)
	}
	sg.Times, sg.Power = p.Times, p.Power
	return sg, nil
}

// GetSpectrogram returns the spectrogram with the given ID. A missing
// spectrogram yields an error wrapping sql.ErrNoRows.
func (s *SpectrogramStore) GetSpectrogram(ctx context.Context, id string) (*l4windows.Spectrogram, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+spectrogramColumns+` FROM hunt_spectrograms WHERE spectrogram_id = ?`, id)
	sg, err := scanSpectrogram(row)
	if err != nil {
		return nil, fmt.Errorf("get spectrogram %s: %w", id, err)
	}
	return sg, nil
}

// ListSpectrogramsForTrack returns every spectrogram collected for a track,
// ordered by window start.
func (s *SpectrogramStore) ListSpectrogramsForTrack(ctx context.Context, trackID string) ([]*l4windows.Spectrogram, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+spectrogramColumns+` FROM hunt_spectrograms WHERE track_id = ? ORDER BY window_start, created_unix_ns`,
		trackID)
	if err != nil {
		return nil, fmt.Errorf("list spectrograms: %w", err)
	}
	defer rows.Close()

	var out []*l4windows.Spectrogram
	for rows.Next() {
		sg, err := scanSpectrogram(rows)
		if err != nil {
			return nil, fmt.Errorf("scan spectrogram: %w", err)
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

// CountSpectrograms returns the number of stored spectrograms.
func (s *SpectrogramStore) CountSpectrograms(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hunt_spectrograms`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count spectrograms: %w", err)
	}
	return n, nil
}
