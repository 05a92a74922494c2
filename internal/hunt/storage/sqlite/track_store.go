package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/cyclotron.report/internal/hunt/l3groups"
	"github.com/google/uuid"
)

// TrackStore provides persistence for finished tracks.
type TrackStore struct {
	db *sql.DB
}

// NewTrackStore creates a new TrackStore.
func NewTrackStore(db *sql.DB) *TrackStore {
	return &TrackStore{db: db}
}

// InsertTrack stores t with its points. If t.ID is empty, a new UUID is
// generated and returned.
func (s *TrackStore) InsertTrack(ctx context.Context, t l3groups.Track) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	var blob []byte
	if len(t.Points) > 0 {
		var err error
		if blob, err = encodeBlob(t.Points); err != nil {
			return "", fmt.Errorf("encode track points: %w", err)
		}
	}

	query := `
		INSERT INTO hunt_tracks (
			track_id, component, min_slice, max_slice, min_bin, max_bin,
			start_time, end_time, start_frequency, end_frequency,
			min_frequency, max_frequency, n_points, points_blob, created_unix_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.Component, t.MinSlice, t.MaxSlice, t.MinBin, t.MaxBin,
		t.StartTime, t.EndTime, t.StartFrequency, t.EndFrequency,
		t.MinFrequency, t.MaxFrequency, len(t.Points), blob, time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert track: %w", err)
	}
	return t.ID, nil
}

// WriteTrack implements the pipeline's TrackSink.
func (s *TrackStore) WriteTrack(ctx context.Context, t l3groups.Track) error {
	_, err := s.InsertTrack(ctx, t)
	return err
}

const trackColumns = `
	track_id, component, min_slice, max_slice, min_bin, max_bin,
	start_time, end_time, start_frequency, end_frequency,
	min_frequency, max_frequency, points_blob
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrack(row rowScanner) (l3groups.Track, error) {
	var t l3groups.Track
	var blob []byte
	err := row.Scan(
		&t.ID, &t.Component, &t.MinSlice, &t.MaxSlice, &t.MinBin, &t.MaxBin,
		&t.StartTime, &t.EndTime, &t.StartFrequency, &t.EndFrequency,
		&t.MinFrequency, &t.MaxFrequency, &blob,
	)
	if err != nil {
		return l3groups.Track{}, err
	}
	if len(blob) > 0 {
		if err := decodeBlob(blob, &t.Points); err != nil {
			return l3groups.Track{}, fmt.Errorf("decode points of track %s: %w", t.ID, err)
		}
	}
	return t, nil
}

// GetTrack returns the track with the given ID. A missing track yields an
// error wrapping sql.ErrNoRows.
func (s *TrackStore) GetTrack(ctx context.Context, id string) (l3groups.Track, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM hunt_tracks WHERE track_id = ?`, id)
	t, err := scanTrack(row)
	if err != nil {
		return l3groups.Track{}, fmt.Errorf("get track %s: %w", id, err)
	}
	return t, nil
}

// ListTracks returns tracks ordered by start time. A negative component
// lists every component; limit <= 0 means no limit.
func (s *TrackStore) ListTracks(ctx context.Context, component, limit int) ([]l3groups.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM hunt_tracks`
	var args []interface{}
	if component >= 0 {
		query += ` WHERE component = ?`
		args = append(args, component)
	}
	query += ` ORDER BY start_time, min_bin`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []l3groups.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// DeleteTrack removes a track by ID.
func (s *TrackStore) DeleteTrack(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM hunt_tracks WHERE track_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete track: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete track rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
