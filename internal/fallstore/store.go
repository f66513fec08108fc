// Package fallstore persists fall events and end-of-life track summaries
// to sqlite.
package fallstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hexar-systems/hexar/internal/track"
)

type Store struct {
	*sql.DB
}

// FallEvent is one recorded fall detection.
type FallEvent struct {
	EventID   uuid.UUID `json:"event_id"`
	TargetID  uint32    `json:"target_id"`
	Channel   uint8     `json:"channel"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	VelocityX float64   `json:"velocity_x"`
	VelocityY float64   `json:"velocity_y"`
	FallRisk  float64   `json:"fall_risk"`
	Timestamp time.Time `json:"timestamp"`
}

// TrackSummary is written once per target when tracking ends.
type TrackSummary struct {
	TargetID    uint32    `json:"target_id"`
	Channel     uint8     `json:"channel"`
	State       string    `json:"state"`
	Confidence  float64   `json:"confidence"`
	FallRisk    float64   `json:"fall_risk"`
	CoastCycles int       `json:"coast_cycles"`
	LastUpdate  time.Time `json:"last_update"`
}

// NewStore opens the database at path, creating the schema if needed.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS fall_events (
			event_id TEXT PRIMARY KEY,
			target_id INTEGER,
			channel INTEGER,
			x DOUBLE,
			y DOUBLE,
			velocity_x DOUBLE,
			velocity_y DOUBLE,
			fall_risk DOUBLE,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS track_summaries (
			target_id INTEGER,
			channel INTEGER,
			state TEXT,
			confidence DOUBLE,
			fall_risk DOUBLE,
			coast_cycles INTEGER,
			last_update TIMESTAMP,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("fallstore schema: %w", err)
	}

	return &Store{db}, nil
}

// RecordFall writes a fall event for the target and returns the event id.
func (s *Store) RecordFall(t track.Target) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.Exec(
		`INSERT INTO fall_events
			(event_id, target_id, channel, x, y, velocity_x, velocity_y, fall_risk, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), t.ID, t.Channel,
		t.Position.X, t.Position.Y,
		t.Velocity.X, t.Velocity.Y,
		t.FallRisk, t.LastUpdate.UTC(),
	)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// RecordSummaries writes one summary row per pruned target.
func (s *Store) RecordSummaries(targets []track.Target) error {
	for _, t := range targets {
		_, err := s.Exec(
			`INSERT INTO track_summaries
				(target_id, channel, state, confidence, fall_risk, coast_cycles, last_update)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Channel, string(t.State),
			t.Confidence, t.FallRisk, t.CoastCount, t.LastUpdate.UTC(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// RecentFalls returns up to limit fall events, newest first.
func (s *Store) RecentFalls(limit int) ([]FallEvent, error) {
	rows, err := s.Query(
		`SELECT event_id, target_id, channel, x, y, velocity_x, velocity_y, fall_risk, timestamp
		 FROM fall_events ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []FallEvent
	for rows.Next() {
		var e FallEvent
		var id string
		if err := rows.Scan(&id, &e.TargetID, &e.Channel, &e.X, &e.Y,
			&e.VelocityX, &e.VelocityY, &e.FallRisk, &e.Timestamp); err != nil {
			return nil, err
		}
		e.EventID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("fallstore: bad event id %q: %w", id, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// FallsSince returns fall events at or after the given time, newest first.
func (s *Store) FallsSince(since time.Time) ([]FallEvent, error) {
	rows, err := s.Query(
		`SELECT event_id, target_id, channel, x, y, velocity_x, velocity_y, fall_risk, timestamp
		 FROM fall_events WHERE timestamp >= ? ORDER BY timestamp DESC`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []FallEvent
	for rows.Next() {
		var e FallEvent
		var id string
		if err := rows.Scan(&id, &e.TargetID, &e.Channel, &e.X, &e.Y,
			&e.VelocityX, &e.VelocityY, &e.FallRisk, &e.Timestamp); err != nil {
			return nil, err
		}
		e.EventID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("fallstore: bad event id %q: %w", id, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// RecentSummaries returns up to limit track summaries, newest first.
func (s *Store) RecentSummaries(limit int) ([]TrackSummary, error) {
	rows, err := s.Query(
		`SELECT target_id, channel, state, confidence, fall_risk, coast_cycles, last_update
		 FROM track_summaries ORDER BY recorded_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []TrackSummary
	for rows.Next() {
		var t TrackSummary
		if err := rows.Scan(&t.TargetID, &t.Channel, &t.State,
			&t.Confidence, &t.FallRisk, &t.CoastCycles, &t.LastUpdate); err != nil {
			return nil, err
		}
		summaries = append(summaries, t)
	}
	return summaries, rows.Err()
}

// SummariesByChannel returns up to limit track summaries for one sensor
// channel, newest first.
func (s *Store) SummariesByChannel(channel uint8, limit int) ([]TrackSummary, error) {
	rows, err := s.Query(
		`SELECT target_id, channel, state, confidence, fall_risk, coast_cycles, last_update
		 FROM track_summaries WHERE channel = ? ORDER BY recorded_at DESC LIMIT ?`,
		channel, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []TrackSummary
	for rows.Next() {
		var t TrackSummary
		if err := rows.Scan(&t.TargetID, &t.Channel, &t.State,
			&t.Confidence, &t.FallRisk, &t.CoastCycles, &t.LastUpdate); err != nil {
			return nil, err
		}
		summaries = append(summaries, t)
	}
	return summaries, rows.Err()
}

// CountFalls returns the total number of recorded fall events.
func (s *Store) CountFalls() (int, error) {
	var n int
	err := s.QueryRow(`SELECT COUNT(*) FROM fall_events`).Scan(&n)
	return n, err
}
