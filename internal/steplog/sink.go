// Package steplog records executed steps.
package steplog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/dbddv01/MicroGptSequence/internal/db"
	"github.com/dbddv01/MicroGptSequence/internal/models"
)

// Sink receives one record per executed step, across runs and nesting levels.
type Sink interface {
	Append(ctx context.Context, record *models.StepRecord) error
	Close() error
}

// NoopSink drops all records.
type NoopSink struct{}

// Append ignores the record.
func (NoopSink) Append(ctx context.Context, record *models.StepRecord) error {
	return nil
}

// Close is a no-op.
func (NoopSink) Close() error {
	return nil
}

// MultiSink fans records out to several sinks. Every sink sees every record;
// errors are joined.
type MultiSink []Sink

// Append writes record to each sink.
func (m MultiSink) Append(ctx context.Context, record *models.StepRecord) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Append(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes each sink.
func (m MultiSink) Close() error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps records in memory.
type Recorder struct {
	mu      sync.Mutex
	records []models.StepRecord
}

// Append stores a copy of record.
func (r *Recorder) Append(ctx context.Context, record *models.StepRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

// Close is a no-op.
func (r *Recorder) Close() error {
	return nil
}

// Records returns a copy of everything appended so far.
func (r *Recorder) Records() []models.StepRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.StepRecord, len(r.records))
	copy(out, r.records)
	return out
}

// JSONLinesSink writes one JSON object per record.
type JSONLinesSink struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

// NewJSONLinesSink writes records to w.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	return &JSONLinesSink{encoder: json.NewEncoder(w)}
}

// Append encodes record.
func (s *JSONLinesSink) Append(ctx context.Context, record *models.StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encoder.Encode(record)
}

// Close is a no-op; the writer belongs to the caller.
func (s *JSONLinesSink) Close() error {
	return nil
}

// DatabaseSink writes records to the SQLite step log.
type DatabaseSink struct {
	mu       sync.Mutex
	repo     *db.StepRepository
	database *db.DB
	owned    bool
}

// NewDatabaseSink creates a database-backed sink. When owned is true, Close
// also closes the database.
func NewDatabaseSink(database *db.DB, owned bool) *DatabaseSink {
	var repo *db.StepRepository
	if database != nil {
		repo = db.NewStepRepository(database)
	}
	return &DatabaseSink{repo: repo, database: database, owned: owned}
}

// Append persists record.
func (s *DatabaseSink) Append(ctx context.Context, record *models.StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		return errors.New("step repository is required")
	}

	// Copy so the repository's generated ID does not leak into other sinks.
	persisted := *record
	if persisted.Timestamp.IsZero() {
		persisted.Timestamp = time.Now().UTC()
	}
	return s.repo.Create(ctx, &persisted)
}

// Close closes the database when the sink owns it.
func (s *DatabaseSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owned && s.database != nil {
		return s.database.Close()
	}
	return nil
}
