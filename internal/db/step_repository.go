package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dbddv01/MicroGptSequence/internal/models"
	"github.com/google/uuid"
)

// Step repository errors.
var (
	ErrStepNotFound  = errors.New("step record not found")
	ErrInvalidRecord = errors.New("invalid step record")
)

// StepRepository persists step log records.
type StepRepository struct {
	db *DB
}

// NewStepRepository creates a new StepRepository.
func NewStepRepository(db *DB) *StepRepository {
	return &StepRepository{db: db}
}

// StepQuery defines filters for querying step records.
type StepQuery struct {
	RunID    *string    // Filter by run
	Sequence *string    // Filter by sequence table
	Since    *time.Time // Records at or after this time (inclusive)
	Cursor   string     // Pagination cursor (record ID)
	Limit    int        // Max results to return
}

// StepPage represents a page of query results.
type StepPage struct {
	Records    []*models.StepRecord
	NextCursor string
}

const stepColumns = `id, run_id, parent_run_id, depth, sequence, step, name, prompt, output, timestamp`

// Create appends a record. ID and Timestamp are filled in when empty.
func (r *StepRepository) Create(ctx context.Context, record *models.StepRecord) error {
	if record == nil || record.RunID == "" || record.Name == "" || record.Step <= 0 {
		return ErrInvalidRecord
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	} else {
		record.Timestamp = record.Timestamp.UTC()
	}

	var parent *string
	if record.ParentRunID != "" {
		parent = &record.ParentRunID
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO step_records (`+stepColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.RunID,
		parent,
		record.Depth,
		record.Sequence,
		record.Step,
		record.Name,
		record.Prompt,
		record.Output,
		record.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert step record: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (r *StepRepository) Get(ctx context.Context, id string) (*models.StepRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+stepColumns+` FROM step_records WHERE id = ?`, id)
	record, err := scanStep(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStepNotFound
		}
		return nil, err
	}
	return record, nil
}

// ListByRun returns the records of one run in step order.
func (r *StepRepository) ListByRun(ctx context.Context, runID string) ([]*models.StepRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+stepColumns+`
		FROM step_records
		WHERE run_id = ?
		ORDER BY step, seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query step records: %w", err)
	}
	defer rows.Close()

	return collectSteps(rows)
}

// Query retrieves records matching the filters with cursor-based pagination.
func (r *StepRepository) Query(ctx context.Context, q StepQuery) (*StepPage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + stepColumns + ` FROM step_records WHERE 1=1`
	args := []any{}

	if q.RunID != nil {
		query += ` AND run_id = ?`
		args = append(args, *q.RunID)
	}
	if q.Sequence != nil {
		query += ` AND sequence = ?`
		args = append(args, *q.Sequence)
	}
	if q.Since != nil {
		query += ` AND timestamp >= ?`
		args = append(args, q.Since.UTC().Format(time.RFC3339Nano))
	}
	if q.Cursor != "" {
		query += ` AND seq > (SELECT seq FROM step_records WHERE id = ?)`
		args = append(args, q.Cursor)
	}

	query += ` ORDER BY seq LIMIT ?`
	args = append(args, limit+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query step records: %w", err)
	}
	defer rows.Close()

	records, err := collectSteps(rows)
	if err != nil {
		return nil, err
	}

	page := &StepPage{}
	if len(records) > limit {
		page.Records = records[:limit]
		page.NextCursor = records[limit-1].ID
	} else {
		page.Records = records
	}
	return page, nil
}

// ListRuns summarizes the most recent runs, newest first.
func (r *StepRepository) ListRuns(ctx context.Context, limit int) ([]*models.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, MIN(sequence), MIN(depth), COUNT(*), MIN(timestamp), MAX(timestamp), MIN(seq) AS first_seq
		FROM step_records
		GROUP BY run_id
		ORDER BY first_seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.RunSummary
	for rows.Next() {
		var (
			run            models.RunSummary
			started, ended string
			firstSeq       int64
		)
		if err := rows.Scan(&run.RunID, &run.Sequence, &run.Depth, &run.Steps, &started, &ended, &firstSeq); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = parseTimestamp(started)
		run.EndedAt = parseTimestamp(ended)
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStep(row rowScanner) (*models.StepRecord, error) {
	var (
		record    models.StepRecord
		parent    sql.NullString
		timestamp string
	)
	if err := row.Scan(
		&record.ID,
		&record.RunID,
		&parent,
		&record.Depth,
		&record.Sequence,
		&record.Step,
		&record.Name,
		&record.Prompt,
		&record.Output,
		&timestamp,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan step record: %w", err)
	}

	if parent.Valid {
		record.ParentRunID = parent.String
	}
	record.Timestamp = parseTimestamp(timestamp)
	return &record, nil
}

func collectSteps(rows *sql.Rows) ([]*models.StepRecord, error) {
	var records []*models.StepRecord
	for rows.Next() {
		record, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating step records: %w", err)
	}
	return records, nil
}

func parseTimestamp(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
