package steplog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/dbddv01/MicroGptSequence/internal/models"
)

// Header is the first row of a CSV step log.
var Header = []string{"Step", "Prompt Name", "Formatted Prompt", "Response"}

// ErrHeaderMismatch is returned when an existing log file has a different header.
var ErrHeaderMismatch = errors.New("step log header mismatch")

// CSVSink appends records to a CSV file. The header is written only when the
// file is new or empty.
type CSVSink struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer
}

// OpenCSV opens path for appending.
func OpenCSV(path string) (*CSVSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("step log path is required")
	}

	needHeader, err := checkHeader(path)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open step log: %w", err)
	}

	sink := &CSVSink{path: path, file: file, writer: csv.NewWriter(file)}
	if needHeader {
		if err := sink.write(Header); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
	return sink, nil
}

// Path returns the log file path.
func (s *CSVSink) Path() string {
	return s.path
}

// Append writes one row.
func (s *CSVSink) Append(ctx context.Context, record *models.StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return errors.New("step log closed")
	}
	return s.write([]string{
		strconv.Itoa(record.Step),
		record.Name,
		record.Prompt,
		record.Output,
	})
}

// Close flushes and closes the file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	s.writer.Flush()
	flushErr := s.writer.Error()
	closeErr := s.file.Close()
	s.file = nil
	return errors.Join(flushErr, closeErr)
}

func (s *CSVSink) write(row []string) error {
	if err := s.writer.Write(row); err != nil {
		return fmt.Errorf("write step log: %w", err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("write step log: %w", err)
	}
	return nil
}

// checkHeader reports whether the file needs a header, and rejects an
// existing file whose header differs.
func checkHeader(path string) (bool, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("open step log: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	existing, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read step log header: %w", err)
	}

	if len(existing) > 0 {
		existing[0] = strings.TrimPrefix(existing[0], "\ufeff")
	}
	if strings.Join(existing, ",") != strings.Join(Header, ",") {
		return false, fmt.Errorf("%w: %s has %q, want %q", ErrHeaderMismatch, path, existing, Header)
	}
	return false, nil
}
