// Package sequences provides loading and validation of step tables.
package sequences

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Reserved step names.
const (
	// StartStep is the step every run begins at.
	StartStep = "Start"

	// Stop is the successor value that ends a run.
	Stop = "stop"
)

// Column headers of the delimited table format.
const (
	ColumnName         = "Prompt Name"
	ColumnTemplate     = "Formatted Prompt"
	ColumnAction       = "Action"
	ColumnResult       = "LLM Response"
	ColumnCondition    = "Condition"
	ColumnTrueNext     = "True Next Prompt"
	ColumnFalseNext    = "False Next Prompt"
	ColumnNext         = "Next Prompt"
	ColumnSequenceFile = "Sequence File"
)

// RequiredColumns must be present in the header and in every row.
var RequiredColumns = []string{ColumnName, ColumnTemplate, ColumnAction, ColumnResult}

// Step is one row of a sequence table.
type Step struct {
	Name        string `yaml:"name"`
	Template    string `yaml:"template"`
	Action      string `yaml:"action"`
	ResultVar   string `yaml:"result"`
	Condition   string `yaml:"condition,omitempty"`
	TrueNext    string `yaml:"true_next,omitempty"`
	FalseNext   string `yaml:"false_next,omitempty"`
	Next        string `yaml:"next,omitempty"`
	SequenceRef string `yaml:"sequence,omitempty"`
}

// HasCondition reports whether the step branches on a condition.
func (s *Step) HasCondition() bool {
	return strings.TrimSpace(s.Condition) != ""
}

// Table maps step names to steps. It is not modified after loading.
type Table struct {
	// Source is the file the table was loaded from.
	Source string

	// Steps is keyed by step name.
	Steps map[string]*Step

	// Order lists step names as they appeared in the source.
	Order []string
}

// Step looks up a step by name.
func (t *Table) Step(name string) (*Step, bool) {
	step, ok := t.Steps[name]
	return step, ok
}

// Dir returns the directory holding the table source.
func (t *Table) Dir() string {
	if t.Source == "" {
		return ""
	}
	return filepath.Dir(t.Source)
}

// IsStop reports whether a successor value ends the run. A blank successor
// also ends it.
func IsStop(next string) bool {
	next = strings.TrimSpace(next)
	return next == "" || strings.EqualFold(next, Stop)
}

// MalformedTableError reports a table that violates the schema.
type MalformedTableError struct {
	Source string
	Row    int // 1-based data row; 0 when not row-specific
	Reason string
}

func (e *MalformedTableError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("malformed sequence table %s: row %d: %s", e.Source, e.Row, e.Reason)
	}
	return fmt.Sprintf("malformed sequence table %s: %s", e.Source, e.Reason)
}
