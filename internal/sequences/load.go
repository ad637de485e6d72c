package sequences

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultDelimiter separates columns in delimited tables.
const DefaultDelimiter = '|'

// Loader reads sequence tables from disk. The zero value uses the default
// delimiter and resolves nested references against the parent table only.
type Loader struct {
	// Delimiter separates columns in .csv/.psv/.txt tables.
	Delimiter rune

	// SearchPaths are extra directories tried when resolving nested
	// sequence references.
	SearchPaths []string
}

// NewLoader creates a loader with the given delimiter.
func NewLoader(delimiter rune, searchPaths ...string) *Loader {
	return &Loader{Delimiter: delimiter, SearchPaths: searchPaths}
}

// LoadSequence reads a table with the default loader.
func LoadSequence(path string) (*Table, error) {
	return (&Loader{}).Load(path)
}

// Load reads a single table from disk. Tables are never cached.
func (l *Loader) Load(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sequence path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sequence %s: %w", path, err)
	}

	var table *Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		table, err = parseYAML(path, data)
	default:
		table, err = parseDelimited(path, data, l.delimiter())
	}
	if err != nil {
		return nil, err
	}
	return table, nil
}

// LoadNested resolves ref against parent and loads it.
func (l *Loader) LoadNested(ref string, parent *Table) (*Table, error) {
	path, err := l.Resolve(ref, parent)
	if err != nil {
		return nil, err
	}
	return l.Load(path)
}

func (l *Loader) delimiter() rune {
	if l == nil || l.Delimiter == 0 {
		return DefaultDelimiter
	}
	return l.Delimiter
}

func parseDelimited(source string, data []byte, delimiter rune) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &MalformedTableError{Source: source, Reason: "table is empty"}
		}
		return nil, &MalformedTableError{Source: source, Reason: fmt.Sprintf("read header: %v", err)}
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range RequiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, &MalformedTableError{Source: source, Reason: fmt.Sprintf("missing required column %q", required)}
		}
	}

	var steps []*Step
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &MalformedTableError{Source: source, Row: row, Reason: err.Error()}
		}
		if isBlankRecord(record) {
			continue
		}

		field := func(column string) (string, bool) {
			idx, ok := columns[column]
			if !ok || idx >= len(record) {
				return "", false
			}
			return record[idx], true
		}

		for _, required := range RequiredColumns {
			if _, ok := field(required); !ok {
				return nil, &MalformedTableError{Source: source, Row: row, Reason: fmt.Sprintf("missing value for column %q", required)}
			}
		}

		optional := func(column string) string {
			value, _ := field(column)
			return strings.TrimSpace(value)
		}
		template, _ := field(ColumnTemplate)

		steps = append(steps, &Step{
			Name:        optional(ColumnName),
			Template:    template,
			Action:      optional(ColumnAction),
			ResultVar:   optional(ColumnResult),
			Condition:   optional(ColumnCondition),
			TrueNext:    optional(ColumnTrueNext),
			FalseNext:   optional(ColumnFalseNext),
			Next:        optional(ColumnNext),
			SequenceRef: optional(ColumnSequenceFile),
		})
	}

	return buildTable(source, steps)
}

type yamlTable struct {
	Steps []*Step `yaml:"steps"`
}

func parseYAML(source string, data []byte) (*Table, error) {
	var doc yamlTable
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &MalformedTableError{Source: source, Reason: fmt.Sprintf("parse yaml: %v", err)}
	}

	for _, step := range doc.Steps {
		if step == nil {
			continue
		}
		step.Name = strings.TrimSpace(step.Name)
		step.Action = strings.TrimSpace(step.Action)
		step.ResultVar = strings.TrimSpace(step.ResultVar)
		step.Condition = strings.TrimSpace(step.Condition)
		step.TrueNext = strings.TrimSpace(step.TrueNext)
		step.FalseNext = strings.TrimSpace(step.FalseNext)
		step.Next = strings.TrimSpace(step.Next)
		step.SequenceRef = strings.TrimSpace(step.SequenceRef)
	}
	return buildTable(source, doc.Steps)
}

func buildTable(source string, steps []*Step) (*Table, error) {
	table := &Table{
		Source: source,
		Steps:  make(map[string]*Step, len(steps)),
		Order:  make([]string, 0, len(steps)),
	}

	row := 0
	for _, step := range steps {
		if step == nil {
			continue
		}
		row++
		if err := checkStep(step); err != nil {
			return nil, &MalformedTableError{Source: source, Row: row, Reason: err.Error()}
		}
		if _, exists := table.Steps[step.Name]; exists {
			return nil, &MalformedTableError{Source: source, Row: row, Reason: fmt.Sprintf("duplicate step %q", step.Name)}
		}
		table.Steps[step.Name] = step
		table.Order = append(table.Order, step.Name)
	}

	if _, ok := table.Steps[StartStep]; !ok {
		return nil, &MalformedTableError{Source: source, Reason: fmt.Sprintf("missing %q step", StartStep)}
	}
	return table, nil
}

func checkStep(step *Step) error {
	switch {
	case step.Name == "":
		return fmt.Errorf("%s is required", ColumnName)
	case step.Action == "":
		return fmt.Errorf("%s is required for step %q", ColumnAction, step.Name)
	case step.ResultVar == "":
		return fmt.Errorf("%s is required for step %q", ColumnResult, step.Name)
	}
	return nil
}

func isBlankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
