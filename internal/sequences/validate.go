package sequences

import (
	"fmt"
	"sort"

	"github.com/dbddv01/MicroGptSequence/internal/actions"
	"github.com/dbddv01/MicroGptSequence/internal/conditions"
)

// Issue is a finding from Validate. Issues do not prevent running; a dangling
// successor only fails the run that reaches it.
type Issue struct {
	Step    string `json:"step"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Step, i.Field, i.Message)
}

// Validate checks successor references, conditions and reachability.
func (t *Table) Validate() []Issue {
	var issues []Issue

	for _, name := range t.Order {
		step := t.Steps[name]

		if step.HasCondition() {
			if _, err := conditions.Compile(step.Condition); err != nil {
				issues = append(issues, Issue{Step: name, Field: ColumnCondition, Message: err.Error()})
			}
			issues = append(issues, t.checkSuccessor(name, ColumnTrueNext, step.TrueNext)...)
			issues = append(issues, t.checkSuccessor(name, ColumnFalseNext, step.FalseNext)...)
		} else {
			issues = append(issues, t.checkSuccessor(name, ColumnNext, step.Next)...)
		}

		if step.Action == actions.NestedSequence && step.SequenceRef == "" && step.Template == "" {
			issues = append(issues, Issue{Step: name, Field: ColumnSequenceFile, Message: "nested sequence has no reference"})
		}
	}

	reachable := t.Reachable()
	for _, name := range t.Order {
		if _, ok := reachable[name]; !ok {
			issues = append(issues, Issue{Step: name, Field: ColumnName, Message: "unreachable from Start"})
		}
	}

	return issues
}

func (t *Table) checkSuccessor(step, field, next string) []Issue {
	if IsStop(next) {
		return nil
	}
	if _, ok := t.Steps[next]; ok {
		return nil
	}
	return []Issue{{Step: step, Field: field, Message: fmt.Sprintf("unknown step %q", next)}}
}

// Reachable returns the steps reachable from Start.
func (t *Table) Reachable() map[string]struct{} {
	seen := make(map[string]struct{})
	queue := []string{StartStep}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, ok := seen[name]; ok {
			continue
		}
		step, ok := t.Steps[name]
		if !ok {
			continue
		}
		seen[name] = struct{}{}

		for _, next := range step.Successors() {
			if !IsStop(next) {
				queue = append(queue, next)
			}
		}
	}
	return seen
}

// Successors lists the successor values the step can take, deduplicated.
func (s *Step) Successors() []string {
	var candidates []string
	if s.HasCondition() {
		candidates = []string{s.TrueNext, s.FalseNext}
	} else {
		candidates = []string{s.Next}
	}

	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
