// Package engine runs sequence tables step by step.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dbddv01/MicroGptSequence/internal/actions"
	"github.com/dbddv01/MicroGptSequence/internal/conditions"
	"github.com/dbddv01/MicroGptSequence/internal/logging"
	"github.com/dbddv01/MicroGptSequence/internal/models"
	"github.com/dbddv01/MicroGptSequence/internal/sequences"
	"github.com/dbddv01/MicroGptSequence/internal/steplog"
	"github.com/dbddv01/MicroGptSequence/internal/templates"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultMaxDepth bounds nested sequence recursion.
const DefaultMaxDepth = 32

// TableLoader loads the table named by a nested sequence step.
type TableLoader interface {
	LoadNested(ref string, parent *sequences.Table) (*sequences.Table, error)
}

// Result describes one finished run.
type Result struct {
	RunID         string   `json:"run_id"`
	ParentRunID   string   `json:"parent_run_id,omitempty"`
	Depth         int      `json:"depth"`
	Sequence      string   `json:"sequence"`
	InitialPrompt string   `json:"initial_prompt"`
	Steps         int      `json:"steps"`
	Output        string   `json:"output"`
	Context       *Context `json:"-"`
	Err           error    `json:"-"`
	Error         string   `json:"error,omitempty"`
}

// Engine interprets sequence tables. It is safe to run several tables at
// once; each run owns its Context.
type Engine struct {
	// Actions is read on every dispatch, so a reload applies to the next step.
	Actions *actions.Store

	// Tables loads nested sequences. Nested tables are loaded on every call.
	Tables TableLoader

	// Sink receives one record per executed step, nested runs included.
	Sink steplog.Sink

	// MaxDepth bounds nested recursion. Default: DefaultMaxDepth.
	MaxDepth int

	// OnRunStart, when set, is called as each run begins, nested runs
	// included.
	OnRunStart func(run *Result)

	// OnRunFinish, when set, is called after each seed run by RunAll.
	OnRunFinish func(run *Result)

	logger zerolog.Logger
}

// New creates an engine. A nil sink drops records.
func New(store *actions.Store, tables TableLoader, sink steplog.Sink) *Engine {
	if sink == nil {
		sink = steplog.NoopSink{}
	}
	return &Engine{
		Actions:  store,
		Tables:   tables,
		Sink:     sink,
		MaxDepth: DefaultMaxDepth,
		logger:   logging.Component("engine"),
	}
}

type runInfo struct {
	parentID string
	depth    int
}

// Run executes table from its Start step, seeded with initialPrompt. The
// returned Result is non-nil even when the run fails.
func (e *Engine) Run(ctx context.Context, table *sequences.Table, initialPrompt string) (*Result, error) {
	return e.run(ctx, table, initialPrompt, runInfo{})
}

// RunAll runs each seed in turn. A failed run is logged and the next seed
// still runs; only cancellation of ctx stops the loop early.
func (e *Engine) RunAll(ctx context.Context, table *sequences.Table, seeds []string) []*Result {
	results := make([]*Result, 0, len(seeds))
	for i, seed := range seeds {
		if ctx.Err() != nil {
			break
		}
		result, err := e.Run(ctx, table, seed)
		if err != nil {
			e.logger.Error().
				Err(err).
				Int("seed", i+1).
				Str("run_id", result.RunID).
				Msg("run failed")
		}
		if e.OnRunFinish != nil {
			e.OnRunFinish(result)
		}
		results = append(results, result)
	}
	return results
}

func (e *Engine) run(ctx context.Context, table *sequences.Table, initialPrompt string, info runInfo) (*Result, error) {
	vars := NewContext(initialPrompt)
	result := &Result{
		RunID:         uuid.New().String(),
		ParentRunID:   info.parentID,
		Depth:         info.depth,
		InitialPrompt: initialPrompt,
		Context:       vars,
	}
	if table == nil {
		return result, e.fail(result, errors.New("sequence table is nil"))
	}
	result.Sequence = table.Source

	logger := e.logger.With().
		Str("run_id", result.RunID).
		Str("sequence", table.Source).
		Int("depth", info.depth).
		Logger()
	logger.Info().Str("initial_prompt", initialPrompt).Msg("run started")
	if e.OnRunStart != nil {
		e.OnRunStart(result)
	}

	current := sequences.StartStep
	for number := 1; current != ""; number++ {
		if err := ctx.Err(); err != nil {
			return result, e.fail(result, err)
		}

		step, ok := table.Step(current)
		if !ok {
			return result, e.fail(result, &UnknownStepError{Sequence: table.Source, Step: current})
		}
		stepErr := func(err error) error {
			return e.fail(result, &StepError{Sequence: table.Source, Step: step.Name, Number: number, Err: err})
		}

		prompt, err := templates.Format(step.Template, vars)
		if err != nil {
			return result, stepErr(err)
		}

		var output string
		if step.Action == actions.NestedSequence {
			output = e.runNested(ctx, table, step, prompt, vars, result)
		} else {
			output, err = e.Actions.Dispatch(ctx, step.Action, prompt)
			if err != nil {
				return result, stepErr(err)
			}
		}

		record := &models.StepRecord{
			RunID:       result.RunID,
			ParentRunID: result.ParentRunID,
			Depth:       result.Depth,
			Sequence:    table.Source,
			Step:        number,
			Name:        step.Name,
			Prompt:      prompt,
			Output:      output,
			Timestamp:   time.Now().UTC(),
		}
		if err := e.Sink.Append(ctx, record); err != nil {
			return result, stepErr(fmt.Errorf("append step log: %w", err))
		}

		vars.Set(step.ResultVar, output)
		result.Steps = number
		result.Output = output

		next, err := e.successor(logger, step, vars)
		if err != nil {
			return result, stepErr(err)
		}
		logger.Debug().Int("step", number).Str("name", step.Name).Str("next", next).Msg("step done")
		current = next
	}

	logger.Info().Int("steps", result.Steps).Msg("run finished")
	return result, nil
}

// successor picks the next step name, or "" to stop.
func (e *Engine) successor(logger zerolog.Logger, step *sequences.Step, vars *Context) (string, error) {
	next := step.Next
	if step.HasCondition() {
		bound := vars.Vars()
		ok, err := conditions.Evaluate(step.Condition, bound)
		if err != nil {
			return "", err
		}
		if ev := logger.Debug(); ev.Enabled() {
			ev.Str("condition", step.Condition).
				Interface("context", bound).
				Bool("result", ok).
				Msg("condition evaluated")
		}
		if ok {
			next = step.TrueNext
		} else {
			next = step.FalseNext
		}
	}
	if sequences.IsStop(next) {
		return "", nil
	}
	return strings.TrimSpace(next), nil
}

// runNested runs the sequence referenced by step. Every failure becomes the
// returned output so the parent run can carry on.
func (e *Engine) runNested(ctx context.Context, parent *sequences.Table, step *sequences.Step, prompt string, vars *Context, caller *Result) string {
	ref := prompt
	if step.SequenceRef != "" {
		formatted, err := templates.Format(step.SequenceRef, vars)
		if err != nil {
			return e.nestedFailure(step.SequenceRef, err)
		}
		ref = formatted
	}
	ref = strings.TrimSpace(ref)

	maxDepth := e.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if caller.Depth+1 > maxDepth {
		return e.nestedFailure(ref, fmt.Errorf("nesting deeper than %d", maxDepth))
	}
	if e.Tables == nil {
		return e.nestedFailure(ref, errors.New("no table loader configured"))
	}

	table, err := e.Tables.LoadNested(ref, parent)
	if err != nil {
		return e.nestedFailure(ref, err)
	}

	nested, err := e.run(ctx, table, prompt, runInfo{parentID: caller.RunID, depth: caller.Depth + 1})
	if err != nil {
		return e.nestedFailure(ref, err)
	}
	return nested.Output
}

func (e *Engine) nestedFailure(ref string, err error) string {
	e.logger.Warn().Err(err).Str("sequence", ref).Msg("nested sequence failed")
	return fmt.Sprintf("error: nested sequence %q: %v", ref, err)
}

func (e *Engine) fail(result *Result, err error) error {
	result.Err = err
	result.Error = err.Error()
	return err
}
