package engine

import "fmt"

// UnknownStepError is returned when a successor names a step the table does
// not have.
type UnknownStepError struct {
	Sequence string
	Step     string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("sequence %s: unknown step %q", e.Sequence, e.Step)
}

// StepError locates a run-terminating failure. The cause is one of
// *templates.BindingError, *conditions.EvalError, *actions.UnknownActionError,
// *actions.ActionExecutionError or a step log write error.
type StepError struct {
	Sequence string
	Step     string
	Number   int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("sequence %s: step %d (%s): %v", e.Sequence, e.Number, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
