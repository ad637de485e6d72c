package actions

import "fmt"

// UnknownActionError is returned when a step names an unregistered action.
type UnknownActionError struct {
	Name string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.Name)
}

// ActionExecutionError wraps a failure raised inside an action.
type ActionExecutionError struct {
	Name string
	Err  error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %q failed: %v", e.Name, e.Err)
}

func (e *ActionExecutionError) Unwrap() error {
	return e.Err
}

// RegistryLoadError reports an action source that could not be read or decoded.
type RegistryLoadError struct {
	Source string
	Err    error
}

func (e *RegistryLoadError) Error() string {
	return fmt.Sprintf("load actions from %s: %v", e.Source, e.Err)
}

func (e *RegistryLoadError) Unwrap() error {
	return e.Err
}

// FragmentError describes one fragment that was left out of a registry. Name
// is empty when the whole file was left out.
type FragmentError struct {
	Name   string `json:"name"`
	File   string `json:"file"`
	Reason string `json:"reason"`
}

func (e FragmentError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("action file %s: %s", e.File, e.Reason)
	}
	return fmt.Sprintf("action %q (%s): %s", e.Name, e.File, e.Reason)
}
