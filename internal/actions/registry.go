// Package actions provides the action registry and the loader that compiles
// action fragments into callables.
package actions

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
)

// NestedSequence is the reserved action name that runs another sequence
// table. Loaded fragments cannot define it.
const NestedSequence = "run_prompt_sequence"

// Action is a named unary string operation invoked by a step.
type Action func(ctx context.Context, input string) (string, error)

// Registry is an immutable name to action table. Build a new one to change it.
type Registry struct {
	actions map[string]Action
}

// NewRegistry creates a registry from a copy of actions.
func NewRegistry(actions map[string]Action) *Registry {
	copied := make(map[string]Action, len(actions))
	for name, action := range actions {
		if action == nil || name == NestedSequence {
			continue
		}
		copied[name] = action
	}
	return &Registry{actions: copied}
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.actions)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.actions[name]
	return ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch invokes the named action once. Errors and panics raised by the
// action come back as *ActionExecutionError.
func (r *Registry) Dispatch(ctx context.Context, name, input string) (output string, err error) {
	if r == nil {
		return "", &UnknownActionError{Name: name}
	}
	action, ok := r.actions[name]
	if !ok {
		return "", &UnknownActionError{Name: name}
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			output = ""
			err = &ActionExecutionError{Name: name, Err: fmt.Errorf("panic: %v", recovered)}
		}
	}()

	output, err = action(ctx, input)
	if err != nil {
		return "", &ActionExecutionError{Name: name, Err: err}
	}
	return output, nil
}

// Store holds the current registry. Readers always see one complete
// registry; Swap replaces it wholesale.
type Store struct {
	current atomic.Pointer[Registry]
}

// NewStore creates a store publishing initial. A nil initial publishes an
// empty registry.
func NewStore(initial *Registry) *Store {
	s := &Store{}
	if initial == nil {
		initial = NewRegistry(nil)
	}
	s.current.Store(initial)
	return s
}

// Load returns the current registry snapshot.
func (s *Store) Load() *Registry {
	if s == nil {
		return nil
	}
	return s.current.Load()
}

// Swap publishes next and returns the registry it replaced. Dispatches
// already running finish against the old registry.
func (s *Store) Swap(next *Registry) *Registry {
	if next == nil {
		next = NewRegistry(nil)
	}
	return s.current.Swap(next)
}

// Dispatch invokes name against the current snapshot.
func (s *Store) Dispatch(ctx context.Context, name, input string) (string, error) {
	return s.Load().Dispatch(ctx, name, input)
}
