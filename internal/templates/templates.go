// Package templates formats step templates from named context variables.
//
// Placeholders use single braces, {Name}. Doubled braces ({{ and }}) are
// literal braces.
package templates

import (
	"fmt"
	"strings"
)

// Lookup resolves a variable by name.
type Lookup interface {
	Lookup(name string) (string, bool)
}

// Vars is a plain map Lookup.
type Vars map[string]string

// Lookup implements Lookup.
func (v Vars) Lookup(name string) (string, bool) {
	value, ok := v[name]
	return value, ok
}

// BindingError reports a placeholder that could not be bound.
type BindingError struct {
	Template string
	Name     string
	Reason   string
}

func (e *BindingError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("template variable %q: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("template: %s", e.Reason)
}

// Format substitutes every {Name} placeholder in tmpl.
func Format(tmpl string, vars Lookup) (string, error) {
	if !strings.ContainsAny(tmpl, "{}") {
		return tmpl, nil
	}

	var out strings.Builder
	out.Grow(len(tmpl))

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				out.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", &BindingError{Template: tmpl, Reason: "unclosed '{'"}
			}
			name := tmpl[i+1 : i+1+end]
			if name == "" {
				return "", &BindingError{Template: tmpl, Reason: "empty placeholder '{}'"}
			}
			if strings.ContainsRune(name, '{') {
				return "", &BindingError{Template: tmpl, Name: name, Reason: "nested '{' in placeholder"}
			}
			value, ok := vars.Lookup(name)
			if !ok {
				return "", &BindingError{Template: tmpl, Name: name, Reason: "not defined in context"}
			}
			out.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				out.WriteByte('}')
				i++
				continue
			}
			return "", &BindingError{Template: tmpl, Reason: "single '}' encountered"}
		default:
			out.WriteByte(c)
		}
	}

	return out.String(), nil
}

// Placeholders returns the variable names referenced by tmpl, in order of
// first appearance. Malformed placeholders are skipped.
func Placeholders(tmpl string) []string {
	var names []string
	seen := make(map[string]struct{})

	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '{' {
			continue
		}
		if i+1 < len(tmpl) && tmpl[i+1] == '{' {
			i++
			continue
		}
		end := strings.IndexByte(tmpl[i+1:], '}')
		if end <= 0 {
			continue
		}
		name := tmpl[i+1 : i+1+end]
		if _, ok := seen[name]; !ok && !strings.ContainsRune(name, '{') {
			seen[name] = struct{}{}
			names = append(names, name)
		}
		i += end + 1
	}
	return names
}
