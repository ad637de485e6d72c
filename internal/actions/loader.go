package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dbddv01/MicroGptSequence/internal/hclfuncs"
	"github.com/dbddv01/MicroGptSequence/internal/logging"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/rs/zerolog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"
)

// InputVar is the only variable a fragment may reference.
const InputVar = "input"

// Completer sends a prompt to a language model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LoadReport summarizes one load of the action source.
type LoadReport struct {
	Source  string          `json:"source"`
	Files   []string        `json:"files"`
	Loaded  []string        `json:"loaded"`
	Omitted []FragmentError `json:"omitted,omitempty"`
}

// Loader compiles action fragments into a Registry.
//
// A fragment is an HCL expression over the variable input, for example
// `upper(trimspace(input))` or `llm("Summarize: ${input}")`.
type Loader struct {
	// LLM backs the llm() function. Nil makes llm() fail when called.
	LLM Completer

	logger zerolog.Logger
}

// NewLoader creates a loader. llm may be nil.
func NewLoader(llm Completer) *Loader {
	return &Loader{
		LLM:    llm,
		logger: logging.Component("actions"),
	}
}

// Load reads every .json, .yaml and .yml file in dir. Each file maps action
// names to fragments. A fragment that does not compile, or a file that
// cannot be read or decoded, is left out and reported; only an unreadable
// directory fails the whole load.
func (l *Loader) Load(dir string) (*Registry, *LoadReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, &RegistryLoadError{Source: dir, Err: err}
	}

	report := &LoadReport{Source: dir}
	compiled := make(map[string]Action)
	definedIn := make(map[string]string)

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsSourceFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	for _, file := range files {
		fragments, err := readFragments(file)
		if err != nil {
			report.Omitted = append(report.Omitted, FragmentError{File: file, Reason: err.Error()})
			l.logger.Warn().Err(err).Str("file", file).Msg("action file skipped")
			continue
		}
		report.Files = append(report.Files, file)

		names := make([]string, 0, len(fragments))
		for name := range fragments {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			omit := func(reason string) {
				fe := FragmentError{Name: name, File: file, Reason: reason}
				report.Omitted = append(report.Omitted, fe)
				l.logger.Warn().Str("action", name).Str("file", file).Msg(reason)
			}

			if name == NestedSequence {
				omit("name is reserved for nested sequences")
				continue
			}
			if prev, ok := definedIn[name]; ok {
				omit(fmt.Sprintf("already defined in %s", prev))
				continue
			}
			src, ok := fragments[name].(string)
			if !ok {
				omit(fmt.Sprintf("fragment must be a string, got %T", fragments[name]))
				continue
			}

			action, err := l.Compile(name, src)
			if err != nil {
				omit(err.Error())
				continue
			}
			compiled[name] = action
			definedIn[name] = file
		}
	}

	registry := NewRegistry(compiled)
	report.Loaded = registry.Names()
	l.logger.Debug().
		Str("dir", dir).
		Int("loaded", len(report.Loaded)).
		Int("omitted", len(report.Omitted)).
		Msg("actions loaded")
	return registry, report, nil
}

// Compile parses a fragment and checks that it references only input and
// known functions.
func (l *Loader) Compile(name, src string) (Action, error) {
	if strings.TrimSpace(src) == "" {
		return nil, errors.New("fragment is empty")
	}

	expr, diags := hclsyntax.ParseExpression([]byte(src), name, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("compile: %s", diags.Error())
	}

	for _, traversal := range expr.Variables() {
		if root := traversal.RootName(); root != InputVar {
			return nil, fmt.Errorf("bind: unknown variable %q", root)
		}
	}

	known := l.functions(context.Background())
	diags = hclsyntax.VisitAll(expr, func(node hclsyntax.Node) hcl.Diagnostics {
		call, ok := node.(*hclsyntax.FunctionCallExpr)
		if !ok {
			return nil
		}
		if _, ok := known[call.Name]; ok {
			return nil
		}
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  fmt.Sprintf("unknown function %q", call.Name),
			Subject:  call.NameRange.Ptr(),
		}}
	})
	if diags.HasErrors() {
		return nil, fmt.Errorf("bind: %s", diags.Error())
	}

	return l.bind(expr), nil
}

func (l *Loader) bind(expr hclsyntax.Expression) Action {
	return func(ctx context.Context, input string) (string, error) {
		evalCtx := &hcl.EvalContext{
			Variables: map[string]cty.Value{InputVar: cty.StringVal(input)},
			Functions: l.functions(ctx),
		}
		value, diags := expr.Value(evalCtx)
		if diags.HasErrors() {
			return "", errors.New(diags.Error())
		}
		return stringify(value)
	}
}

// functions builds the namespace for one evaluation. llm() is bound to ctx.
func (l *Loader) functions(ctx context.Context) map[string]function.Function {
	funcs := hclfuncs.Base()
	funcs["llm"] = function.New(&function.Spec{
		Description: "Sends prompt to the configured language model.",
		Params: []function.Parameter{
			{Name: "prompt", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			if l.LLM == nil {
				return cty.UnknownVal(cty.String), errors.New("no language model configured")
			}
			reply, err := l.LLM.Complete(ctx, args[0].AsString())
			if err != nil {
				return cty.UnknownVal(cty.String), err
			}
			return cty.StringVal(reply), nil
		},
	})
	return funcs
}

func stringify(value cty.Value) (string, error) {
	if value.IsNull() {
		return "", nil
	}
	if !value.IsWhollyKnown() {
		return "", errors.New("fragment produced an unknown value")
	}

	switch ty := value.Type(); {
	case ty == cty.String:
		return value.AsString(), nil
	case ty.IsPrimitiveType():
		converted, err := convert.Convert(value, cty.String)
		if err != nil {
			return "", err
		}
		return converted.AsString(), nil
	default:
		encoded, err := ctyjson.Marshal(value, ty)
		if err != nil {
			return "", fmt.Errorf("encode result: %w", err)
		}
		return string(encoded), nil
	}
}

// IsSourceFile reports whether name is an action source file.
func IsSourceFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func readFragments(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fragments := make(map[string]any)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &fragments); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return fragments, nil
	}
	if err := yaml.Unmarshal(data, &fragments); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return fragments, nil
}
