// Package conditions evaluates step branch conditions over the run context.
//
// Conditions use HCL expression syntax, for example `len(R1) > 2` or
// `R2 == "yes" && tonumber(Count) < 5`. Python-style conditions are accepted
// too: and, or, not, True, False, None, `x in y`, `x not in y` and
// single-quoted strings. As in Python, not binds looser than comparisons,
// so `not R1 == "abc"` negates the whole comparison. Other Python syntax,
// such as chained comparisons or `is`, is not supported.
package conditions

import (
	"fmt"
	"strings"

	"github.com/dbddv01/MicroGptSequence/internal/hclfuncs"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// EvalError reports a condition that could not produce a boolean.
type EvalError struct {
	Expr   string
	Reason string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("condition %q: %s", e.Expr, e.Reason)
}

// Condition is a compiled condition expression.
type Condition struct {
	source string
	expr   hclsyntax.Expression
}

// Compile parses expr once for repeated evaluation.
func Compile(expr string) (*Condition, error) {
	src := strings.TrimSpace(expr)
	if src == "" {
		return nil, &EvalError{Expr: expr, Reason: "empty expression"}
	}

	parsed, diags := hclsyntax.ParseExpression([]byte(translateKeywords(src)), "condition", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, &EvalError{Expr: expr, Reason: diags.Error()}
	}
	return &Condition{source: expr, expr: parsed}, nil
}

// Evaluate compiles and evaluates expr in one call.
func Evaluate(expr string, vars map[string]string) (bool, error) {
	cond, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return cond.Eval(vars)
}

// Source returns the expression as written.
func (c *Condition) Source() string {
	return c.source
}

// References returns the root variable names the condition reads.
func (c *Condition) References() []string {
	var names []string
	seen := make(map[string]struct{})
	for _, traversal := range c.expr.Variables() {
		name := traversal.RootName()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Eval evaluates the condition against a read-only view of vars.
func (c *Condition) Eval(vars map[string]string) (bool, error) {
	ctx := &hcl.EvalContext{
		Variables: hclfuncs.StringVariables(vars),
		Functions: hclfuncs.Base(),
	}

	v, diags := c.expr.Value(ctx)
	if diags.HasErrors() {
		return false, &EvalError{Expr: c.source, Reason: diags.Error()}
	}
	if v.IsNull() {
		return false, &EvalError{Expr: c.source, Reason: "result is null"}
	}
	if !v.IsKnown() {
		return false, &EvalError{Expr: c.source, Reason: "result is unknown"}
	}
	if v.Type() != cty.Bool {
		return false, &EvalError{Expr: c.source, Reason: fmt.Sprintf("result is %s, not bool", v.Type().FriendlyName())}
	}
	return v.True(), nil
}
