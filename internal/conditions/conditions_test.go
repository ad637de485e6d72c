package conditions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluateLengthBranching(t *testing.T) {
	tests := []struct {
		name string
		r1   string
		want bool
	}{
		{"short routes false", "ab", false},
		{"long routes true", "abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate("len(R1) > 2", map[string]string{"R1": tt.r1})
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateExpressions(t *testing.T) {
	vars := map[string]string{
		"Answer": "yes",
		"Count":  "3",
		"Text":   "The quick fox",
		"Quote":  "it's",
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`Answer == "yes"`, true},
		{`Answer != "yes"`, false},
		{`Count < 5`, true},
		{`tonumber(Count) + 1 == 4`, true},
		{`Answer == "yes" and Count > 5`, false},
		{`Answer == "no" or contains(Text, "fox")`, true},
		{`not startswith(Text, "A")`, true},
		{`True`, true},
		{`Answer == 'yes'`, true},
		{`lower(Text) == "the quick fox"`, true},
		{`Text == "and or not"`, false},
		{`not Answer == "yes"`, false},
		{`not Answer == "no"`, true},
		{`not len(Text) > 5`, false},
		{`not len(Answer) > 5`, true},
		{`not Count > 5 and Answer == "yes"`, true},
		{`not (Answer == "yes" or Count > 5)`, false},
		{`"quick" in Text`, true},
		{`"slow" not in Text`, true},
		{`'fox' in Text and not "cat" in Text`, true},
		{`Quote == "it\'s"`, true},
		{`"${Answer}" == Answer`, false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr, vars)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	vars := map[string]string{"R1": "abc"}

	tests := []struct {
		name string
		expr string
	}{
		{"undefined variable", "len(Missing) > 2"},
		{"not boolean", "len(R1)"},
		{"string result", "R1"},
		{"parse error", "len(R1) >"},
		{"empty", "   "},
		{"not of a string", "not R1"},
		{"non numeric comparison", "R1 > 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.expr, vars)
			var evalErr *EvalError
			require.True(t, errors.As(err, &evalErr), "expected EvalError, got %v", err)
		})
	}
}

func TestConditionDoesNotMutateVars(t *testing.T) {
	vars := map[string]string{"R1": "abc"}
	cond, err := Compile("len(R1) > 2")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := cond.Eval(vars)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, map[string]string{"R1": "abc"}, vars)
}

func TestReferences(t *testing.T) {
	cond, err := Compile(`len(R1) > 2 and R2 == R1`)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"R1", "R2"}, cond.References())
}

func TestTranslateKeywords(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`a and b`, `a && b`},
		{`not a or b`, `!(a) || b`},
		{`not R1 == "abc"`, `!(R1 == "abc")`},
		{`not len(R1) > 5`, `!(len(R1) > 5)`},
		{`not not a`, `!(!(a))`},
		{`a and (not b or c)`, `a && (!(b) || c)`},
		{`"b" in R1`, `contains(R1, "b")`},
		{`"b" not in R1`, `!contains(R1, "b")`},
		{`f(not a, b)`, `f(!(a), b)`},
		{`x == "it\'s"`, `x == "it's"`},
		{`x == '${y}'`, `x == "$${y}"`},
		{`x == None`, `x == null`},
		{`x == "and"`, `x == "and"`},
		{`x == 'it"s'`, `x == "it\"s"`},
		{`band == True`, `band == true`},
		{`obj.and`, `obj.and`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, translateKeywords(tt.in))
		})
	}
}
