// Package hclfuncs holds the function namespace shared by action fragments
// and step conditions.
package hclfuncs

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Base returns a fresh function table. Callers may add entries; the
// returned map is never shared.
func Base() map[string]function.Function {
	return map[string]function.Function{
		"abs":           stdlib.AbsoluteFunc,
		"chomp":         stdlib.ChompFunc,
		"coalesce":      stdlib.CoalesceFunc,
		"contains":      ContainsFunc,
		"endswith":      EndsWithFunc,
		"format":        stdlib.FormatFunc,
		"join":          stdlib.JoinFunc,
		"jsondecode":    stdlib.JSONDecodeFunc,
		"jsonencode":    stdlib.JSONEncodeFunc,
		"len":           LenFunc,
		"length":        stdlib.LengthFunc,
		"lower":         stdlib.LowerFunc,
		"max":           stdlib.MaxFunc,
		"min":           stdlib.MinFunc,
		"regex":         stdlib.RegexFunc,
		"regex_replace": stdlib.RegexReplaceFunc,
		"replace":       stdlib.ReplaceFunc,
		"split":         stdlib.SplitFunc,
		"startswith":    StartsWithFunc,
		"strlen":        stdlib.StrlenFunc,
		"strrev":        stdlib.ReverseFunc,
		"substr":        stdlib.SubstrFunc,
		"title":         stdlib.TitleFunc,
		"tonumber":      stdlib.MakeToFunc(cty.Number),
		"tostring":      stdlib.MakeToFunc(cty.String),
		"trim":          stdlib.TrimFunc,
		"trimprefix":    stdlib.TrimPrefixFunc,
		"trimspace":     stdlib.TrimSpaceFunc,
		"trimsuffix":    stdlib.TrimSuffixFunc,
		"upper":         stdlib.UpperFunc,
	}
}

// LenFunc counts the characters of a string or the elements of a
// collection.
var LenFunc = function.New(&function.Spec{
	Description: "Returns the number of characters in a string or elements in a collection.",
	Params: []function.Parameter{
		{Name: "value", Type: cty.DynamicPseudoType},
	},
	Type: function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		v := args[0]
		ty := v.Type()
		switch {
		case ty == cty.String:
			return cty.NumberIntVal(int64(utf8.RuneCountInString(v.AsString()))), nil
		case ty.IsListType(), ty.IsSetType(), ty.IsMapType(), ty.IsTupleType():
			return cty.NumberIntVal(int64(v.LengthInt())), nil
		case ty.IsObjectType():
			return cty.NumberIntVal(int64(len(ty.AttributeTypes()))), nil
		default:
			return cty.NilVal, fmt.Errorf("len() of unsupported type %s", ty.FriendlyName())
		}
	},
})

// ContainsFunc reports whether substr occurs in str.
var ContainsFunc = stringPredicate("Reports whether substr occurs within str.", strings.Contains)

// StartsWithFunc reports whether str begins with prefix.
var StartsWithFunc = stringPredicate("Reports whether str begins with the given prefix.", strings.HasPrefix)

// EndsWithFunc reports whether str ends with suffix.
var EndsWithFunc = stringPredicate("Reports whether str ends with the given suffix.", strings.HasSuffix)

func stringPredicate(description string, fn func(s, sub string) bool) function.Function {
	return function.New(&function.Spec{
		Description: description,
		Params: []function.Parameter{
			{Name: "str", Type: cty.String},
			{Name: "substr", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.Bool),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return cty.BoolVal(fn(args[0].AsString(), args[1].AsString())), nil
		},
	})
}

// StringVariables converts a string map into HCL variables.
func StringVariables(vars map[string]string) map[string]cty.Value {
	out := make(map[string]cty.Value, len(vars))
	for name, value := range vars {
		out[name] = cty.StringVal(value)
	}
	return out
}
