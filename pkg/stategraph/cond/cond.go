// Package cond compiles boolean expressions over execution state into
// predicates, using the expr expression language. Expressions see the state
// keys as top-level variables:
//
//	p, err := cond.Compile(`score > 0.8 && category == "news"`)
//	p(map[string]any{"score": 0.9, "category": "news"}) // true
package cond

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Predicate evaluates a compiled expression against a state snapshot.
// Evaluation failures (missing keys, type mismatches) yield false: a route
// whose condition cannot be evaluated is simply not taken.
type Predicate func(vars map[string]any) bool

// Compile parses and type-checks a boolean expression. The expression may
// reference any state key as a variable; unknown keys fail at evaluation
// time, not compile time, since state contents vary per run.
func Compile(src string) (Predicate, error) {
	program, err := expr.Compile(src, expr.Env(map[string]any{}), expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile condition %q: %w", src, err)
	}
	return func(vars map[string]any) bool {
		return run(program, vars)
	}, nil
}

// MustCompile is like Compile but panics on error. Intended for conditions
// written as literals at graph-build time, where a malformed expression is a
// programmer error.
func MustCompile(src string) Predicate {
	p, err := Compile(src)
	if err != nil {
		panic("cond: " + err.Error())
	}
	return p
}

func run(program *vm.Program, vars map[string]any) bool {
	if vars == nil {
		vars = map[string]any{}
	}
	out, err := expr.Run(program, vars)
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}
