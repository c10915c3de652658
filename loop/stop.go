package loop

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/pthm-cable/preytrap/trap"
)

// StopCondition ends a run early when a CEL expression over the latest
// step evaluates to true. A nil *StopCondition never fires.
//
// Variables: step (int), trapped (bool), cumulative (int), x and y (double).
type StopCondition struct {
	expr string
	prg  cel.Program
}

// CompileStopCondition parses and type-checks expr. An empty expression
// yields a nil condition.
func CompileStopCondition(expr string) (*StopCondition, error) {
	if expr == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("step", cel.IntType),
		cel.Variable("trapped", cel.BoolType),
		cel.Variable("cumulative", cel.IntType),
		cel.Variable("x", cel.DoubleType),
		cel.Variable("y", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("stop condition env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile stop condition %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("stop condition %q has type %s, want bool", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program stop condition %q: %w", expr, err)
	}

	return &StopCondition{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (c *StopCondition) String() string {
	if c == nil {
		return ""
	}
	return c.expr
}

// Eval reports whether the run should stop after this step.
func (c *StopCondition) Eval(step int, v trap.Verdict, x, y float64) (bool, error) {
	if c == nil {
		return false, nil
	}

	out, _, err := c.prg.Eval(map[string]any{
		"step":       int64(step),
		"trapped":    v.Trapped,
		"cumulative": int64(v.Cumulative),
		"x":          x,
		"y":          y,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate stop condition %q: %w", c.expr, err)
	}

	stop, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("stop condition %q returned %T", c.expr, out.Value())
	}
	return stop, nil
}
