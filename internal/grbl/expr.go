package grbl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
)

// ExecContext is the mapping of named variables consumed by the expression
// preprocessor (§3 Execution Context). Any identifier absent from the
// context coerces to 0 when evaluated.
type ExecContext struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewExecContext creates an empty context. Callers supply the bounding-box
// keys (xmin,xmax,...); the engine seeds mposx..mposc and posx..posc into
// the loaded program's context on each status update. A fresh context
// simply treats all of them as 0 until set.
func NewExecContext() *ExecContext {
	return &ExecContext{values: make(map[string]float64)}
}

// Set assigns a variable in the context.
func (c *ExecContext) Set(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] = value
}

// Get returns a variable's value, or 0 if unset.
func (c *ExecContext) Get(name string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[name]
}

// snapshot returns a plain map copy for handing to the expression engine.
func (c *ExecContext) snapshot() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// SeedPosition sets the mpos{x..c}/pos{x..c} keys from a machine/work
// position pair, as the protocol engine does for the loaded program's
// context on every status update.
func (c *ExecContext) SeedPosition(mpos, pos Position) {
	c.Set("mposx", mpos.X)
	c.Set("mposy", mpos.Y)
	c.Set("mposz", mpos.Z)
	c.Set("mposa", mpos.A)
	c.Set("mposb", mpos.B)
	c.Set("mposc", mpos.C)
	c.Set("posx", pos.X)
	c.Set("posy", pos.Y)
	c.Set("posz", pos.Z)
	c.Set("posa", pos.A)
	c.Set("posb", pos.B)
	c.Set("posc", pos.C)
}

var bracketExpr = regexp.MustCompile(`\[[^\[\]]*\]`)

// expandBrackets replaces every `[expr]` substring in line with its
// evaluated numeric value. Brackets that fail to parse or evaluate are
// left in place verbatim (malformed input never aborts the line).
func expandBrackets(line string, ctx *ExecContext) string {
	return bracketExpr.ReplaceAllStringFunc(line, func(match string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(match, "["), "]")
		v, err := evalExprErr(inner, ctx)
		if err != nil {
			return match
		}
		return formatNumber(v)
	})
}

var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// evalExpr evaluates a bracket or %-assignment expression against ctx,
// coercing any unresolved identifier to 0. It never returns an error to
// its caller (expressions that fail to even parse evaluate to 0).
func evalExpr(exprStr string, ctx *ExecContext) float64 {
	v, err := evalExprErr(exprStr, ctx)
	if err != nil {
		return 0
	}
	return v
}

// evalExprErr is the error-returning core used by expandBrackets (which
// wants to leave malformed brackets untouched rather than silently zero
// them) and evalExpr (which wants the §7 "never throws" coercion).
//
// expr-lang's AllowUndefinedVariables option evaluates a missing
// identifier to nil, which breaks arithmetic rather than acting as 0. We
// instead pre-scan for identifiers and default any not already present in
// a per-call copy of the context, so arithmetic never sees a nil operand.
func evalExprErr(exprStr string, ctx *ExecContext) (float64, error) {
	env := ctx.snapshot()
	for _, ident := range identRe.FindAllString(exprStr, -1) {
		if _, ok := env[ident]; !ok {
			env[ident] = 0
		}
	}

	program, err := expr.Compile(exprStr, expr.Env(env))
	if err != nil {
		return 0, err
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return 0, err
	}

	switch v := out.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("grbl: expression %q evaluated to non-numeric %T", exprStr, out)
	}
}

// formatNumber renders a float the way Grbl expects numeric arguments:
// trimmed of trailing zeros, no scientific notation.
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
