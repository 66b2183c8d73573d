package grbl

import "strings"

// HoldPolicy lets the shared preprocessing filter request a hold without
// knowing whether it is running against the Feeder (which holds itself) or
// the Sender (which pauses the Workflow instead). Feeder and Sender each
// implement this against their own semantics.
type HoldPolicy interface {
	// RequestHold is called when tokenized words demand a pause, with the
	// mnemonic that triggered it (e.g. "M0", "M6").
	RequestHold(reason string)
}

// FilterResult is what preprocess produces for one line: the (possibly
// rewritten, possibly empty/suppressed) line to actually transmit, plus a
// Commit closure. Side effects — context mutation from a `%` assignment,
// and hold requests from M-code tokens — are deferred into Commit so the
// caller can check the transformed line against remaining buffer credit
// before applying them. This keeps a line that doesn't yet fit from
// mutating shared state twice if it is reconsidered on a later call.
type FilterResult struct {
	// Line is the line to transmit. Empty means suppressed: nothing is
	// written to the wire, but Commit must still be called so that any
	// context mutation from a `%` assignment takes effect.
	Line string

	// Commit applies the deferred side effects (context mutation, hold
	// request). Call exactly once, only once the line has been accepted
	// for transmission (or accepted as a suppressed no-op).
	Commit func()
}

// preprocess runs one input line through the expression preprocessor
// (§4.6) and the M-code hold semantics, against ctx and policy. It never
// mutates ctx directly — all effects are deferred into the returned
// Commit closure.
func preprocess(line string, ctx *ExecContext, policy HoldPolicy) FilterResult {
	trimmed := strings.TrimRight(line, "\r\n")

	if strings.HasPrefix(trimmed, "%") {
		return preprocessDirective(trimmed, ctx, policy)
	}

	expanded := expandBrackets(trimmed, ctx)
	return preprocessGCode(expanded, policy)
}

// preprocessDirective handles a `%`-prefixed line: `%wait` or an assignment
// list `name1=expr1,name2=expr2,...`.
func preprocessDirective(line string, ctx *ExecContext, policy HoldPolicy) FilterResult {
	body, _, _ := strings.Cut(line, ";")
	body = strings.TrimSpace(body)

	if body == "%wait" {
		waiter, isWaiter := policy.(waitHoldPolicy)
		return FilterResult{
			Line: "G4 P0.5 (%wait)",
			Commit: func() {
				if isWaiter {
					waiter.RequestWait()
				}
			},
		}
	}

	assignments := strings.TrimPrefix(body, "%")
	pairs := parseAssignments(assignments)
	return FilterResult{
		Line: "",
		Commit: func() {
			for _, p := range pairs {
				ctx.Set(p.name, evalExpr(p.expr, ctx))
			}
		},
	}
}

type assignment struct{ name, expr string }

func parseAssignments(s string) []assignment {
	var out []assignment
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, expr, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out = append(out, assignment{name: strings.TrimSpace(name), expr: strings.TrimSpace(expr)})
	}
	return out
}

// preprocessGCode handles a normal (non-`%`) line: bracket substitution
// already applied by the caller, then M-code hold/rewrite semantics.
func preprocessGCode(line string, policy HoldPolicy) FilterResult {
	mnemonic := holdMnemonic(line)
	rewritten := line
	if mnemonic == "M6" {
		rewritten = rewriteM6(line)
	}

	return FilterResult{
		Line: rewritten,
		Commit: func() {
			if mnemonic != "" {
				policy.RequestHold(mnemonic)
			}
		},
	}
}

var holdMnemonics = []string{"M0", "M1", "M2", "M30", "M6"}

// holdMnemonic returns the first pause-triggering M-code token found in
// line, or "" if none.
func holdMnemonic(line string) string {
	upper := strings.ToUpper(line)
	for _, field := range strings.Fields(upper) {
		for _, m := range holdMnemonics {
			if field == m {
				return m
			}
		}
	}
	return ""
}

// rewriteM6 comments out the M6 token (and nothing else) so the device
// does not reject the line outright while the operator performs the tool
// change; the rest of the block (e.g. a T-word) passes through.
func rewriteM6(line string) string {
	fields := strings.Fields(line)
	var out []string
	wrapped := false
	for _, f := range fields {
		if strings.ToUpper(f) == "M6" && !wrapped {
			out = append(out, "(M6)")
			wrapped = true
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// waitHoldPolicy is implemented by hold policies that can additionally
// honor `%wait` by holding until the dwell's own ok arrives (Sender only;
// the Feeder has no equivalent semantics for %wait).
type waitHoldPolicy interface {
	RequestWait()
}
