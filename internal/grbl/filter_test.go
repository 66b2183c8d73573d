package grbl

import "testing"

type fakeHoldPolicy struct {
	held string
	wait bool
}

func (f *fakeHoldPolicy) RequestHold(reason string) { f.held = reason }
func (f *fakeHoldPolicy) RequestWait()              { f.wait = true }

func TestPreprocessPassthrough(t *testing.T) {
	ctx := NewExecContext()
	policy := &fakeHoldPolicy{}

	res := preprocess("G1 X1 Y2 F100\n", ctx, policy)
	res.Commit()

	if res.Line != "G1 X1 Y2 F100" {
		t.Fatalf("Line = %q", res.Line)
	}
	if policy.held != "" {
		t.Fatalf("expected no hold request, got %q", policy.held)
	}
}

func TestPreprocessBracketExpansion(t *testing.T) {
	ctx := NewExecContext()
	ctx.Set("xmax", 10)
	policy := &fakeHoldPolicy{}

	res := preprocess("G0 X[xmax]", ctx, policy)
	res.Commit()
	if res.Line != "G0 X10" {
		t.Fatalf("Line = %q", res.Line)
	}
}

func TestPreprocessWaitDirective(t *testing.T) {
	ctx := NewExecContext()
	policy := &fakeHoldPolicy{}

	res := preprocess("%wait", ctx, policy)
	if res.Line != "G4 P0.5 (%wait)" {
		t.Fatalf("Line = %q", res.Line)
	}
	res.Commit()
	if !policy.wait {
		t.Fatalf("expected RequestWait to be called")
	}
}

func TestPreprocessAssignmentDirectiveSuppressesLine(t *testing.T) {
	ctx := NewExecContext()
	policy := &fakeHoldPolicy{}

	res := preprocess("%xmax=10,ymax=20", ctx, policy)
	if res.Line != "" {
		t.Fatalf("assignment directive should suppress the line, got %q", res.Line)
	}

	// Commit must be called for the assignment to take effect.
	if ctx.Get("xmax") != 0 {
		t.Fatalf("context should not mutate before Commit")
	}
	res.Commit()
	if ctx.Get("xmax") != 10 || ctx.Get("ymax") != 20 {
		t.Fatalf("xmax=%v ymax=%v after commit", ctx.Get("xmax"), ctx.Get("ymax"))
	}
}

func TestPreprocessAssignmentStripsComment(t *testing.T) {
	ctx := NewExecContext()
	policy := &fakeHoldPolicy{}

	res := preprocess("%xmax=10 ; set bound", ctx, policy)
	res.Commit()
	if ctx.Get("xmax") != 10 {
		t.Fatalf("xmax = %v, want 10", ctx.Get("xmax"))
	}
}

func TestPreprocessM0RequestsHold(t *testing.T) {
	ctx := NewExecContext()
	policy := &fakeHoldPolicy{}

	res := preprocess("M0", ctx, policy)
	res.Commit()
	if policy.held != "M0" {
		t.Fatalf("held = %q, want M0", policy.held)
	}
	if res.Line != "M0" {
		t.Fatalf("M0 line itself should not be rewritten, got %q", res.Line)
	}
}

func TestPreprocessM6RewrittenAndHeld(t *testing.T) {
	ctx := NewExecContext()
	policy := &fakeHoldPolicy{}

	res := preprocess("M6 T1", ctx, policy)
	res.Commit()
	if res.Line != "(M6) T1" {
		t.Fatalf("Line = %q, want %q", res.Line, "(M6) T1")
	}
	if policy.held != "M6" {
		t.Fatalf("held = %q, want M6", policy.held)
	}
}

func TestPreprocessM6WithoutToolWord(t *testing.T) {
	ctx := NewExecContext()
	policy := &fakeHoldPolicy{}

	res := preprocess("M6", ctx, policy)
	res.Commit()
	if res.Line != "(M6)" {
		t.Fatalf("Line = %q, want %q", res.Line, "(M6)")
	}
}
