package grbl

import (
	"testing"

	"github.com/npratt/grblctl/internal/testutil"
)

type fakeGcodeEnqueuer struct {
	fed []string
}

func (f *fakeGcodeEnqueuer) Feed(lines []string, ctx *ExecContext) { f.fed = append(f.fed, lines...) }

func TestEventTriggerFiresSystemBinding(t *testing.T) {
	runner := testutil.NewMockRunner()
	runner.Responses["echo started"] = []byte("started\n")
	trig := NewEventTrigger(runner, nil, nil, nil)
	trig.Bind("gcode:start", Binding{Kind: TriggerSystem, Command: "echo", Args: []string{"started"}})

	trig.Fire("gcode:start")
	calls := runner.GetCalls()
	if len(calls) != 1 {
		t.Fatalf("expected one system call, got %v", calls)
	}
	if calls[0].Name != "echo" || calls[0].Args[0] != "started" {
		t.Fatalf("call = %v", calls[0])
	}
}

func TestEventTriggerFiresGcodeBinding(t *testing.T) {
	feeder := &fakeGcodeEnqueuer{}
	ctx := NewExecContext()
	trig := NewEventTrigger(nil, feeder, ctx, nil)
	trig.Bind("homing", Binding{Kind: TriggerGcode, Lines: []string{"$H"}})

	trig.Fire("homing")
	if len(feeder.fed) != 1 || feeder.fed[0] != "$H" {
		t.Fatalf("fed = %v", feeder.fed)
	}
}

func TestEventTriggerUnknownNameIsNoop(t *testing.T) {
	trig := NewEventTrigger(nil, nil, nil, nil)
	trig.Fire("macro:run") // no binding registered, must not panic
}

func TestEventTriggerMultipleBindingsFireInOrder(t *testing.T) {
	runner := testutil.NewMockRunner()
	runner.Responses["notify-cooldown"] = []byte("")
	feeder := &fakeGcodeEnqueuer{}
	trig := NewEventTrigger(runner, feeder, NewExecContext(), nil)
	trig.Bind("gcode:stop", Binding{Kind: TriggerSystem, Command: "notify-cooldown"})
	trig.Bind("gcode:stop", Binding{Kind: TriggerGcode, Lines: []string{"M5"}})

	trig.Fire("gcode:stop")
	calls := runner.GetCalls()
	if len(calls) != 1 {
		t.Fatalf("expected the system binding to fire, got %v", calls)
	}
	if len(feeder.fed) != 1 || feeder.fed[0] != "M5" {
		t.Fatalf("expected the gcode binding to fire too, got %v", feeder.fed)
	}
}

func TestEventTriggerMissingRunnerDoesNotPanic(t *testing.T) {
	trig := NewEventTrigger(nil, nil, nil, nil)
	trig.Bind("sleep", Binding{Kind: TriggerSystem, Command: "lock-screen"})
	trig.Fire("sleep")
}
