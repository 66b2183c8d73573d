package grbl

import (
	"testing"
	"time"

	"github.com/npratt/grblctl/internal/events"
)

func TestTickSkipsWhenPortClosed(t *testing.T) {
	router := events.NewRouter(8)
	engine := Assemble(nil, router, nil, nil)
	engine.Tick(time.Now()) // must not panic with a nil port
}

func TestTickIssuesStatusPollOnceReady(t *testing.T) {
	e, port, _ := newTestEngine()
	e.ready = true

	now := time.Now()
	e.Tick(now)
	// Device and workflow both default to Idle, so the first tick fires
	// both the status poll and the (also-due) parser-state poll.
	if len(port.writes) != 2 || port.writes[0] != rtStatus || port.writes[1] != "$G\n" {
		t.Fatalf("expected a status poll and a parser-state poll, got %v", port.writes)
	}

	e.Tick(now.Add(1 * time.Millisecond))
	if len(port.writes) != 2 {
		t.Fatalf("both masks should suppress a second poll within their windows, got %v", port.writes)
	}
}

func TestTickForceClearsStalePollAfterFiveSeconds(t *testing.T) {
	e, port, _ := newTestEngine()
	e.ready = true
	start := time.Now()
	e.Tick(start) // issues the initial "?" and "$G\n"

	e.Tick(start.Add(6 * time.Second))
	if len(port.writes) != 3 || port.writes[2] != rtStatus {
		t.Fatalf("expected lost-response recovery to issue a fresh status poll, got %v", port.writes)
	}
}

func TestTickEmitsFeederAndSenderStatus(t *testing.T) {
	e, _, router := newTestEngine()
	ch := drain(router)
	e.Gcode([]string{"G0 X1"}, nil)

	e.Tick(time.Now())

	var sawFeeder bool
	deadline := time.After(20 * time.Millisecond)
	for !sawFeeder {
		select {
		case ev := <-ch:
			if ev.Type() == events.EventFeederStatus {
				sawFeeder = true
			}
		case <-deadline:
			t.Fatalf("expected a feeder:status event")
			return
		}
	}
}

func TestTickIssuesParserStateOnlyWhenBothIdle(t *testing.T) {
	e, port, _ := newTestEngine()
	e.ready = true
	e.HandleLine("<Idle|MPos:0.000,0.000,0.000>")
	port.writes = nil

	e.Tick(time.Now())
	var sawParserPoll bool
	for _, w := range port.writes {
		if w == "$G\n" {
			sawParserPoll = true
		}
	}
	if !sawParserPoll {
		t.Fatalf("expected a $G poll while both workflow and device are Idle, got %v", port.writes)
	}
}

func TestTickAutoStopsAfterQuiescenceWindow(t *testing.T) {
	e, _, _ := newTestEngine()
	e.LoadGcode("job.nc", "G0 X1\n", nil)
	e.Start()
	e.HandleLine("ok") // acks the only line, sender completes

	start := time.Now()
	e.HandleLine("<Idle|MPos:1.000,0.000,0.000>")
	e.Tick(start)
	if e.workflow.State() != WorkflowRunning {
		t.Fatalf("should not auto-stop before the quiescence window elapses")
	}

	e.Tick(start.Add(600 * time.Millisecond))
	if e.workflow.State() != WorkflowIdle {
		t.Fatalf("expected auto gcode:stop after the quiescence window, got %v", e.workflow.State())
	}
}
