package grbl

import (
	"context"
	"log/slog"
	"strings"

	"github.com/npratt/grblctl/internal/exec"
)

// TriggerKind selects what a binding does when its event fires (§4.7).
type TriggerKind int

const (
	// TriggerSystem invokes the external task runner.
	TriggerSystem TriggerKind = iota
	// TriggerGcode enqueues commands via the engine's command bus.
	TriggerGcode
)

// Binding is one named-event hook registration.
type Binding struct {
	Kind TriggerKind

	// Command and Args are used when Kind == TriggerSystem.
	Command string
	Args    []string

	// Lines are fed to the Feeder when Kind == TriggerGcode.
	Lines []string
}

// GcodeEnqueuer is the command-bus surface a TriggerGcode binding drives.
// The protocol engine satisfies this by feeding the lines to its Feeder.
type GcodeEnqueuer interface {
	Feed(lines []string, ctx *ExecContext)
}

// EventTrigger fires named event hooks (§4.7): gcode:start, gcode:stop,
// gcode:pause, gcode:resume, gcode:load, gcode:unload, macro:run,
// macro:load, feedhold, cyclestart, homing, sleep.
type EventTrigger struct {
	bindings map[string][]Binding

	runner exec.CommandRunner
	feeder GcodeEnqueuer
	ctx    *ExecContext
	log    *slog.Logger
}

// NewEventTrigger creates a trigger dispatcher. runner and feeder may be
// nil; a nil collaborator simply drops bindings of its kind with a log
// warning instead of panicking.
func NewEventTrigger(runner exec.CommandRunner, feeder GcodeEnqueuer, ctx *ExecContext, log *slog.Logger) *EventTrigger {
	if log == nil {
		log = slog.Default()
	}
	return &EventTrigger{
		bindings: make(map[string][]Binding),
		runner:   runner,
		feeder:   feeder,
		ctx:      ctx,
		log:      log,
	}
}

// Bind registers a binding under a named event. Multiple bindings may
// share a name; all fire in registration order.
func (t *EventTrigger) Bind(name string, b Binding) {
	t.bindings[name] = append(t.bindings[name], b)
}

// Fire runs every binding registered under name. Unknown names are a
// no-op: most named events have no configured hook.
func (t *EventTrigger) Fire(name string) {
	for _, b := range t.bindings[name] {
		switch b.Kind {
		case TriggerSystem:
			t.fireSystem(name, b)
		case TriggerGcode:
			t.fireGcode(name, b)
		}
	}
}

func (t *EventTrigger) fireSystem(event string, b Binding) {
	if t.runner == nil {
		t.log.Warn("event trigger: no command runner configured", "event", event, "command", b.Command)
		return
	}
	if strings.TrimSpace(b.Command) == "" {
		return
	}
	out, err := t.runner.Run(context.Background(), b.Command, b.Args...)
	if err != nil {
		t.log.Error("event trigger: system hook failed", "event", event, "command", b.Command, "error", err, "output", string(out))
		return
	}
	t.log.Info("event trigger: system hook ran", "event", event, "command", b.Command)
}

func (t *EventTrigger) fireGcode(event string, b Binding) {
	if t.feeder == nil {
		t.log.Warn("event trigger: no gcode sink configured", "event", event)
		return
	}
	if len(b.Lines) == 0 {
		return
	}
	t.feeder.Feed(b.Lines, t.ctx)
}
