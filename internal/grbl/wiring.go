package grbl

import (
	"log/slog"

	"github.com/npratt/grblctl/internal/events"
	"github.com/npratt/grblctl/internal/exec"
)

// routerFeederEmitter adapts FeederEmitter onto an events.Router, so the
// Feeder's own hold/data events are visible to the fan-out layer
// immediately rather than only through the periodic feeder:status tick.
type routerFeederEmitter struct {
	router *events.Router
	engine *Engine
}

func (e routerFeederEmitter) FeederData(line string, ctx *ExecContext) {
	if e.engine != nil {
		e.engine.Writeln(line)
	}
}

func (e routerFeederEmitter) FeederHold(reason string) {
	e.router.Emit(&events.FeederStatusEvent{BaseEvent: events.NewInternalEvent(events.EventFeederStatus), Held: true, Reason: reason})
}

func (e routerFeederEmitter) FeederUnhold() {
	e.router.Emit(&events.FeederStatusEvent{BaseEvent: events.NewInternalEvent(events.EventFeederStatus), Held: false})
}

// routerSenderEmitter adapts SenderEmitter onto an events.Router.
type routerSenderEmitter struct {
	router *events.Router
	engine *Engine
}

func (e routerSenderEmitter) SenderStart() {}

func (e routerSenderEmitter) SenderEnd() {}

func (e routerSenderEmitter) SenderData(line string, ctx *ExecContext) {
	if e.engine != nil {
		e.engine.Writeln(line)
	}
}

func (e routerSenderEmitter) SenderHold(reason string) {
	e.router.Emit(&events.SenderStatusEvent{BaseEvent: events.NewInternalEvent(events.EventSenderStatus), Held: true, Reason: reason})
}

func (e routerSenderEmitter) SenderUnhold() {
	e.router.Emit(&events.SenderStatusEvent{BaseEvent: events.NewInternalEvent(events.EventSenderStatus), Held: false})
}

// routerWorkflowEmitter adapts WorkflowEmitter onto an events.Router.
type routerWorkflowEmitter struct{ router *events.Router }

func (e routerWorkflowEmitter) WorkflowState(state WorkflowState, reason string) {
	e.router.Emit(&events.WorkflowStateEvent{BaseEvent: events.NewInternalEvent(events.EventWorkflowState), State: string(state), Reason: reason})
}

// Assemble wires a fresh Device/Feeder/Sender/Workflow/EventTrigger
// against a shared Router and Port, in the shape cmd/grblctl's startup
// path uses: the Workflow is the Sender's SenderPauser, and every
// component's emitter forwards onto router.
func Assemble(port Port, router *events.Router, runner exec.CommandRunner, log *slog.Logger) *Engine {
	device := NewDevice()
	engine := &Engine{}
	feeder := NewFeeder(routerFeederEmitter{router: router, engine: engine})
	execCtx := NewExecContext()
	trigger := NewEventTrigger(runner, feeder, execCtx, log)

	sender := NewSender(routerSenderEmitter{router: router, engine: engine}, nil)
	workflow := NewWorkflow(sender, feeder, routerWorkflowEmitter{router: router}, trigger)
	sender.pauser = workflow

	engine.init(port, device, feeder, sender, workflow, trigger, router, log)
	return engine
}
