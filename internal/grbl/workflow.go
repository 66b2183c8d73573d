package grbl

// WorkflowState is the Workflow's coarse run state (§3).
type WorkflowState string

// The three legal Workflow states.
const (
	WorkflowIdle    WorkflowState = "Idle"
	WorkflowRunning WorkflowState = "Running"
	WorkflowPaused  WorkflowState = "Paused"
)

// WorkflowEmitter receives workflow:state events on every transition.
type WorkflowEmitter interface {
	WorkflowState(state WorkflowState, reason string)
}

// WorkflowTrigger fires a named event hook (§4.7) on each Workflow
// transition, e.g. "gcode:start".
type WorkflowTrigger interface {
	Fire(name string)
}

// Workflow is the three-state machine gating the Sender and Feeder (§4.5).
// Legal transitions: Idle→Running (Start), Running→Paused (Pause),
// Paused→Running (Resume), Any→Idle (Stop).
type Workflow struct {
	state  WorkflowState
	reason string

	sender  *Sender
	feeder  *Feeder
	emitter WorkflowEmitter
	trigger WorkflowTrigger
}

// NewWorkflow creates a Workflow in the Idle state.
func NewWorkflow(sender *Sender, feeder *Feeder, emitter WorkflowEmitter, trigger WorkflowTrigger) *Workflow {
	return &Workflow{
		state:   WorkflowIdle,
		sender:  sender,
		feeder:  feeder,
		emitter: emitter,
		trigger: trigger,
	}
}

// State returns the current workflow state.
func (w *Workflow) State() WorkflowState { return w.state }

// Reason returns the context payload of the current state, if any (e.g.
// the M-code mnemonic that caused a Pause).
func (w *Workflow) Reason() string { return w.reason }

// Start transitions to Running, rewinds the Sender to the start of the
// loaded program, and kicks off transmission.
func (w *Workflow) Start() {
	w.state = WorkflowRunning
	w.reason = ""
	w.emit()
	w.fire("gcode:start")
	w.sender.Rewind()
	w.sender.Next()
}

// Pause transitions to Paused with the given reason and holds the Sender.
func (w *Workflow) Pause(reason string) {
	w.state = WorkflowPaused
	w.reason = reason
	w.emit()
	w.fire("gcode:pause")
	w.sender.Hold(reason)
}

// Resume transitions back to Running, drops any queued Feeder commands
// (they are stale once the operator has chosen to continue the program),
// unholds both queues, and resumes Sender transmission.
func (w *Workflow) Resume() {
	w.state = WorkflowRunning
	w.reason = ""
	w.emit()
	w.fire("gcode:resume")
	w.feeder.Clear()
	w.feeder.Unhold()
	w.sender.Unhold()
	w.sender.Next()
}

// Stop transitions to Idle and rewinds the Sender.
func (w *Workflow) Stop() {
	w.state = WorkflowIdle
	w.reason = ""
	w.emit()
	w.fire("gcode:stop")
	w.sender.Rewind()
}

func (w *Workflow) emit() {
	if w.emitter != nil {
		w.emitter.WorkflowState(w.state, w.reason)
	}
}

func (w *Workflow) fire(name string) {
	if w.trigger != nil {
		w.trigger.Fire(name)
	}
}
