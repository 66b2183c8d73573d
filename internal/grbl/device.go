// Package grbl implements the protocol engine for a Grbl-compatible CNC
// controller: line classification, device state tracking, the feeder and
// sender command queues, the idle/running/paused workflow, the bracket
// expression preprocessor, event triggers, and the glue that ties them
// together against a serial transport.
package grbl

import "reflect"

// ActiveState is the device's reported run state, taken from the first
// field of a status report.
type ActiveState string

// Active states reported by a Grbl-compatible controller.
const (
	StateIdle  ActiveState = "Idle"
	StateRun   ActiveState = "Run"
	StateHold  ActiveState = "Hold"
	StateJog   ActiveState = "Jog"
	StateAlarm ActiveState = "Alarm"
	StateDoor  ActiveState = "Door"
	StateCheck ActiveState = "Check"
	StateHome  ActiveState = "Home"
	StateSleep ActiveState = "Sleep"
)

// Position holds a six-axis coordinate. Unused axes stay at zero.
type Position struct {
	X, Y, Z, A, B, C float64
}

// DeviceSnapshot is a value copy of the device model suitable for structural
// comparison across scheduler ticks (see design note: the original detects
// changes by object-reference inequality; here we compare snapshots).
type DeviceSnapshot struct {
	State    ActiveState
	MPos     Position
	WCO      Position
	WCOKnown bool
	RawLine  string
}

// Device holds the controller's last-known state as reported by the Grbl
// device. It performs no I/O; it is a pure, mutable model updated by the
// protocol engine as responses arrive.
type Device struct {
	state    ActiveState
	mpos     Position
	wco      Position
	wcoKnown bool
	rawLine  string
	settings map[string]string
}

// NewDevice creates an empty device model.
func NewDevice() *Device {
	return &Device{
		state:    StateIdle,
		settings: make(map[string]string),
	}
}

// ApplyStatus merges a parsed Status response into the device model.
// Fields absent from the report (e.g. a controller that only reports
// machine position) are left unchanged.
func (d *Device) ApplyStatus(s StatusFields) {
	d.rawLine = s.Raw
	if s.State != "" {
		d.state = ActiveState(s.State)
	}
	if s.MPosSet {
		d.mpos = s.MPos
	}
	if s.WCOSet {
		d.wco = s.WCO
		d.wcoKnown = true
	}
	if s.WPosSet && !s.WCOSet {
		// Some firmwares report WPos directly instead of MPos+WCO; derive
		// WCO from the pair so WorkPosition stays consistent either way.
		d.wco = Position{
			X: d.mpos.X - s.WPos.X,
			Y: d.mpos.Y - s.WPos.Y,
			Z: d.mpos.Z - s.WPos.Z,
			A: d.mpos.A - s.WPos.A,
			B: d.mpos.B - s.WPos.B,
			C: d.mpos.C - s.WPos.C,
		}
		d.wcoKnown = true
	}
}

// ApplySetting records a `$N=value` setting update. Returns true if the
// stored value changed (including first-time insertion).
func (d *Device) ApplySetting(name, value string) bool {
	prev, existed := d.settings[name]
	d.settings[name] = value
	return !existed || prev != value
}

// State returns the device's active run state.
func (d *Device) State() ActiveState { return d.state }

// MachinePosition returns the last-known machine position.
func (d *Device) MachinePosition() Position { return d.mpos }

// WorkPosition returns machine position minus the work coordinate offset.
// If the offset is unknown, work position equals machine position.
func (d *Device) WorkPosition() Position {
	if !d.wcoKnown {
		return d.mpos
	}
	return Position{
		X: d.mpos.X - d.wco.X,
		Y: d.mpos.Y - d.wco.Y,
		Z: d.mpos.Z - d.wco.Z,
		A: d.mpos.A - d.wco.A,
		B: d.mpos.B - d.wco.B,
		C: d.mpos.C - d.wco.C,
	}
}

// IsIdle reports whether the device's active state is Idle.
func (d *Device) IsIdle() bool { return d.state == StateIdle }

// IsAlarm reports whether the device's active state is Alarm.
func (d *Device) IsAlarm() bool { return d.state == StateAlarm }

// Setting returns the raw string value of a `$N` setting, if known.
func (d *Device) Setting(name string) (string, bool) {
	v, ok := d.settings[name]
	return v, ok
}

// Settings returns a copy of the current settings map.
func (d *Device) Settings() map[string]string {
	out := make(map[string]string, len(d.settings))
	for k, v := range d.settings {
		out[k] = v
	}
	return out
}

// Snapshot returns a value copy of the mutable state for change detection.
func (d *Device) Snapshot() DeviceSnapshot {
	return DeviceSnapshot{
		State:    d.state,
		MPos:     d.mpos,
		WCO:      d.wco,
		WCOKnown: d.wcoKnown,
		RawLine:  d.rawLine,
	}
}

// SnapshotChanged reports whether two snapshots differ structurally.
func SnapshotChanged(prev, next DeviceSnapshot) bool {
	return !reflect.DeepEqual(prev, next)
}

// SettingsChanged reports whether two settings maps differ structurally.
func SettingsChanged(prev, next map[string]string) bool {
	return !reflect.DeepEqual(prev, next)
}
