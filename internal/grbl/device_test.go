package grbl

import "testing"

func TestDeviceApplyStatus(t *testing.T) {
	d := NewDevice()
	r := ParseLine("<Run|MPos:10.000,20.000,0.000|WCO:1.000,2.000,0.000>")
	d.ApplyStatus(r.Status)

	if d.State() != StateRun {
		t.Fatalf("State = %v, want Run", d.State())
	}
	if d.IsIdle() {
		t.Fatalf("IsIdle should be false in Run state")
	}
	mp := d.MachinePosition()
	if mp.X != 10 || mp.Y != 20 {
		t.Fatalf("MachinePosition = %+v", mp)
	}
	wp := d.WorkPosition()
	if wp.X != 9 || wp.Y != 18 {
		t.Fatalf("WorkPosition = %+v, want 9,18 (MPos-WCO)", wp)
	}
}

func TestDeviceWorkPositionWithoutWCO(t *testing.T) {
	d := NewDevice()
	r := ParseLine("<Idle|MPos:5.000,5.000,5.000>")
	d.ApplyStatus(r.Status)

	wp := d.WorkPosition()
	if wp != d.MachinePosition() {
		t.Fatalf("WorkPosition should equal MachinePosition when WCO unknown, got %+v vs %+v", wp, d.MachinePosition())
	}
}

func TestDeviceApplySettingChangeDetection(t *testing.T) {
	d := NewDevice()
	if changed := d.ApplySetting("$110", "500.000"); !changed {
		t.Fatalf("first insertion should report changed")
	}
	if changed := d.ApplySetting("$110", "500.000"); changed {
		t.Fatalf("re-applying the same value should report unchanged")
	}
	if changed := d.ApplySetting("$110", "600.000"); !changed {
		t.Fatalf("applying a different value should report changed")
	}
}

func TestDeviceIsAlarm(t *testing.T) {
	d := NewDevice()
	r := ParseLine("<Alarm|MPos:0.000,0.000,0.000>")
	d.ApplyStatus(r.Status)
	if !d.IsAlarm() {
		t.Fatalf("IsAlarm should be true")
	}
}

func TestSnapshotChanged(t *testing.T) {
	d := NewDevice()
	before := d.Snapshot()

	r := ParseLine("<Run|MPos:1.000,0.000,0.000>")
	d.ApplyStatus(r.Status)
	after := d.Snapshot()

	if !SnapshotChanged(before, after) {
		t.Fatalf("expected snapshot change after status update")
	}
	if SnapshotChanged(after, d.Snapshot()) {
		t.Fatalf("expected no change between two reads of stable state")
	}
}

func TestSettingsChanged(t *testing.T) {
	d := NewDevice()
	before := d.Settings()
	d.ApplySetting("$100", "80.000")
	after := d.Settings()

	if !SettingsChanged(before, after) {
		t.Fatalf("expected settings change")
	}
}
