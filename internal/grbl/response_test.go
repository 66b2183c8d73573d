package grbl

import "testing"

func TestParseLineKind(t *testing.T) {
	tests := []struct {
		name string
		line string
		want ResponseKind
	}{
		{"status v1.1", "<Idle|MPos:0.000,0.000,0.000|FS:0,0>", KindStatus},
		{"status v0.9", "<Idle,MPos:0.000,0.000,0.000,WPos:0.000,0.000,0.000>", KindStatus},
		{"ok", "ok", KindOk},
		{"error", "error:20", KindError},
		{"alarm numeric", "ALARM:1", KindAlarm},
		{"alarm message", "ALARM:Hard limit", KindAlarm},
		{"parser state", "[GC:G0 G54 G17 G21 G90 G94 M0 M5 M9 T0 F0 S0]", KindParserState},
		{"params G54", "[G54:0.000,0.000,0.000]", KindParameters},
		{"params PRB", "[PRB:0.000,0.000,0.000:0]", KindParameters},
		{"feedback msg", "[MSG:Caution: Unlocked]", KindFeedback},
		{"feedback bare", "[Reset to continue]", KindFeedback},
		{"setting", "$110=500.000", KindSetting},
		{"startup", "Grbl 1.1f ['$' for help]", KindStartup},
		{"other", "garbage response", KindOther},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseLine(tc.line)
			if got.Kind != tc.want {
				t.Fatalf("ParseLine(%q).Kind = %v, want %v", tc.line, got.Kind, tc.want)
			}
			if got.Raw != tc.line {
				t.Fatalf("ParseLine(%q).Raw = %q, want original line preserved", tc.line, got.Raw)
			}
		})
	}
}

func TestParseLineError(t *testing.T) {
	r := ParseLine("error:20")
	if r.ErrorCode != 20 {
		t.Fatalf("ErrorCode = %d, want 20", r.ErrorCode)
	}
}

func TestParseLineSetting(t *testing.T) {
	r := ParseLine("$110=500.000")
	if r.SettingName != "$110" || r.SettingValue != "500.000" {
		t.Fatalf("got name=%q value=%q", r.SettingName, r.SettingValue)
	}
}

func TestParseLineStatusFields(t *testing.T) {
	r := ParseLine("<Run|MPos:1.000,2.000,3.000|WCO:0.500,0.500,0.000|Bf:15,120>")
	if r.Status.State != "Run" {
		t.Fatalf("State = %q, want Run", r.Status.State)
	}
	if !r.Status.MPosSet || r.Status.MPos.X != 1 || r.Status.MPos.Y != 2 || r.Status.MPos.Z != 3 {
		t.Fatalf("MPos = %+v", r.Status.MPos)
	}
	if !r.Status.WCOSet || r.Status.WCO.X != 0.5 {
		t.Fatalf("WCO = %+v", r.Status.WCO)
	}
	if !r.Status.RXBufferFreeSet || r.Status.RXBufferFree != 120 {
		t.Fatalf("RXBufferFree = %d, set=%v", r.Status.RXBufferFree, r.Status.RXBufferFreeSet)
	}
}

func TestParseLineStatusV09BufferField(t *testing.T) {
	r := ParseLine("<Idle,MPos:0.000,0.000,0.000,RX:128>")
	if !r.Status.RXBufferFreeSet || r.Status.RXBufferFree != 128 {
		t.Fatalf("RXBufferFree = %d, set=%v", r.Status.RXBufferFree, r.Status.RXBufferFreeSet)
	}
}

func TestParseLineStateless(t *testing.T) {
	// Calling ParseLine repeatedly with the same input always yields the
	// same classification; the parser holds no state between calls.
	a := ParseLine("<Idle|MPos:0.000,0.000,0.000>")
	b := ParseLine("<Idle|MPos:0.000,0.000,0.000>")
	if a.Kind != b.Kind || a.Status.State != b.Status.State {
		t.Fatalf("parser is not stateless: %+v vs %+v", a, b)
	}
}
