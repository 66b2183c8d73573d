package grbl

import (
	"strconv"
	"strings"
)

// ResponseKind tags the variant carried by a Response.
type ResponseKind int

// Response kinds, in the classification order the parser applies them.
const (
	KindStatus ResponseKind = iota
	KindOk
	KindError
	KindAlarm
	KindParserState
	KindParameters
	KindFeedback
	KindSetting
	KindStartup
	KindOther
)

func (k ResponseKind) String() string {
	switch k {
	case KindStatus:
		return "Status"
	case KindOk:
		return "Ok"
	case KindError:
		return "Error"
	case KindAlarm:
		return "Alarm"
	case KindParserState:
		return "ParserState"
	case KindParameters:
		return "Parameters"
	case KindFeedback:
		return "Feedback"
	case KindSetting:
		return "Setting"
	case KindStartup:
		return "Startup"
	default:
		return "Other"
	}
}

// StatusFields holds the fields extracted from a `<...>` status report.
type StatusFields struct {
	Raw     string
	State   string
	MPos    Position
	MPosSet bool
	WPos    Position
	WPosSet bool
	WCO     Position
	WCOSet  bool

	// RXBufferFree is the device's reported available RX buffer bytes,
	// from the `Bf:<planner>,<rx>` or `RX:<rx>` status field, if present.
	RXBufferFree    int
	RXBufferFreeSet bool
}

// Response is the tagged variant produced by ParseLine. Only the fields
// relevant to Kind are meaningful; Raw always carries the original line.
type Response struct {
	Kind ResponseKind
	Raw  string

	Status StatusFields

	ErrorCode int
	AlarmCode string

	Modals string

	ParamName  string
	ParamValue string

	FeedbackText string

	SettingName  string
	SettingValue string

	StartupVersion string
}

// ParseLine classifies one newline-stripped line of device output. The
// parser is stateless: the same line always classifies the same way.
func ParseLine(line string) Response {
	switch {
	case strings.HasPrefix(line, "<") && strings.HasSuffix(line, ">"):
		return Response{Kind: KindStatus, Raw: line, Status: parseStatus(line)}

	case line == "ok":
		return Response{Kind: KindOk, Raw: line}

	case strings.HasPrefix(line, "error:"):
		code, _ := strconv.Atoi(strings.TrimPrefix(line, "error:"))
		return Response{Kind: KindError, Raw: line, ErrorCode: code}

	case strings.HasPrefix(line, "ALARM:"):
		return Response{Kind: KindAlarm, Raw: line, AlarmCode: strings.TrimPrefix(line, "ALARM:")}

	case strings.HasPrefix(line, "[GC:") && strings.HasSuffix(line, "]"):
		inner := strings.TrimSuffix(strings.TrimPrefix(line, "[GC:"), "]")
		return Response{Kind: KindParserState, Raw: line, Modals: inner}

	case isParameterLine(line):
		name, value := splitBracket(line)
		return Response{Kind: KindParameters, Raw: line, ParamName: name, ParamValue: value}

	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		inner := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
		inner = strings.TrimPrefix(inner, "MSG:")
		return Response{Kind: KindFeedback, Raw: line, FeedbackText: inner}

	case isSettingLine(line):
		name, value, _ := strings.Cut(line, "=")
		return Response{Kind: KindSetting, Raw: line, SettingName: name, SettingValue: value}

	case strings.HasPrefix(line, "Grbl "):
		return Response{Kind: KindStartup, Raw: line, StartupVersion: strings.TrimPrefix(line, "Grbl ")}

	default:
		return Response{Kind: KindOther, Raw: line}
	}
}

var parameterPrefixes = []string{"[G54:", "[G55:", "[G56:", "[G57:", "[G58:", "[G59:", "[G28:", "[G30:", "[G92:", "[TLO:", "[PRB:"}

func isParameterLine(line string) bool {
	if !strings.HasSuffix(line, "]") {
		return false
	}
	for _, p := range parameterPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// splitBracket pulls "G54" and "1.000,2.000,3.000" out of "[G54:1.000,2.000,3.000]".
func splitBracket(line string) (name, value string) {
	inner := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
	name, value, _ = strings.Cut(inner, ":")
	return name, value
}

// isSettingLine reports whether line matches `$N=value`.
func isSettingLine(line string) bool {
	if !strings.HasPrefix(line, "$") {
		return false
	}
	name, _, ok := strings.Cut(line, "=")
	if !ok {
		return false
	}
	digits := strings.TrimPrefix(name, "$")
	if digits == "" {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// parseStatus extracts the active state and the pipe-separated fields of a
// `<State|Field:v,v,...|...>` (Grbl 1.1) or `<State,Field:v,v,...>` (Grbl
// 0.9) status report.
func parseStatus(line string) StatusFields {
	body := strings.TrimSuffix(strings.TrimPrefix(line, "<"), ">")

	sep := "|"
	if !strings.Contains(body, "|") {
		sep = ","
	}
	parts := strings.Split(body, sep)
	if len(parts) == 0 {
		return StatusFields{Raw: line}
	}

	fields := StatusFields{Raw: line, State: parts[0]}
	for _, part := range parts[1:] {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		switch name {
		case "MPos":
			if p, ok := parsePosition(value); ok {
				fields.MPos = p
				fields.MPosSet = true
			}
		case "WPos":
			if p, ok := parsePosition(value); ok {
				fields.WPos = p
				fields.WPosSet = true
			}
		case "WCO":
			if p, ok := parsePosition(value); ok {
				fields.WCO = p
				fields.WCOSet = true
			}
		case "Bf":
			nums := strings.Split(value, ",")
			if len(nums) == 2 {
				if rx, err := strconv.Atoi(nums[1]); err == nil {
					fields.RXBufferFree = rx
					fields.RXBufferFreeSet = true
				}
			}
		case "RX":
			if rx, err := strconv.Atoi(value); err == nil {
				fields.RXBufferFree = rx
				fields.RXBufferFreeSet = true
			}
		}
	}
	return fields
}

// parsePosition parses a comma-separated coordinate list into a Position.
// Axes beyond what's present stay zero; malformed values abort the parse.
func parsePosition(value string) (Position, bool) {
	nums := strings.Split(value, ",")
	var p Position
	axes := [...]*float64{&p.X, &p.Y, &p.Z, &p.A, &p.B, &p.C}
	for i, n := range nums {
		if i >= len(axes) {
			break
		}
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return Position{}, false
		}
		*axes[i] = f
	}
	return p, true
}
