package events

import "fmt"

// Format converts an event to a human-readable line for the `grblctl
// events` command and for terminal-attached log output. Returns empty
// string for nil; an event type without its own case formats as its
// bracketed type name.
func Format(event Event) string {
	if event == nil {
		return ""
	}

	switch e := event.(type) {
	case *SerialOpenEvent:
		return fmt.Sprintf("[serial] opened %s @ %d baud", e.Port, e.Baud)
	case *SerialCloseEvent:
		if e.Reason != "" {
			return fmt.Sprintf("[serial] closed (%s)", e.Reason)
		}
		return "[serial] closed"
	case *SerialErrorEvent:
		return fmt.Sprintf("[serial] error: %s", e.Message)
	case *SerialReadEvent:
		return fmt.Sprintf("< %s", e.Line)
	case *SerialWriteEvent:
		return fmt.Sprintf("> %s", e.Data)
	case *SerialChangeEvent:
		return fmt.Sprintf("[serial] port changed %s -> %s", e.OldPort, e.NewPort)
	case *ControllerSettingsEvent:
		return fmt.Sprintf("[controller] settings updated (%d keys)", len(e.Settings))
	case *ControllerStateEvent:
		return fmt.Sprintf("[controller] state: %s", e.State)
	case *FeederStatusEvent:
		if e.Held {
			return fmt.Sprintf("[feeder] size=%d held (%s)", e.Size, e.Reason)
		}
		return fmt.Sprintf("[feeder] size=%d", e.Size)
	case *SenderStatusEvent:
		status := "running"
		if e.Held {
			status = "held"
		}
		return fmt.Sprintf("[sender] %s %d/%d/%d (%s)", e.Name, e.Received, e.Sent, e.Total, status)
	case *WorkflowStateEvent:
		if e.Reason != "" {
			return fmt.Sprintf("[workflow] %s (%s)", e.State, e.Reason)
		}
		return fmt.Sprintf("[workflow] %s", e.State)
	case *GcodeLoadEvent:
		return fmt.Sprintf("[gcode] loaded %s (%d lines)", e.Name, e.Lines)
	case *GcodeUnloadEvent:
		return fmt.Sprintf("[gcode] unloaded %s", e.Name)
	case *ErrorEvent:
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	case *ParseErrorEvent:
		return fmt.Sprintf("[parse error] %q: %s", e.Line, e.Error)
	default:
		return fmt.Sprintf("[%s]", event.Type())
	}
}
