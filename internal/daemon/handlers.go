package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/npratt/grblctl/internal/grbl"
)

// handleRequest dispatches the request to the appropriate handler.
func (d *Daemon) handleRequest(ctx context.Context, req *Request) Response {
	switch req.Method {
	case "status":
		return d.handleStatus()
	case "gcode:load":
		return d.handleGcodeLoad(req)
	case "gcode:unload":
		return d.call(func() { d.engine.UnloadGcode() }, "unloaded")
	case "gcode:start":
		return d.call(func() { d.engine.Start() }, "started")
	case "gcode:pause":
		return d.call(func() { d.engine.Pause() }, "pausing")
	case "gcode:resume":
		return d.call(func() { d.engine.Resume() }, "resuming")
	case "gcode:stop":
		return d.handleGcodeStop(req)
	case "gcode":
		return d.handleGcode(req)
	case "feeder:feed":
		return d.handleFeederFeed(req)
	case "feeder:start":
		return d.call(func() { d.engine.FeederStart() }, "started")
	case "feeder:pause":
		return d.handleFeederPause(req)
	case "feeder:stop":
		return d.call(func() { d.engine.FeederStop() }, "stopped")
	case "feedhold":
		return d.call(func() { d.engine.Feedhold() }, "held")
	case "cyclestart":
		return d.call(func() { d.engine.Cyclestart() }, "ok")
	case "statusreport":
		return d.call(func() { d.engine.StatusReport() }, "ok")
	case "homing":
		return d.call(func() { d.engine.Homing() }, "homing")
	case "sleep":
		return d.call(func() { d.engine.Sleep() }, "sleeping")
	case "unlock":
		return d.call(func() { d.engine.Unlock() }, "unlocked")
	case "reset":
		return d.call(func() { d.engine.Reset() }, "ok")
	case "override:feed":
		return d.handleOverride(req, d.engine.FeedOverride)
	case "override:spindle":
		return d.handleOverride(req, d.engine.SpindleOverride)
	case "override:rapid":
		return d.handleOverride(req, d.engine.RapidOverride)
	case "lasertest:on":
		return d.handleLaserTestOn(req)
	case "lasertest:off":
		return d.call(func() { d.engine.LaserTestOff() }, "ok")
	case "macro:run":
		return d.handleMacro(req, d.engine.MacroRun)
	case "macro:load":
		return d.handleMacro(req, d.engine.MacroLoad)
	case "watchdir:load":
		return d.handleWatchdirLoad(req)
	// Legacy aliases (deprecated): map onto the §6 gcode:* bus.
	case "start":
		return d.call(func() { d.engine.LegacyStart() }, "started")
	case "pause":
		return d.call(func() { d.engine.LegacyPause() }, "pausing")
	case "resume":
		return d.call(func() { d.engine.LegacyResume() }, "resuming")
	case "stop":
		return d.handleLegacyStop()
	default:
		return Response{Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}
}

// call runs a fire-and-forget engine action and reports result on success.
func (d *Daemon) call(action func(), result string) Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}
	action()
	return Response{Result: result}
}

func (d *Daemon) paramsMap(req *Request) map[string]interface{} {
	m, _ := req.Params.(map[string]interface{})
	return m
}

func (d *Daemon) handleStatus() Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}

	machine := d.engine.DeviceSnapshot()
	feeder := d.engine.FeederSnapshot()
	sender := d.engine.SenderSnapshot()

	d.mu.RLock()
	startTime := d.startTime
	d.mu.RUnlock()

	return Response{
		Result: StatusResponse{
			Workflow:       string(d.engine.WorkflowState()),
			WorkflowReason: d.engine.WorkflowReason(),
			Uptime:         time.Since(startTime).Truncate(time.Second).String(),
			StartTime:      startTime.Format(time.RFC3339),
			Machine: MachineStatus{
				State: string(machine.State),
				MPosX: machine.MPos.X,
				MPosY: machine.MPos.Y,
				MPosZ: machine.MPos.Z,
			},
			Feeder: FeederStatus{Size: feeder.Size, Held: feeder.Held, Reason: feeder.Reason},
			Sender: SenderStatus{
				Name: sender.Name, Sent: sender.Sent, Received: sender.Received,
				Total: sender.Total, Held: sender.Held, Reason: sender.Reason,
			},
		},
	}
}

func (d *Daemon) handleGcodeLoad(req *Request) Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}
	params := d.paramsMap(req)
	name, _ := params["name"].(string)
	text, _ := params["text"].(string)
	if ok := d.engine.LoadGcode(name, text, nil); !ok {
		return Response{Error: "could not load program"}
	}
	return Response{Result: "loaded"}
}

func (d *Daemon) handleGcodeStop(req *Request) Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}

	force := false
	if params := d.paramsMap(req); params != nil {
		if f, ok := params["force"].(bool); ok {
			force = f
		}
	}

	d.engine.Stop(force)

	if force {
		// Keep the port open past the engine's 500ms hold-then-reset check.
		go d.scheduleShutdown(600 * time.Millisecond)
		return Response{Result: "stopping"}
	}

	// A graceful stop gives the workflow GracefulTimeout to settle to
	// Idle on its own; if it hasn't by then, fall back to a forced
	// feed-hold and soft reset before the socket goes away.
	go d.awaitGracefulStop()

	return Response{Result: "stopping"}
}

// awaitGracefulStop polls the workflow for Idle up to the configured
// graceful timeout, escalating to a forced stop if it doesn't settle.
func (d *Daemon) awaitGracefulStop() {
	timeout := d.config.Shutdown.GracefulTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if d.engine.WorkflowState() == grbl.WorkflowIdle {
			d.scheduleShutdown(0)
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	d.engine.Stop(true)
	d.scheduleShutdown(600 * time.Millisecond)
}

// scheduleShutdown signals the server to stop after a short delay,
// giving in-flight engine work a moment to settle.
func (d *Daemon) scheduleShutdown(delay time.Duration) {
	time.Sleep(delay)
	select {
	case d.stopCh <- struct{}{}:
	default:
	}
}

func (d *Daemon) handleLegacyStop() Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}
	d.engine.LegacyStop()
	go d.scheduleShutdown(100 * time.Millisecond)
	return Response{Result: "stopping"}
}

func (d *Daemon) handleGcode(req *Request) Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}
	lines := d.stringSlice(req, "lines")
	d.engine.Gcode(lines, nil)
	return Response{Result: "fed"}
}

func (d *Daemon) handleFeederFeed(req *Request) Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}
	lines := d.stringSlice(req, "lines")
	d.engine.FeederFeed(lines, nil)
	return Response{Result: "fed"}
}

func (d *Daemon) handleFeederPause(req *Request) Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}
	reason := ""
	if params := d.paramsMap(req); params != nil {
		if r, ok := params["reason"].(string); ok {
			reason = r
		}
	}
	d.engine.FeederPause(reason)
	return Response{Result: "paused"}
}

func (d *Daemon) handleOverride(req *Request, apply func(string)) Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}
	params := d.paramsMap(req)
	value, _ := params["value"].(string)
	apply(value)
	return Response{Result: "ok"}
}

func (d *Daemon) handleLaserTestOn(req *Request) Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}
	params := d.paramsMap(req)
	power := d.intParam(params, "power")
	durationMS := d.intParam(params, "duration_ms")
	maxS := d.intParam(params, "max_s")
	d.engine.LaserTestOn(power, durationMS, maxS)
	return Response{Result: "ok"}
}

func (d *Daemon) handleMacro(req *Request, apply func(string)) Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}
	params := d.paramsMap(req)
	id, _ := params["id"].(string)
	apply(id)
	return Response{Result: "ok"}
}

func (d *Daemon) handleWatchdirLoad(req *Request) Response {
	if d.engine == nil {
		return Response{Error: "no engine available"}
	}
	params := d.paramsMap(req)
	path, _ := params["path"].(string)
	d.engine.WatchdirLoad(path)
	return Response{Result: "ok"}
}

func (d *Daemon) stringSlice(req *Request, key string) []string {
	params := d.paramsMap(req)
	if params == nil {
		return nil
	}
	raw, ok := params[key].([]interface{})
	if !ok {
		return nil
	}
	lines := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			lines = append(lines, s)
		}
	}
	return lines
}

func (d *Daemon) intParam(params map[string]interface{}, key string) int {
	if params == nil {
		return 0
	}
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
