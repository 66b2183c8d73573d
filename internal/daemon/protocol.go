package daemon

// Request represents a JSON-RPC request from a client.
type Request struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// Response represents a JSON-RPC response to a client.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// StatusResponse reports the engine's machine state, workflow state, and
// feeder/sender queue progress.
type StatusResponse struct {
	Workflow      string           `json:"workflow"`
	WorkflowReason string          `json:"workflow_reason,omitempty"`
	Uptime        string           `json:"uptime"`
	StartTime     string           `json:"start_time"`
	Machine       MachineStatus    `json:"machine"`
	Feeder        FeederStatus     `json:"feeder"`
	Sender        SenderStatus     `json:"sender"`
}

// MachineStatus mirrors grbl.DeviceSnapshot for wire transport.
type MachineStatus struct {
	State string  `json:"state"`
	MPosX float64 `json:"mpos_x"`
	MPosY float64 `json:"mpos_y"`
	MPosZ float64 `json:"mpos_z"`
}

// FeederStatus mirrors grbl.FeederSnapshot for wire transport.
type FeederStatus struct {
	Size   int    `json:"size"`
	Held   bool   `json:"held"`
	Reason string `json:"reason,omitempty"`
}

// SenderStatus mirrors grbl.SenderSnapshot for wire transport.
type SenderStatus struct {
	Name     string `json:"name,omitempty"`
	Sent     int    `json:"sent"`
	Received int    `json:"received"`
	Total    int    `json:"total"`
	Held     bool   `json:"held"`
	Reason   string `json:"reason,omitempty"`
}

// LoadParams carries parameters for gcode:load.
type LoadParams struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// StopParams carries parameters for gcode:stop.
type StopParams struct {
	Force bool `json:"force,omitempty"`
}

// GcodeParams carries parameters for gcode (ad-hoc line feed).
type GcodeParams struct {
	Lines []string `json:"lines"`
}

// HoldParams carries parameters for feeder:pause.
type HoldParams struct {
	Reason string `json:"reason,omitempty"`
}

// OverrideParams carries parameters for the override:* methods.
type OverrideParams struct {
	Value string `json:"value"`
}

// LaserTestParams carries parameters for lasertest:on.
type LaserTestParams struct {
	Power      int `json:"power"`
	DurationMS int `json:"duration_ms"`
	MaxS       int `json:"max_s"`
}

// MacroParams carries parameters for macro:run and macro:load.
type MacroParams struct {
	ID string `json:"id"`
}

// WatchdirParams carries parameters for watchdir:load.
type WatchdirParams struct {
	Path string `json:"path"`
}
