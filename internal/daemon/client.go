package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

const (
	// DefaultClientTimeout is the default timeout for client operations.
	DefaultClientTimeout = 5 * time.Second
)

// Client connects to the daemon via Unix socket.
type Client struct {
	sockPath string
	timeout  time.Duration
}

// NewClient creates a new daemon client.
func NewClient(sockPath string) *Client {
	return &Client{
		sockPath: sockPath,
		timeout:  DefaultClientTimeout,
	}
}

// SetTimeout sets the timeout for client operations.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// call sends a JSON-RPC request to the daemon and returns the response.
func (c *Client) call(method string, params any) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.sockPath, c.timeout)
	if err != nil {
		return nil, c.wrapConnError(err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	req := Request{Method: method, Params: params}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// wrapConnError converts connection errors to user-friendly messages.
func (c *Client) wrapConnError(err error) error {
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ENOENT:
			return errors.New("daemon not running (socket not found)")
		case syscall.ECONNREFUSED:
			return errors.New("daemon not running (connection refused)")
		}
	}

	if os.IsNotExist(err) {
		return errors.New("daemon not running (socket not found)")
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		return errors.New("daemon request timed out")
	}

	return fmt.Errorf("connect to daemon: %w", err)
}

// Status returns the current daemon/engine status.
func (c *Client) Status() (*StatusResponse, error) {
	resp, err := c.call("status", nil)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	var status StatusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}

	return &status, nil
}

// LoadGcode loads a named program into the sender (gcode:load).
func (c *Client) LoadGcode(name, text string) error {
	_, err := c.call("gcode:load", LoadParams{Name: name, Text: text})
	return err
}

// UnloadGcode unloads the currently loaded program (gcode:unload).
func (c *Client) UnloadGcode() error {
	_, err := c.call("gcode:unload", nil)
	return err
}

// Start requests the daemon to run the loaded program (gcode:start).
func (c *Client) Start() error {
	_, err := c.call("gcode:start", nil)
	return err
}

// Pause requests the daemon to pause the workflow (gcode:pause).
func (c *Client) Pause() error {
	_, err := c.call("gcode:pause", nil)
	return err
}

// Resume requests the daemon to resume the workflow (gcode:resume).
func (c *Client) Resume() error {
	_, err := c.call("gcode:resume", nil)
	return err
}

// Stop requests the daemon to stop (gcode:stop). If force is true, the
// engine issues a feed hold and, 500ms later, a soft reset if the device
// is in Hold by then.
func (c *Client) Stop(force bool) error {
	_, err := c.call("gcode:stop", StopParams{Force: force})
	return err
}

// Gcode feeds ad-hoc lines onto the command bus outside any loaded
// program (gcode).
func (c *Client) Gcode(lines []string) error {
	_, err := c.call("gcode", GcodeParams{Lines: lines})
	return err
}

// FeederFeed enqueues ad-hoc lines onto the Feeder (feeder:feed).
func (c *Client) FeederFeed(lines []string) error {
	_, err := c.call("feeder:feed", GcodeParams{Lines: lines})
	return err
}

// FeederStart unholds the Feeder (feeder:start).
func (c *Client) FeederStart() error {
	_, err := c.call("feeder:start", nil)
	return err
}

// FeederPause holds the Feeder with the given reason (feeder:pause).
func (c *Client) FeederPause(reason string) error {
	_, err := c.call("feeder:pause", HoldParams{Reason: reason})
	return err
}

// FeederStop clears the Feeder's queue (feeder:stop).
func (c *Client) FeederStop() error {
	_, err := c.call("feeder:stop", nil)
	return err
}

// Feedhold issues the real-time feed-hold byte (feedhold).
func (c *Client) Feedhold() error {
	_, err := c.call("feedhold", nil)
	return err
}

// Cyclestart issues the real-time cycle-start byte (cyclestart).
func (c *Client) Cyclestart() error {
	_, err := c.call("cyclestart", nil)
	return err
}

// StatusReport issues the real-time status query byte (statusreport).
func (c *Client) StatusReport() error {
	_, err := c.call("statusreport", nil)
	return err
}

// Homing issues the $H homing cycle (homing).
func (c *Client) Homing() error {
	_, err := c.call("homing", nil)
	return err
}

// Sleep issues the $SLP sleep command (sleep).
func (c *Client) Sleep() error {
	_, err := c.call("sleep", nil)
	return err
}

// Unlock issues the $X alarm-unlock command (unlock).
func (c *Client) Unlock() error {
	_, err := c.call("unlock", nil)
	return err
}

// Reset issues the real-time soft-reset byte (reset).
func (c *Client) Reset() error {
	_, err := c.call("reset", nil)
	return err
}

// FeedOverride issues a feed-rate override byte (override:feed).
func (c *Client) FeedOverride(value string) error {
	_, err := c.call("override:feed", OverrideParams{Value: value})
	return err
}

// SpindleOverride issues a spindle-speed override byte (override:spindle).
func (c *Client) SpindleOverride(value string) error {
	_, err := c.call("override:spindle", OverrideParams{Value: value})
	return err
}

// RapidOverride issues a rapid-rate override byte (override:rapid).
func (c *Client) RapidOverride(value string) error {
	_, err := c.call("override:rapid", OverrideParams{Value: value})
	return err
}

// LaserTestOn starts a laser test pulse (lasertest:on).
func (c *Client) LaserTestOn(power, durationMS, maxS int) error {
	_, err := c.call("lasertest:on", LaserTestParams{Power: power, DurationMS: durationMS, MaxS: maxS})
	return err
}

// LaserTestOff ends a laser test pulse (lasertest:off).
func (c *Client) LaserTestOff() error {
	_, err := c.call("lasertest:off", nil)
	return err
}

// MacroRun fires a named macro's bound trigger (macro:run).
func (c *Client) MacroRun(id string) error {
	_, err := c.call("macro:run", MacroParams{ID: id})
	return err
}

// MacroLoad loads a named macro's bound trigger (macro:load).
func (c *Client) MacroLoad(id string) error {
	_, err := c.call("macro:load", MacroParams{ID: id})
	return err
}

// WatchdirLoad requests the watch-directory collaborator load a path
// (watchdir:load).
func (c *Client) WatchdirLoad(path string) error {
	_, err := c.call("watchdir:load", WatchdirParams{Path: path})
	return err
}

// IsRunning checks if the daemon is running by attempting to connect.
func (c *Client) IsRunning() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
