package grbl

import "strings"

// grblSerialBufferMargin is subtracted from a device-reported RX buffer
// size when tuning the Sender's credit allowance. The margin is
// unexplained in the source this behavior is preserved from; treated as a
// fixed safety margin, not derived from any other constant.
const grblSerialBufferMargin = 8

// defaultSerialBufferSize is the Sender's buffer-size assumption before
// any device ever reports its real receive buffer (128 byte USART buffer
// minus the safety margin).
const defaultSerialBufferSize = 128 - grblSerialBufferMargin

// SenderEmitter receives the Sender's observable events.
type SenderEmitter interface {
	SenderStart()
	SenderEnd()
	SenderData(line string, ctx *ExecContext)
	SenderHold(reason string)
	SenderUnhold()
}

// SenderPauser is the Workflow, as seen by the Sender: M-code pause
// semantics on the Sender path pause the workflow rather than holding the
// Sender directly (the Workflow's Pause implementation is what actually
// calls Sender.Hold).
type SenderPauser interface {
	Pause(reason string)
}

// SenderSnapshot is a read-only view of sender bookkeeping for
// sender:status events.
type SenderSnapshot struct {
	Name     string
	Sent     int
	Received int
	Total    int
	Held     bool
	Reason   string
}

// Sender streams a loaded program under character-counting flow control
// (§4.4). 0 ≤ received ≤ sent ≤ total always holds; dataLength tracks the
// byte length (including newline) of the lines in [received, sent).
type Sender struct {
	name    string
	lines   []string
	ctx     *ExecContext
	sent    int
	received int
	total   int

	held   bool
	reason string

	bufferSize int
	dataLength int
	inFlight   []int // byte lengths of lines in [received, sent), FIFO

	started bool // whether SenderStart has fired for the current load

	emitter SenderEmitter
	pauser  SenderPauser
}

// NewSender creates an empty, unloaded Sender.
func NewSender(emitter SenderEmitter, pauser SenderPauser) *Sender {
	return &Sender{
		bufferSize: defaultSerialBufferSize,
		emitter:    emitter,
		pauser:     pauser,
	}
}

// splitProgramLines splits program text into lines on the same terms the
// wire protocol uses: CRLF and LF both terminate a line, and a trailing
// terminator does not produce a spurious empty final line.
func splitProgramLines(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(normalized, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Load replaces the current program. Returns false (leaving any existing
// program untouched) if text is empty.
func (s *Sender) Load(name, text string, ctx *ExecContext) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	s.name = name
	s.lines = splitProgramLines(text)
	s.ctx = ctx
	s.total = len(s.lines)
	s.sent = 0
	s.received = 0
	s.held = false
	s.reason = ""
	s.dataLength = 0
	s.inFlight = nil
	s.started = false
	return true
}

// Unload clears the loaded program entirely.
func (s *Sender) Unload() {
	s.name = ""
	s.lines = nil
	s.ctx = nil
	s.total = 0
	s.sent = 0
	s.received = 0
	s.held = false
	s.reason = ""
	s.dataLength = 0
	s.inFlight = nil
	s.started = false
}

// Peek returns the next unsent line's raw (unprocessed) text, if any.
func (s *Sender) Peek() (string, bool) {
	if s.sent >= s.total {
		return "", false
	}
	return s.lines[s.sent], true
}

// InFlightLine returns the oldest unacknowledged line's raw text and its
// 1-based program index, for attributing an incoming error response to
// the line that caused it.
func (s *Sender) InFlightLine() (line string, index int, ok bool) {
	if s.received >= s.sent {
		return "", 0, false
	}
	return s.lines[s.received], s.received + 1, true
}

// Next transmits as many lines as remaining buffer credit allows, while
// not held and sent < total. Directive lines that the filter suppresses
// (an empty result) never touch the wire or the credit account: they are
// consumed transparently, advancing sent and received together, since no
// ok/error will ever arrive for a line that was never sent.
func (s *Sender) Next() {
	for !s.held && s.sent < s.total {
		line := s.lines[s.sent]
		res := preprocess(line, s.ctx, s)

		if res.Line == "" {
			res.Commit()
			s.sent++
			s.received++
			if s.received == s.total && s.emitter != nil {
				s.emitter.SenderEnd()
			}
			continue
		}

		encodedLen := len(res.Line) + 1 // + newline
		if s.dataLength+encodedLen > s.bufferSize {
			return
		}

		res.Commit() // may set s.held via RequestHold/RequestWait
		s.dataLength += encodedLen
		s.inFlight = append(s.inFlight, encodedLen)
		s.sent++

		if !s.started {
			s.started = true
			if s.emitter != nil {
				s.emitter.SenderStart()
			}
		}
		if s.emitter != nil {
			s.emitter.SenderData(res.Line, s.ctx)
		}
	}
}

// Ack credits back the byte length of the oldest in-flight line and
// advances received by one. Returns false if there is nothing in flight
// (received == sent).
func (s *Sender) Ack() bool {
	if s.received >= s.sent {
		return false
	}
	length := s.inFlight[0]
	s.inFlight = s.inFlight[1:]
	s.dataLength -= length
	s.received++
	if s.received == s.total && s.emitter != nil {
		s.emitter.SenderEnd()
	}
	return true
}

// Hold stops further Next() advancement until Unhold is called.
func (s *Sender) Hold(reason string) {
	s.held = true
	s.reason = reason
	if s.emitter != nil {
		s.emitter.SenderHold(reason)
	}
}

// Unhold clears the held flag. It does not itself call Next(); callers
// that want to resume streaming immediately call Next() afterward.
func (s *Sender) Unhold() {
	s.held = false
	s.reason = ""
	if s.emitter != nil {
		s.emitter.SenderUnhold()
	}
}

// Rewind resets sent and received to zero and clears hold, without
// discarding the loaded program (used by workflow start/stop).
func (s *Sender) Rewind() {
	s.sent = 0
	s.received = 0
	s.held = false
	s.reason = ""
	s.dataLength = 0
	s.inFlight = nil
	s.started = false
}

// UpgradeBufferSize applies the §4.4 buffer-size tuning rule: given a
// device-reported RX-buffer-free count, raise bufferSize to rxFree minus
// the safety margin, but never lower it, and only when nothing is
// currently in flight. The workflow-must-be-Idle condition is the
// caller's (the protocol engine's) responsibility to check before calling.
func (s *Sender) UpgradeBufferSize(rxFree int) {
	if rxFree <= 0 || s.dataLength != 0 {
		return
	}
	if candidate := rxFree - grblSerialBufferMargin; candidate > s.bufferSize {
		s.bufferSize = candidate
	}
}

// IsComplete reports whether every loaded line has been acknowledged.
func (s *Sender) IsComplete() bool {
	return s.total > 0 && s.received == s.total
}

// Held reports whether the Sender is currently held.
func (s *Sender) Held() bool { return s.held }

// Sent, Received and Total expose the bookkeeping counters directly
// (tests rely on these to assert the character-counting credit invariants).
func (s *Sender) Sent() int     { return s.sent }
func (s *Sender) Received() int { return s.received }
func (s *Sender) Total() int    { return s.total }

// BufferSize and DataLength expose the credit-accounting state.
func (s *Sender) BufferSize() int { return s.bufferSize }
func (s *Sender) DataLength() int { return s.dataLength }

// Snapshot returns a read-only view for sender:status events.
func (s *Sender) Snapshot() SenderSnapshot {
	return SenderSnapshot{
		Name:     s.name,
		Sent:     s.sent,
		Received: s.received,
		Total:    s.total,
		Held:     s.held,
		Reason:   s.reason,
	}
}

// RequestHold implements HoldPolicy: an M-code token on the Sender path
// pauses the Workflow, which in turn calls Sender.Hold.
func (s *Sender) RequestHold(reason string) {
	if s.pauser != nil {
		s.pauser.Pause(reason)
		return
	}
	s.Hold(reason)
}

// RequestWait implements waitHoldPolicy: `%wait` holds the Sender itself
// (not the Workflow) until the dwell line's own ok arrives.
func (s *Sender) RequestWait() {
	s.Hold("%wait")
}
