package grbl

// FeederItem is one queued ad-hoc command line together with the
// expression context it should be evaluated against.
type FeederItem struct {
	Line    string
	Context *ExecContext
}

// FeederEmitter receives the Feeder's observable events. The engine wires
// this to the event router.
type FeederEmitter interface {
	FeederData(line string, ctx *ExecContext)
	FeederHold(reason string)
	FeederUnhold()
}

// FeederSnapshot is the toJSON()-equivalent read-only view of the queue.
type FeederSnapshot struct {
	Size   int
	Held   bool
	Reason string
}

// Feeder is the unbounded ordered queue of ad-hoc command lines (§4.3).
// While held, next() is a no-op; items are dropped only via explicit
// Clear.
type Feeder struct {
	items    []FeederItem
	held     bool
	reason   string
	emitter  FeederEmitter
}

// NewFeeder creates an empty Feeder that reports its events to emitter.
func NewFeeder(emitter FeederEmitter) *Feeder {
	return &Feeder{emitter: emitter}
}

// Feed appends lines (split already, one command per entry) to the tail of
// the queue, all sharing ctx.
func (f *Feeder) Feed(lines []string, ctx *ExecContext) {
	for _, l := range lines {
		f.items = append(f.items, FeederItem{Line: l, Context: ctx})
	}
}

// Peek returns the head item without removing it, and whether one exists.
func (f *Feeder) Peek() (FeederItem, bool) {
	if len(f.items) == 0 {
		return FeederItem{}, false
	}
	return f.items[0], true
}

// IsPending reports whether the queue is non-empty and not held.
func (f *Feeder) IsPending() bool {
	return len(f.items) > 0 && !f.held
}

// Next pops the head, runs it through the shared preprocessing filter, and
// emits FeederData for the transmitted (possibly rewritten, possibly
// suppressed) line. If held or empty, it is a no-op. A line that the
// filter suppresses (directive lines) is popped and committed but nothing
// is emitted to the wire.
func (f *Feeder) Next() (line string, ok bool) {
	if f.held || len(f.items) == 0 {
		return "", false
	}

	item := f.items[0]
	f.items = f.items[1:]

	result := preprocess(item.Line, item.Context, f)
	result.Commit()

	if result.Line == "" {
		return "", false
	}

	if f.emitter != nil {
		f.emitter.FeederData(result.Line, item.Context)
	}
	return result.Line, true
}

// Hold sets the held flag with an observable reason; further Next calls
// are no-ops until Unhold.
func (f *Feeder) Hold(reason string) {
	f.held = true
	f.reason = reason
	if f.emitter != nil {
		f.emitter.FeederHold(reason)
	}
}

// Unhold clears the held flag and immediately attempts to advance the
// queue once.
func (f *Feeder) Unhold() {
	f.held = false
	f.reason = ""
	if f.emitter != nil {
		f.emitter.FeederUnhold()
	}
	f.Next()
}

// Clear empties the queue. This is the only way items are dropped.
func (f *Feeder) Clear() {
	f.items = nil
}

// Snapshot returns a read-only view suitable for feeder:status events.
func (f *Feeder) Snapshot() FeederSnapshot {
	return FeederSnapshot{Size: len(f.items), Held: f.held, Reason: f.reason}
}

// RequestHold implements HoldPolicy: the Feeder's own M-code pause target
// is itself.
func (f *Feeder) RequestHold(reason string) {
	f.Hold(reason)
}
