package reactor

// StopToken is a shared, cancellable signal with a single at-most-once
// stop callback, grounded on original_source/stop_source.hpp.
// The zero value is a token with no control block — every method on it
// is then a safe no-op, matching stop_source's "stop_possible() ==
// false" state for a default-constructed token.
type StopToken struct {
	ctl *stopState
}

type stopState struct {
	stopped bool
	onStop  Callback
}

// NewStopToken allocates a fresh, armable stop token.
func NewStopToken() StopToken {
	return StopToken{ctl: &stopState{}}
}

// StopRequested reports whether RequestStop has already fired.
func (t StopToken) StopRequested() bool {
	return t.ctl != nil && t.ctl.stopped
}

// Stoppable reports whether this token has a live control block.
func (t StopToken) Stoppable() bool {
	return t.ctl != nil
}

// RequestStop marks the token stopped and synchronously invokes the
// registered callback exactly once. Idempotent past the first call.
func (t StopToken) RequestStop() {
	if t.ctl == nil || t.ctl.stopped {
		return
	}
	t.ctl.stopped = true
	cb := t.ctl.onStop
	t.ctl.onStop = nil
	if cb != nil {
		cb()
	}
}

// OnStop installs the stop callback. If stop has already been
// requested, the callback fires immediately instead of being stored.
func (t StopToken) OnStop(cb Callback) {
	if t.ctl == nil {
		return
	}
	if t.ctl.stopped {
		cb()
		return
	}
	t.ctl.onStop = cb
}

// ClearStop detaches the stop callback without invoking it.
func (t StopToken) ClearStop() {
	if t.ctl == nil {
		return
	}
	t.ctl.onStop = nil
}
