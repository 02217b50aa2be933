package dispatch

// slotState is the lifecycle of a resource's command slot.
type slotState int

const (
	slotIdle slotState = iota
	slotBusy
)

// slot tracks one resource: Idle, or Busy with at most one pending request.
// The zero value is Idle.
type slot struct {
	state   slotState
	pending *Request
}

// submit applies a new request. start is true when the slot was idle and
// the caller must begin sending req itself.
func (s slot) submit(req Request) (next slot, start bool) {
	if s.state == slotBusy {
		s.pending = &req
		return s, false
	}
	return slot{state: slotBusy}, true
}

// resolve is applied when the in-flight request finished, successfully or
// not. It hands out the pending request, if any, and stays Busy for it;
// otherwise the slot returns to Idle.
func (s slot) resolve() (next slot, send *Request) {
	if s.pending != nil {
		return slot{state: slotBusy}, s.pending
	}
	return slot{state: slotIdle}, nil
}
