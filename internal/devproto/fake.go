package devproto

import "fmt"

// FakeHandler is a deterministic in-memory PortHandler for tests. Replies
// are consumed in FIFO order regardless of which Packet triggered the
// Send; tests queue up exactly the replies the scenario calls for.
type FakeHandler struct {
	replies []Reply
	errs    []error
	sent    []Packet
}

// NewFake returns an empty FakeHandler.
func NewFake() *FakeHandler {
	return &FakeHandler{}
}

// QueueReply appends a reply to be returned by the next Send call.
func (f *FakeHandler) QueueReply(r Reply) *FakeHandler {
	f.replies = append(f.replies, r)
	f.errs = append(f.errs, nil)
	return f
}

// QueueError appends a transport error to be returned by the next Send
// call instead of a reply.
func (f *FakeHandler) QueueError(err error) *FakeHandler {
	f.replies = append(f.replies, Reply{})
	f.errs = append(f.errs, err)
	return f
}

// Send implements PortHandler.
func (f *FakeHandler) Send(p Packet) (Reply, error) {
	f.sent = append(f.sent, p)
	if len(f.replies) == 0 {
		return Reply{}, fmt.Errorf("devproto: fake handler has no queued reply for %+v", p)
	}
	r, err := f.replies[0], f.errs[0]
	f.replies, f.errs = f.replies[1:], f.errs[1:]
	return r, err
}

// Sent returns every Packet passed to Send so far, in order.
func (f *FakeHandler) Sent() []Packet {
	out := make([]Packet, len(f.sent))
	copy(out, f.sent)
	return out
}
