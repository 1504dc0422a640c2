package dispatch

import (
	"strings"
	"testing"

	"github.com/fry/gpxbridge/internal/devproto"
	"github.com/fry/gpxbridge/internal/profile"
	"github.com/fry/gpxbridge/internal/session"
	"github.com/fry/gpxbridge/internal/waitstate"
)

func TestDispatchAppendsOkWhenIdle(t *testing.T) {
	fake := devproto.NewFake()
	sess := session.New(fake, profile.NewRegistry())
	d := New(sess)

	out := d.Dispatch("M18")
	if !strings.Contains(out, "ok") {
		t.Errorf("Dispatch(M18) = %q, want trailing ok", out)
	}
}

func TestDispatchWithholdsOkWhileWaiting(t *testing.T) {
	fake := devproto.NewFake()
	sess := session.New(fake, profile.NewRegistry())
	d := New(sess)
	sess.Wait.Raise(waitstate.ExtruderA)

	out := d.Dispatch("M18")
	if strings.Contains(out, "ok") {
		t.Errorf("Dispatch while waiting = %q, want no ok", out)
	}
}

func TestDispatchImplicitPollWhileWaiting(t *testing.T) {
	fake := devproto.NewFake()
	for i := 0; i < 7; i++ {
		fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, Temperature: 99, Target: 100})
	}
	sess := session.New(fake, profile.NewRegistry())
	d := New(sess)
	sess.Wait.Raise(waitstate.ExtruderA)

	out := d.Dispatch("M18")
	if !strings.Contains(out, "T:99.0") {
		t.Errorf("Dispatch did not fold in an implicit poll: %q", out)
	}
	if sess.Stats.ImplicitPolls != 1 {
		t.Errorf("Stats.ImplicitPolls = %d, want 1", sess.Stats.ImplicitPolls)
	}
}

func TestDispatchParseErrorReported(t *testing.T) {
	fake := devproto.NewFake()
	sess := session.New(fake, profile.NewRegistry())
	d := New(sess)

	out := d.Dispatch("bogus line")
	if !strings.Contains(out, "Error:") {
		t.Errorf("Dispatch(bogus) = %q, want an Error: line", out)
	}
}
