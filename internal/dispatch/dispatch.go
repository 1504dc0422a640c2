// Package dispatch implements the Line Dispatcher: it owns one line of
// the host conversation at a time, hands it to the host command parser
// and translator, and decides afterward whether an "ok" is owed yet or
// whether the device is still mid-wait and an implicit status poll
// should ride along instead.
package dispatch

import (
	"fmt"

	"github.com/fry/gpxbridge/internal/hostcmd"
	"github.com/fry/gpxbridge/internal/session"
	"github.com/fry/gpxbridge/internal/translate"
)

// Dispatcher drives one Session's host-line processing.
type Dispatcher struct {
	Sess *session.Session
	tr   *translate.Translator
}

// New returns a Dispatcher bound to sess.
func New(sess *session.Session) *Dispatcher {
	return &Dispatcher{Sess: sess, tr: translate.New(sess)}
}

// Dispatch processes one host line and returns the exact bytes to write
// back to the host, trailing newline included.
func (d *Dispatcher) Dispatch(line string) string {
	d.Sess.Buf.Reset()

	body, resendFrom, lineErr := d.Sess.Lines.Process(line)
	if lineErr != nil {
		d.Sess.Buf.AppendString(fmt.Sprintf("Error:%s\nResend:%d\n", lineErr, resendFrom))
		d.Sess.Stats.LinesDispatched++
		return d.Sess.Buf.String()
	}

	var execErr error
	cmd, parseErr := hostcmd.Parse(body)
	if parseErr != nil {
		d.Sess.Buf.AppendString(fmt.Sprintf("Error:%s\n", parseErr))
	} else if execErr = hostcmd.Execute(d.tr, cmd); execErr != nil {
		d.Sess.Buf.AppendString(fmt.Sprintf("Error:%s\n", execErr))
	}

	d.finalize(execErr)
	d.Sess.Stats.LinesDispatched++
	return d.Sess.Buf.String()
}

// finalize runs the wait-aware tail every dispatched line shares: if
// the line itself executed cleanly, left the session waiting on
// something, and produced no output of its own, fold in an implicit
// M105-equivalent poll so the host's terminal keeps seeing temperature
// progress instead of silence. A host-visible parse/protocol error (a
// handled error, not a Go error) is not counted as execErr, but its
// error text already fills the buffer, so no poll follows it either; a
// transport-level execErr suppresses the poll outright, since a broken
// round trip means ReportTemperatures would likely fail too.
// The trailing "ok" is withheld entirely while a wait remains raised,
// since the host protocol treats "ok" as permission to send the next
// line and a waiting device isn't ready to queue one.
func (d *Dispatcher) finalize(execErr error) {
	if execErr == nil && d.Sess.Wait.Any() && d.Sess.Buf.Len() == 0 {
		if err := d.tr.ReportTemperatures(); err == nil {
			d.Sess.Stats.ImplicitPolls++
		}
	}
	if !d.Sess.Wait.Any() {
		d.Sess.Buf.AppendString("ok\n")
	}
}
