// Package translate implements the Response Translator: it issues
// device-protocol packets through a session's PortHandler, folds each
// reply into host-visible text in the session's translation buffer, and
// keeps the wait-flag set and build-status bookkeeping in sync. This is
// the system's largest component; every method here corresponds to one
// row of the device command behavior table.
package translate

import (
	"fmt"
	"time"

	"github.com/fry/gpxbridge/internal/devproto"
	"github.com/fry/gpxbridge/internal/session"
	"github.com/fry/gpxbridge/internal/waitstate"
)

// startDeadline is how long a just-launched SD print has to show status
// RUNNING before BuildStats reports a start timeout.
const startDeadline = 3 * time.Second

// Translator drives one Session's device round trips.
type Translator struct {
	s *session.Session
}

// New returns a Translator bound to s.
func New(s *session.Session) *Translator {
	return &Translator{s: s}
}

// send is the common round trip every higher-level method funnels
// through: issue p, surface transport failures as Go errors, and hand
// device-reported error statuses back in the Reply instead of a Go
// error, since those are legitimate protocol outcomes, not bridge bugs.
// Only a device-initiated cancel is rendered as host-visible text here;
// other statuses are rendered (or ignored) by the calling method.
func (t *Translator) send(p devproto.Packet) (devproto.Reply, error) {
	if t.s.Flags.CancelPending && devproto.IsQueueable(p.Cmd) {
		// A cancel is still unwinding; don't feed more commands into the
		// device's action buffer until the host acknowledges it.
		return devproto.Reply{Status: devproto.StatusCancel}, nil
	}
	r, err := t.s.Port.Send(p)
	if err != nil {
		return devproto.Reply{}, fmt.Errorf("translate: %s: %w", describe(p), err)
	}
	if r.Status == devproto.StatusBufferFull {
		t.s.Stats.BufferFullRetries++
	}
	if r.Status == devproto.StatusCRCMismatch {
		// One resend, matching a line-level "Resend:" round trip: most
		// CRC errors are a single corrupted frame, not a dead link.
		r, err = t.s.Port.Send(p)
		if err != nil {
			return devproto.Reply{}, fmt.Errorf("translate: %s: resend: %w", describe(p), err)
		}
	}
	if r.Status == devproto.StatusCancel {
		if p.Cmd == devproto.CmdAbort {
			// We asked for this cancel; the device is just confirming it.
			return devproto.Reply{Status: devproto.StatusSuccess}, nil
		}
		t.s.ClearStateForCancel()
		t.s.Flags.CancelPending = true
		t.s.Wait.Raise(waitstate.BotCancel)
		t.s.Buf.AppendString("Build cancelled\n")
	}
	return r, nil
}

// resetWaitingForCancel is the shared effect of device commands 3
// (clear buffer), 7 (abort), and 17 (reset): every wait flag drops and
// BotCancel goes up, since the host now has to wait for the device to
// confirm it has unwound whatever it was doing.
func (t *Translator) resetWaitingForCancel() {
	t.s.Wait.ResetAll()
	t.s.Wait.Raise(waitstate.BotCancel)
}

func describe(p devproto.Packet) string {
	return fmt.Sprintf("cmd %d tool %d sub %d", p.Cmd, p.ToolID, p.Sub)
}

// errorLine renders a non-success status as the host-visible error text
// spec.md §7 calls for: "Error:<code> <description>".
func errorLine(status devproto.ReplyStatus) string {
	return fmt.Sprintf("Error:%d %s\n", byte(status), status.String())
}

// ClearBuffer issues device command 3, used when recovering from a
// buffer-full backpressure episode. Like Abort and Reset, it resets
// waiting to zero and raises BotCancel, since the device unwinds its
// action buffer the same way for all three.
func (t *Translator) ClearBuffer() error {
	r, err := t.send(devproto.Packet{Cmd: devproto.CmdClearBuffer})
	if err != nil {
		return err
	}
	t.resetWaitingForCancel()
	if r.Status != devproto.StatusSuccess {
		t.s.Buf.AppendString(errorLine(r.Status))
	}
	return nil
}

// Abort issues device command 7, the host-initiated cancel. It clears
// the session's cancel bookkeeping (stats, pending selection, deadline)
// via ClearStateForCancel, then raises BotCancel so the dispatcher
// holds off on new work until the device confirms the unwind, matching
// ClearBuffer and Reset.
func (t *Translator) Abort() error {
	_, err := t.send(devproto.Packet{Cmd: devproto.CmdAbort})
	if err != nil {
		return err
	}
	t.s.ClearStateForCancel()
	t.s.Wait.Raise(waitstate.BotCancel)
	return nil
}

// Reset issues device command 17, used both for an explicit M999-style
// reset and as the terminal step of cancel recovery once the device
// reports it has unwound its build.
func (t *Translator) Reset() error {
	r, err := t.send(devproto.Packet{Cmd: devproto.CmdReset})
	if err != nil {
		return err
	}
	t.resetWaitingForCancel()
	if r.Status != devproto.StatusSuccess {
		t.s.Buf.AppendString(errorLine(r.Status))
	}
	return nil
}

// ClearCancel implements the @clear_cancel pseudo-command: the host's
// acknowledgement that it has seen a reported cancel. It resets the
// device the same way Reset does, then drops CancelPending (so queued
// commands flow again) and raises EmptyQueue, since the host still
// needs one more confirmation that the device's action buffer is
// actually empty before treating the connection as idle.
func (t *Translator) ClearCancel() error {
	if err := t.Reset(); err != nil {
		return err
	}
	t.s.Flags.CancelPending = false
	t.s.Wait.Raise(waitstate.EmptyQueue)
	return nil
}

// QueryTool issues device command 10 for one tool sub-query and returns
// the decoded value. Temperature queries (M105) call this three times
// per extruder (temp, target, ready) plus three times for the platform.
func (t *Translator) QueryTool(toolID int, sub devproto.ToolSub) (devproto.Reply, error) {
	return t.send(devproto.Packet{Cmd: devproto.CmdToolQuery, ToolID: toolID, Sub: sub})
}

// IsReady issues device command 11 and, when the device reports ready,
// clears the EmptyQueue and Button wait flags it's the confirmation
// for.
func (t *Translator) IsReady() (bool, error) {
	r, err := t.send(devproto.Packet{Cmd: devproto.CmdIsReady})
	if err != nil {
		return false, err
	}
	ready := r.Status == devproto.StatusSuccess && r.IsReady
	if ready {
		t.s.Wait.Clear(waitstate.EmptyQueue)
		t.s.Wait.Clear(waitstate.Button)
	}
	return ready, nil
}

// InitCard implements M21 by issuing device command 18 with a reset
// payload purely to probe for SD card presence: NextFilename's "more
// bool" semantics (empty name means end of listing) don't map cleanly
// onto a pure card-presence check, so this talks to cmd 18 directly
// instead of reusing NextFilename.
func (t *Translator) InitCard() error {
	r, err := t.send(devproto.Packet{Cmd: devproto.CmdNextFilename, Payload: []byte{1}})
	if err != nil {
		return err
	}
	if r.Status == devproto.StatusSuccess {
		t.s.Buf.AppendString("SD card ok\n")
	} else {
		t.s.Buf.AppendString("SD init fail\n")
	}
	return nil
}

// BeginCapture issues device command 14 (M28-equivalent: begin writing
// an SD capture under filename).
func (t *Translator) BeginCapture(filename string) error {
	r, err := t.send(devproto.Packet{Cmd: devproto.CmdBeginSDCapture, Payload: []byte(filename)})
	if err != nil {
		return err
	}
	if r.Status != devproto.StatusSuccess {
		t.s.Buf.AppendString(errorLine(r.Status))
		return nil
	}
	t.s.Buf.AppendString(fmt.Sprintf("Writing to file: %s\n", filename))
	return nil
}

// EndCapture issues device command 15 (M29-equivalent).
func (t *Translator) EndCapture() error {
	r, err := t.send(devproto.Packet{Cmd: devproto.CmdEndSDCapture})
	if err != nil {
		return err
	}
	if r.Status != devproto.StatusSuccess {
		t.s.Buf.AppendString(errorLine(r.Status))
		return nil
	}
	t.s.Buf.AppendString("Done saving file\n")
	return nil
}

// StartPrint issues device command 16 for the M23-selected filename. A
// StatusSDPrinting reply means the device reported the name as not
// found; the host-visible text is the same "echo:Cannot select <name>"
// line SelectFile uses rather than a raw Error: line, since that is the
// one status this command repurposes for a non-error outcome.
func (t *Translator) StartPrint(filename string) (found bool, err error) {
	r, err := t.send(devproto.Packet{Cmd: devproto.CmdStartSDPrint, Payload: []byte(filename)})
	if err != nil {
		return false, err
	}
	if r.NotFound {
		t.s.Buf.AppendString(fmt.Sprintf("echo:Cannot select %s\n", filename))
		return false, nil
	}
	if r.Status != devproto.StatusSuccess {
		t.s.Buf.AppendString(errorLine(r.Status))
		return false, nil
	}
	t.s.Wait.Raise(waitstate.Start)
	t.s.Deadline = time.Now().Add(startDeadline)
	t.s.LastPoll = time.Time{}
	return true, nil
}

// NextFilename issues device command 18. reset requests the listing
// start over from the first directory entry; the caller drives
// repeated calls until the device reports an empty name, per the M20
// listing loop.
func (t *Translator) NextFilename(reset bool) (name string, more bool, err error) {
	payload := []byte{0}
	if reset {
		payload[0] = 1
	}
	r, err := t.send(devproto.Packet{Cmd: devproto.CmdNextFilename, Payload: payload})
	if err != nil {
		return "", false, err
	}
	if r.Status != devproto.StatusSuccess || r.Filename == "" {
		return "", false, nil
	}
	return r.Filename, true, nil
}

// ExtendedPosition issues device command 21 and caches the reported
// position on the session for a subsequent M114.
func (t *Translator) ExtendedPosition() ([4]float64, uint8, error) {
	r, err := t.send(devproto.Packet{Cmd: devproto.CmdExtendedPos})
	if err != nil {
		return [4]float64{}, 0, err
	}
	if r.Status == devproto.StatusSuccess {
		t.s.Pos = r.Position
		t.s.PosKnown = r.PositionKnown
	}
	return t.s.Pos, t.s.PosKnown, nil
}

// BotStatus issues device command 23 and folds the hardware bit flags
// into wait-flag transitions: a reported heat shutdown or power error
// behaves like an unsolicited cancel.
func (t *Translator) BotStatus() (uint8, error) {
	r, err := t.send(devproto.Packet{Cmd: devproto.CmdBotStatus})
	if err != nil {
		return 0, err
	}
	if r.Status != devproto.StatusSuccess {
		return 0, nil
	}
	if r.BotStatusBits&(devproto.BotStatusHeatShutdown|devproto.BotStatusPowerError) != 0 {
		t.s.ClearStateForCancel()
		t.s.Flags.CancelPending = true
		t.s.Wait.Raise(waitstate.BotCancel)
		t.s.Buf.AppendString("Build cancelled\n")
	}
	return r.BotStatusBits, nil
}

// BuildStats issues device command 24 and runs the build-status state
// machine: a running build clears any stale cancel/unpause wait and
// checks the start deadline armed by StartPrint, a paused build raises
// Unpause, a cancelling build raises BotCancel so the dispatcher holds
// off on new work until the device finishes unwinding, and a
// finished-or-cancelled build (the two are handled identically — a
// cancel that has fully unwound leaves nothing left to wait on, same as
// a normal finish) clears every wait flag and the deadline.
func (t *Translator) BuildStats() (devproto.BuildStatus, int64, error) {
	r, err := t.send(devproto.Packet{Cmd: devproto.CmdBuildStats})
	if err != nil {
		return devproto.BuildNone, 0, err
	}
	if r.Status != devproto.StatusSuccess {
		return devproto.BuildNone, 0, nil
	}
	switch r.BuildStatus {
	case devproto.BuildCanceled, devproto.BuildFinishedNormally:
		t.s.Wait.ResetAll()
		t.s.Deadline = time.Time{}
		t.s.LastPoll = time.Time{}
	case devproto.BuildCancelling:
		t.s.Wait.Raise(waitstate.BotCancel)
	case devproto.BuildPaused:
		t.s.Wait.Raise(waitstate.Unpause)
	case devproto.BuildRunning:
		t.checkStartDeadline()
		t.s.Wait.Clear(waitstate.CancelSync)
		t.s.Wait.Clear(waitstate.Unpause)
	}
	return r.BuildStatus, r.LineNumber, nil
}

// checkStartDeadline resolves the Start wait flag StartPrint raises: if
// the device has confirmed RUNNING before the 3-second deadline, it
// just clears; if the wall clock has jumped backward since the last
// poll (detected by comparing against LastPoll), the deadline is
// recomputed relative to now instead of firing a false timeout.
func (t *Translator) checkStartDeadline() {
	if !t.s.Wait.Has(waitstate.Start) {
		return
	}
	now := time.Now()
	if !t.s.LastPoll.IsZero() && now.Before(t.s.LastPoll) {
		t.s.Deadline = now.Add(startDeadline)
	}
	if now.After(t.s.Deadline) {
		t.s.Buf.AppendString("echo:Timed out waiting for build to start\n")
	}
	t.s.Wait.Clear(waitstate.Start)
	t.s.Deadline = time.Time{}
	t.s.LastPoll = now
}

// AdvancedVersion issues device command 27, used to answer M115.
func (t *Translator) AdvancedVersion() (variant byte, version uint16, err error) {
	r, sendErr := t.send(devproto.Packet{Cmd: devproto.CmdAdvancedVer})
	if sendErr != nil {
		return 0, 0, sendErr
	}
	if r.Status != devproto.StatusSuccess {
		return 0, 0, nil
	}
	return r.VariantTag, r.VersionBCD, nil
}

// Home issues device command 131 for the axis bitmask given (G28).
func (t *Translator) Home(axesMask byte) error {
	r, err := t.send(devproto.Packet{Cmd: devproto.CmdHome, Payload: []byte{axesMask}})
	if err != nil {
		return err
	}
	if r.Status != devproto.StatusSuccess {
		t.s.Buf.AppendString(errorLine(r.Status))
	}
	return nil
}

// RecallHome issues device command 132.
func (t *Translator) RecallHome() error {
	_, err := t.send(devproto.Packet{Cmd: devproto.CmdRecallHome})
	return err
}

// Delay issues device command 133 (G4 dwell), queued rather than
// awaited: the device buffers it like any other motion command.
func (t *Translator) Delay(ms uint32) error {
	payload := []byte{byte(ms), byte(ms >> 8), byte(ms >> 16), byte(ms >> 24)}
	_, err := t.send(devproto.Packet{Cmd: devproto.CmdDelay, Payload: payload})
	return err
}

// WaitForExtruder issues device command 135 and raises the matching
// ExtruderA/ExtruderB wait flag; the dispatcher's poll loop clears it
// once a later BuildStats/QueryTool round trip shows the extruder at
// temperature.
func (t *Translator) WaitForExtruder(toolID int, timeoutSec uint16) error {
	payload := []byte{byte(toolID), byte(timeoutSec), byte(timeoutSec >> 8)}
	_, err := t.send(devproto.Packet{Cmd: devproto.CmdWaitExtr, ToolID: toolID, Payload: payload})
	if err != nil {
		return err
	}
	if toolID == 0 {
		t.s.Wait.Raise(waitstate.ExtruderA)
	} else {
		t.s.Wait.Raise(waitstate.ExtruderB)
	}
	return nil
}

// WaitForPlatform issues device command 141 and raises Platform.
func (t *Translator) WaitForPlatform(timeoutSec uint16) error {
	payload := []byte{byte(timeoutSec), byte(timeoutSec >> 8)}
	_, err := t.send(devproto.Packet{Cmd: devproto.CmdWaitPlat, Payload: payload})
	if err != nil {
		return err
	}
	t.s.Wait.Raise(waitstate.Platform)
	return nil
}

// Home2 issues device command 144, the feedrate-aware home variant some
// firmwares use for G28 instead of 131.
func (t *Translator) Home2(axesMask byte, feedrate uint32) error {
	payload := []byte{axesMask, byte(feedrate), byte(feedrate >> 8), byte(feedrate >> 16), byte(feedrate >> 24)}
	r, err := t.send(devproto.Packet{Cmd: devproto.CmdHome2, Payload: payload})
	if err != nil {
		return err
	}
	if r.Status != devproto.StatusSuccess {
		t.s.Buf.AppendString(errorLine(r.Status))
	}
	return nil
}

// LCDMessage issues device command 148 (M117).
func (t *Translator) LCDMessage(text string) error {
	_, err := t.send(devproto.Packet{Cmd: devproto.CmdLCDMessage, Payload: []byte(text)})
	return err
}

// WaitForButton issues device command 149 and raises Button.
func (t *Translator) WaitForButton(timeoutSec uint16) error {
	payload := []byte{byte(timeoutSec), byte(timeoutSec >> 8)}
	_, err := t.send(devproto.Packet{Cmd: devproto.CmdWaitButton, Payload: payload})
	if err != nil {
		return err
	}
	t.s.Wait.Raise(waitstate.Button)
	return nil
}
