// Package session holds the per-connection state the Response
// Translator and Line Dispatcher operate on: the translation buffer, the
// wait-flag set, the host-visible boolean flags, the cached file-name
// table, and the downstream port handle. It plays the role the
// teacher's Downlink/executor state played, but deliberately carries no
// goroutines or channels of its own — spec.md's concurrency model rules
// those out of the hot path.
package session

import (
	"fmt"
	"time"

	"github.com/fry/gpxbridge/internal/devproto"
	"github.com/fry/gpxbridge/internal/lineproto"
	"github.com/fry/gpxbridge/internal/profile"
	"github.com/fry/gpxbridge/internal/strtab"
	"github.com/fry/gpxbridge/internal/waitstate"
	"github.com/fry/gpxbridge/internal/xbuf"
)

// Flags are the host-visible boolean bits that aren't naturally part of
// the WaitFlags bitmask: whether an "ok" is still owed to the host,
// whether a cancel is in flight, and so on.
type Flags struct {
	OKPending       bool
	CancelPending   bool
	ListingFiles    bool
	AwaitingPosture bool // M114/get-position deferred until the device is idle
}

// Stats counts events a long-running bridge process wants to report,
// e.g. on SIGUSR1 or a future status endpoint. Nothing in the core
// reads them back; they exist so the bridge is observable.
type Stats struct {
	LinesDispatched   int
	ImplicitPolls     int
	BufferFullRetries int
	Cancels           int
}

// Session is the bridge's entire mutable state for one host connection.
type Session struct {
	Buf   *xbuf.Buffer
	Wait  waitstate.Set
	Flags Flags
	Files *strtab.Table
	Prof  *profile.Registry
	Port  devproto.PortHandler
	Stats Stats
	Lines *lineproto.Tracker

	// CurTool is the extruder index ("A" = 0, "B" = 1) most recently
	// addressed by a tool command.
	CurTool int
	// Pos and PosKnown mirror the device's last reported extended
	// position (CmdExtendedPos), PosKnown bit i set meaning axis i was
	// reported.
	Pos      [4]float64
	PosKnown uint8

	// Deadline is the absolute time a currently-waiting operation
	// should give up and report a timeout; zero means no deadline is
	// active.
	Deadline time.Time
	// LastPoll is the wall-clock time of the previous build-status poll,
	// used to detect the system clock jumping backward under an active
	// Deadline.
	LastPoll time.Time

	// PendingSelection holds the case-exact cached filename the host's
	// M23 line resolved to, to be sent to the device by a subsequent M24
	// start-print step. A zero-length M23 filename is the documented
	// "report state without selecting" special case.
	PendingSelection string
}

// New returns an initialized Session bound to port (typically a
// devproto.SerialPortHandler wrapping an open connection, or a
// devproto.FakeHandler in tests) and a profile registry.
func New(port devproto.PortHandler, prof *profile.Registry) *Session {
	return &Session{
		Buf:   xbuf.New(bufferCapacity),
		Files: strtab.New(),
		Prof:  prof,
		Port:  port,
		Lines: lineproto.NewTracker(),
	}
}

// bufferCapacity is the translation buffer's fixed size: large enough
// for the longest legitimate multi-line M20 listing chunk, small enough
// to bound memory per session.
const bufferCapacity = 4096

// Initialize resets a freshly connected Session to its starting state:
// no wait flags raised, no pending ok, an empty file table, and the
// default profile active.
func (s *Session) Initialize() {
	s.Wait.ResetAll()
	s.Flags = Flags{}
	s.Files.Reset()
	s.Buf.Reset()
	s.CurTool = 0
	s.Pos = [4]float64{}
	s.PosKnown = 0
	s.Deadline = time.Time{}
	s.LastPoll = time.Time{}
	s.PendingSelection = ""
	s.Prof.RestoreDefault()
	s.Lines.Reset()
}

// ClearStateForCancel implements the cancel recovery path: every wait
// flag is dropped and any pending M23 selection is discarded, but the
// file table and active profile survive, since a cancel ends the
// current build, not the connection.
func (s *Session) ClearStateForCancel() {
	s.Wait.ResetAll()
	s.Flags.CancelPending = false
	s.Flags.AwaitingPosture = false
	s.PendingSelection = ""
	s.Deadline = time.Time{}
	s.LastPoll = time.Time{}
	s.Stats.Cancels++
}

// Cleanup tears a Session down for reuse or shutdown: same as
// Initialize but also closes the port handle, if it implements
// io.Closer, returning any close error wrapped.
func (s *Session) Cleanup() error {
	s.Initialize()
	if c, ok := s.Port.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("session: close port: %w", err)
		}
	}
	return nil
}
