package translate

import (
	"strings"
	"testing"

	"github.com/fry/gpxbridge/internal/devproto"
	"github.com/fry/gpxbridge/internal/profile"
	"github.com/fry/gpxbridge/internal/session"
	"github.com/fry/gpxbridge/internal/waitstate"
)

func newTestTranslator() (*Translator, *devproto.FakeHandler, *session.Session) {
	fake := devproto.NewFake()
	sess := session.New(fake, profile.NewRegistry())
	return New(sess), fake, sess
}

func TestReportTemperaturesSingleExtruder(t *testing.T) {
	tr, fake, sess := newTestTranslator()
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, Temperature: 205})
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, Target: 210})
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, IsReady: false})
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, Temperature: 60})
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, Target: 65})
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, IsReady: false})
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, IsReady: false})

	if err := tr.ReportTemperatures(); err != nil {
		t.Fatalf("ReportTemperatures: %v", err)
	}
	out := sess.Buf.String()
	if !strings.Contains(out, "T:205.0 /210.0") || !strings.Contains(out, "B:60.0 /65.0") {
		t.Errorf("unexpected temperature line: %q", out)
	}
}

func TestReportTemperaturesClearsExtruderAWhenReady(t *testing.T) {
	tr, fake, sess := newTestTranslator()
	sess.Wait.Raise(waitstate.ExtruderA)
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, Temperature: 210})
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, Target: 210})
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, IsReady: true})
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, Temperature: 60})
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, Target: 65})
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, IsReady: false})
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, IsReady: false})

	if err := tr.ReportTemperatures(); err != nil {
		t.Fatalf("ReportTemperatures: %v", err)
	}
	if sess.Wait.Has(waitstate.ExtruderA) {
		t.Error("ReportTemperatures did not clear ExtruderA once the device reported ready")
	}
}

func TestWaitForExtruderRaisesFlag(t *testing.T) {
	tr, fake, sess := newTestTranslator()
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess})
	if err := tr.WaitForExtruder(0, 30); err != nil {
		t.Fatalf("WaitForExtruder: %v", err)
	}
	if !sess.Wait.Has(waitstate.ExtruderA) {
		t.Error("WaitForExtruder(0, ...) did not raise ExtruderA")
	}
}

func TestBuildStatsCancellingRaisesBotCancel(t *testing.T) {
	tr, fake, sess := newTestTranslator()
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, BuildStatus: devproto.BuildCancelling})
	if _, _, err := tr.BuildStats(); err != nil {
		t.Fatalf("BuildStats: %v", err)
	}
	if !sess.Wait.Has(waitstate.BotCancel) {
		t.Error("a cancelling build did not raise BotCancel")
	}
}

func TestBuildStatsFinishedClearsWaitFlags(t *testing.T) {
	tr, fake, sess := newTestTranslator()
	sess.Wait.Raise(waitstate.BotCancel)
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, BuildStatus: devproto.BuildFinishedNormally})
	if _, _, err := tr.BuildStats(); err != nil {
		t.Fatalf("BuildStats: %v", err)
	}
	if sess.Wait.Any() {
		t.Error("a finished build left a wait flag raised")
	}
}

func TestSelectFileZeroLengthReportsCurrent(t *testing.T) {
	tr, _, sess := newTestTranslator()
	sess.PendingSelection = "robot.gx"
	if err := tr.SelectFile(""); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	out := sess.Buf.String()
	if !strings.Contains(out, "File opened:robot.gx Size:0") || !strings.Contains(out, "File selected:robot.gx") {
		t.Errorf("zero-length M23 did not report current selection: %q", out)
	}
}

func TestSelectFileResolvesCaseInsensitively(t *testing.T) {
	tr, _, sess := newTestTranslator()
	sess.Files.Add("Robot_Arm.gx")
	if err := tr.SelectFile("robot_arm.gx"); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	if sess.PendingSelection != "Robot_Arm.gx" {
		t.Errorf("PendingSelection = %q, want cached case-exact name", sess.PendingSelection)
	}
	out := sess.Buf.String()
	if !strings.Contains(out, "File opened:Robot_Arm.gx Size:0") || !strings.Contains(out, "File selected:Robot_Arm.gx") {
		t.Errorf("unexpected M23 response: %q", out)
	}
}

func TestSelectFileNotFound(t *testing.T) {
	tr, _, sess := newTestTranslator()
	if err := tr.SelectFile("missing.gx"); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	if sess.PendingSelection != "" {
		t.Error("SelectFile left a pending selection for a missing file")
	}
	if !strings.Contains(sess.Buf.String(), "Cannot select missing.gx") {
		t.Errorf("missing-file response = %q", sess.Buf.String())
	}
}

func TestListFilesDrainsUntilEmpty(t *testing.T) {
	tr, fake, sess := newTestTranslator()
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, Filename: "a.gx"})
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, Filename: "b.gx"})
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, Filename: ""})

	if err := tr.ListFiles(); err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	out := sess.Buf.String()
	if !strings.Contains(out, "Begin file list") || !strings.Contains(out, "a.gx") ||
		!strings.Contains(out, "b.gx") || !strings.Contains(out, "End file list") {
		t.Errorf("file listing incomplete: %q", out)
	}
	if sess.Files.Len() != 2 {
		t.Errorf("Files.Len() = %d, want 2", sess.Files.Len())
	}
}

func TestSendResendsOnceOnCRCMismatch(t *testing.T) {
	tr, fake, _ := newTestTranslator()
	fake.QueueReply(devproto.Reply{Status: devproto.StatusCRCMismatch})
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess})
	if _, err := tr.IsReady(); err != nil {
		t.Fatalf("IsReady: %v", err)
	}
	if len(fake.Sent()) != 2 {
		t.Errorf("Sent() len = %d, want 2 (original + resend)", len(fake.Sent()))
	}
}

func TestAbortRaisesBotCancel(t *testing.T) {
	tr, fake, sess := newTestTranslator()
	sess.Wait.Raise(waitstate.Platform)
	fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess})
	if err := tr.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if sess.Wait.Has(waitstate.Platform) {
		t.Error("Abort left the stale Platform wait flag raised")
	}
	if !sess.Wait.Has(waitstate.BotCancel) {
		t.Error("Abort did not raise BotCancel")
	}
	if sess.Stats.Cancels != 1 {
		t.Errorf("Stats.Cancels = %d, want 1", sess.Stats.Cancels)
	}
}

func TestDeviceInitiatedCancelSetsCancelPending(t *testing.T) {
	tr, fake, sess := newTestTranslator()
	fake.QueueReply(devproto.Reply{Status: devproto.StatusCancel})
	if _, err := tr.IsReady(); err != nil {
		t.Fatalf("IsReady: %v", err)
	}
	if !sess.Flags.CancelPending {
		t.Error("device-initiated cancel did not set CancelPending")
	}
	if !sess.Wait.Has(waitstate.BotCancel) {
		t.Error("device-initiated cancel did not raise BotCancel")
	}
	if !strings.Contains(sess.Buf.String(), "Build cancelled") {
		t.Errorf("buffer = %q, want a Build cancelled line", sess.Buf.String())
	}
}

func TestQueueableCommandDroppedWhileCancelPending(t *testing.T) {
	tr, fake, sess := newTestTranslator()
	sess.Flags.CancelPending = true
	if err := tr.Delay(10); err != nil {
		t.Fatalf("Delay: %v", err)
	}
	if len(fake.Sent()) != 0 {
		t.Errorf("Sent() len = %d, want 0: a queueable command reached the device while a cancel was pending", len(fake.Sent()))
	}
}
