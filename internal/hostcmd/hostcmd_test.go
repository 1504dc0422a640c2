package hostcmd

import (
	"strings"
	"testing"

	"github.com/fry/gpxbridge/internal/devproto"
	"github.com/fry/gpxbridge/internal/profile"
	"github.com/fry/gpxbridge/internal/session"
	"github.com/fry/gpxbridge/internal/translate"
)

func TestParseNumericWords(t *testing.T) {
	cmd, err := Parse("g28 x0 y0")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Word != 'G' || cmd.Index != 28 {
		t.Fatalf("got %c%d, want G28", cmd.Word, cmd.Index)
	}
	if !cmd.Has('X') || !cmd.Has('Y') {
		t.Errorf("missing axis words: %+v", cmd.Params)
	}
}

func TestParseRejectsMidlineCommandWord(t *testing.T) {
	if _, err := Parse("G1 X10 M105"); err == nil {
		t.Error("expected an error for a command word mid-line")
	}
}

func TestParseRejectsMissingLeadingWord(t *testing.T) {
	if _, err := Parse("X10 Y10"); err == nil {
		t.Error("expected an error for a line without a leading G/M word")
	}
}

func TestParseKeepsFilenameCase(t *testing.T) {
	cmd, err := Parse("M23 Robot_Arm.gx")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Text != "Robot_Arm.gx" {
		t.Errorf("Text = %q, want case preserved", cmd.Text)
	}
}

func TestParsePseudoCommand(t *testing.T) {
	cmd, err := Parse("@clear_cancel")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Word != '@' || cmd.Text != "clear_cancel" {
		t.Fatalf("got %+v", cmd)
	}
}

func TestExecuteM105ReportsTemperature(t *testing.T) {
	fake := devproto.NewFake()
	for i := 0; i < 7; i++ {
		fake.QueueReply(devproto.Reply{Status: devproto.StatusSuccess, Temperature: 42, Target: 42})
	}
	sess := session.New(fake, profile.NewRegistry())
	tr := translate.New(sess)
	cmd, err := Parse("M105")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := Execute(tr, cmd); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(sess.Buf.String(), "T:42.0") {
		t.Errorf("buffer = %q", sess.Buf.String())
	}
}
