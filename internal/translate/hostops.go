package translate

import (
	"fmt"
	"strings"

	"github.com/fry/gpxbridge/internal/devproto"
	"github.com/fry/gpxbridge/internal/waitstate"
)

// ReportTemperatures implements M105: query every known extruder plus
// the platform, render the standard "T:.. /t.. B:.. /b.." line, and
// clear whichever ExtruderA/ExtruderB/Platform wait flags the device
// now reports ready, finishing with an IsReady round trip so a
// completed "wait for ready" also drops EmptyQueue/Button.
func (t *Translator) ReportTemperatures() error {
	prof := t.s.Prof.Active()
	var line strings.Builder
	for tool := 0; tool < prof.ExtruderCount; tool++ {
		cur, err := t.QueryTool(tool, devproto.SubExtruderTemp)
		if err != nil {
			return err
		}
		tgt, err := t.QueryTool(tool, devproto.SubExtruderTarget)
		if err != nil {
			return err
		}
		ready, err := t.QueryTool(tool, devproto.SubExtruderReady)
		if err != nil {
			return err
		}
		if ready.Status == devproto.StatusSuccess && ready.IsReady {
			if tool == 0 {
				t.s.Wait.Clear(waitstate.ExtruderA)
			} else {
				t.s.Wait.Clear(waitstate.ExtruderB)
			}
		}
		label := "T"
		if tool > 0 {
			label = fmt.Sprintf("T%d", tool)
		}
		fmt.Fprintf(&line, "%s:%.1f /%.1f ", label, cur.Temperature, tgt.Target)
	}
	bedCur, err := t.QueryTool(0, devproto.SubPlatformTemp)
	if err != nil {
		return err
	}
	bedTgt, err := t.QueryTool(0, devproto.SubPlatformTarget)
	if err != nil {
		return err
	}
	bedReady, err := t.QueryTool(0, devproto.SubPlatformReady)
	if err != nil {
		return err
	}
	if bedReady.Status == devproto.StatusSuccess && bedReady.IsReady {
		t.s.Wait.Clear(waitstate.Platform)
	}
	fmt.Fprintf(&line, "B:%.1f /%.1f", bedCur.Temperature, bedTgt.Target)
	t.s.Buf.AppendString(line.String() + "\n")
	if _, err := t.IsReady(); err != nil {
		return err
	}
	return nil
}

// ReportPosition implements M114, converting each known axis from device
// steps to mm with the active profile's steps-per-mm; E uses axis A or
// B depending on the current tool.
func (t *Translator) ReportPosition() error {
	pos, known, err := t.ExtendedPosition()
	if err != nil {
		return err
	}
	prof := t.s.Prof.Active()
	stepsAxis := []string{"X", "Y", "Z", "A"}
	if t.s.CurTool == 1 {
		stepsAxis[3] = "B"
	}
	axisName := []string{"X", "Y", "Z", "E"}
	var line strings.Builder
	for i, v := range pos {
		if known&(1<<uint(i)) == 0 {
			continue
		}
		fmt.Fprintf(&line, "%s:%.2f ", axisName[i], v/prof.StepsPerMMFor(stepsAxis[i]))
	}
	t.s.Buf.AppendString(strings.TrimSpace(line.String()) + "\n")
	return nil
}

// ReportFirmwareInfo implements M115, combining the device's advanced
// version reply with the active machine profile.
func (t *Translator) ReportFirmwareInfo() error {
	variant, ver, err := t.AdvancedVersion()
	if err != nil {
		return err
	}
	prof := t.s.Prof.Active()
	t.s.Buf.AppendString(fmt.Sprintf(
		"FIRMWARE_NAME:Sailfish FIRMWARE_VERSION:%d.%d MACHINE_TYPE:%s EXTRUDER_COUNT:%d VARIANT:0x%02x\n",
		ver/100, ver%100, prof.MachineType, prof.ExtruderCount, variant,
	))
	return nil
}

// ReportEndstops implements M119. The device protocol this bridge
// targets doesn't expose discrete endstop state, only the extended
// position's PositionKnown bits, so this reports homed/unknown per axis
// instead of triggered/open.
func (t *Translator) ReportEndstops() error {
	_, known, err := t.ExtendedPosition()
	if err != nil {
		return err
	}
	axisName := []string{"x", "y", "z"}
	var line strings.Builder
	for i, name := range axisName {
		state := "UNKNOWN"
		if known&(1<<uint(i)) != 0 {
			state = "HOMED"
		}
		fmt.Fprintf(&line, "%s_min:%s ", name, state)
	}
	t.s.Buf.AppendString(strings.TrimSpace(line.String()) + "\n")
	return nil
}

// ListFiles implements M20: reset the device's listing cursor and drain
// it into the host's "Begin/End file list" envelope, also rebuilding
// the session's file table so a later M23 can resolve a host-typed name
// case-insensitively back to the device's case-exact name.
func (t *Translator) ListFiles() error {
	t.s.Files.Reset()
	t.s.Buf.AppendString("Begin file list\n")
	reset := true
	for {
		name, more, err := t.NextFilename(reset)
		reset = false
		if err != nil {
			return err
		}
		if !more {
			break
		}
		t.s.Files.Add(name)
		t.s.Buf.AppendString(name + "\n")
	}
	t.s.Buf.AppendString("End file list\n")
	return nil
}

// SelectFile implements M23. It has no device-protocol equivalent at
// all: the host's name is resolved case-insensitively against the file
// table M20 cached, and the cached case-exact name replaces whatever
// case the host typed, the same way the firmware's own SD directory
// lookup is case-insensitive but reports names in directory-entry case.
// A zero-length name is the documented special case: the host is
// asking for the current selection to be re-reported, not asking to
// select a new file.
func (t *Translator) SelectFile(name string) error {
	if name == "" {
		if t.s.PendingSelection == "" {
			t.s.Buf.AppendString("echo:No file selected\n")
			return nil
		}
		t.s.Buf.AppendString(fmt.Sprintf("File opened:%s Size:0\n", t.s.PendingSelection))
		t.s.Buf.AppendString(fmt.Sprintf("File selected:%s\n", t.s.PendingSelection))
		return nil
	}
	idx := t.s.Files.FindCaseInsensitive(name)
	if idx < 0 {
		t.s.PendingSelection = ""
		t.s.Buf.AppendString(fmt.Sprintf("echo:Cannot select %s\n", name))
		return nil
	}
	exact := t.s.Files.At(idx)
	t.s.PendingSelection = exact
	t.s.Buf.AppendString(fmt.Sprintf("File opened:%s Size:0\n", exact))
	t.s.Buf.AppendString(fmt.Sprintf("File selected:%s\n", exact))
	return nil
}

// StartSelectedPrint implements M24: start SD playback of whatever M23
// most recently selected, the device round trip SelectFile itself no
// longer performs.
func (t *Translator) StartSelectedPrint() error {
	if t.s.PendingSelection == "" {
		t.s.Buf.AppendString("echo:No file selected\n")
		return nil
	}
	_, err := t.StartPrint(t.s.PendingSelection)
	return err
}

// ReportPrintStatus implements M27, polling the device's build-status
// state machine and rendering the line the host expects for each
// state. A paused build only echoes once, when newly paused; a routine
// recheck that still reports paused just repeats the progress line.
func (t *Translator) ReportPrintStatus() error {
	alreadyPaused := t.s.Wait.Has(waitstate.Unpause)
	status, line, err := t.BuildStats()
	if err != nil {
		return err
	}
	switch status {
	case devproto.BuildRunning:
		t.s.Buf.AppendString(fmt.Sprintf("SD printing byte %d\n", line))
	case devproto.BuildPaused:
		if !alreadyPaused {
			t.s.Buf.AppendString("echo:Print paused\n")
		}
		t.s.Buf.AppendString(fmt.Sprintf("SD printing byte %d\n", line))
	case devproto.BuildCancelling:
		t.s.Buf.AppendString("echo:Cancelling\n")
	default:
		t.s.Buf.AppendString("Not SD printing\n")
	}
	return nil
}
