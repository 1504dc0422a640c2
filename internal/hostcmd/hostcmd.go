// Package hostcmd parses one line of the host's line-oriented text
// protocol and carries out whatever device round trips it implies,
// calling back into a Response Translator exactly as many times as the
// command requires (zero for a handful of purely-local commands, one or
// more for most).
//
// The tokenizer is the teacher's letter+number word splitter
// generalized to carry a trailing free-text argument too, since M23,
// M28, and M117 take a filename or message rather than a numeric word.
package hostcmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fry/gpxbridge/internal/translate"
)

// Command is a parsed host line: the G or M word, its numeric index,
// any letter-prefixed numeric parameters, and a trailing free-text
// argument for the commands that take one.
type Command struct {
	Word   byte // 'G' or 'M'
	Index  int
	Params map[byte]float64
	Text   string // trailing filename/message argument, if any
}

// Parse tokenizes line the way the teacher's gcode parser does:
// uppercase, split on spaces, first word must be G or M, letters may
// not repeat. Commands known to take a free-text tail (M23, M28, M117,
// M28) stop word-splitting at that point and keep the remainder verbatim.
func Parse(line string) (*Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("hostcmd: empty line")
	}
	if strings.HasPrefix(line, "@") {
		return &Command{Word: '@', Text: strings.TrimPrefix(line, "@")}, nil
	}

	upper := strings.ToUpper(line)
	words := strings.Fields(upper)
	if len(words) == 0 {
		return nil, fmt.Errorf("hostcmd: empty line")
	}
	first := words[0]
	if len(first) < 2 || (first[0] != 'G' && first[0] != 'M') {
		return nil, fmt.Errorf("hostcmd: line %q does not start with a G or M word", line)
	}
	idx, err := strconv.Atoi(first[1:])
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("hostcmd: invalid index in word %q", first)
	}
	cmd := &Command{Word: first[0], Index: idx, Params: map[byte]float64{}}

	if textTailCommands[cmd.Word][cmd.Index] {
		// Recover the original-case remainder after the first word,
		// since filenames and LCD messages are case sensitive.
		rest := strings.TrimSpace(line[len(first):])
		cmd.Text = rest
		return cmd, nil
	}

	for _, word := range words[1:] {
		letter := word[0]
		if letter == 'G' || letter == 'M' {
			return nil, fmt.Errorf("hostcmd: unexpected %q mid-command", word)
		}
		if _, dup := cmd.Params[letter]; dup {
			return nil, fmt.Errorf("hostcmd: duplicate word %q", word)
		}
		if len(word) == 1 {
			cmd.Params[letter] = 0
			continue
		}
		val, err := strconv.ParseFloat(word[1:], 64)
		if err != nil {
			return nil, fmt.Errorf("hostcmd: bad numeric word %q: %w", word, err)
		}
		cmd.Params[letter] = val
	}
	return cmd, nil
}

// textTailCommands lists the commands whose argument is free text
// rather than letter-prefixed numeric words.
var textTailCommands = map[byte]map[int]bool{
	'M': {23: true, 28: true, 117: true},
}

// Has reports whether letter was present as a parameter word.
func (c *Command) Has(letter byte) bool {
	_, ok := c.Params[letter]
	return ok
}

// Int returns a parameter as an integer, or def if absent.
func (c *Command) Int(letter byte, def int) int {
	if v, ok := c.Params[letter]; ok {
		return int(v)
	}
	return def
}

// Execute carries out cmd against tr, the bound translator for the
// current session. It returns an error for transport failures and for
// an unknown pseudo-command; host-visible protocol errors are written
// into the session buffer by the translator methods themselves.
func Execute(tr *translate.Translator, cmd *Command) error {
	switch cmd.Word {
	case '@':
		return executePseudo(tr, cmd)
	case 'G':
		return executeG(tr, cmd)
	case 'M':
		return executeM(tr, cmd)
	default:
		return fmt.Errorf("hostcmd: unknown word %q", cmd.Word)
	}
}

func executePseudo(tr *translate.Translator, cmd *Command) error {
	switch cmd.Text {
	case "clear_buffer":
		return tr.ClearBuffer()
	case "clear_cancel":
		return tr.ClearCancel()
	default:
		return fmt.Errorf("hostcmd: unknown pseudo-command %q", cmd.Text)
	}
}

func executeG(tr *translate.Translator, cmd *Command) error {
	switch cmd.Index {
	case 0, 1:
		// Motion is out of this bridge's scope to re-synthesize: G0/G1
		// send nothing to the device. Nothing to translate here beyond
		// acknowledging the line.
		return nil
	case 4:
		ms := uint32(cmd.Int('P', 0))
		if ms == 0 && cmd.Has('S') {
			ms = uint32(cmd.Int('S', 0) * 1000)
		}
		return tr.Delay(ms)
	case 28:
		if cmd.Has('R') {
			return tr.RecallHome()
		}
		mask := axisMask(cmd)
		if mask == 0 {
			mask = 0x07 // home all of X, Y, Z when no axis word is given
		}
		if cmd.Has('F') {
			return tr.Home2(mask, uint32(cmd.Int('F', 0)))
		}
		return tr.Home(mask)
	default:
		return nil
	}
}

func axisMask(cmd *Command) byte {
	var mask byte
	if cmd.Has('X') {
		mask |= 1 << 0
	}
	if cmd.Has('Y') {
		mask |= 1 << 1
	}
	if cmd.Has('Z') {
		mask |= 1 << 2
	}
	return mask
}

func executeM(tr *translate.Translator, cmd *Command) error {
	switch cmd.Index {
	case 0, 1:
		return tr.WaitForButton(uint16(cmd.Int('S', 0)))
	case 20:
		return tr.ListFiles()
	case 21:
		return tr.InitCard()
	case 23:
		return tr.SelectFile(cmd.Text)
	case 24:
		return tr.StartSelectedPrint()
	case 27:
		return tr.ReportPrintStatus()
	case 28:
		return tr.BeginCapture(cmd.Text)
	case 29:
		return tr.EndCapture()
	case 105:
		return tr.ReportTemperatures()
	case 109:
		toolID := cmd.Int('T', 0)
		return tr.WaitForExtruder(toolID, uint16(cmd.Int('S', 0)))
	case 114:
		return tr.ReportPosition()
	case 115:
		return tr.ReportFirmwareInfo()
	case 119:
		return tr.ReportEndstops()
	case 117:
		return tr.LCDMessage(cmd.Text)
	case 135:
		return tr.WaitForExtruder(cmd.Int('T', 0), uint16(cmd.Int('P', 0)))
	case 140:
		return nil // set bed target: no device round trip, only acknowledged
	case 190:
		return tr.WaitForPlatform(uint16(cmd.Int('S', 0)))
	default:
		return nil
	}
}
