// Package devproto describes the opaque binary device protocol at the
// level the Response Translator needs: command ids, reply status codes,
// and the PortHandler interface it delegates framing to. Besides naming
// the shapes that cross that boundary, it carries a small default wire
// codec (SerialPortHandler) and an in-memory test double (FakeHandler).
package devproto

import "fmt"

// CommandID identifies a device-protocol command. Queueable commands (the
// top bit set) enter the device's bounded action buffer and can be
// rejected with StatusBufferFull; the rest are synchronous queries.
type CommandID byte

const (
	CmdClearBuffer    CommandID = 3
	CmdAbort          CommandID = 7
	CmdReset          CommandID = 17
	CmdToolQuery      CommandID = 10
	CmdIsReady        CommandID = 11
	CmdBeginSDCapture CommandID = 14
	CmdEndSDCapture   CommandID = 15
	CmdStartSDPrint   CommandID = 16
	CmdNextFilename   CommandID = 18
	CmdExtendedPos    CommandID = 21
	CmdBotStatus      CommandID = 23
	CmdBuildStats     CommandID = 24
	CmdAdvancedVer    CommandID = 27

	CmdHome       CommandID = 131
	CmdRecallHome CommandID = 132
	CmdDelay      CommandID = 133
	CmdWaitExtr   CommandID = 135
	CmdWaitPlat   CommandID = 141
	CmdHome2      CommandID = 144
	CmdLCDMessage CommandID = 148
	CmdWaitButton CommandID = 149
)

// IsQueueable reports whether a command id enters the device's bounded
// action buffer (top bit set), as opposed to being an immediate query.
func IsQueueable(id CommandID) bool {
	return id&0x80 != 0
}

// ToolSub identifies a sub-query of CmdToolQuery.
type ToolSub byte

const (
	SubExtruderTemp   ToolSub = 2
	SubExtruderReady  ToolSub = 22
	SubPlatformTemp   ToolSub = 30
	SubExtruderTarget ToolSub = 32
	SubPlatformTarget ToolSub = 33
	SubPlatformReady  ToolSub = 35
)

// BuildStatus is the device's build.status enum (device command 24).
type BuildStatus byte

const (
	BuildNone BuildStatus = iota
	BuildRunning
	BuildFinishedNormally
	BuildPaused
	BuildCanceled
	BuildCancelling
)

// ReplyStatus is the per-packet status byte returned for every device
// round trip, per spec.md §7.
type ReplyStatus byte

const (
	StatusSuccess           ReplyStatus = 0x00
	StatusGeneric           ReplyStatus = 0x80
	StatusBufferFull        ReplyStatus = 0x82
	StatusCRCMismatch       ReplyStatus = 0x83
	StatusQueryTooBig       ReplyStatus = 0x84
	StatusUnsupported       ReplyStatus = 0x85
	StatusDownstreamTimeout ReplyStatus = 0x87
	StatusToolLockTimeout   ReplyStatus = 0x88
	StatusCancel            ReplyStatus = 0x89
	StatusSDPrinting        ReplyStatus = 0x8A
	StatusOverheat          ReplyStatus = 0x8B
	StatusTimeout           ReplyStatus = 0x8C
)

func (s ReplyStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusGeneric:
		return "generic packet error"
	case StatusBufferFull:
		return "buffer full"
	case StatusCRCMismatch:
		return "CRC mismatch"
	case StatusQueryTooBig:
		return "query too big"
	case StatusUnsupported:
		return "unsupported command"
	case StatusDownstreamTimeout:
		return "downstream (tool) timeout"
	case StatusToolLockTimeout:
		return "tool lock timeout"
	case StatusCancel:
		return "cancel"
	case StatusSDPrinting:
		return "SD printing"
	case StatusOverheat:
		return "overheat"
	case StatusTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("status(0x%02x)", byte(s))
	}
}

// Packet is a decoded outbound command: the command id, an optional tool
// id (for per-extruder commands), and any payload bytes the caller wants
// carried across the framing boundary.
type Packet struct {
	Cmd     CommandID
	ToolID  int
	Sub     ToolSub
	Payload []byte
}

// Reply is a decoded device-protocol response, as produced by the
// external framing/CRC/retry layer (the "port_handler").
type Reply struct {
	Status ReplyStatus

	// Int32/Float64 are general-purpose scratch fields; SerialPortHandler
	// does not fill them for any command.
	Int32   int32
	Float64 float64

	// Position holds the four axis values for CmdExtendedPos replies.
	Position [4]float64
	// PositionKnown marks which of Position's axes the device actually
	// reported (bit i set means axis i is known).
	PositionKnown uint8

	// BuildStatus is set for CmdBuildStats replies.
	BuildStatus BuildStatus
	// LineNumber is the current line/byte offset for CmdBuildStats
	// replies that report one.
	LineNumber int64

	// BotStatusBits is the raw motherboard status bitfield for
	// CmdBotStatus replies.
	BotStatusBits uint8

	// VariantTag and VersionBCD back CmdAdvancedVer replies (e.g. 0x80,
	// 723 for Sailfish 7.23: the version is a plain decimal number, major
	// times 100 plus minor).
	VariantTag  byte
	VersionBCD  uint16
	NotFound    bool
	IsReady     bool
	Filename    string
	Temperature float64
	Target      float64
}

const (
	BotStatusBuildCancelling uint8 = 1 << 0
	BotStatusHeatShutdown    uint8 = 1 << 1
	BotStatusPowerError      uint8 = 1 << 2
)

// PortHandler is the external collaborator that frames a Packet, sends
// it down the wire, and blocks for the decoded Reply. Framing, CRC, and
// retries are its concern; the Response Translator only inspects the
// Reply's fields.
type PortHandler interface {
	Send(p Packet) (Reply, error)
}
