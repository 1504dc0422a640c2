package devproto

import (
	"encoding/binary"
	"fmt"
	"io"
)

// SerialPortHandler is a minimal, concrete PortHandler over a raw
// io.ReadWriter. Real X3G framing (packet sync bytes, CRC, automatic
// resend) is the external collaborator's job per spec — this codec is
// the bridge's own default wire format, used when no richer codec is
// injected, and is deliberately small: [cmd][tool][sub][len][payload][crc8]
// out, [status][len][payload][crc8] in.
type SerialPortHandler struct {
	rw io.ReadWriter
}

// NewSerialPortHandler wraps rw (typically an open serial.Port) as a
// PortHandler.
func NewSerialPortHandler(rw io.ReadWriter) *SerialPortHandler {
	return &SerialPortHandler{rw: rw}
}

// Close releases the underlying connection if it supports closing,
// letting session.Cleanup tear the port down without knowing the
// concrete transport type.
func (h *SerialPortHandler) Close() error {
	if c, ok := h.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func crc8(data []byte) byte {
	// Maxim/iButton CRC-8, the same polynomial the X3G family of
	// protocols uses for its packet trailer.
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0x8C
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// Send implements PortHandler by writing one framed request and blocking
// for one framed reply.
func (h *SerialPortHandler) Send(p Packet) (Reply, error) {
	frame := []byte{byte(p.Cmd), byte(p.ToolID), byte(p.Sub), byte(len(p.Payload))}
	frame = append(frame, p.Payload...)
	frame = append(frame, crc8(frame))
	if _, err := h.rw.Write(frame); err != nil {
		return Reply{}, fmt.Errorf("devproto: write: %w", err)
	}

	head := make([]byte, 2)
	if _, err := io.ReadFull(h.rw, head); err != nil {
		return Reply{}, fmt.Errorf("devproto: read header: %w", err)
	}
	status, n := ReplyStatus(head[0]), int(head[1])
	body := make([]byte, n+1)
	if n+1 > 0 {
		if _, err := io.ReadFull(h.rw, body); err != nil {
			return Reply{}, fmt.Errorf("devproto: read body: %w", err)
		}
	}
	payload := body[:n]
	gotCRC := body[n]
	wantCRC := crc8(append(append([]byte{head[0], head[1]}, payload...)))
	if gotCRC != wantCRC {
		return Reply{}, fmt.Errorf("devproto: crc mismatch on reply to %+v", p)
	}
	return decodeReply(p, status, payload), nil
}

// decodeReply interprets payload according to which command/sub
// requested it, since the wire format carries no self-describing type
// tag beyond that context.
func decodeReply(req Packet, status ReplyStatus, payload []byte) Reply {
	r := Reply{Status: status}
	if req.Cmd == CmdStartSDPrint {
		r.NotFound = status == StatusSDPrinting
	}
	if status != StatusSuccess {
		return r
	}
	switch req.Cmd {
	case CmdToolQuery:
		switch req.Sub {
		case SubExtruderTemp, SubPlatformTemp:
			if len(payload) >= 2 {
				r.Temperature = float64(int16(binary.LittleEndian.Uint16(payload)))
			}
		case SubExtruderTarget, SubPlatformTarget:
			if len(payload) >= 2 {
				r.Target = float64(int16(binary.LittleEndian.Uint16(payload)))
			}
		case SubExtruderReady, SubPlatformReady:
			r.IsReady = len(payload) >= 1 && payload[0] != 0
		}
	case CmdIsReady:
		r.IsReady = len(payload) >= 1 && payload[0] != 0
	case CmdExtendedPos:
		if len(payload) >= 4*4+1 {
			for i := 0; i < 4; i++ {
				bits := binary.LittleEndian.Uint32(payload[i*4:])
				r.Position[i] = float64(int32(bits))
			}
			r.PositionKnown = payload[16]
		}
	case CmdBuildStats:
		if len(payload) >= 5 {
			r.BuildStatus = BuildStatus(payload[0])
			r.LineNumber = int64(binary.LittleEndian.Uint32(payload[1:]))
		}
	case CmdBotStatus:
		if len(payload) >= 1 {
			r.BotStatusBits = payload[0]
		}
	case CmdAdvancedVer:
		if len(payload) >= 3 {
			r.VariantTag = payload[0]
			r.VersionBCD = binary.LittleEndian.Uint16(payload[1:])
		}
	case CmdNextFilename:
		r.Filename = string(payload)
	}
	return r
}
