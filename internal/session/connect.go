package session

import (
	"fmt"

	"github.com/fry/gpxbridge/internal/devproto"
	"github.com/samofly/serial"
)

// validBauds are the rates spec.md §6 lists as acceptable for the
// downstream device connection.
var validBauds = map[int]bool{
	4800: true, 9600: true, 14400: true, 19200: true,
	28800: true, 38400: true, 57600: true, 115200: true,
}

// NormalizeBaud applies the "0 means default" rule and rejects anything
// else not in the accepted set.
func NormalizeBaud(baud int) (int, error) {
	if baud == 0 {
		return 115200, nil
	}
	if !validBauds[baud] {
		return 0, fmt.Errorf("session: unsupported baud rate %d", baud)
	}
	return baud, nil
}

// Connect opens port at baud (0 meaning the default 115200) and
// installs a devproto.SerialPortHandler over it as s.Port. Any
// previously open port is left for the caller to close; Connect only
// manages the new one.
func (s *Session) Connect(port string, baud int) error {
	rate, err := NormalizeBaud(baud)
	if err != nil {
		return err
	}
	conn, err := serial.Open(port, rate)
	if err != nil {
		return fmt.Errorf("session: open %s at %d baud: %w", port, rate, err)
	}
	s.Port = devproto.NewSerialPortHandler(conn)
	return nil
}
