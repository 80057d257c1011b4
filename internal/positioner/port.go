package positioner

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// Porter defines the minimal interface needed for the rotator's serial
// link. The abstraction enables unit testing without real hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// PortMode defines serial port configuration parameters.
type PortMode struct {
	BaudRate    int
	ReadTimeout time.Duration
}

// DefaultPortMode returns the default mode for the supported rotator
// control boards.
func DefaultPortMode() *PortMode {
	return &PortMode{
		BaudRate:    9600,
		ReadTimeout: 2 * time.Second,
	}
}

// OpenPort opens a real serial port at the given path.
func OpenPort(path string, mode *PortMode) (Porter, error) {
	if mode == nil {
		mode = DefaultPortMode()
	}
	port, err := serial.Open(path, &serial.Mode{BaudRate: mode.BaudRate})
	if err != nil {
		return nil, err
	}
	if mode.ReadTimeout > 0 {
		if err := port.SetReadTimeout(mode.ReadTimeout); err != nil {
			port.Close()
			return nil, err
		}
	}
	return port, nil
}
