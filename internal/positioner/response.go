package positioner

import (
	"fmt"
	"strings"
)

// BoardResponse is one status frame from a rotator control board. Frames
// are CR-terminated and shaped <axis><address><status><payload>, e.g.
// "x0f1200" for axis x, address 0, status f (finished), payload "1200".
type BoardResponse struct {
	Axis    byte
	Address byte
	Status  byte
	Payload string
}

func (r BoardResponse) String() string {
	return fmt.Sprintf("%c%c%c%s", r.Axis, r.Address, r.Status, r.Payload)
}

// Move status codes reported by the control board.
const (
	statusFinished = 'f'
	statusHome     = 'H'
	statusLimit    = 'L'
)

// ParseBoardResponse parses a CR-stripped line from the board. Lines not
// starting with a known axis prefix (x0, y0, z0) are chatter and are
// reported as not-ok rather than an error.
func ParseBoardResponse(line string) (BoardResponse, bool) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 3 {
		return BoardResponse{}, false
	}
	switch {
	case strings.HasPrefix(line, "x0"), strings.HasPrefix(line, "y0"), strings.HasPrefix(line, "z0"):
	default:
		return BoardResponse{}, false
	}
	return BoardResponse{
		Axis:    line[0],
		Address: line[1],
		Status:  line[2],
		Payload: line[3:],
	}, true
}
