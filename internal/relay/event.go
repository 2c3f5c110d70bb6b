package relay

import (
	"fmt"
	"golang.org/x/sys/unix"
)

type action int

const (
	skip action = iota
	transfer
	disable
	fatal
)

// classify decodes a poll result bit by bit. Readable wins over hang-up so
// pending bytes are drained before end of stream is seen.
func classify(revents int16) action {
	switch {
	case revents == 0:
		return skip
	case revents&unix.POLLNVAL != 0:
		return fatal
	case revents&unix.POLLIN != 0:
		return transfer
	case revents&(unix.POLLHUP|unix.POLLERR) != 0:
		return disable
	}
	return fatal
}

// EventError reports a poll result the relay cannot act on.
type EventError struct {
	Direction Direction
	Revents   int16
}

func (e *EventError) Error() string {
	return fmt.Sprintf("unexpected poll event 0x%x on %s", uint16(e.Revents), e.Direction)
}
