package tty

import (
	"golang.org/x/term"
)

// RawMode holds the saved state of a terminal switched to raw mode.
type RawMode struct {
	fd    int
	state *term.State
}

// MakeRaw switches fd to raw mode when it is a terminal. For anything else
// it returns a no-op RawMode.
func MakeRaw(fd int) (*RawMode, error) {
	if !term.IsTerminal(fd) {
		return &RawMode{fd: fd}, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return &RawMode{fd: fd, state: state}, nil
}

func (r *RawMode) Restore() error {
	if r == nil || r.state == nil {
		return nil
	}
	state := r.state
	r.state = nil
	return term.Restore(r.fd, state)
}
