package tty

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// DevicePath is the controlling terminal, reachable even when stdout is redirected.
const DevicePath = "/dev/tty"

const eraseLine = "\x1b[2K\r"

var ErrNoTerminal = errors.New("could not open controlling terminal")

// Status writes single, self-erasing lines of progress text. Every update
// erases the current terminal line first, so at most one line is visible.
type Status struct {
	mu sync.Mutex
	w  io.Writer
}

func NewStatus(w io.Writer) *Status {
	return &Status{w: w}
}

// Update replaces the visible status line with line. An empty line clears it.
func (s *Status) Update(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, eraseLine+line)
	return err
}

func (s *Status) Clear() error {
	return s.Update("")
}

// Terminal is the handle to the controlling terminal.
type Terminal struct {
	*Status
	file *os.File
}

// Open opens the controlling terminal read-write.
func Open() (*Terminal, error) {
	return OpenPath(DevicePath)
}

func OpenPath(path string) (*Terminal, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoTerminal, err)
	}
	return &Terminal{Status: NewStatus(f), file: f}, nil
}

// Writer returns a writer that emits terminal-friendly line endings, for
// debug output written while the local side may be in raw mode.
func (t *Terminal) Writer() io.Writer {
	return &crlfWriter{status: t.Status}
}

func (t *Terminal) Close() error {
	return t.file.Close()
}

type crlfWriter struct {
	status *Status
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	c.status.mu.Lock()
	defer c.status.mu.Unlock()

	out := make([]byte, 0, len(p)+8)
	for _, b := range p {
		if b == '\n' {
			out = append(out, '\r')
		}
		out = append(out, b)
	}
	if _, err := c.status.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
