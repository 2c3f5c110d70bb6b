package splice

import (
	"errors"
	"fmt"
	"golang.org/x/sys/unix"
)

// ChunkSize caps the number of bytes moved by a single Transfer call. It
// matches PIPE_BUF on Linux.
const ChunkSize = 4096

// Transfer moves at most ChunkSize bytes from src to dst. A return of zero
// bytes with a nil error means src reached end of stream.
type Transfer interface {
	Transfer(src, dst int) (int, error)
	Close() error
}

// TransferError carries the operating system error code of a failed transfer.
type TransferError struct {
	Op    string
	Errno unix.Errno
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Errno)
}

func (e *TransferError) Unwrap() error {
	return e.Errno
}

// Temporary reports whether the descriptor was simply not ready, which
// happens when a readiness event was spurious on a non-blocking descriptor.
func (e *TransferError) Temporary() bool {
	return e.Errno == unix.EAGAIN || e.Errno == unix.EINTR
}

func wrapErrno(op string, err error) error {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return &TransferError{Op: op, Errno: errno}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsTemporary reports whether err is a TransferError that may succeed on the
// next readiness event.
func IsTemporary(err error) bool {
	var te *TransferError
	return errors.As(err, &te) && te.Temporary()
}
