//go:build linux

package splice

import (
	"golang.org/x/sys/unix"
	"sync"
)

const spliceFlags = unix.SPLICE_F_MOVE

// Splice moves data between two descriptors inside the kernel. Neither side
// has to be a pipe: bytes go src -> intermediate pipe -> dst.
//
// Descriptors the kernel refuses to splice (EINVAL) are remembered and served
// by the Copy fallback from then on, so callers never see the difference.
type Splice struct {
	mu       sync.Mutex
	rfd, wfd int
	fallback *Copy
	noSplice map[int]bool
}

// New returns the zero-copy transfer, or the copy fallback when forceCopy is set.
func New(forceCopy bool) (Transfer, error) {
	if forceCopy {
		return NewCopy(), nil
	}
	s, err := NewSplice()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func NewSplice() (*Splice, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		return nil, wrapErrno("pipe2", err)
	}
	return &Splice{
		rfd:      p[0],
		wfd:      p[1],
		fallback: NewCopy(),
		noSplice: map[int]bool{},
	}, nil
}

func (s *Splice) Transfer(src, dst int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.noSplice[src] {
		return s.fallback.Transfer(src, dst)
	}

	n, err := ignoringEINTR(func() (int, error) {
		n, err := unix.Splice(src, nil, s.wfd, nil, ChunkSize, spliceFlags)
		return int(n), err
	})
	if err == unix.EINVAL {
		s.noSplice[src] = true
		return s.fallback.Transfer(src, dst)
	}
	if err != nil {
		return 0, wrapErrno("splice", err)
	}
	if n == 0 {
		return 0, nil
	}

	if err := s.drain(dst, n); err != nil {
		return 0, err
	}
	return n, nil
}

// drain empties the intermediate pipe into dst.
func (s *Splice) drain(dst int, pending int) error {
	for pending > 0 {
		if s.noSplice[dst] {
			return s.drainCopy(dst, pending)
		}
		n, err := ignoringEINTR(func() (int, error) {
			m, err := unix.Splice(s.rfd, nil, dst, nil, pending, spliceFlags)
			return int(m), err
		})
		switch {
		case err == unix.EINVAL:
			s.noSplice[dst] = true
		case err == unix.EAGAIN:
			if err := waitWritable(dst); err != nil {
				return err
			}
		case err != nil:
			s.discard(pending)
			return wrapErrno("splice", err)
		default:
			pending -= n
		}
	}
	return nil
}

func (s *Splice) drainCopy(dst int, pending int) error {
	buf := s.fallback.buf[:]
	for pending > 0 {
		n, err := ignoringEINTR(func() (int, error) {
			return unix.Read(s.rfd, buf[:min(pending, len(buf))])
		})
		if err != nil {
			return wrapErrno("read", err)
		}
		if err := writeFull(dst, buf[:n]); err != nil {
			s.discard(pending - n)
			return err
		}
		pending -= n
	}
	return nil
}

// discard drops bytes that could not be delivered so the pipe is empty for
// the other direction.
func (s *Splice) discard(pending int) {
	var buf [ChunkSize]byte
	for pending > 0 {
		n, err := unix.Read(s.rfd, buf[:min(pending, len(buf))])
		if err != nil || n <= 0 {
			return
		}
		pending -= n
	}
}

func (s *Splice) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := unix.Close(s.wfd)
	if cerr := unix.Close(s.rfd); err == nil {
		err = cerr
	}
	return err
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
