package splice

import (
	"golang.org/x/sys/unix"
)

// Copy is the user-space fallback: it reads one chunk into a fixed buffer
// and writes it out in full before returning.
type Copy struct {
	buf [ChunkSize]byte
}

func NewCopy() *Copy {
	return &Copy{}
}

func (c *Copy) Transfer(src, dst int) (int, error) {
	n, err := ignoringEINTR(func() (int, error) {
		return unix.Read(src, c.buf[:])
	})
	if err != nil {
		return 0, wrapErrno("read", err)
	}
	if n <= 0 {
		return 0, nil
	}
	if err := writeFull(dst, c.buf[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *Copy) Close() error {
	return nil
}

func writeFull(fd int, p []byte) error {
	for len(p) > 0 {
		n, err := ignoringEINTR(func() (int, error) {
			return unix.Write(fd, p)
		})
		if err == unix.EAGAIN {
			if err := waitWritable(fd); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return wrapErrno("write", err)
		}
		p = p[n:]
	}
	return nil
}

// waitWritable blocks until fd accepts more data. Destinations are normally
// blocking, but stdout may have been inherited in non-blocking mode.
func waitWritable(fd int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	_, err := ignoringEINTR(func() (int, error) {
		return unix.Poll(fds, -1)
	})
	if err != nil {
		return wrapErrno("poll", err)
	}
	return nil
}

func ignoringEINTR(fn func() (int, error)) (int, error) {
	for {
		n, err := fn()
		if err != unix.EINTR {
			return n, err
		}
	}
}
