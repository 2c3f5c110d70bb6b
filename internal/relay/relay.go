package relay

import (
	"errors"
	"fmt"
	"github.com/jsiebens/tether/internal/splice"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var ErrWait = errors.New("waiting for events failed")

type Options struct {
	// HalfClose shuts down the write side of the connection once local input ends.
	HalfClose bool
}

func DefaultOptions() Options {
	return Options{HalfClose: true}
}

// Relay copies local input to a connection and the connection to local
// output on a single goroutine, blocking in poll(2) between events.
type Relay struct {
	transfer splice.Transfer
	paths    [2]path
	fds      [2]unix.PollFd
	conn     int
	opts     Options
	poll     func(fds []unix.PollFd, timeout int) (int, error)
}

// New wires input -> conn and conn -> output. All descriptors must be in
// blocking mode.
func New(transfer splice.Transfer, input, output, conn int, opts Options) *Relay {
	r := &Relay{
		transfer: transfer,
		conn:     conn,
		opts:     opts,
		poll:     unix.Poll,
	}
	r.paths[Outbound] = path{src: input, dst: conn, active: true}
	r.paths[Inbound] = path{src: conn, dst: output, active: true}
	for _, d := range Directions {
		r.fds[d] = unix.PollFd{Fd: int32(r.paths[d].src), Events: unix.POLLIN}
	}
	return r
}

func (r *Relay) Active(d Direction) bool {
	return r.paths[d].active
}

// Run relays until both directions reached end of stream. It returns an
// error only for a failed wait or an event it cannot interpret.
func (r *Relay) Run() error {
	for r.paths[Outbound].active || r.paths[Inbound].active {
		if err := r.wait(); err != nil {
			return err
		}
		for _, d := range Directions {
			if err := r.service(d); err != nil {
				return err
			}
		}
	}
	logrus.Debug("Relay finished")
	return nil
}

func (r *Relay) wait() error {
	for {
		_, err := r.poll(r.fds[:], -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWait, err)
		}
		return nil
	}
}

func (r *Relay) service(d Direction) error {
	revents := r.fds[d].Revents
	r.fds[d].Revents = 0

	switch classify(revents) {
	case skip:
		return nil
	case fatal:
		return &EventError{Direction: d, Revents: revents}
	case disable:
		logrus.WithField("direction", d).WithField("revents", revents).Debug("Hang-up")
		r.disable(d)
		return nil
	}

	p := &r.paths[d]
	n, err := r.transfer.Transfer(p.src, p.dst)
	switch {
	case err != nil && splice.IsTemporary(err):
		logrus.WithField("direction", d).WithError(err).Trace("Spurious wake-up")
	case err != nil:
		logrus.WithField("direction", d).WithError(err).Debug("Transfer failed")
		r.disable(d)
	case n == 0:
		logrus.WithField("direction", d).Debug("EOF")
		r.disable(d)
	default:
		logrus.WithField("direction", d).WithField("bytes", n).Trace("Transferred")
	}
	return nil
}

func (r *Relay) disable(d Direction) {
	if !r.paths[d].disable() {
		return
	}
	// A negative descriptor is ignored by poll, so a lingering hang-up
	// cannot wake the loop again.
	r.fds[d] = unix.PollFd{Fd: -1}

	if d == Outbound && r.opts.HalfClose && r.paths[Inbound].active {
		if err := unix.Shutdown(r.conn, unix.SHUT_WR); err != nil {
			logrus.WithError(err).Debug("Unable to half-close connection")
		}
	}
}
