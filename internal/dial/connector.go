package dial

import (
	"context"
	"fmt"
	"github.com/sirupsen/logrus"
	"net"
	"strconv"
	"time"
)

type State int

const (
	Resolving State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "unknown"
}

// Reporter shows transient progress to the user.
type Reporter interface {
	Update(line string) error
}

type Resolver interface {
	Resolve(ctx context.Context, host string, port uint16) ([]*net.TCPAddr, error)
}

type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type Options struct {
	RetryInterval  time.Duration
	ConnectTimeout time.Duration
	Resolver       Resolver
	Dialer         Dialer
	Backoff        Backoff
}

func DefaultOptions() Options {
	return Options{
		RetryInterval:  time.Second,
		ConnectTimeout: time.Second,
	}
}

// Connector waits for a target to become reachable. Resolution and connect
// failures are never returned: they are shown on the status line and retried
// after the backoff, forever.
type Connector struct {
	status   Reporter
	resolver Resolver
	dialer   Dialer
	backoff  Backoff
	timeout  time.Duration
	state    State
}

func NewConnector(status Reporter, opts Options) *Connector {
	defaults := DefaultOptions()
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaults.RetryInterval
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaults.ConnectTimeout
	}
	if opts.Resolver == nil {
		opts.Resolver = &NetResolver{}
	}
	if opts.Dialer == nil {
		opts.Dialer = &net.Dialer{}
	}
	if opts.Backoff == nil {
		opts.Backoff = NewFixedBackoff(opts.RetryInterval)
	}
	return &Connector{
		status:   status,
		resolver: opts.Resolver,
		dialer:   opts.Dialer,
		backoff:  opts.Backoff,
		timeout:  opts.ConnectTimeout,
		state:    Resolving,
	}
}

func (c *Connector) State() State {
	return c.state
}

// Connect returns an established connection to host:port. The only errors
// it returns are context cancellation and failures to write the status line.
func (c *Connector) Connect(ctx context.Context, host string, port uint16) (net.Conn, error) {
	c.state = Resolving

	var addr *net.TCPAddr
	var conn net.Conn

	for c.state != Connected {
		switch c.state {
		case Resolving:
			a, err := c.resolve(ctx, host, port)
			if err != nil {
				return nil, err
			}
			addr = a
			c.state = Connecting
		case Connecting:
			cn, err := c.connect(ctx, addr)
			if err != nil {
				return nil, err
			}
			conn = cn
			c.state = Connected
		}
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(true); err != nil {
			logrus.WithField("addr", addr).WithError(err).Debug("Unable to disable Nagle")
		}
	}

	if err := c.status.Update(""); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Connector) resolve(ctx context.Context, host string, port uint16) (*net.TCPAddr, error) {
	if err := c.status.Update("DNS, ..."); err != nil {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		addrs, err := c.resolver.Resolve(ctx, host, port)
		if err == nil && len(addrs) == 0 {
			err = fmt.Errorf("no addresses for %s", host)
		}
		if err == nil {
			logrus.WithField("host", host).WithField("addr", addrs[0]).Debug("Resolved")
			return addrs[0], nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logrus.WithField("host", host).WithField("attempt", attempt).WithError(err).Debug("Resolve failed")
		if err := c.retry(ctx, "DNS", err); err != nil {
			return nil, err
		}
	}
}

func (c *Connector) connect(ctx context.Context, addr *net.TCPAddr) (net.Conn, error) {
	if err := c.status.Update("TCP, ..."); err != nil {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		conn, err := c.dial(ctx, addr)
		if err == nil {
			logrus.WithField("addr", addr).Debug("Connected")
			return conn, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logrus.WithField("addr", addr).WithField("attempt", attempt).WithError(err).Debug("Connect failed")
		if err := c.retry(ctx, "TCP", err); err != nil {
			return nil, err
		}
	}
}

func (c *Connector) dial(ctx context.Context, addr *net.TCPAddr) (net.Conn, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.dialer.DialContext(attemptCtx, "tcp", addr.String())
}

func (c *Connector) retry(ctx context.Context, phase string, cause error) error {
	if err := c.status.Update(fmt.Sprintf("%s, %v", phase, cause)); err != nil {
		return err
	}
	return c.backoff.Wait(ctx)
}

// NetResolver resolves through the system resolver.
type NetResolver struct {
	Resolver *net.Resolver
}

func (r *NetResolver) Resolve(ctx context.Context, host string, port uint16) ([]*net.TCPAddr, error) {
	resolver := r.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	ips, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	addrs := make([]*net.TCPAddr, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, &net.TCPAddr{IP: ip.IP, Port: int(port), Zone: ip.Zone})
	}
	return addrs, nil
}

// JoinHostPort formats host and port the way they are dialed.
func JoinHostPort(host string, port uint16) string {
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}
