package relay

import (
	"bytes"
	"github.com/jsiebens/tether/internal/splice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
	"io"
	"net"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

type harness struct {
	input  *os.File // test writes local input here
	output *os.File // test reads local output here
	sink   *os.File // write end of output, held by the relay
	remote net.Conn
	local  net.Conn
	conn   *os.File
	relay  *Relay
	done   chan error
}

func newHarness(t *testing.T, forceCopy bool, configure ...func(*Relay)) *harness {
	t.Helper()

	inR, inW, err := os.Pipe()
	require.NoError(t, err)
	outR, outW, err := os.Pipe()
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		accepted <- conn
	}()
	local, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	remote := <-accepted
	require.NotNil(t, remote)

	connFile, err := ConnFile(local)
	require.NoError(t, err)

	transfer, err := splice.New(forceCopy)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = inR.Close()
		_ = inW.Close()
		_ = outR.Close()
		_ = outW.Close()
		_ = remote.Close()
		_ = local.Close()
		_ = connFile.Close()
		_ = transfer.Close()
	})

	h := &harness{
		input:  inW,
		output: outR,
		sink:   outW,
		remote: remote,
		local:  local,
		conn:   connFile,
		relay:  New(transfer, int(inR.Fd()), int(outW.Fd()), int(connFile.Fd()), DefaultOptions()),
		done:   make(chan error, 1),
	}
	for _, fn := range configure {
		fn(h.relay)
	}
	go func() { h.done <- h.relay.Run() }()
	return h
}

func (h *harness) finished(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("relay did not finish")
	}
	return nil
}

func readAllAsync(r io.Reader) <-chan []byte {
	ch := make(chan []byte, 1)
	go func() {
		data, _ := io.ReadAll(r)
		ch <- data
	}()
	return ch
}

func payload(seed byte, size int) []byte {
	p := make([]byte, size)
	for i := range p {
		p[i] = seed + byte(i%251)
	}
	return p
}

// closeConn drops the local side of the connection, as teardown does once
// the relay returned.
func (h *harness) closeConn() {
	_ = h.conn.Close()
	_ = h.local.Close()
}

// closeOutput releases the local output so pending reads see EOF.
func (h *harness) closeOutput() {
	_ = h.sink.Close()
}

func TestRelayBidirectional(t *testing.T) {
	for name, forceCopy := range map[string]bool{"splice": false, "copy": true} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, forceCopy)

			up := payload(1, 200*1024)
			down := payload(7, 150*1024)

			received := readAllAsync(h.remote)
			delivered := readAllAsync(h.output)

			go func() {
				_, _ = h.input.Write(up)
				_ = h.input.Close()
			}()
			go func() {
				_, _ = h.remote.Write(down)
				_ = h.remote.(*net.TCPConn).CloseWrite()
			}()

			require.NoError(t, h.finished(t))
			assert.False(t, h.relay.Active(Outbound))
			assert.False(t, h.relay.Active(Inbound))

			h.closeConn()
			assert.True(t, bytes.Equal(up, <-received), "local input must arrive remotely in order")
			h.closeOutput()
			assert.True(t, bytes.Equal(down, <-delivered), "remote data must arrive locally in order")
		})
	}
}

func TestRelayLocalEOFKeepsInboundOpen(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.input.Write([]byte("request"))
	require.NoError(t, err)
	require.NoError(t, h.input.Close())

	// Half-close makes the remote side see EOF after the request.
	data, err := io.ReadAll(h.remote)
	require.NoError(t, err)
	assert.Equal(t, "request", string(data))

	_, err = h.remote.Write([]byte("late reply"))
	require.NoError(t, err)

	buf := make([]byte, len("late reply"))
	_, err = io.ReadFull(h.output, buf)
	require.NoError(t, err)
	assert.Equal(t, "late reply", string(buf))

	select {
	case err := <-h.done:
		t.Fatalf("relay stopped while inbound was active: %v", err)
	default:
	}

	require.NoError(t, h.remote.Close())
	assert.NoError(t, h.finished(t))
	assert.False(t, h.relay.Active(Outbound))
}

func TestRelayRemoteEOFKeepsOutboundOpen(t *testing.T) {
	h := newHarness(t, false)

	require.NoError(t, h.remote.(*net.TCPConn).CloseWrite())

	_, err := h.input.Write([]byte("still flowing"))
	require.NoError(t, err)

	buf := make([]byte, len("still flowing"))
	_, err = io.ReadFull(h.remote, buf)
	require.NoError(t, err)
	assert.Equal(t, "still flowing", string(buf))

	require.NoError(t, h.input.Close())
	assert.NoError(t, h.finished(t))
}

func TestRelayLargeChunkDoesNotStarveOtherDirection(t *testing.T) {
	h := newHarness(t, false)

	big := payload(3, 64*splice.ChunkSize)
	received := readAllAsync(h.remote)
	written := make(chan struct{})
	go func() {
		_, _ = h.input.Write(big)
		close(written)
	}()

	_, err := h.remote.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(h.output, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	<-written
	require.NoError(t, h.input.Close())
	assert.True(t, bytes.Equal(big, <-received))
	require.NoError(t, h.remote.Close())
	assert.NoError(t, h.finished(t))
}

func TestRelayBlocksAfterHangUp(t *testing.T) {
	var wakeups int64
	h := newHarness(t, false, func(r *Relay) {
		r.poll = func(fds []unix.PollFd, timeout int) (int, error) {
			n, err := unix.Poll(fds, timeout)
			atomic.AddInt64(&wakeups, 1)
			return n, err
		}
	})

	// Closing the writer without data leaves a bare POLLHUP on local input.
	require.NoError(t, h.input.Close())
	data, err := io.ReadAll(h.remote)
	require.NoError(t, err)
	assert.Empty(t, data)

	settled := atomic.LoadInt64(&wakeups)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, settled, atomic.LoadInt64(&wakeups), "relay must stay in poll while nothing happens")

	_, err = h.remote.Write([]byte("wake"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(h.output, buf)
	require.NoError(t, err)
	assert.Equal(t, "wake", string(buf))

	require.NoError(t, h.remote.Close())
	require.NoError(t, h.finished(t))
	assert.LessOrEqual(t, atomic.LoadInt64(&wakeups), settled+2)
}

func TestRelayInvalidDescriptorIsFatal(t *testing.T) {
	outR, outW, err := os.Pipe()
	require.NoError(t, err)
	defer outR.Close()
	defer outW.Close()

	r := New(splice.NewCopy(), 1<<20, int(outW.Fd()), 1<<20+1, DefaultOptions())
	err = r.Run()
	require.Error(t, err)

	var ee *EventError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, Outbound, ee.Direction)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		revents int16
		want    action
	}{
		{"none", 0, skip},
		{"readable", unix.POLLIN, transfer},
		{"readable with hang-up", unix.POLLIN | unix.POLLHUP, transfer},
		{"hang-up", unix.POLLHUP, disable},
		{"error", unix.POLLERR, disable},
		{"error with hang-up", unix.POLLERR | unix.POLLHUP, disable},
		{"invalid", unix.POLLNVAL, fatal},
		{"invalid with readable", unix.POLLNVAL | unix.POLLIN, fatal},
		{"priority only", unix.POLLPRI, fatal},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, classify(c.revents))
		})
	}
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "local->remote", Outbound.String())
	assert.Equal(t, "remote->local", Inbound.String())
}
