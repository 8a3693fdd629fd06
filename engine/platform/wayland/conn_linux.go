//go:build linux

package wayland

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/spaghettifunk/vent/engine/containers"
	"github.com/spaghettifunk/vent/engine/core"
)

const (
	readBufferSize = 4096
	// libwayland never sends more than this many fds per message batch.
	maxFDsPerRead = 28
)

type socketTransport struct {
	fd     int
	out    []byte
	outFDs []int
	in     []byte
	inFDs  *containers.RingQueue[int]
	closed bool
}

// Dial connects to the compositor. A socket inherited through WAYLAND_SOCKET
// wins over the WAYLAND_DISPLAY path.
func Dial() (Transport, error) {
	if s := os.Getenv("WAYLAND_SOCKET"); s != "" {
		fd, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid WAYLAND_SOCKET %q", core.ErrProtocol, s)
		}
		os.Unsetenv("WAYLAND_SOCKET")
		unix.CloseOnExec(fd)
		return newSocketTransport(fd), nil
	}

	path, err := socketPath()
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: socket: %w", core.ErrProtocol, err)
	}
	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: connecting to %s: %w", core.ErrProtocol, path, err)
	}
	core.LogDebug("connected to wayland compositor at %s", path)
	return newSocketTransport(fd), nil
}

func newSocketTransport(fd int) *socketTransport {
	return &socketTransport{
		fd:    fd,
		inFDs: containers.NewRingQueue[int](4),
	}
}

func (t *socketTransport) WriteMessage(msg []byte, fds []int) error {
	if t.closed {
		return fmt.Errorf("%w: transport closed", core.ErrProtocol)
	}
	if len(msg) > maxMessageSize {
		return fmt.Errorf("%w: message of %d bytes exceeds %d", core.ErrProtocol, len(msg), maxMessageSize)
	}
	t.out = append(t.out, msg...)
	t.outFDs = append(t.outFDs, fds...)
	return nil
}

func (t *socketTransport) Flush() error {
	if t.closed {
		return fmt.Errorf("%w: transport closed", core.ErrProtocol)
	}
	var oob []byte
	if len(t.outFDs) > 0 {
		oob = unix.UnixRights(t.outFDs...)
	}
	for len(t.out) > 0 {
		n, err := unix.SendmsgN(t.fd, t.out, oob, nil, unix.MSG_NOSIGNAL)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: write: %w", core.ErrProtocol, err)
		}
		t.out = t.out[n:]
		// fds go out with the first chunk only
		oob = nil
	}
	t.out = t.out[:0]
	t.outFDs = t.outFDs[:0]
	return nil
}

func (t *socketTransport) ReadMessages(wait time.Duration) ([]Message, error) {
	if t.closed {
		return nil, fmt.Errorf("%w: transport closed", core.ErrProtocol)
	}
	for {
		msgs, n, err := ParseMessages(t.in)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			t.in = append([]byte(nil), t.in[n:]...)
		}
		if len(msgs) > 0 {
			return msgs, nil
		}
		if wait >= 0 {
			ready, err := t.readable(wait)
			if err != nil || !ready {
				return nil, err
			}
		}
		if err := t.recv(); err != nil {
			return nil, err
		}
	}
}

// readable waits up to wait, rounded up to the millisecond, for the socket to
// have data.
func (t *socketTransport) readable(wait time.Duration) (bool, error) {
	timeout := int((wait + time.Millisecond - 1) / time.Millisecond)
	fds := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, timeout)
	if errors.Is(err, unix.EINTR) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: poll: %w", core.ErrProtocol, err)
	}
	return n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0, nil
}

func (t *socketTransport) recv() error {
	buf := make([]byte, readBufferSize)
	oob := make([]byte, unix.CmsgSpace(maxFDsPerRead*4))
	for {
		n, oobn, _, _, err := unix.Recvmsg(t.fd, buf, oob, unix.MSG_CMSG_CLOEXEC)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: read: %w", core.ErrProtocol, err)
		}
		if oobn > 0 {
			if err := t.collectFDs(oob[:oobn]); err != nil {
				return err
			}
		}
		if n == 0 {
			return fmt.Errorf("%w: compositor closed the connection", core.ErrProtocol)
		}
		t.in = append(t.in, buf[:n]...)
		return nil
	}
}

func (t *socketTransport) collectFDs(oob []byte) error {
	scms, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return fmt.Errorf("%w: control message: %w", core.ErrProtocol, err)
	}
	for i := range scms {
		fds, err := unix.ParseUnixRights(&scms[i])
		if err != nil {
			continue
		}
		for _, fd := range fds {
			t.inFDs.Enqueue(fd)
		}
	}
	return nil
}

func (t *socketTransport) TakeFD() (int, bool) {
	fd, err := t.inFDs.Dequeue()
	if err != nil {
		return -1, false
	}
	return fd, true
}

func (t *socketTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	for _, fd := range t.inFDs.Drain() {
		unix.Close(fd)
	}
	return unix.Close(t.fd)
}
