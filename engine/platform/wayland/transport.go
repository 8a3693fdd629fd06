package wayland

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spaghettifunk/vent/engine/core"
)

const defaultDisplay = "wayland-0"

// Waits passed to ReadMessages.
const (
	waitForever time.Duration = -1
	noWait      time.Duration = 0
)

// Transport moves encoded messages and file descriptors between the client
// and the compositor.
type Transport interface {
	// WriteMessage queues msg; fds are sent alongside it on the next Flush.
	WriteMessage(msg []byte, fds []int) error
	Flush() error
	// ReadMessages returns the complete messages received so far. When none
	// are available it waits up to wait for some and then returns an empty
	// slice. A negative wait blocks until a message arrives, zero never waits.
	ReadMessages(wait time.Duration) ([]Message, error)
	// TakeFD pops the oldest file descriptor received with the messages.
	TakeFD() (int, bool)
	Close() error
}

// socketPath resolves the compositor socket from WAYLAND_DISPLAY and
// XDG_RUNTIME_DIR. An absolute WAYLAND_DISPLAY is used as is.
func socketPath() (string, error) {
	display := os.Getenv("WAYLAND_DISPLAY")
	if display == "" {
		display = defaultDisplay
	}
	if filepath.IsAbs(display) {
		return display, nil
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return "", fmt.Errorf("%w: XDG_RUNTIME_DIR is not set", core.ErrProtocol)
	}
	return filepath.Join(runtimeDir, display), nil
}
