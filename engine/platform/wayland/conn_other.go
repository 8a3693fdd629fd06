//go:build !linux

package wayland

import (
	"fmt"

	"github.com/spaghettifunk/vent/engine/core"
)

func Dial() (Transport, error) {
	return nil, fmt.Errorf("%w: the wayland backend requires linux", core.ErrProtocol)
}

func closeFD(fd int) {}

func newShmFile(size int) (int, []byte, error) {
	return -1, nil, fmt.Errorf("%w: shared memory buffers require linux", core.ErrProtocol)
}

func releaseShmFile(fd int, data []byte) {}
