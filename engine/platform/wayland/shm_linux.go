//go:build linux

package wayland

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/spaghettifunk/vent/engine/core"
)

func closeFD(fd int) {
	unix.Close(fd)
}

// newShmFile creates an anonymous memfd of size bytes and maps it shared.
func newShmFile(size int) (int, []byte, error) {
	fd, err := unix.MemfdCreate("vent-shm", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return -1, nil, fmt.Errorf("%w: memfd_create: %w", core.ErrAllocation, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("%w: ftruncate: %w", core.ErrAllocation, err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("%w: mmap: %w", core.ErrAllocation, err)
	}
	return fd, data, nil
}

func releaseShmFile(fd int, data []byte) {
	if data != nil {
		unix.Munmap(data)
	}
	if fd >= 0 {
		unix.Close(fd)
	}
}
