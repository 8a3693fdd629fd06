package wayland

import (
	"fmt"

	"github.com/spaghettifunk/vent/engine/core"
)

const bytesPerPixel = 4

// ShmBuffer is an XRGB8888 wl_buffer backed by a memfd shared with the
// compositor.
type ShmBuffer struct {
	window *Window
	id     uint32
	pool   uint32
	fd     int
	data   []byte

	Width  uint32
	Height uint32
	Stride uint32
}

// NewShmBuffer allocates a width x height buffer from the compositor's wl_shm.
func (w *Window) NewShmBuffer(width, height uint32) (*ShmBuffer, error) {
	if w.phase == PhaseClosed {
		return nil, fmt.Errorf("%w: window is closed", core.ErrProtocol)
	}
	if w.shm == 0 {
		return nil, fmt.Errorf("%w: compositor does not advertise %s", core.ErrProtocol, ifaceShm)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: empty %dx%d buffer", core.ErrAllocation, width, height)
	}

	stride := width * bytesPerPixel
	size := int(stride * height)
	fd, data, err := newShmFile(size)
	if err != nil {
		return nil, err
	}

	buf := &ShmBuffer{
		window: w,
		fd:     fd,
		data:   data,
		Width:  width,
		Height: height,
		Stride: stride,
	}
	buf.pool = w.newObject(kindShmPool, 1)
	w.send(w.shm, opShmCreatePool, func(e *Encoder) {
		e.NewID(buf.pool)
		e.Int32(int32(size))
	}, fd)
	buf.id = w.newObject(kindBuffer, 1)
	w.send(buf.pool, opShmPoolCreateBuffer, func(e *Encoder) {
		e.NewID(buf.id)
		e.Int32(0)
		e.Int32(int32(width))
		e.Int32(int32(height))
		e.Int32(int32(stride))
		e.Uint32(shmFormatXRGB8888)
	})
	if w.err != nil {
		releaseShmFile(fd, data)
		return nil, w.err
	}
	return buf, nil
}

// Pixels exposes the mapped memory, Stride bytes per row.
func (b *ShmBuffer) Pixels() []byte {
	return b.data
}

// Fill paints every pixel with one colour.
func (b *ShmBuffer) Fill(r, g, bl uint8) {
	for i := 0; i+bytesPerPixel <= len(b.data); i += bytesPerPixel {
		// little endian XRGB
		b.data[i] = bl
		b.data[i+1] = g
		b.data[i+2] = r
		b.data[i+3] = 0xff
	}
}

// Destroy releases the wl_buffer and its memory. It is safe to call twice.
func (b *ShmBuffer) Destroy() {
	if b.data == nil && b.fd < 0 {
		return
	}
	w := b.window
	if w.phase != PhaseClosed {
		w.send(b.id, opBufferDestroy, nil)
		w.send(b.pool, opShmPoolDestroy, nil)
		w.forget(b.id)
		w.forget(b.pool)
		if w.pending == b {
			w.pending = nil
		}
		if w.attached == b {
			w.attached = nil
		}
	}
	releaseShmFile(b.fd, b.data)
	b.fd = -1
	b.data = nil
}
