package wayland

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vent/engine/core"
)

func TestEncoderLayout(t *testing.T) {
	e := NewEncoder(5, 3)
	e.String("abc")
	e.Uint32(9)
	b := e.Bytes()

	// header + (length + "abc\0") + uint
	require.Len(t, b, 8+8+4)
	assert.Equal(t, uint32(5), order.Uint32(b[0:]))
	assert.Equal(t, uint32(len(b))<<16|3, order.Uint32(b[4:]))
	assert.Equal(t, uint32(4), order.Uint32(b[8:]))
	assert.Equal(t, []byte("abc\x00"), b[12:16])
}

func TestStringAndArrayPadding(t *testing.T) {
	e := NewEncoder(1, 0)
	e.String("wl_compositor")
	e.String("")
	e.Array([]byte{1, 2, 3, 4, 5})
	e.Fixed(-3.5)
	e.Int32(-7)

	msgs, n, err := ParseMessages(e.Bytes())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, len(e.Bytes()), n)
	assert.Zero(t, len(e.Bytes())%4)

	d := msgs[0].Decoder()
	s, err := d.String()
	require.NoError(t, err)
	assert.Equal(t, "wl_compositor", s)
	empty, err := d.String()
	require.NoError(t, err)
	assert.Equal(t, "", empty)
	arr, err := d.Array()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, arr)
	fixed, err := d.Fixed()
	require.NoError(t, err)
	assert.Equal(t, -3.5, fixed)
	i, err := d.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(-7), i)
	assert.Zero(t, d.Remaining())
}

func TestParseMessagesKeepsPartialTail(t *testing.T) {
	first := NewEncoder(2, 0)
	first.Uint32(1)
	second := NewEncoder(3, 1)
	second.String("tail")

	stream := append(append([]byte{}, first.Bytes()...), second.Bytes()...)
	msgs, n, err := ParseMessages(stream[:len(stream)-3])
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, uint32(2), msgs[0].Object)
	assert.Equal(t, len(first.Bytes()), n)

	msgs, n, err = ParseMessages(stream)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, uint16(1), msgs[1].Opcode)
	assert.Equal(t, len(stream), n)
}

func TestParseMessagesRejectsBadSize(t *testing.T) {
	b := make([]byte, 8)
	order.PutUint32(b[0:], 1)
	order.PutUint32(b[4:], 6<<16)

	_, _, err := ParseMessages(b)
	assert.ErrorIs(t, err, core.ErrProtocol)
}

func TestDecoderErrors(t *testing.T) {
	_, err := NewDecoder([]byte{1, 2}).Uint32()
	assert.ErrorIs(t, err, core.ErrProtocol)

	// declares 16 bytes, carries 4
	e := NewEncoder(1, 0)
	e.Uint32(16)
	e.Uint32(0)
	_, err = NewDecoder(e.Bytes()[headerSize:]).Array()
	assert.ErrorIs(t, err, core.ErrProtocol)

	// missing terminator
	e = NewEncoder(1, 0)
	e.Array([]byte("abcd"))
	_, err = NewDecoder(e.Bytes()[headerSize:]).String()
	assert.ErrorIs(t, err, core.ErrProtocol)
}

func TestSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	t.Setenv("WAYLAND_DISPLAY", "")
	path, err := socketPath()
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/wayland-0", path)

	t.Setenv("WAYLAND_DISPLAY", "wayland-1")
	path, err = socketPath()
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/wayland-1", path)

	t.Setenv("WAYLAND_DISPLAY", "/tmp/compositor.sock")
	path, err = socketPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/compositor.sock", path)

	t.Setenv("WAYLAND_DISPLAY", "wayland-1")
	t.Setenv("XDG_RUNTIME_DIR", "")
	_, err = socketPath()
	assert.ErrorIs(t, err, core.ErrProtocol)
}
