package wayland

import (
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/math"
)

const (
	// Object id plus the size/opcode word.
	headerSize = 8
	// libwayland refuses anything larger.
	maxMessageSize = 4096
)

// The wire format uses the host byte order.
var order = binary.NativeEndian

// Message is a single request or event as it travels on the socket.
// File descriptors travel out of band and are claimed through Transport.TakeFD.
type Message struct {
	Object uint32
	Opcode uint16
	Args   []byte
}

func (m Message) Decoder() *Decoder {
	return NewDecoder(m.Args)
}

// Encoder builds one message. The header is written by Bytes.
type Encoder struct {
	object uint32
	opcode uint16
	buf    []byte
}

func NewEncoder(object uint32, opcode uint16) *Encoder {
	return &Encoder{
		object: object,
		opcode: opcode,
		buf:    make([]byte, headerSize, 64),
	}
}

func (e *Encoder) Uint32(v uint32) {
	e.buf = order.AppendUint32(e.buf, v)
}

func (e *Encoder) Int32(v int32) {
	e.Uint32(uint32(v))
}

// Fixed appends a signed 24.8 fixed point number.
func (e *Encoder) Fixed(v float64) {
	e.Int32(math.FloatToFixed(v))
}

// String appends a length-prefixed, NUL-terminated, 32-bit aligned string.
// The empty string is encoded as a null string.
func (e *Encoder) String(s string) {
	if s == "" {
		e.Uint32(0)
		return
	}
	e.Uint32(uint32(len(s) + 1))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
	e.pad()
}

func (e *Encoder) Array(b []byte) {
	e.Uint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
	e.pad()
}

// Object and NewID are plain ids on the wire; 0 is the null object.
func (e *Encoder) Object(id uint32) {
	e.Uint32(id)
}

func (e *Encoder) NewID(id uint32) {
	e.Uint32(id)
}

func (e *Encoder) pad() {
	for len(e.buf)%4 != 0 {
		e.buf = append(e.buf, 0)
	}
}

// Bytes patches the header and returns the encoded message.
func (e *Encoder) Bytes() []byte {
	order.PutUint32(e.buf[0:4], e.object)
	order.PutUint32(e.buf[4:8], uint32(len(e.buf))<<16|uint32(e.opcode))
	return e.buf
}

// Decoder reads the arguments of one message.
type Decoder struct {
	buf []byte
	pos int
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

func (d *Decoder) Uint32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, fmt.Errorf("%w: truncated argument at offset %d", core.ErrProtocol, d.pos)
	}
	v := order.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

func (d *Decoder) Fixed() (float64, error) {
	v, err := d.Int32()
	return math.FixedToFloat(v), err
}

func (d *Decoder) String() (string, error) {
	b, err := d.Array()
	if err != nil || len(b) == 0 {
		return "", err
	}
	if b[len(b)-1] != 0 {
		return "", fmt.Errorf("%w: string argument is not NUL terminated", core.ErrProtocol)
	}
	return string(b[:len(b)-1]), nil
}

func (d *Decoder) Array() ([]byte, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	padded := (int(n) + 3) &^ 3
	if padded < int(n) || d.pos+padded > len(d.buf) {
		return nil, fmt.Errorf("%w: array of %d bytes overruns message", core.ErrProtocol, n)
	}
	b := d.buf[d.pos : d.pos+int(n)]
	d.pos += padded
	return b, nil
}

// ParseMessages splits buf into complete messages. It returns the number of
// bytes consumed; a trailing partial message is left for the next read.
func ParseMessages(buf []byte) ([]Message, int, error) {
	var msgs []Message
	pos := 0
	for len(buf)-pos >= headerSize {
		object := order.Uint32(buf[pos:])
		word := order.Uint32(buf[pos+4:])
		size := int(word >> 16)
		if size < headerSize || size%4 != 0 {
			return msgs, pos, fmt.Errorf("%w: invalid message size %d for object %d", core.ErrProtocol, size, object)
		}
		if len(buf)-pos < size {
			break
		}
		args := make([]byte, size-headerSize)
		copy(args, buf[pos+headerSize:pos+size])
		msgs = append(msgs, Message{
			Object: object,
			Opcode: uint16(word),
			Args:   args,
		})
		pos += size
	}
	return msgs, pos, nil
}
