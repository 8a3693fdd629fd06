package wayland

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/vent/engine/core"
)

// fakeRequest is a client request as the fake compositor saw it.
type fakeRequest struct {
	iface  string
	opcode uint16
	msg    Message
}

// fakeCompositor is an in-memory Transport that plays the compositor side of
// the protocol well enough to drive a Window through its phases.
type fakeCompositor struct {
	globals  []global
	ifaces   []string
	ids      map[string]uint32
	objects  map[uint32]string
	requests []fakeRequest

	queued  []byte
	fdsSent []int
	events  []Message
	fds     []int

	// sent after the first wl_surface.commit; zero disables it
	configureSerial uint32
	commits         int
	closeCount      int
	// waits of the reads that found nothing to return
	idleWaits []time.Duration
}

func newFakeCompositor(ifaces ...string) *fakeCompositor {
	if len(ifaces) == 0 {
		ifaces = []string{ifaceCompositor, ifaceShm, ifaceSeat, ifaceWmBase}
	}
	f := &fakeCompositor{
		ids:             map[string]uint32{"wl_display": displayID},
		objects:         map[uint32]string{displayID: "wl_display"},
		configureSerial: 7,
	}
	for i, iface := range ifaces {
		f.ifaces = append(f.ifaces, iface)
		f.globals = append(f.globals, global{name: uint32(i + 1), version: 6})
	}
	return f
}

func (f *fakeCompositor) WriteMessage(msg []byte, fds []int) error {
	if f.closeCount > 0 {
		return fmt.Errorf("%w: fake transport closed", core.ErrProtocol)
	}
	f.queued = append(f.queued, msg...)
	f.fdsSent = append(f.fdsSent, fds...)
	return nil
}

func (f *fakeCompositor) Flush() error {
	if f.closeCount > 0 {
		return fmt.Errorf("%w: fake transport closed", core.ErrProtocol)
	}
	msgs, n, err := ParseMessages(f.queued)
	if err != nil {
		return err
	}
	if n != len(f.queued) {
		return fmt.Errorf("%w: partial request flushed", core.ErrProtocol)
	}
	f.queued = nil
	for _, m := range msgs {
		f.requests = append(f.requests, fakeRequest{iface: f.objects[m.Object], opcode: m.Opcode, msg: m})
		f.handle(m)
	}
	return nil
}

func (f *fakeCompositor) ReadMessages(wait time.Duration) ([]Message, error) {
	if f.closeCount > 0 {
		return nil, fmt.Errorf("%w: fake transport closed", core.ErrProtocol)
	}
	if len(f.events) == 0 {
		if wait < 0 {
			return nil, fmt.Errorf("%w: fake compositor has nothing to send", core.ErrProtocol)
		}
		f.idleWaits = append(f.idleWaits, wait)
		return nil, nil
	}
	msgs := f.events
	f.events = nil
	return msgs, nil
}

func (f *fakeCompositor) TakeFD() (int, bool) {
	if len(f.fds) == 0 {
		return -1, false
	}
	fd := f.fds[0]
	f.fds = f.fds[1:]
	return fd, true
}

func (f *fakeCompositor) Close() error {
	f.closeCount++
	return nil
}

// send queues an event for the client.
func (f *fakeCompositor) send(iface string, opcode uint16, fill func(e *Encoder)) {
	e := NewEncoder(f.ids[iface], opcode)
	if fill != nil {
		fill(e)
	}
	msgs, _, err := ParseMessages(e.Bytes())
	if err != nil {
		panic(err)
	}
	f.events = append(f.events, msgs...)
}

func (f *fakeCompositor) created(iface string, id uint32) {
	f.ids[iface] = id
	f.objects[id] = iface
}

func (f *fakeCompositor) handle(m Message) {
	d := m.Decoder()
	iface := f.objects[m.Object]
	switch {
	case iface == "wl_display" && m.Opcode == opDisplayGetRegistry:
		id, _ := d.Uint32()
		f.created("wl_registry", id)
		for i, g := range f.globals {
			name, version, advertised := g.name, g.version, f.ifaces[i]
			f.send("wl_registry", evRegistryGlobal, func(e *Encoder) {
				e.Uint32(name)
				e.String(advertised)
				e.Uint32(version)
			})
		}
	case iface == "wl_display" && m.Opcode == opDisplaySync:
		id, _ := d.Uint32()
		f.created("wl_callback", id)
		f.send("wl_callback", evCallbackDone, func(e *Encoder) {
			e.Uint32(0)
		})
		f.send("wl_display", evDisplayDeleteID, func(e *Encoder) {
			e.Uint32(id)
		})
	case iface == "wl_registry" && m.Opcode == opRegistryBind:
		d.Uint32()
		bound, _ := d.String()
		d.Uint32()
		id, _ := d.Uint32()
		f.created(bound, id)
	case iface == ifaceCompositor && m.Opcode == opCompositorCreateSurface:
		id, _ := d.Uint32()
		f.created("wl_surface", id)
	case iface == ifaceWmBase && m.Opcode == opWmBaseGetXdgSurface:
		id, _ := d.Uint32()
		f.created("xdg_surface", id)
	case iface == "xdg_surface" && m.Opcode == opXdgSurfaceGetToplevel:
		id, _ := d.Uint32()
		f.created("xdg_toplevel", id)
	case iface == ifaceSeat && m.Opcode == opSeatGetKeyboard:
		id, _ := d.Uint32()
		f.created("wl_keyboard", id)
	case iface == ifaceSeat && m.Opcode == opSeatGetPointer:
		id, _ := d.Uint32()
		f.created("wl_pointer", id)
	case iface == ifaceShm && m.Opcode == opShmCreatePool:
		id, _ := d.Uint32()
		f.created("wl_shm_pool", id)
	case iface == "wl_shm_pool" && m.Opcode == opShmPoolCreateBuffer:
		id, _ := d.Uint32()
		f.created("wl_buffer", id)
	case iface == ifaceDecorationManager && m.Opcode == opDecorationManagerGetToplevelDecoration:
		id, _ := d.Uint32()
		f.created("zxdg_toplevel_decoration_v1", id)
	case iface == ifaceActivation && m.Opcode == opActivationGetActivationToken:
		id, _ := d.Uint32()
		f.created("xdg_activation_token_v1", id)
	case iface == "wl_surface" && m.Opcode == opSurfaceCommit:
		f.commits++
		if f.commits == 1 && f.configureSerial != 0 {
			serial := f.configureSerial
			f.send("xdg_surface", evXdgSurfaceConfigure, func(e *Encoder) {
				e.Uint32(serial)
			})
		}
	}
}

// find returns the requests sent to iface with opcode, in order.
func (f *fakeCompositor) find(iface string, opcode uint16) []fakeRequest {
	var out []fakeRequest
	for _, r := range f.requests {
		if r.iface == iface && r.opcode == opcode {
			out = append(out, r)
		}
	}
	return out
}

// indexOf returns the position of the first matching request, or -1.
func (f *fakeCompositor) indexOf(iface string, opcode uint16) int {
	for i, r := range f.requests {
		if r.iface == iface && r.opcode == opcode {
			return i
		}
	}
	return -1
}

func (f *fakeCompositor) acks() []uint32 {
	var serials []uint32
	for _, r := range f.find("xdg_surface", opXdgSurfaceAckConfigure) {
		serial, _ := r.msg.Decoder().Uint32()
		serials = append(serials, serial)
	}
	return serials
}

// recorder collects the events a Poll handler receives.
type recorder struct {
	events []core.WindowEvent
	// called on every Redraw with its ordinal, starting at 1
	onRedraw func(n int)
	redraws  int
}

func (r *recorder) handle(ev core.WindowEvent) {
	r.events = append(r.events, ev)
	if ev.Code == core.EVENT_CODE_REDRAW {
		r.redraws++
		if r.onRedraw != nil {
			r.onRedraw(r.redraws)
		}
	}
}

func (r *recorder) codes() []core.WindowEventCode {
	codes := make([]core.WindowEventCode, 0, len(r.events))
	for _, ev := range r.events {
		codes = append(codes, ev.Code)
	}
	return codes
}

func (r *recorder) count(code core.WindowEventCode) int {
	n := 0
	for _, ev := range r.events {
		if ev.Code == code {
			n++
		}
	}
	return n
}
