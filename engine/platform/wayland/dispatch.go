package wayland

import (
	"fmt"

	"github.com/spaghettifunk/vent/engine/core"
)

// dispatch applies one compositor event to the window state. It reports
// flowStop when the window should close after the current batch.
func (w *Window) dispatch(m Message) (flow, error) {
	kind, ok := w.objects[m.Object]
	if !ok {
		// events may still arrive for objects destroyed on our side
		core.LogDebug("dropping event %d for unknown object %d", m.Opcode, m.Object)
		return flowContinue, nil
	}

	d := m.Decoder()
	var (
		f   = flowContinue
		err error
	)
	switch kind {
	case kindDisplay:
		err = w.handleDisplay(m.Opcode, d)
	case kindRegistry:
		err = w.handleRegistry(m.Opcode, d)
	case kindCallback:
		if m.Opcode == evCallbackDone && m.Object == w.syncCallback {
			w.synced = true
		}
	case kindWmBase:
		err = w.handleWmBase(m.Opcode, d)
	case kindXdgSurface:
		err = w.handleXdgSurface(m.Opcode, d)
	case kindToplevel:
		f, err = w.handleToplevel(m.Opcode, d)
	case kindSeat:
		err = w.handleSeat(m.Opcode, d)
	case kindKeyboard:
		f, err = w.handleKeyboard(m.Opcode, d)
	case kindPointer:
		err = w.handlePointer(m.Opcode, d)
	case kindActivationToken:
		err = w.handleActivationToken(m.Object, m.Opcode, d)
	}
	if err != nil {
		return flowStop, fmt.Errorf("%s@%d event %d: %w", kind, m.Object, m.Opcode, err)
	}
	return f, nil
}

func (w *Window) handleDisplay(opcode uint16, d *Decoder) error {
	switch opcode {
	case evDisplayError:
		object, err := d.Uint32()
		if err != nil {
			return err
		}
		code, err := d.Uint32()
		if err != nil {
			return err
		}
		message, err := d.String()
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s@%d error %d: %s", core.ErrProtocol, w.objects[object], object, code, message)
	case evDisplayDeleteID:
		id, err := d.Uint32()
		if err != nil {
			return err
		}
		w.forget(id)
	}
	return nil
}

func (w *Window) handleRegistry(opcode uint16, d *Decoder) error {
	switch opcode {
	case evRegistryGlobal:
		name, err := d.Uint32()
		if err != nil {
			return err
		}
		iface, err := d.String()
		if err != nil {
			return err
		}
		version, err := d.Uint32()
		if err != nil {
			return err
		}
		// first global of each interface wins
		if _, ok := w.globals[iface]; !ok {
			w.globals[iface] = global{name: name, version: version}
		}
	case evRegistryGlobalRemove:
		name, err := d.Uint32()
		if err != nil {
			return err
		}
		for iface, g := range w.globals {
			if g.name == name {
				delete(w.globals, iface)
			}
		}
	}
	return nil
}

func (w *Window) handleWmBase(opcode uint16, d *Decoder) error {
	if opcode != evWmBasePing {
		return nil
	}
	serial, err := d.Uint32()
	if err != nil {
		return err
	}
	w.send(w.wmBase, opWmBasePong, func(e *Encoder) {
		e.Uint32(serial)
	})
	return nil
}

func (w *Window) handleXdgSurface(opcode uint16, d *Decoder) error {
	if opcode != evXdgSurfaceConfigure {
		return nil
	}
	serial, err := d.Uint32()
	if err != nil {
		return err
	}
	w.send(w.xdgSurface, opXdgSurfaceAckConfigure, func(e *Encoder) {
		e.Uint32(serial)
	})
	if w.phase < PhaseConfigured {
		w.phase = PhaseConfigured
		core.LogDebug("acknowledged first configure (serial %d)", serial)
	}

	switch {
	case w.pending != nil:
		return w.attach(w.pending)
	case w.attached != nil:
		w.send(w.surface, opSurfaceCommit, nil)
	}
	return w.err
}

func (w *Window) handleToplevel(opcode uint16, d *Decoder) (flow, error) {
	switch opcode {
	case evToplevelConfigure, evToplevelConfigureBounds:
		width, err := d.Int32()
		if err != nil {
			return flowStop, err
		}
		height, err := d.Int32()
		if err != nil {
			return flowStop, err
		}
		w.resize(width, height)
	case evToplevelClose:
		return w.requestClose(), nil
	}
	return flowContinue, nil
}

func (w *Window) handleSeat(opcode uint16, d *Decoder) error {
	if opcode != evSeatCapabilities {
		return nil
	}
	caps, err := d.Uint32()
	if err != nil {
		return err
	}
	if caps&seatCapabilityKeyboard != 0 && w.keyboard == 0 {
		w.keyboard = w.newObject(kindKeyboard, w.versions[w.seat])
		w.send(w.seat, opSeatGetKeyboard, func(e *Encoder) {
			e.NewID(w.keyboard)
		})
	}
	if caps&seatCapabilityPointer != 0 && w.pointer == 0 {
		w.pointer = w.newObject(kindPointer, w.versions[w.seat])
		w.send(w.seat, opSeatGetPointer, func(e *Encoder) {
			e.NewID(w.pointer)
		})
	}
	return nil
}

func (w *Window) handleKeyboard(opcode uint16, d *Decoder) (flow, error) {
	switch opcode {
	case evKeyboardKeymap:
		// keymaps are not interpreted; the fd still has to be released
		fd, ok := w.transport.TakeFD()
		if !ok {
			return flowStop, fmt.Errorf("%w: keymap event without a file descriptor", core.ErrProtocol)
		}
		closeFD(fd)
	case evKeyboardKey:
		var args [4]uint32
		for i := range args {
			v, err := d.Uint32()
			if err != nil {
				return flowStop, err
			}
			args[i] = v
		}
		key, state := args[2], elementState(args[3])
		w.queue(core.KeyChangedEvent(key, state))
		if w.attrs.CloseOnEscape && key == keyEscape && state == core.Pressed {
			return w.requestClose(), nil
		}
	}
	return flowContinue, nil
}

func (w *Window) handlePointer(opcode uint16, d *Decoder) error {
	switch opcode {
	case evPointerEnter, evPointerMotion:
		// serial and surface for enter, time for motion
		skip := 1
		if opcode == evPointerEnter {
			skip = 2
		}
		for i := 0; i < skip; i++ {
			if _, err := d.Uint32(); err != nil {
				return err
			}
		}
		x, err := d.Fixed()
		if err != nil {
			return err
		}
		y, err := d.Fixed()
		if err != nil {
			return err
		}
		w.queue(core.MouseMovedEvent(x, y))
	case evPointerButton:
		var args [4]uint32
		for i := range args {
			v, err := d.Uint32()
			if err != nil {
				return err
			}
			args[i] = v
		}
		w.queue(core.MouseButtonChangedEvent(args[2], elementState(args[3])))
	}
	return nil
}

func (w *Window) handleActivationToken(id uint32, opcode uint16, d *Decoder) error {
	if opcode != evActivationTokenDone {
		return nil
	}
	token, err := d.String()
	if err != nil {
		return err
	}
	if w.activation != 0 && w.surface != 0 {
		w.send(w.activation, opActivationActivate, func(e *Encoder) {
			e.String(token)
			e.Object(w.surface)
		})
	}
	w.send(id, opActivationTokenDestroy, nil)
	w.forget(id)
	if id == w.activationToken {
		w.activationToken = 0
	}
	return nil
}

func elementState(state uint32) core.ElementState {
	if state == keyStateReleased {
		return core.Released
	}
	return core.Pressed
}
