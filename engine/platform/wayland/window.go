package wayland

import (
	"fmt"
	"strings"
	"time"

	"github.com/spaghettifunk/vent/engine/containers"
	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/math"
)

// Phase is the lifecycle state of a Window. Phases only move forward.
type Phase uint8

const (
	PhaseConnecting Phase = iota
	PhaseBinding
	PhaseSurfaceCreated
	PhaseAwaitingConfigure
	PhaseConfigured
	PhaseRunning
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "Connecting"
	case PhaseBinding:
		return "Binding"
	case PhaseSurfaceCreated:
		return "SurfaceCreated"
	case PhaseAwaitingConfigure:
		return "AwaitingConfigure"
	case PhaseConfigured:
		return "Configured"
	case PhaseRunning:
		return "Running"
	case PhaseClosed:
		return "Closed"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

type WindowMode uint8

const (
	ModeWindowed WindowMode = iota
	ModeFullScreen
	ModeMaximized
	ModeMinimized
)

// ParseWindowMode maps a configuration string to a WindowMode. Unknown values
// fall back to ModeWindowed.
func ParseWindowMode(s string) WindowMode {
	switch strings.ToLower(s) {
	case "fullscreen", "full_screen":
		return ModeFullScreen
	case "maximized":
		return ModeMaximized
	case "minimized":
		return ModeMinimized
	}
	return ModeWindowed
}

// Size is a window size constraint. A zero dimension is unconstrained.
type Size struct {
	Width  uint32
	Height uint32
}

type Attributes struct {
	Title         string
	AppID         string
	Width         uint32
	Height        uint32
	Mode          WindowMode
	MinSize       *Size
	MaxSize       *Size
	CloseOnEscape bool
	// Called after the surface is created and before its first commit. A
	// buffer set here is attached once the first configure is acknowledged.
	OnSurfaceCreated func(w *Window) error
}

// How long an idle Poll iteration waits for the compositor before the next
// Redraw.
const defaultFrameWait = 16 * time.Millisecond

type global struct {
	name    uint32
	version uint32
}

type flow uint8

const (
	flowContinue flow = iota
	flowStop
)

// Window is a single xdg toplevel on a Wayland compositor.
// It is not safe for concurrent use; Poll owns it while running.
type Window struct {
	transport Transport
	attrs     Attributes
	phase     Phase
	width     uint32
	height    uint32

	nextID   uint32
	objects  map[uint32]objectKind
	versions map[uint32]uint32
	globals  map[string]global

	registry          uint32
	compositor        uint32
	shm               uint32
	seat              uint32
	wmBase            uint32
	decorationManager uint32
	activation        uint32

	surface         uint32
	xdgSurface      uint32
	toplevel        uint32
	decoration      uint32
	activationToken uint32
	keyboard        uint32
	pointer         uint32

	syncCallback uint32
	synced       bool

	pending  *ShmBuffer
	attached *ShmBuffer

	events      *containers.RingQueue[core.WindowEvent]
	closeQueued bool
	frameWait   time.Duration
	// first failed write; later requests are dropped
	err error
}

// New connects to the compositor named by the environment and opens a window.
func New(attrs Attributes) (*Window, error) {
	t, err := Dial()
	if err != nil {
		return nil, err
	}
	return NewWithTransport(t, attrs)
}

// NewWithTransport opens a window over t. It returns once the compositor has
// sent the first configure; on failure t is closed.
func NewWithTransport(t Transport, attrs Attributes) (*Window, error) {
	w := &Window{
		transport: t,
		attrs:     attrs,
		phase:     PhaseConnecting,
		width:     attrs.Width,
		height:    attrs.Height,
		nextID:    displayID + 1,
		objects:   map[uint32]objectKind{displayID: kindDisplay},
		versions:  map[uint32]uint32{displayID: 1},
		globals:   make(map[string]global),
		events:    containers.NewRingQueue[core.WindowEvent](16),
		frameWait: defaultFrameWait,
	}
	if err := w.bootstrap(); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (w *Window) Phase() Phase {
	return w.phase
}

func (w *Window) Width() uint32 {
	return w.width
}

func (w *Window) Height() uint32 {
	return w.height
}

func (w *Window) bootstrap() error {
	w.phase = PhaseBinding
	w.registry = w.newObject(kindRegistry, 1)
	w.send(displayID, opDisplayGetRegistry, func(e *Encoder) {
		e.NewID(w.registry)
	})
	if err := w.roundtrip(); err != nil {
		return err
	}
	if err := w.bindGlobals(); err != nil {
		return err
	}

	w.phase = PhaseSurfaceCreated
	w.createSurface()
	if w.attrs.OnSurfaceCreated != nil {
		if err := w.attrs.OnSurfaceCreated(w); err != nil {
			return err
		}
	}

	w.phase = PhaseAwaitingConfigure
	w.requestActivation()
	w.send(w.surface, opSurfaceCommit, nil)
	if err := w.flush(); err != nil {
		return err
	}
	for w.phase == PhaseAwaitingConfigure {
		if _, err := w.readAndDispatch(waitForever); err != nil {
			return err
		}
	}
	core.LogInfo("wayland window %q configured at %dx%d", w.attrs.Title, w.width, w.height)
	return w.flush()
}

func (w *Window) roundtrip() error {
	w.syncCallback = w.newObject(kindCallback, 1)
	w.synced = false
	w.send(displayID, opDisplaySync, func(e *Encoder) {
		e.NewID(w.syncCallback)
	})
	if err := w.flush(); err != nil {
		return err
	}
	for !w.synced {
		if _, err := w.readAndDispatch(waitForever); err != nil {
			return err
		}
	}
	return nil
}

func (w *Window) bindGlobals() error {
	for _, iface := range []string{ifaceCompositor, ifaceWmBase, ifaceSeat} {
		if _, ok := w.globals[iface]; !ok {
			return fmt.Errorf("%w: compositor does not advertise %s", core.ErrProtocol, iface)
		}
	}
	w.compositor = w.bind(ifaceCompositor, kindCompositor)
	w.wmBase = w.bind(ifaceWmBase, kindWmBase)
	w.seat = w.bind(ifaceSeat, kindSeat)

	if _, ok := w.globals[ifaceShm]; ok {
		w.shm = w.bind(ifaceShm, kindShm)
	}
	if _, ok := w.globals[ifaceDecorationManager]; ok {
		w.decorationManager = w.bind(ifaceDecorationManager, kindDecorationManager)
	}
	if _, ok := w.globals[ifaceActivation]; ok {
		w.activation = w.bind(ifaceActivation, kindActivation)
	}
	return nil
}

func (w *Window) bind(iface string, kind objectKind) uint32 {
	g := w.globals[iface]
	version := min(g.version, supportedVersions[iface])
	id := w.newObject(kind, version)
	w.send(w.registry, opRegistryBind, func(e *Encoder) {
		e.Uint32(g.name)
		e.String(iface)
		e.Uint32(version)
		e.NewID(id)
	})
	core.LogDebug("bound %s v%d as object %d", iface, version, id)
	return id
}

func (w *Window) createSurface() {
	w.surface = w.newObject(kindSurface, w.versions[w.compositor])
	w.send(w.compositor, opCompositorCreateSurface, func(e *Encoder) {
		e.NewID(w.surface)
	})

	w.xdgSurface = w.newObject(kindXdgSurface, w.versions[w.wmBase])
	w.send(w.wmBase, opWmBaseGetXdgSurface, func(e *Encoder) {
		e.NewID(w.xdgSurface)
		e.Object(w.surface)
	})
	w.toplevel = w.newObject(kindToplevel, w.versions[w.wmBase])
	w.send(w.xdgSurface, opXdgSurfaceGetToplevel, func(e *Encoder) {
		e.NewID(w.toplevel)
	})
	w.send(w.toplevel, opToplevelSetTitle, func(e *Encoder) {
		e.String(w.attrs.Title)
	})
	w.send(w.toplevel, opToplevelSetAppID, func(e *Encoder) {
		e.String(w.attrs.AppID)
	})

	switch w.attrs.Mode {
	case ModeFullScreen:
		w.send(w.toplevel, opToplevelSetFullscreen, func(e *Encoder) {
			e.Object(0)
		})
	case ModeMaximized:
		w.send(w.toplevel, opToplevelSetMaximized, nil)
	case ModeMinimized:
		w.send(w.toplevel, opToplevelSetMinimized, nil)
	}
	if s := w.attrs.MaxSize; s != nil {
		w.send(w.toplevel, opToplevelSetMaxSize, func(e *Encoder) {
			e.Int32(int32(s.Width))
			e.Int32(int32(s.Height))
		})
	}
	if s := w.attrs.MinSize; s != nil {
		w.send(w.toplevel, opToplevelSetMinSize, func(e *Encoder) {
			e.Int32(int32(s.Width))
			e.Int32(int32(s.Height))
		})
	}

	// let the compositor draw the title bar when it can
	if w.decorationManager != 0 {
		w.decoration = w.newObject(kindToplevelDecoration, 1)
		w.send(w.decorationManager, opDecorationManagerGetToplevelDecoration, func(e *Encoder) {
			e.NewID(w.decoration)
			e.Object(w.toplevel)
		})
		w.send(w.decoration, opToplevelDecorationSetMode, func(e *Encoder) {
			e.Uint32(decorationModeServerSide)
		})
	}
}

func (w *Window) requestActivation() {
	if w.activation == 0 {
		return
	}
	w.activationToken = w.newObject(kindActivationToken, 1)
	w.send(w.activation, opActivationGetActivationToken, func(e *Encoder) {
		e.NewID(w.activationToken)
	})
	w.send(w.activationToken, opActivationTokenSetAppID, func(e *Encoder) {
		e.String(w.attrs.AppID)
	})
	w.send(w.activationToken, opActivationTokenSetSurface, func(e *Encoder) {
		e.Object(w.surface)
	})
	w.send(w.activationToken, opActivationTokenCommit, nil)
}

func (w *Window) newObject(kind objectKind, version uint32) uint32 {
	id := w.nextID
	w.nextID++
	w.objects[id] = kind
	w.versions[id] = version
	return id
}

func (w *Window) forget(id uint32) {
	delete(w.objects, id)
	delete(w.versions, id)
}

func (w *Window) send(object uint32, opcode uint16, fill func(e *Encoder), fds ...int) {
	if w.err != nil {
		return
	}
	e := NewEncoder(object, opcode)
	if fill != nil {
		fill(e)
	}
	w.err = w.transport.WriteMessage(e.Bytes(), fds)
}

func (w *Window) flush() error {
	if w.err != nil {
		return w.err
	}
	return w.transport.Flush()
}

func (w *Window) readAndDispatch(wait time.Duration) (flow, error) {
	msgs, err := w.transport.ReadMessages(wait)
	if err != nil {
		return flowStop, err
	}
	result := flowContinue
	for _, m := range msgs {
		f, err := w.dispatch(m)
		if err != nil {
			return flowStop, err
		}
		if f == flowStop {
			result = flowStop
		}
	}
	return result, nil
}

// SetBuffer presents buf. Before the first configure it is kept pending and
// attached right after the acknowledgement.
func (w *Window) SetBuffer(buf *ShmBuffer) error {
	if w.phase == PhaseClosed {
		return fmt.Errorf("%w: window is closed", core.ErrProtocol)
	}
	if w.phase < PhaseConfigured {
		w.pending = buf
		return nil
	}
	return w.attach(buf)
}

func (w *Window) attach(buf *ShmBuffer) error {
	if w.phase == PhaseClosed {
		return fmt.Errorf("%w: window is closed", core.ErrProtocol)
	}
	if w.phase < PhaseConfigured {
		return fmt.Errorf("%w: attach in phase %s", core.ErrNotConfigured, w.phase)
	}
	w.send(w.surface, opSurfaceAttach, func(e *Encoder) {
		e.Object(buf.id)
		e.Int32(0)
		e.Int32(0)
	})
	w.send(w.surface, opSurfaceDamage, func(e *Encoder) {
		e.Int32(0)
		e.Int32(0)
		e.Int32(int32(buf.Width))
		e.Int32(int32(buf.Height))
	})
	w.send(w.surface, opSurfaceCommit, nil)
	w.attached = buf
	w.pending = nil
	return w.err
}

func (w *Window) queue(ev core.WindowEvent) {
	w.events.Enqueue(ev)
}

// requestClose queues the single Close event of this window.
func (w *Window) requestClose() flow {
	if !w.closeQueued {
		w.closeQueued = true
		w.queue(core.CloseEvent())
	}
	return flowStop
}

// resize applies a compositor suggested size after clamping it to the
// configured limits. Zero means the client decides.
func (w *Window) resize(width, height int32) {
	if width <= 0 || height <= 0 {
		return
	}
	var minSize, maxSize Size
	if w.attrs.MinSize != nil {
		minSize = *w.attrs.MinSize
	}
	if w.attrs.MaxSize != nil {
		maxSize = *w.attrs.MaxSize
	}
	newWidth := math.ClampOptional(uint32(width), minSize.Width, maxSize.Width)
	newHeight := math.ClampOptional(uint32(height), minSize.Height, maxSize.Height)
	if newWidth == w.width && newHeight == w.height {
		return
	}
	w.width, w.height = newWidth, newHeight
	w.queue(core.ResizedEvent(newWidth, newHeight))
}

// Poll runs the event loop until the window closes. Every iteration flushes
// outgoing requests, dispatches what the compositor sent, hands the resulting
// events to handler in arrival order and ends with one Redraw. When nothing
// has arrived an iteration waits up to one frame for the compositor, so an
// idle window redraws at most once per frame.
//
// A protocol error closes the window and is returned. A panic in handler
// closes the window before it propagates.
func (w *Window) Poll(handler func(event core.WindowEvent)) error {
	if w.phase == PhaseClosed {
		return nil
	}
	w.phase = PhaseRunning
	defer func() {
		if r := recover(); r != nil {
			w.Close()
			panic(r)
		}
	}()

	for {
		if err := w.flush(); err != nil {
			return w.fail(err)
		}
		f, err := w.readAndDispatch(w.frameWait)
		if err != nil {
			return w.fail(err)
		}
		for _, ev := range w.events.Drain() {
			handler(ev)
		}
		if f == flowStop || w.closeQueued {
			return w.Close()
		}
		if w.phase == PhaseClosed {
			return nil
		}
		handler(core.RedrawEvent())
		if w.phase == PhaseClosed {
			return nil
		}
	}
}

func (w *Window) fail(err error) error {
	core.LogError("wayland window: %s", err)
	w.Close()
	return err
}

// Close destroys the protocol objects and closes the connection. Calling it
// again is a no-op.
func (w *Window) Close() error {
	if w.phase == PhaseClosed {
		return nil
	}
	w.phase = PhaseClosed

	destroy := func(id *uint32, opcode uint16) {
		if *id != 0 {
			w.send(*id, opcode, nil)
			w.forget(*id)
			*id = 0
		}
	}
	release := func(id *uint32, opcode uint16, since uint32) {
		if *id != 0 && w.versions[*id] >= since {
			w.send(*id, opcode, nil)
		}
		w.forget(*id)
		*id = 0
	}

	destroy(&w.activationToken, opActivationTokenDestroy)
	destroy(&w.decoration, opToplevelDecorationDestroy)
	destroy(&w.toplevel, opToplevelDestroy)
	destroy(&w.xdgSurface, opXdgSurfaceDestroy)
	destroy(&w.surface, opSurfaceDestroy)
	release(&w.keyboard, opKeyboardRelease, deviceReleaseSince)
	release(&w.pointer, opPointerRelease, deviceReleaseSince)
	release(&w.seat, opSeatRelease, seatReleaseSince)
	destroy(&w.decorationManager, opDecorationManagerDestroy)
	destroy(&w.activation, opActivationDestroy)
	destroy(&w.wmBase, opWmBaseDestroy)

	w.pending = nil
	w.attached = nil
	if err := w.flush(); err != nil {
		core.LogDebug("flushing on close: %s", err)
	}
	return w.transport.Close()
}
