package wayland

// Interface names as advertised by wl_registry.global.
const (
	ifaceCompositor        = "wl_compositor"
	ifaceShm               = "wl_shm"
	ifaceSeat              = "wl_seat"
	ifaceWmBase            = "xdg_wm_base"
	ifaceDecorationManager = "zxdg_decoration_manager_v1"
	ifaceActivation        = "xdg_activation_v1"
)

// Highest version of each global this client speaks.
var supportedVersions = map[string]uint32{
	ifaceCompositor:        4,
	ifaceShm:               1,
	ifaceSeat:              5,
	ifaceWmBase:            4,
	ifaceDecorationManager: 1,
	ifaceActivation:        1,
}

// wl_display is always object 1.
const displayID uint32 = 1

type objectKind uint8

const (
	kindUnknown objectKind = iota
	kindDisplay
	kindRegistry
	kindCallback
	kindCompositor
	kindShm
	kindShmPool
	kindBuffer
	kindSurface
	kindSeat
	kindKeyboard
	kindPointer
	kindWmBase
	kindXdgSurface
	kindToplevel
	kindDecorationManager
	kindToplevelDecoration
	kindActivation
	kindActivationToken
)

var kindNames = map[objectKind]string{
	kindDisplay:            "wl_display",
	kindRegistry:           "wl_registry",
	kindCallback:           "wl_callback",
	kindCompositor:         ifaceCompositor,
	kindShm:                ifaceShm,
	kindShmPool:            "wl_shm_pool",
	kindBuffer:             "wl_buffer",
	kindSurface:            "wl_surface",
	kindSeat:               ifaceSeat,
	kindKeyboard:           "wl_keyboard",
	kindPointer:            "wl_pointer",
	kindWmBase:             ifaceWmBase,
	kindXdgSurface:         "xdg_surface",
	kindToplevel:           "xdg_toplevel",
	kindDecorationManager:  ifaceDecorationManager,
	kindToplevelDecoration: "zxdg_toplevel_decoration_v1",
	kindActivation:         ifaceActivation,
	kindActivationToken:    "xdg_activation_token_v1",
}

func (k objectKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Request opcodes.
const (
	// wl_display
	opDisplaySync        uint16 = 0
	opDisplayGetRegistry uint16 = 1

	// wl_registry
	opRegistryBind uint16 = 0

	// wl_compositor
	opCompositorCreateSurface uint16 = 0

	// wl_shm
	opShmCreatePool uint16 = 0

	// wl_shm_pool
	opShmPoolCreateBuffer uint16 = 0
	opShmPoolDestroy      uint16 = 1

	// wl_buffer
	opBufferDestroy uint16 = 0

	// wl_surface
	opSurfaceDestroy uint16 = 0
	opSurfaceAttach  uint16 = 1
	opSurfaceDamage  uint16 = 2
	opSurfaceCommit  uint16 = 6

	// wl_seat
	opSeatGetPointer  uint16 = 0
	opSeatGetKeyboard uint16 = 1
	opSeatRelease     uint16 = 3

	// wl_pointer, wl_keyboard
	opPointerRelease  uint16 = 1
	opKeyboardRelease uint16 = 0

	// xdg_wm_base
	opWmBaseDestroy       uint16 = 0
	opWmBaseGetXdgSurface uint16 = 2
	opWmBasePong          uint16 = 3

	// xdg_surface
	opXdgSurfaceDestroy      uint16 = 0
	opXdgSurfaceGetToplevel  uint16 = 1
	opXdgSurfaceAckConfigure uint16 = 4

	// xdg_toplevel
	opToplevelDestroy       uint16 = 0
	opToplevelSetTitle      uint16 = 2
	opToplevelSetAppID      uint16 = 3
	opToplevelSetMaxSize    uint16 = 7
	opToplevelSetMinSize    uint16 = 8
	opToplevelSetMaximized  uint16 = 9
	opToplevelSetFullscreen uint16 = 11
	opToplevelSetMinimized  uint16 = 13

	// zxdg_decoration_manager_v1
	opDecorationManagerDestroy               uint16 = 0
	opDecorationManagerGetToplevelDecoration uint16 = 1

	// zxdg_toplevel_decoration_v1
	opToplevelDecorationDestroy uint16 = 0
	opToplevelDecorationSetMode uint16 = 1

	// xdg_activation_v1
	opActivationDestroy            uint16 = 0
	opActivationGetActivationToken uint16 = 1
	opActivationActivate           uint16 = 2

	// xdg_activation_token_v1
	opActivationTokenSetAppID   uint16 = 1
	opActivationTokenSetSurface uint16 = 2
	opActivationTokenCommit     uint16 = 3
	opActivationTokenDestroy    uint16 = 4
)

// Event opcodes.
const (
	evDisplayError    uint16 = 0
	evDisplayDeleteID uint16 = 1

	evRegistryGlobal       uint16 = 0
	evRegistryGlobalRemove uint16 = 1

	evCallbackDone uint16 = 0

	evSeatCapabilities uint16 = 0

	evKeyboardKeymap uint16 = 0
	evKeyboardKey    uint16 = 3

	evPointerEnter  uint16 = 0
	evPointerMotion uint16 = 2
	evPointerButton uint16 = 3

	evWmBasePing uint16 = 0

	evXdgSurfaceConfigure uint16 = 0

	evToplevelConfigure       uint16 = 0
	evToplevelClose           uint16 = 1
	evToplevelConfigureBounds uint16 = 2

	evActivationTokenDone uint16 = 0
)

// wl_seat.capability bits.
const (
	seatCapabilityPointer  uint32 = 1
	seatCapabilityKeyboard uint32 = 2
)

// wl_shm.format
const shmFormatXRGB8888 uint32 = 1

// zxdg_toplevel_decoration_v1.mode
const decorationModeServerSide uint32 = 2

// wl_keyboard.key_state / wl_pointer.button_state
const keyStateReleased uint32 = 0

// evdev KEY_ESC
const keyEscape uint32 = 1

// Requests that release seat devices exist from these versions on.
const (
	seatReleaseSince   uint32 = 5
	deviceReleaseSince uint32 = 3
)
