package core

import "sync"

// Linux input button codes, as delivered by wl_pointer.button.
const (
	BUTTON_LEFT   uint32 = 0x110
	BUTTON_RIGHT  uint32 = 0x111
	BUTTON_MIDDLE uint32 = 0x112
)

// Evdev key codes, as delivered by wl_keyboard.key.
const (
	KEY_ESCAPE    uint32 = 1
	KEY_TAB       uint32 = 15
	KEY_Q         uint32 = 16
	KEY_W         uint32 = 17
	KEY_E         uint32 = 18
	KEY_ENTER     uint32 = 28
	KEY_LEFTCTRL  uint32 = 29
	KEY_A         uint32 = 30
	KEY_S         uint32 = 31
	KEY_D         uint32 = 32
	KEY_LEFTSHIFT uint32 = 42
	KEY_SPACE     uint32 = 57
	KEY_UP        uint32 = 103
	KEY_LEFT      uint32 = 105
	KEY_RIGHT     uint32 = 106
	KEY_DOWN      uint32 = 108

	KEYS_MAX_KEYS uint32 = 256
)

// Mouse state structure
type MouseState struct {
	X       float64
	Y       float64
	Buttons map[uint32]bool
}

// Keyboard state structure
type KeyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

// InputState holds current and previous states for keyboard and mouse.
// It is fed from the normalized window event stream.
type InputState struct {
	mu               sync.RWMutex
	KeyboardCurrent  KeyboardState
	KeyboardPrevious KeyboardState
	MouseCurrent     MouseState
	MousePrevious    MouseState
}

func NewInputState() *InputState {
	return &InputState{
		MouseCurrent:  MouseState{Buttons: make(map[uint32]bool)},
		MousePrevious: MouseState{Buttons: make(map[uint32]bool)},
	}
}

// Process records the effect of a window event. Events unrelated to input are ignored.
func (s *InputState) Process(e WindowEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Code {
	case EVENT_CODE_KEY_CHANGED:
		if e.Key < KEYS_MAX_KEYS {
			s.KeyboardCurrent.Keys[e.Key] = e.State == Pressed
		}
	case EVENT_CODE_MOUSE_BUTTON_CHANGED:
		s.MouseCurrent.Buttons[e.Button] = e.State == Pressed
	case EVENT_CODE_MOUSE_MOVED:
		s.MouseCurrent.X = e.X
		s.MouseCurrent.Y = e.Y
	}
}

// Update copies current states to previous states. Call once per frame, after
// every input of the frame has been processed.
func (s *InputState) Update() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.KeyboardPrevious = s.KeyboardCurrent
	s.MousePrevious.X = s.MouseCurrent.X
	s.MousePrevious.Y = s.MouseCurrent.Y
	s.MousePrevious.Buttons = make(map[uint32]bool, len(s.MouseCurrent.Buttons))
	for k, v := range s.MouseCurrent.Buttons {
		s.MousePrevious.Buttons[k] = v
	}
}

func (s *InputState) IsKeyDown(key uint32) bool {
	if key >= KEYS_MAX_KEYS {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.KeyboardCurrent.Keys[key]
}

func (s *InputState) WasKeyDown(key uint32) bool {
	if key >= KEYS_MAX_KEYS {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.KeyboardPrevious.Keys[key]
}

func (s *InputState) IsButtonDown(button uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.MouseCurrent.Buttons[button]
}

func (s *InputState) MousePosition() (float64, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.MouseCurrent.X, s.MouseCurrent.Y
}
