package core

import (
	"fmt"
	"sync"
)

// WindowEventCode identifies a normalized window event.
type WindowEventCode uint8

const (
	// The compositor (or the user) asked the window to close.
	EVENT_CODE_CLOSE WindowEventCode = iota
	// Keyboard key pressed or released.
	/* Event usage:
	 * Key   = evdev key code
	 * State = pressed/released
	 */
	EVENT_CODE_KEY_CHANGED
	// Mouse button pressed or released.
	/* Event usage:
	 * Button = linux input button code (BTN_LEFT = 0x110)
	 * State  = pressed/released
	 */
	EVENT_CODE_MOUSE_BUTTON_CHANGED
	// Mouse moved, surface-local coordinates.
	EVENT_CODE_MOUSE_MOVED
	// Resized/resolution changed by the compositor.
	EVENT_CODE_RESIZED
	// Synthesized once per loop iteration, after every other event.
	EVENT_CODE_REDRAW

	MAX_EVENT_CODE
)

func (c WindowEventCode) String() string {
	switch c {
	case EVENT_CODE_CLOSE:
		return "Close"
	case EVENT_CODE_KEY_CHANGED:
		return "KeyChanged"
	case EVENT_CODE_MOUSE_BUTTON_CHANGED:
		return "MouseButtonChanged"
	case EVENT_CODE_MOUSE_MOVED:
		return "MouseMoved"
	case EVENT_CODE_RESIZED:
		return "Resized"
	case EVENT_CODE_REDRAW:
		return "Redraw"
	}
	return fmt.Sprintf("WindowEventCode(%d)", uint8(c))
}

type ElementState uint8

const (
	Released ElementState = iota
	Pressed
)

// WindowEvent is the normalized event produced by a platform backend.
// Only the fields relevant to Code are populated.
type WindowEvent struct {
	Code   WindowEventCode
	Key    uint32
	Button uint32
	State  ElementState
	X      float64
	Y      float64
	Width  uint32
	Height uint32
}

func CloseEvent() WindowEvent {
	return WindowEvent{Code: EVENT_CODE_CLOSE}
}

func RedrawEvent() WindowEvent {
	return WindowEvent{Code: EVENT_CODE_REDRAW}
}

func KeyChangedEvent(key uint32, state ElementState) WindowEvent {
	return WindowEvent{Code: EVENT_CODE_KEY_CHANGED, Key: key, State: state}
}

func MouseButtonChangedEvent(button uint32, state ElementState) WindowEvent {
	return WindowEvent{Code: EVENT_CODE_MOUSE_BUTTON_CHANGED, Button: button, State: state}
}

func MouseMovedEvent(x, y float64) WindowEvent {
	return WindowEvent{Code: EVENT_CODE_MOUSE_MOVED, X: x, Y: y}
}

func ResizedEvent(width, height uint32) WindowEvent {
	return WindowEvent{Code: EVENT_CODE_RESIZED, Width: width, Height: height}
}

// Should return true if handled.
type FnOnEvent func(event WindowEvent, listener interface{}) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus fans normalized window events out to registered listeners.
type EventBus struct {
	mu         sync.RWMutex
	registered [MAX_EVENT_CODE][]*registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listeners will not be registered again and will cause this to return false.
 * @param code The event code to listen for.
 * @param listener A listener instance. Can be nil.
 * @param onEvent The callback to be invoked when the event code is fired.
 * @returns true if the event is successfully registered; otherwise false.
 */
func (b *EventBus) Register(code WindowEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if code >= MAX_EVENT_CODE || onEvent == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for %s", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

// Unregister removes the registration of listener for code. Returns false if none was found.
func (b *EventBus) Unregister(code WindowEventCode, listener interface{}) bool {
	if code >= MAX_EVENT_CODE {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of its code. If a listener returns
 * true, the event is considered handled and is not passed on to any more listeners.
 * @returns true if handled, otherwise false.
 */
func (b *EventBus) Fire(event WindowEvent) bool {
	if event.Code >= MAX_EVENT_CODE {
		return false
	}
	b.mu.RLock()
	events := make([]*registeredEvent, len(b.registered[event.Code]))
	copy(events, b.registered[event.Code])
	b.mu.RUnlock()

	for _, e := range events {
		if e.callback(event, e.listener) {
			return true
		}
	}
	return false
}

// Shutdown drops every registration.
func (b *EventBus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.registered {
		b.registered[i] = nil
	}
}
