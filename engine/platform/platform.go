package platform

import (
	"time"

	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/platform/wayland"
)

var startTime = time.Now()

type Platform struct {
	Window *wayland.Window
}

func New() *Platform {
	return &Platform{}
}

// AttributesFromConfig translates the project window settings into the
// attributes of a Wayland toplevel.
func AttributesFromConfig(cfg core.WindowConfig) wayland.Attributes {
	attrs := wayland.Attributes{
		Title:  cfg.Title,
		AppID:  cfg.AppID,
		Width:  cfg.Width,
		Height: cfg.Height,
		Mode:   wayland.ParseWindowMode(cfg.Mode),
	}
	if cfg.MinSize != nil {
		attrs.MinSize = &wayland.Size{Width: cfg.MinSize.Width, Height: cfg.MinSize.Height}
	}
	if cfg.MaxSize != nil {
		attrs.MaxSize = &wayland.Size{Width: cfg.MaxSize.Width, Height: cfg.MaxSize.Height}
	}
	if cfg.CloseOnEscape != nil {
		attrs.CloseOnEscape = *cfg.CloseOnEscape
	}
	if attrs.AppID == "" {
		attrs.AppID = core.DefaultAppID
	}
	return attrs
}

// Startup opens the window. onSurface runs before the first commit and may
// prepare the initial buffer.
func (p *Platform) Startup(cfg core.WindowConfig, onSurface func(w *wayland.Window) error) error {
	attrs := AttributesFromConfig(cfg)
	attrs.OnSurfaceCreated = onSurface
	window, err := wayland.New(attrs)
	if err != nil {
		return err
	}
	p.Window = window
	return nil
}

// StartupWithTransport is Startup over an already established connection.
func (p *Platform) StartupWithTransport(t wayland.Transport, cfg core.WindowConfig, onSurface func(w *wayland.Window) error) error {
	attrs := AttributesFromConfig(cfg)
	attrs.OnSurfaceCreated = onSurface
	window, err := wayland.NewWithTransport(t, attrs)
	if err != nil {
		return err
	}
	p.Window = window
	return nil
}

// Run pumps window events into handler until the window closes.
func (p *Platform) Run(handler func(event core.WindowEvent)) error {
	if p.Window == nil {
		return nil
	}
	return p.Window.Poll(handler)
}

func (p *Platform) Shutdown() error {
	if p.Window == nil {
		return nil
	}
	return p.Window.Close()
}

// GetAbsoluteTime returns the seconds elapsed since the process started.
func GetAbsoluteTime() float64 {
	return time.Since(startTime).Seconds()
}

func Sleep(ms float64) {
	time.Sleep(time.Duration(ms * float64(time.Millisecond)))
}
