package engine

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/vent/engine/assets"
	"github.com/spaghettifunk/vent/engine/assets/loaders"
	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/platform"
	"github.com/spaghettifunk/vent/engine/platform/wayland"
	"github.com/spaghettifunk/vent/engine/renderer/headless"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
	"github.com/spaghettifunk/vent/engine/renderer/vulkan"
	"github.com/spaghettifunk/vent/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine has released everything
	EngineStageShutdown
)

// Clear colour of the window until a model view is composited on top.
var clearColour = [3]uint8{0x1e, 0x1e, 0x24}

// renderContext is what the engine needs from a resource context on top of
// the allocation surface the loaders use.
type renderContext interface {
	metadata.ResourceContext
	SetLight(frame uint32, light metadata.LightUniform)
	Destroy()
}

type Engine struct {
	config       *core.ProjectConfig
	currentStage Stage

	platform     *platform.Platform
	context      renderContext
	jobs         *systems.JobSystem
	assetManager *assets.AssetManager
	events       *core.EventBus
	input        *core.InputState
	clock        *core.Clock
	metrics      *core.Metrics

	lastTime    float64
	frame       uint32
	width       uint32
	height      uint32
	isSuspended bool
	framebuffer *wayland.ShmBuffer
	light       metadata.LightUniform

	modelMu sync.Mutex
	model   *metadata.Model

	stopRequested atomic.Bool
}

func New(cfg *core.ProjectConfig) (*Engine, error) {
	if cfg == nil {
		cfg = core.DefaultProjectConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		config:       cfg,
		currentStage: EngineStageUninitialized,
		platform:     platform.New(),
		events:       core.NewEventBus(),
		input:        core.NewInputState(),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		width:        cfg.Window.Width,
		height:       cfg.Window.Height,
		light:        metadata.DefaultLight(),
	}, nil
}

// Events is the bus every window event is fired on before the engine acts on it.
func (e *Engine) Events() *core.EventBus {
	return e.events
}

func (e *Engine) Input() *core.InputState {
	return e.input
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// Model returns the currently loaded model, nil when none is configured.
func (e *Engine) Model() *metadata.Model {
	e.modelMu.Lock()
	defer e.modelMu.Unlock()
	return e.model
}

// Initialize brings up every subsystem and opens the window.
func (e *Engine) Initialize() error {
	if err := e.initializeSystems(); err != nil {
		return err
	}
	if err := e.platform.Startup(e.config.Window, e.onSurfaceCreated); err != nil {
		return err
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// InitializeWithTransport is Initialize over an existing compositor connection.
func (e *Engine) InitializeWithTransport(t wayland.Transport) error {
	if err := e.initializeSystems(); err != nil {
		return err
	}
	if err := e.platform.StartupWithTransport(t, e.config.Window, e.onSurfaceCreated); err != nil {
		return err
	}
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) initializeSystems() error {
	e.currentStage = EngineStageInitializing
	if err := core.SetLogLevel(e.config.LogLevel); err != nil {
		core.LogWarn("%s, keeping the current log level", err)
	}

	ctx, err := e.createContext()
	if err != nil {
		return err
	}
	e.context = ctx

	jobs, err := systems.NewJobSystem(runtime.NumCPU(), 16)
	if err != nil {
		return err
	}
	e.jobs = jobs

	e.assetManager = assets.NewAssetManager(jobs)
	e.assetManager.RegisterLoader(metadata.ResourceTypeModel, loaders.NewGLTFLoader(ctx))
	e.assetManager.RegisterLoader(metadata.ResourceTypeImage, &loaders.TextureLoader{})
	e.assetManager.RegisterLoader(metadata.ResourceTypeConfig, &loaders.ConfigLoader{})
	e.assetManager.OnAssetChanged(e.onAssetChanged)
	if err := e.assetManager.Initialize(e.config.Assets.Dir, e.config.Assets.Watch); err != nil {
		return err
	}

	if name := e.config.Assets.Model; name != "" {
		res, err := e.assetManager.LoadAsset(name, nil)
		if err != nil {
			return fmt.Errorf("loading model %s: %w", name, err)
		}
		e.swapModel(res)
	}

	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	e.events.Register(core.EVENT_CODE_CLOSE, e, e.onClose)
	return nil
}

// createContext prefers Vulkan and falls back to host memory when no device
// can be created.
func (e *Engine) createContext() (renderContext, error) {
	frames := e.config.Renderer.FramesInFlight
	if !e.config.Renderer.Headless {
		vc, err := vulkan.New(vulkan.Options{
			AppName:        e.config.Name,
			FramesInFlight: frames,
		})
		if err == nil {
			return vc, nil
		}
		core.LogWarn("vulkan unavailable, using the headless resource context: %s", err)
	}
	return headless.New(headless.Options{FramesInFlight: frames})
}

// onSurfaceCreated paints the first frame so it is attached as soon as the
// compositor acknowledges the surface.
func (e *Engine) onSurfaceCreated(w *wayland.Window) error {
	buf, err := newClearBuffer(w, e.width, e.height)
	if err != nil {
		// Without shm the window still works, it just shows nothing.
		core.LogWarn("no initial buffer: %s", err)
		return nil
	}
	e.framebuffer = buf
	return w.SetBuffer(buf)
}

func newClearBuffer(w *wayland.Window, width, height uint32) (*wayland.ShmBuffer, error) {
	buf, err := w.NewShmBuffer(width, height)
	if err != nil {
		return nil, err
	}
	buf.Fill(clearColour[0], clearColour[1], clearColour[2])
	return buf, nil
}

// Run drives the window loop until the window closes.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine not initialized")
	}
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	return e.platform.Run(e.handleEvent)
}

// Stop asks the loop to close the window at the next event. Safe to call from
// any goroutine.
func (e *Engine) Stop() {
	e.stopRequested.Store(true)
}

func (e *Engine) handleEvent(event core.WindowEvent) {
	if e.stopRequested.Load() && e.platform.Window != nil {
		if err := e.platform.Window.Close(); err != nil {
			core.LogError("closing window: %s", err)
		}
		return
	}
	e.input.Process(event)
	e.events.Fire(event)
	if event.Code == core.EVENT_CODE_REDRAW {
		e.onRedraw()
	}
}

func (e *Engine) onRedraw() {
	if e.isSuspended {
		return
	}
	e.clock.Update()
	currentTime := e.clock.Elapsed()
	delta := currentTime - e.lastTime

	e.context.SetLight(e.frame, e.light)
	e.frame = (e.frame + 1) % e.context.FramesInFlight()

	e.metrics.Update(delta)
	// NOTE: input state copying happens after everything that reads it this frame.
	e.input.Update()
	e.lastTime = currentTime
}

func (e *Engine) onResized(event core.WindowEvent, listener interface{}) bool {
	if event.Width == e.width && event.Height == e.height {
		return false
	}
	e.width, e.height = event.Width, event.Height
	core.LogDebug("window resize: %d, %d", e.width, e.height)

	// Handle minimization
	if e.width == 0 || e.height == 0 {
		core.LogInfo("window minimized, suspending application")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("window restored, resuming application")
		e.isSuspended = false
	}

	w := e.platform.Window
	if w == nil || e.framebuffer == nil {
		return true
	}
	buf, err := newClearBuffer(w, e.width, e.height)
	if err != nil {
		core.LogError("resizing framebuffer: %s", err)
		return true
	}
	if err := w.SetBuffer(buf); err != nil {
		core.LogError("attaching framebuffer: %s", err)
		buf.Destroy()
		return true
	}
	e.framebuffer.Destroy()
	e.framebuffer = buf
	return true
}

func (e *Engine) onClose(event core.WindowEvent, listener interface{}) bool {
	core.LogInfo("close requested, shutting down")
	return false
}

// onAssetChanged reloads the configured model in the background when its file changes.
func (e *Engine) onAssetChanged(info assets.AssetInfo) {
	if info.Type != metadata.ResourceTypeModel || info.Path != e.config.Assets.Model {
		return
	}
	core.LogInfo("model %s changed, reloading", info.Path)
	err := e.assetManager.LoadAssetAsync(info.Path, nil, func(res *metadata.Resource, err error) {
		if err != nil {
			core.LogError("reloading %s: %s", info.Path, err)
			return
		}
		e.swapModel(res)
	})
	if err != nil {
		core.LogError("scheduling reload of %s: %s", info.Path, err)
	}
}

// swapModel installs the model carried by res and releases the previous one.
func (e *Engine) swapModel(res *metadata.Resource) {
	model, ok := res.Data.(*metadata.Model)
	if !ok {
		core.LogError("asset %s is not a model", res.Name)
		return
	}
	e.modelMu.Lock()
	old := e.model
	e.model = model
	e.modelMu.Unlock()

	if old != nil {
		old.Destroy(e.context)
	}
	core.LogInfo("model %s ready: %d meshes", model.Name, len(model.Meshes))
}

// Shutdown releases every subsystem in reverse order of creation. Safe to
// call more than once.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown || e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	if err := e.platform.Shutdown(); err != nil {
		core.LogError("closing window: %s", err)
	}
	if e.framebuffer != nil {
		e.framebuffer.Destroy()
		e.framebuffer = nil
	}
	if e.assetManager != nil {
		if err := e.assetManager.Shutdown(); err != nil {
			core.LogError("asset manager shutdown: %s", err)
		}
	}
	if e.jobs != nil {
		if err := e.jobs.Shutdown(); err != nil {
			core.LogError("job system shutdown: %s", err)
		}
	}
	e.events.Shutdown()

	e.modelMu.Lock()
	model := e.model
	e.model = nil
	e.modelMu.Unlock()
	if e.context != nil {
		model.Destroy(e.context)
		e.context.Destroy()
		e.context = nil
	}

	e.currentStage = EngineStageShutdown
	return nil
}

// GetFramebufferSize returns the width and height (in this order) of the window.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}
