/*
vent opens a Wayland window, loads the configured glTF model into GPU
resources and runs the event loop until the window is closed.
*/
package main

import (
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/vent/engine"
	"github.com/spaghettifunk/vent/engine/core"
)

func main() {
	configPath := flag.String("config", "vent.toml", "project configuration file (.toml, .yaml or .yml)")
	flag.Parse()

	cfg, err := core.LoadProjectConfig(*configPath)
	if errors.Is(err, fs.ErrNotExist) {
		core.LogWarn("%s not found, using the default configuration", *configPath)
		cfg, err = core.DefaultProjectConfig(), nil
	}
	if err != nil {
		core.LogFatal("loading configuration: %s", err)
	}

	e, err := engine.New(cfg)
	if err != nil {
		core.LogFatal("%s", err)
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("initializing engine: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		// capture sigterm and other system call here
		<-sigCh
		e.Stop()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogFatal("%s", runErr)
	}
}
