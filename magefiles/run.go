//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the engine with the project configuration in $VENT_CONFIG (vent.toml by default).
func (Run) Engine() error {
	mg.Deps(Build.Binary)

	config := os.Getenv("VENT_CONFIG")
	if config == "" {
		config = "vent.toml"
	}
	fmt.Println("Run engine...")
	if _, err := executeCmd("bin/vent", withArgs("-config", config), withDir("."), withStream()); err != nil {
		return err
	}
	return nil
}
