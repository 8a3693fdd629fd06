package loaders

import (
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
)

// ConfigLoader loads project configuration files found among the assets.
type ConfigLoader struct{}

func (cl *ConfigLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	cfg, err := core.LoadProjectConfig(path)
	if err != nil {
		return nil, err
	}
	return &metadata.Resource{
		Name:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		FullPath: path,
		Type:     metadata.ResourceTypeConfig,
		Data:     cfg,
	}, nil
}

func (cl *ConfigLoader) Unload(*metadata.Resource) error {
	return nil
}
