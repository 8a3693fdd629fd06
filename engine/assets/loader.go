package assets

import "github.com/spaghettifunk/vent/engine/renderer/metadata"

type Loader interface {
	Load(path string, params interface{}) (*metadata.Resource, error) // `interface{}` here allows loaders to take loader specific parameters
	Unload(*metadata.Resource) error
}
