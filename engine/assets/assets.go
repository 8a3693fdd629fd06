package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
	"github.com/spaghettifunk/vent/engine/systems"
)

var walk = filepath.Walk

type AssetInfo struct {
	// Relative to the assets directory, slash separated.
	Path       string
	Type       metadata.ResourceType
	ModTime    time.Time
	LastLoaded time.Time
}

// AssetManager indexes an assets directory, dispatches loads to the loader
// registered for each resource type and, when watching, keeps the index in
// sync with the file system.
type AssetManager struct {
	root     string
	assets   map[string]AssetInfo
	loaders  map[metadata.ResourceType]Loader
	jobs     *systems.JobSystem
	onChange func(AssetInfo)

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

// NewAssetManager creates a manager that runs asynchronous loads on jobs.
// jobs may be nil when only LoadAsset is used.
func NewAssetManager(jobs *systems.JobSystem) *AssetManager {
	return &AssetManager{
		assets:  make(map[string]AssetInfo),
		loaders: make(map[metadata.ResourceType]Loader),
		jobs:    jobs,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Initialize indexes assetsDir. With watch set, files created, written or
// removed later are reflected in the index.
func (am *AssetManager) Initialize(assetsDir string, watch bool) error {
	root, err := filepath.Abs(assetsDir)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrIO, err)
	}
	fi, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: assets directory: %w", core.ErrIO, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", core.ErrIO, root)
	}
	am.root = root

	if watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("%w: %w", core.ErrIO, err)
		}
		am.fsnotify = w
	}

	if err := am.watchRecursive(root, false); err != nil {
		if am.fsnotify != nil {
			am.fsnotify.Close()
			am.fsnotify = nil
		}
		am.mutex.Lock()
		am.assets = make(map[string]AssetInfo)
		am.mutex.Unlock()
		return err
	}
	if am.fsnotify != nil {
		go am.start()
	}
	core.LogInfo("asset manager indexed %d assets under %s", am.count(), root)
	return nil
}

// Register loaders for each asset type
func (am *AssetManager) RegisterLoader(assetType metadata.ResourceType, loader Loader) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[assetType] = loader
}

// OnAssetChanged sets the callback invoked, from the watcher goroutine, when an
// asset that was already loaded is written again.
func (am *AssetManager) OnAssetChanged(fn func(AssetInfo)) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.onChange = fn
}

func (am *AssetManager) Root() string {
	return am.root
}

func (am *AssetManager) Lookup(name string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[am.key(name)]
	return info, ok
}

// Assets lists the indexed assets of one type ordered by path.
func (am *AssetManager) Assets(assetType metadata.ResourceType) []AssetInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	var out []AssetInfo
	for _, info := range am.assets {
		if info.Type == assetType {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (am *AssetManager) count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Load an asset using the appropriate loader. name is relative to the assets
// directory.
func (am *AssetManager) LoadAsset(name string, params interface{}) (*metadata.Resource, error) {
	key := am.key(name)

	am.mutex.RLock()
	asset, exists := am.assets[key]
	loader, loaderExists := am.loaders[asset.Type]
	am.mutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: asset not found: %s", core.ErrIO, name)
	}
	if !loaderExists {
		return nil, fmt.Errorf("%w: no loader registered for %s asset %s", core.ErrUnsupportedFormat, asset.Type, name)
	}

	res, err := loader.Load(filepath.Join(am.root, filepath.FromSlash(key)), params)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	if info, ok := am.assets[key]; ok {
		info.LastLoaded = time.Now()
		am.assets[key] = info
	}
	am.mutex.Unlock()
	core.LogDebug("loaded %s asset %s", asset.Type, key)
	return res, nil
}

// LoadAssetAsync loads name on the job system and reports to done from a worker.
func (am *AssetManager) LoadAssetAsync(name string, params interface{}, done func(*metadata.Resource, error)) error {
	if am.jobs == nil {
		return errors.New("asset manager has no job system")
	}
	return am.jobs.Submit(systems.JobTask{
		Name: "load " + name,
		Run: func() (interface{}, error) {
			return am.LoadAsset(name, params)
		},
		OnComplete: func(result interface{}) {
			done(result.(*metadata.Resource), nil)
		},
		OnFailure: func(err error) {
			done(nil, err)
		},
	})
}

func (am *AssetManager) UnloadAsset(asset *metadata.Resource) error {
	if asset == nil {
		return nil
	}
	am.mutex.RLock()
	loader, ok := am.loaders[asset.Type]
	am.mutex.RUnlock()
	if !ok {
		return fmt.Errorf("%w: no loader registered for %s", core.ErrUnsupportedFormat, asset.Type)
	}
	return loader.Unload(asset)
}

// Shutdown stops the watcher. Safe to call more than once.
func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	if am.fsnotify != nil {
		close(am.done)
		<-am.stopped
	}
	return nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleWatchEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) handleWatchEvent(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.watchRecursive(e.Name, false); err != nil {
				core.LogWarn("watching %s: %s", e.Name, err)
			}
			return
		}
	}
	// Handle create or modify events
	if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		info, reload := am.handleFileEvent(e.Name)
		if reload {
			am.mutex.RLock()
			fn := am.onChange
			am.mutex.RUnlock()
			if fn != nil {
				fn(info)
			}
		}
	}
	// A removed directory can't be stat'ed; drop it from the watch list just in case.
	if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		am.removeAsset(e.Name)
		_ = am.fsnotify.Remove(e.Name)
	}
}

// watchRecursive indexes every file under path and, when watching, adds each
// directory to the watch list. Files created before their directory's watch is
// in place are still picked up by the walk.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	err := walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if am.fsnotify == nil {
				return nil
			}
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrIO, err)
	}
	return nil
}

// handleFileEvent indexes the file at path. It reports whether the asset had
// been loaded before, which makes the event a reload.
func (am *AssetManager) handleFileEvent(path string) (AssetInfo, bool) {
	assetType := determineAssetType(path)
	if assetType == metadata.ResourceTypeNone {
		return AssetInfo{}, false
	}
	var modTime time.Time
	if fi, err := os.Stat(path); err == nil {
		modTime = fi.ModTime()
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()

	key := am.key(path)
	prev := am.assets[key]
	info := AssetInfo{
		Path:       key,
		Type:       assetType,
		ModTime:    modTime,
		LastLoaded: prev.LastLoaded,
	}
	am.assets[key] = info
	return info, !prev.LastLoaded.IsZero()
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, am.key(path))
}

// key maps absolute or root-relative paths to index keys.
func (am *AssetManager) key(path string) string {
	if filepath.IsAbs(path) {
		if rel, err := filepath.Rel(am.root, path); err == nil {
			path = rel
		}
	}
	return filepath.ToSlash(filepath.Clean(path))
}

func determineAssetType(path string) metadata.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf", ".glb":
		return metadata.ResourceTypeModel
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return metadata.ResourceTypeImage
	case ".toml", ".yaml", ".yml":
		return metadata.ResourceTypeConfig
	default:
		return metadata.ResourceTypeNone
	}
}
