package backend

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/tilefx/config"
)

// Factory creates a device from the engine configuration.
type Factory func(cfg *config.Config) (Device, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[ID]Factory)
)

// Register registers a device factory for id.
// This is typically called from init() functions in backend packages.
// A factory registered earlier for the same id is replaced.
func Register(id ID, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[id] = factory
}

// Unregister removes the factory for id.
// This is useful for testing.
func Unregister(id ID) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, id)
}

// IsRegistered reports whether a factory exists for id.
func IsRegistered(id ID) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[id]
	return ok
}

// Available returns the registered backend ids in ascending order.
func Available() []ID {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ids := make([]ID, 0, len(factories))
	for id := range factories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Open creates and initializes the device registered for id.
// A nil cfg means config.Default().
func Open(id ID, cfg *config.Config) (Device, error) {
	registryMu.RLock()
	factory, ok := factories[id]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrBackendNotAvailable, "open %v", id)
	}
	if cfg == nil {
		cfg = config.Default()
	}

	dev, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "open %v", id)
	}
	if err := dev.Initialize(); err != nil {
		dev.Shutdown()
		return nil, errors.Wrapf(err, "initialize %v", id)
	}
	return dev, nil
}
