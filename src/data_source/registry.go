package datasource

import (
	"fmt"
	"sort"
	"sync"

	"rank-observer/src/interfaces"
	"rank-observer/src/logger"
)

// SourceRegistry holds one snapshot source per tracked index universe.
type SourceRegistry struct {
	Sources map[string]interfaces.ISnapshotSource
	Logger  *logger.Logger
	mu      sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewSourceRegistry(sources []interfaces.ISnapshotSource, log *logger.Logger) *SourceRegistry {
	r := &SourceRegistry{
		Sources: make(map[string]interfaces.ISnapshotSource),
		Logger:  log,
	}

	for _, s := range sources {
		r.Sources[s.Name()] = s
	}

	return r
}

// -----------------------------------------------------------------------------

// AddSource registers a new source under its name
func (r *SourceRegistry) AddSource(source interfaces.ISnapshotSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := source.Name()
	if _, exists := r.Sources[name]; exists {
		return fmt.Errorf("source %s already exists", name)
	}

	r.Sources[name] = source
	r.Logger.Info("Added source: %s (%s)", name, source.Index())
	return nil
}

// -----------------------------------------------------------------------------

// RemoveSource drops a source
func (r *SourceRegistry) RemoveSource(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.Sources[name]; !exists {
		return fmt.Errorf("source %s not found", name)
	}

	delete(r.Sources, name)
	r.Logger.Info("Removed source: %s", name)
	return nil
}

// -----------------------------------------------------------------------------

// GetSource retrieves a source by name
func (r *SourceRegistry) GetSource(name string) (interfaces.ISnapshotSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	source, exists := r.Sources[name]
	if !exists {
		return nil, fmt.Errorf("source %s not found", name)
	}
	return source, nil
}

// -----------------------------------------------------------------------------

// GetAllSources returns every source ordered by name
func (r *SourceRegistry) GetAllSources() []interfaces.ISnapshotSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]interfaces.ISnapshotSource, 0, len(r.Sources))
	for _, s := range r.Sources {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}
