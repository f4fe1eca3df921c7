// ABOUTME: Engine registry keyed by mime type and container format
// ABOUTME: Lets codec packages register factories without import cycles
package codec

import (
	"fmt"
	"sort"
	"sync"
)

// EncoderFactory creates an unconfigured encoder engine
type EncoderFactory func() (EncoderEngine, error)

// ContainerFactory creates a container engine writing to path
type ContainerFactory func(path string) (ContainerEngine, error)

// Registry maps mime types to encoders and format names to containers
type Registry struct {
	mu         sync.RWMutex
	encoders   map[string]EncoderFactory
	containers map[string]ContainerFactory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		encoders:   make(map[string]EncoderFactory),
		containers: make(map[string]ContainerFactory),
	}
}

// RegisterEncoder binds a factory to a mime type, replacing any previous one
func (r *Registry) RegisterEncoder(mimeType string, factory EncoderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoders[mimeType] = factory
}

// RegisterContainer binds a factory to a container format name
func (r *Registry) RegisterContainer(format string, factory ContainerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.containers[format] = factory
}

// NewEncoder creates an encoder for mimeType
func (r *Registry) NewEncoder(mimeType string) (EncoderEngine, error) {
	r.mu.RLock()
	factory, ok := r.encoders[mimeType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no encoder for %q: %w", mimeType, ErrUnsupported)
	}
	return factory()
}

// NewContainer creates a container engine of the named format
func (r *Registry) NewContainer(format, path string) (ContainerEngine, error) {
	r.mu.RLock()
	factory, ok := r.containers[format]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no container for %q: %w", format, ErrUnsupported)
	}
	return factory(path)
}

// Encoders lists registered mime types in sorted order
func (r *Registry) Encoders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.encoders))
	for name := range r.encoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
