// Package registry maps artifact kinds to codec factories.
// It lets the builder load only the codecs that configured targets use.
package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/albertocavalcante/modlayer/pkg/codec"
	"github.com/albertocavalcante/modlayer/pkg/config"
)

// CodecFactory is a function that creates a new codec.
type CodecFactory func() codec.Codec

var (
	mu sync.RWMutex

	// factories maps kind names to their factory functions.
	factories = map[string]CodecFactory{
		codec.ImageKind: codec.NewImage,
		codec.TableKind: codec.NewTable,
	}
)

// Set is a loaded collection of codecs keyed by kind.
type Set map[string]codec.Codec

// Lookup returns the codec for kind.
func (s Set) Lookup(kind string) (codec.Codec, bool) {
	c, ok := s[kind]
	return c, ok
}

// Kinds returns the kinds in the set, sorted.
func (s Set) Kinds() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// LoadCodecs loads the codecs used by the configured targets.
// An unknown kind is an error.
func LoadCodecs(cfg *config.Config) (Set, error) {
	var kinds []string
	for _, t := range cfg.Targets {
		if !slices.Contains(kinds, t.Kind) {
			kinds = append(kinds, t.Kind)
		}
	}
	return LoadCodecsByName(kinds)
}

// LoadCodecsByName loads specific codecs by kind name.
func LoadCodecsByName(names []string) (Set, error) {
	mu.RLock()
	defer mu.RUnlock()

	set := make(Set, len(names))
	for _, name := range names {
		factory, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("no codec registered for kind %q (available: %v)", name, availableLocked())
		}
		set[name] = factory()
	}
	return set, nil
}

// All loads every registered codec.
func All() Set {
	mu.RLock()
	defer mu.RUnlock()

	set := make(Set, len(factories))
	for name, factory := range factories {
		set[name] = factory()
	}
	return set
}

// AvailableCodecs returns the sorted list of registered kind names.
func AvailableCodecs() []string {
	mu.RLock()
	defer mu.RUnlock()
	return availableLocked()
}

func availableLocked() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsCodecAvailable checks if a codec factory is registered.
func IsCodecAvailable(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := factories[name]
	return ok
}

// RegisterCodec registers a codec factory.
// This allows external packages to add new artifact kinds.
func RegisterCodec(name string, factory CodecFactory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}
