// Package artifact holds the fixed set of build targets, tracks which of
// their sources changed, and regenerates stale outputs through the overlay
// resolver.
//
// A Registry is driven from a single goroutine: the startup pass and the
// hot-reload consumer. It does no locking of its own.
package artifact

import (
	"errors"

	"github.com/albertocavalcante/modlayer/pkg/codec"
)

var (
	// ErrNoBaseCanvas is reported for a target with neither a resolvable base
	// nor a codec able to synthesize a blank canvas.
	ErrNoBaseCanvas = errors.New("no base canvas")

	// ErrUnknownCodec is returned when a target names a kind without a codec.
	ErrUnknownCodec = errors.New("unknown codec")

	// ErrRegistrationClosed is returned by Register after the first build.
	ErrRegistrationClosed = errors.New("targets can only be registered before the first build")
)

// Placement says where a source lands in its target.
type Placement = codec.Placement

// CodecLookup finds the codec for an artifact kind.
type CodecLookup interface {
	Lookup(kind string) (codec.Codec, bool)
}

// Source is one declared contributor to a target.
type Source struct {
	// Path is a logical file or folder path.
	Path string

	// Extensions, if set, restricts resolution to these extensions.
	Extensions []string

	Place Placement
}

// Target is an output artifact built from its sources.
type Target struct {
	Output string
	Kind   string

	// Base is the logical path of the baseline canvas. Empty means the prior
	// output.
	Base string

	// Width and Height size a blank canvas when no base resolves.
	Width, Height int

	Sources []Source
}

// SourceRef records a reported change to a logical path.
type SourceRef struct {
	Path     string `json:"path"`
	Outdated bool   `json:"outdated"`
	Deleted  bool   `json:"deleted"`
}

// WriteFunc stores an encoded output and returns its absolute path.
type WriteFunc func(output string, data []byte) (string, error)

// ReloadFunc is called after an output was rebuilt and written.
type ReloadFunc func(output, absPath string)
