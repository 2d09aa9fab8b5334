// Package codec defines how artifacts are decoded, composed and encoded,
// and provides the built-in codecs.
//
// A codec owns one artifact kind. The builder never looks inside a Canvas; it
// only hands canvases produced by a codec back to the same codec.
package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBlank is returned by Blank when the codec cannot synthesize an
	// empty canvas from the given dimensions.
	ErrNoBlank = errors.New("codec cannot create a blank canvas")

	// ErrOutOfBounds is returned when a placement lies entirely outside the
	// destination canvas.
	ErrOutOfBounds = errors.New("placement outside canvas")
)

// Canvas is a decoded artifact or source. Its concrete type belongs to the
// codec that produced it.
type Canvas any

// Placement says where a source lands inside a composed artifact.
//
// Image codecs use the rectangle fields: the source region starting at
// (SrcX, SrcY) is copied to (X, Y) with size W x H; a zero size means the
// whole source. Table codecs use Prefix, FirstLine and LineCount: entries
// [FirstLine, FirstLine+LineCount) of the source are merged with Prefix
// prepended to each key; a zero LineCount means all remaining entries.
type Placement struct {
	X, Y       int
	W, H       int
	SrcX, SrcY int

	Prefix    string
	FirstLine int
	LineCount int
}

// Codec converts between bytes and canvases for one artifact kind.
type Codec interface {
	Kind() string
	Decode(data []byte) (Canvas, error)
	Blank(width, height int) (Canvas, error)
	Compose(dst, src Canvas, p Placement) (Canvas, error)
	Encode(c Canvas) ([]byte, error)
}

// canvasTypeError reports a canvas handed to the wrong codec.
func canvasTypeError(kind string, c Canvas) error {
	return fmt.Errorf("%s codec: unexpected canvas type %T", kind, c)
}
