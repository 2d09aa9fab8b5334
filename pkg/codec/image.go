package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
)

// ImageKind is the kind name of the PNG sprite sheet codec.
const ImageKind = "image"

// Image composes PNG sprite sheets. Sources are copied into their
// rectangles, replacing whatever the base canvas held there.
type Image struct{}

// NewImage creates the image codec.
func NewImage() Codec {
	return Image{}
}

// Kind implements Codec.
func (Image) Kind() string { return ImageKind }

// Decode implements Codec. The result is always an *image.NRGBA.
func (Image) Decode(data []byte) (Canvas, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return toNRGBA(img), nil
}

// Blank implements Codec with a fully transparent canvas.
func (Image) Blank(width, height int) (Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image needs positive size, got %dx%d", ErrNoBlank, width, height)
	}
	return image.NewNRGBA(image.Rect(0, 0, width, height)), nil
}

// Compose implements Codec. The region is clipped to both canvases.
func (Image) Compose(dst, src Canvas, p Placement) (Canvas, error) {
	d, ok := dst.(*image.NRGBA)
	if !ok {
		return nil, canvasTypeError(ImageKind, dst)
	}
	s, ok := src.(image.Image)
	if !ok {
		return nil, canvasTypeError(ImageKind, src)
	}

	sb := s.Bounds()
	sp := sb.Min.Add(image.Pt(p.SrcX, p.SrcY))
	w, h := p.W, p.H
	if w == 0 {
		w = sb.Max.X - sp.X
	}
	if h == 0 {
		h = sb.Max.Y - sp.Y
	}

	r := image.Rect(p.X, p.Y, p.X+w, p.Y+h).Add(d.Bounds().Min)
	if !r.Overlaps(d.Bounds()) {
		return nil, fmt.Errorf("%w: %v not within %v", ErrOutOfBounds, r, d.Bounds())
	}
	draw.Draw(d, r, s, sp, draw.Src)
	return d, nil
}

// Encode implements Codec.
func (Image) Encode(c Canvas) ([]byte, error) {
	img, ok := c.(image.Image)
	if !ok {
		return nil, canvasTypeError(ImageKind, c)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
