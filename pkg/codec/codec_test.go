package codec

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"slices"
	"testing"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

func TestImage_ComposeDisjointRegions(t *testing.T) {
	c := NewImage()

	dst, err := c.Blank(8, 4)
	if err != nil {
		t.Fatalf("Blank() error = %v", err)
	}
	left, err := c.Decode(pngBytes(t, solid(4, 4, red)))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	right, err := c.Decode(pngBytes(t, solid(4, 4, blue)))
	if err != nil {
		t.Fatal(err)
	}

	if dst, err = c.Compose(dst, left, Placement{X: 0, Y: 0}); err != nil {
		t.Fatalf("Compose(left) error = %v", err)
	}
	if dst, err = c.Compose(dst, right, Placement{X: 4, Y: 0, W: 4, H: 4}); err != nil {
		t.Fatalf("Compose(right) error = %v", err)
	}

	data, err := c.Encode(dst)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	out, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		x, y int
		want color.NRGBA
	}{
		{0, 0, red},
		{3, 3, red},
		{4, 0, blue},
		{7, 3, blue},
	}
	for _, tt := range tests {
		if got := color.NRGBAModel.Convert(out.At(tt.x, tt.y)); got != tt.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestImage_ComposeSourceOffsetAndClip(t *testing.T) {
	c := NewImage()
	src := solid(4, 4, blue)
	src.SetNRGBA(2, 2, red)

	dst, _ := c.Blank(2, 2)
	got, err := c.Compose(dst, src, Placement{X: 0, Y: 0, W: 5, H: 5, SrcX: 2, SrcY: 2})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	img := got.(*image.NRGBA)
	if img.NRGBAAt(0, 0) != red || img.NRGBAAt(1, 1) != blue {
		t.Errorf("Compose() pixels = %v %v", img.NRGBAAt(0, 0), img.NRGBAAt(1, 1))
	}

	if _, err := c.Compose(dst, src, Placement{X: 10, Y: 10, W: 1, H: 1}); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Compose() out of bounds error = %v, want ErrOutOfBounds", err)
	}
}

func TestImage_Errors(t *testing.T) {
	c := NewImage()

	if _, err := c.Blank(0, 4); !errors.Is(err, ErrNoBlank) {
		t.Errorf("Blank(0, 4) error = %v, want ErrNoBlank", err)
	}
	if _, err := c.Decode([]byte("\x89PNG truncated")); err == nil {
		t.Error("Decode() of a partial PNG should fail")
	}
	if _, err := c.Compose(NewTableCanvas(), solid(1, 1, red), Placement{}); err == nil {
		t.Error("Compose() with a table canvas should fail")
	}
	if _, err := c.Encode("not an image"); err == nil {
		t.Error("Encode() of a string should fail")
	}
}

func TestImage_DecodeConvertsToNRGBA(t *testing.T) {
	gray := image.NewGray(image.Rect(2, 2, 4, 4))
	got, err := NewImage().Decode(pngBytes(t, gray))
	if err != nil {
		t.Fatal(err)
	}
	img, ok := got.(*image.NRGBA)
	if !ok {
		t.Fatalf("Decode() = %T, want *image.NRGBA", got)
	}
	if img.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Errorf("Decode() bounds = %v, want origin-based 2x2", img.Bounds())
	}
}

func TestTable_Decode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKeys []string
		wantErr  bool
	}{
		{"simple", "a=1\nb=2\n", []string{"a", "b"}, false},
		{"comments and blanks", "# header\n\na = 1\r\n  b=two words \n", []string{"a", "b"}, false},
		{"bom", "\xef\xbb\xbfhello=world", []string{"hello"}, false},
		{"value with equals", "expr=a=b", []string{"expr"}, false},
		{"duplicate keeps first position", "a=1\nb=2\na=3", []string{"a", "b"}, false},
		{"missing equals", "a=1\nbroken\n", nil, true},
		{"empty key", "=value", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTable().Decode([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if keys := got.(*Table).Keys(); !slices.Equal(keys, tt.wantKeys) {
				t.Errorf("Keys() = %v, want %v", keys, tt.wantKeys)
			}
		})
	}
}

func TestTable_Compose(t *testing.T) {
	c := NewTable()
	src, err := c.Decode([]byte("one=1\ntwo=2\nthree=3\nfour=4\n"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		p    Placement
		want string
	}{
		{"all", Placement{}, "base=b\none=1\ntwo=2\nthree=3\nfour=4\n"},
		{"prefix", Placement{Prefix: "ui."}, "base=b\nui.one=1\nui.two=2\nui.three=3\nui.four=4\n"},
		{"range", Placement{FirstLine: 1, LineCount: 2}, "base=b\ntwo=2\nthree=3\n"},
		{"range past end", Placement{FirstLine: 3, LineCount: 10}, "base=b\nfour=4\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst, _ := c.Decode([]byte("base=b"))
			out, err := c.Compose(dst, src, tt.p)
			if err != nil {
				t.Fatalf("Compose() error = %v", err)
			}
			data, err := c.Encode(out)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tt.want {
				t.Errorf("Encode() = %q, want %q", data, tt.want)
			}
		})
	}

	dst, _ := c.Blank(0, 0)
	if _, err := c.Compose(dst, src, Placement{FirstLine: 9}); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Compose() first line past end error = %v, want ErrOutOfBounds", err)
	}
}

func TestTable_OverrideKeepsPosition(t *testing.T) {
	c := NewTable()
	dst, _ := c.Decode([]byte("a=old\nb=keep\n"))
	src, _ := c.Decode([]byte("a=new\n"))

	out, err := c.Compose(dst, src, Placement{})
	if err != nil {
		t.Fatal(err)
	}
	data, _ := c.Encode(out)
	if want := "a=new\nb=keep\n"; string(data) != want {
		t.Errorf("Encode() = %q, want %q", data, want)
	}
}
