// Package mask implements the orchestrator's mask data type and the
// boundary codec between the core's internal bool grid and the wire format
// (PNG-encoded single-channel image, base64 text; spec.md §3 and §6).
package mask

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/nfnt/resize"
)

// Mask is a 2-D boolean grid sized to a session's working frame dimensions.
// Pixels are either set (foreground, encodes to 255) or unset (background,
// encodes to 0); there is no third value. The one exception is the result of
// DecodePNGBase64, which holds raw gray levels until Normalize thresholds it.
type Mask struct {
	Width  int
	Height int
	// Pix is row-major, one byte per pixel: 0 or 255. Kept byte-sized rather
	// than packed bits so resize/threshold can operate on it directly without
	// a bit-unpacking pass on every call.
	Pix []byte
}

// New allocates an all-zero mask of the given dimensions.
func New(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Pix: make([]byte, width*height)}
}

// At reports whether the pixel at (x, y) is set.
func (m *Mask) At(x, y int) bool {
	return m.Pix[y*m.Width+x] != 0
}

// Set marks the pixel at (x, y) as foreground.
func (m *Mask) Set(x, y int) {
	m.Pix[y*m.Width+x] = 255
}

// Empty reports whether every pixel is background.
func (m *Mask) Empty() bool {
	for _, p := range m.Pix {
		if p != 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy, so callers can store a mask without aliasing a
// buffer a Segmenter might still be writing to.
func (m *Mask) Clone() *Mask {
	cp := &Mask{Width: m.Width, Height: m.Height, Pix: make([]byte, len(m.Pix))}
	copy(cp.Pix, m.Pix)
	return cp
}

// FromFloat32 builds a Mask from a row-major grid of raw model logits/probs,
// thresholding at 0 (matching the Segmenter's convention for a binary mask
// channel). If any value is non-finite, or the value count does not match
// width*height, the whole result is an empty mask of the correct shape
// (spec.md §3's "dirty NaN/out-of-range values ... replaced by an empty
// mask" invariant). warn is called once if the values had to be sanitized.
func FromFloat32(width, height int, values []float32, warn func(string)) *Mask {
	if len(values) != width*height {
		if warn != nil {
			warn(fmt.Sprintf("mask data length %d does not match %dx%d, using empty mask", len(values), width, height))
		}
		return New(width, height)
	}

	dirty := false
	out := New(width, height)
	for i, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			dirty = true
			continue
		}
		if f > 0 {
			out.Pix[i] = 255
		}
	}
	if dirty {
		if warn != nil {
			warn("mask contained non-finite values, replacing with an empty mask of the correct shape")
		}
		return New(width, height)
	}
	return out
}

// EncodePNGBase64 PNG-encodes the mask as a single-channel (grayscale) image
// and returns it as base64 text, the wire format of spec.md §6.
func (m *Mask) EncodePNGBase64() (string, error) {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	copy(img.Pix, m.Pix)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to PNG-encode mask: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodePNGBase64 decodes a base64 PNG (grayscale, RGB, or RGBA) into a raw
// single-channel byte grid at the image's native dimensions. It does not
// resize or threshold — callers that need working-dimension, {0,255} output
// should call Normalize on the result.
func DecodePNGBase64(b64 string) (*Mask, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 mask payload: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid PNG mask payload: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := New(w, h)

	// Per the first documented Open Question: multi-channel uploads are
	// reduced by taking the first channel (R for RGB/RGBA, the sole channel
	// for Gray), not max-across-channels. See Normalize's doc comment.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// RGBA() returns 16-bit-scaled components; downscale to 8-bit.
			out.Pix[y*w+x] = byte(r >> 8)
		}
	}
	return out, nil
}

// Normalize converts an arbitrary decoded upload into the canonical working
// form required by OverrideMask (spec.md §4.2): resized to (width, height)
// with nearest-neighbor interpolation to preserve binariness, then
// thresholded at 128 into exactly {0, 255}.
//
// Open Question #1 (spec.md §9): the source thresholds only the first
// channel of multi-channel input. We fix that choice here — DecodePNGBase64
// already reduced to the first (red, or sole gray) channel, so Normalize's
// job is purely resize-then-threshold.
func (m *Mask) Normalize(width, height int) *Mask {
	resized := m
	if m.Width != width || m.Height != height {
		gray := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
		copy(gray.Pix, m.Pix)
		scaled := resize.Resize(uint(width), uint(height), gray, resize.NearestNeighbor)
		resized = New(width, height)
		b := scaled.Bounds()
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, _, _, _ := scaled.At(b.Min.X+x, b.Min.Y+y).RGBA()
				resized.Pix[y*width+x] = byte(r >> 8)
			}
		}
	}

	out := New(width, height)
	for i, v := range resized.Pix {
		if v >= 128 {
			out.Pix[i] = 255
		}
	}
	return out
}
