package framesource

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
)

// SyntheticFrameSource generates frames procedurally instead of decoding a
// file, so tests and the no-accelerator mode (spec.md §9) don't need real
// video fixtures on disk. A ref of the form "synthetic:WIDTHxHEIGHT:COUNT"
// (e.g. "synthetic:640x480:100") selects the dimensions and frame count;
// each frame is a flat gray field whose brightness increments with the
// frame index, enough to make frames distinguishable in tests without
// needing real footage.
type SyntheticFrameSource struct {
	FPS float64
}

// NewSyntheticFrameSource returns a SyntheticFrameSource with a default FPS.
func NewSyntheticFrameSource() *SyntheticFrameSource {
	return &SyntheticFrameSource{FPS: 30}
}

// Open implements FrameSource.
func (s *SyntheticFrameSource) Open(ref string) (*Video, error) {
	width, height, count, err := parseSyntheticRef(ref)
	if err != nil {
		return nil, err
	}

	frames := make([]image.Image, count)
	for i := 0; i < count; i++ {
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		level := uint8(i % 256)
		fill := color.RGBA{R: level, G: level, B: level, A: 255}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.Set(x, y, fill)
			}
		}
		frames[i] = img
	}

	return &Video{Frames: frames, FPS: s.FPS, Width: width, Height: height}, nil
}

func parseSyntheticRef(ref string) (width, height, count int, err error) {
	const prefix = "synthetic:"
	if !strings.HasPrefix(ref, prefix) {
		return 0, 0, 0, fmt.Errorf("not a synthetic video ref: %s", ref)
	}
	rest := strings.TrimPrefix(ref, prefix)
	parts := strings.Split(rest, ":")
	if len(parts) != 2 {
		return 0, 0, 0, fmt.Errorf("malformed synthetic ref %q, want synthetic:WIDTHxHEIGHT:COUNT", ref)
	}
	dims := strings.Split(parts[0], "x")
	if len(dims) != 2 {
		return 0, 0, 0, fmt.Errorf("malformed synthetic dimensions %q, want WIDTHxHEIGHT", parts[0])
	}
	width, err = strconv.Atoi(dims[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid width in synthetic ref: %w", err)
	}
	height, err = strconv.Atoi(dims[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid height in synthetic ref: %w", err)
	}
	count, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid frame count in synthetic ref: %w", err)
	}
	return width, height, count, nil
}
