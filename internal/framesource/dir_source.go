package framesource

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
)

// DirFrameSource treats a video reference as a directory of sequentially
// numbered JPEG or PNG frame images (frame names sort lexically in capture
// order) and decodes each with the standard library. This is the default,
// cgo-free FrameSource: no container demuxing, seeking, or codec work is
// attempted, matching the fact that the real decoder is an external
// collaborator the core only consumes through this interface (spec.md §1).
type DirFrameSource struct {
	// FPS is assumed for directories of frames, which carry no timing
	// metadata of their own.
	FPS float64
}

// NewDirFrameSource returns a DirFrameSource with a conservative default FPS.
func NewDirFrameSource() *DirFrameSource {
	return &DirFrameSource{FPS: 30}
}

// Open implements FrameSource.
func (d *DirFrameSource) Open(ref string) (*Video, error) {
	info, err := os.Stat(ref)
	if err != nil {
		return nil, fmt.Errorf("video path unreadable: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("video path %s is not a frame directory", ref)
	}

	entries, err := os.ReadDir(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to list frame directory %s: %w", ref, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("frame directory %s contains no frames", ref)
	}

	frames := make([]image.Image, 0, len(names))
	var width, height int
	for _, name := range names {
		f, err := os.Open(filepath.Join(ref, name))
		if err != nil {
			return nil, fmt.Errorf("failed to open frame %s: %w", name, err)
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode frame %s: %w", name, err)
		}
		b := img.Bounds()
		if width == 0 {
			width, height = b.Dx(), b.Dy()
		}
		frames = append(frames, img)
	}

	return &Video{Frames: frames, FPS: d.FPS, Width: width, Height: height}, nil
}
