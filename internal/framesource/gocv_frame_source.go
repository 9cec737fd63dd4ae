//go:build cgo

package framesource

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// GoCVFrameSource decodes a real video container via OpenCV's VideoCapture.
// It is gated behind the cgo build tag, the same pattern
// MiFaceDEV-miface/pkg/miface/camera_gocv.go uses for its webcam source,
// because it requires a native OpenCV install the deterministic/test path
// (DirFrameSource, SyntheticFrameSource) must not depend on.
type GoCVFrameSource struct {
	mu sync.Mutex
}

// NewGoCVFrameSource returns a FrameSource backed by OpenCV's video reader.
func NewGoCVFrameSource() *GoCVFrameSource {
	return &GoCVFrameSource{}
}

// Open implements FrameSource.
func (g *GoCVFrameSource) Open(ref string) (*Video, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cap, err := gocv.VideoCaptureFile(ref)
	if err != nil {
		return nil, fmt.Errorf("video path unreadable: %w", err)
	}
	defer cap.Close()

	if !cap.IsOpened() {
		return nil, fmt.Errorf("video path unreadable: could not open %s", ref)
	}

	fps := cap.Get(gocv.VideoCaptureFPS)
	width := int(cap.Get(gocv.VideoCaptureFrameWidth))
	height := int(cap.Get(gocv.VideoCaptureFrameHeight))

	var frames []image.Image
	mat := gocv.NewMat()
	defer mat.Close()

	for cap.Read(&mat) {
		if mat.Empty() {
			continue
		}
		rgb := gocv.NewMat()
		gocv.CvtColor(mat, &rgb, gocv.ColorBGRToRGB)
		img, err := rgb.ToImage()
		rgb.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to convert frame %d: %w", len(frames), err)
		}
		frames = append(frames, img)
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("video path unreadable: no frames decoded from %s", ref)
	}

	return &Video{Frames: frames, FPS: fps, Width: width, Height: height}, nil
}
