//go:build cgo

package framesource

import "strings"

// Default returns the FrameSource used when no operator-supplied FrameSource
// is configured, for builds with cgo (and therefore OpenCV) available:
// "synthetic:..." refs still go to SyntheticFrameSource (tests, no-
// accelerator mode), but real video refs are decoded by GoCVFrameSource
// instead of the plain directory-of-frames stand-in, mirroring
// MiFaceDEV-miface's cmd/miface wiring its OpenCV camera behind the same
// build tag.
func Default() FrameSource {
	return &multiSourceGoCV{
		synthetic: NewSyntheticFrameSource(),
		gocv:      NewGoCVFrameSource(),
	}
}

type multiSourceGoCV struct {
	synthetic *SyntheticFrameSource
	gocv      *GoCVFrameSource
}

func (m *multiSourceGoCV) Open(ref string) (*Video, error) {
	if strings.HasPrefix(ref, "synthetic:") {
		return m.synthetic.Open(ref)
	}
	return m.gocv.Open(ref)
}
