//go:build !cgo

package framesource

import "strings"

// Default returns the cgo-free FrameSource used when no operator-supplied
// FrameSource is configured: "synthetic:..." refs go to SyntheticFrameSource
// (tests, no-accelerator mode), everything else is treated as a frame
// directory. Built with cgo, real video refs are instead decoded by
// GoCVFrameSource (see multi_source_gocv.go).
func Default() FrameSource {
	return &multiSource{
		synthetic: NewSyntheticFrameSource(),
		dir:       NewDirFrameSource(),
	}
}

type multiSource struct {
	synthetic *SyntheticFrameSource
	dir       *DirFrameSource
}

func (m *multiSource) Open(ref string) (*Video, error) {
	if strings.HasPrefix(ref, "synthetic:") {
		return m.synthetic.Open(ref)
	}
	return m.dir.Open(ref)
}
