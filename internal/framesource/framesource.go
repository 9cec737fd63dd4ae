// Package framesource implements the FrameSource capability (spec.md §2): a
// way to turn a video reference into decoded RGB frames with metadata, plus
// the FrameStore that materializes those frames on disk for the Segmenter.
package framesource

import "image"

// Video is the decoded result of opening a video reference: frames in RGB,
// plus the metadata a Session needs.
type Video struct {
	Frames []image.Image
	FPS    float64
	Width  int
	Height int
}

// FrameSource is the external capability the orchestrator depends on to
// turn a video reference into decoded frames (spec.md §2). The segmentation
// model and the video container format are both out of scope; this
// interface is the seam between them and the core.
type FrameSource interface {
	// Open decodes every frame of the video at ref. The implementations in
	// this package return an error if any single frame fails to decode.
	// Dropping trailing frames past the frame cap is left to the caller.
	Open(ref string) (*Video, error)
}
