// Package segmenter defines the Segmenter capability the orchestrator core
// depends on (spec.md §9) and a deterministic Simulator implementation
// required for tests and a no-accelerator mode. The real segmentation model
// is explicitly out of scope (spec.md §1); this package never reaches into
// any specific framework.
package segmenter

import "context"

// State is an opaque per-video handle prepared by a Segmenter against a
// frame directory. The core never inspects it — it only sequences calls
// against it (spec.md §9, "per-video state as opaque handle").
type State interface{}

// PropagatedFrame is one streamed item from StreamPropagation: a frame
// index and the masks produced for every object known at that point.
type PropagatedFrame struct {
	FrameIdx int
	Objects  []ObjectMask
}

// ObjectMask pairs an object id with the mask data the Segmenter produced
// for it on one frame. Values is a row-major grid matching State's working
// dimensions; it is not yet a mask.Mask because this package must not
// depend on internal/mask's wire-codec concerns — the caller (internal/job)
// does that conversion.
type ObjectMask struct {
	ObjectID int
	Values   []float32
}

// Segmenter is the abstract capability: given a prepared per-video state, a
// frame index, and prompts, mutate the state and return the resulting
// mask(s); given a prepared state, yield per-frame (object-id → mask)
// tuples in streaming order.
type Segmenter interface {
	// PrepareVideoState binds a new per-video state to a frame directory
	// containing sequentially-numbered frame images.
	PrepareVideoState(ctx context.Context, framesDir string, totalFrames, width, height int) (State, error)

	// AddPrompts adds an object (or extends an existing one) at frameIdx
	// with the given point prompts and returns the resulting mask values
	// for that object at that frame.
	AddPrompts(ctx context.Context, state State, frameIdx, objectID int, points []PointPrompt) ([]float32, error)

	// AddBoxPrompt is AddPrompts' box-prompt counterpart.
	AddBoxPrompt(ctx context.Context, state State, frameIdx, objectID int, box BoxPrompt) ([]float32, error)

	// InjectMask tells the Segmenter to treat the given mask as ground
	// truth for (objectID, frameIdx), so subsequent propagation honors it.
	InjectMask(ctx context.Context, state State, frameIdx, objectID int, values []float32) error

	// StreamPropagation yields per-frame, per-object mask tuples in
	// ascending frame order across the prepared state's full span. The
	// returned iterator must be consumed to completion or explicitly
	// stopped; ctx cancellation ends the stream early.
	StreamPropagation(ctx context.Context, state State) (Propagation, error)

	// Reset releases any resources PrepareVideoState allocated for state.
	Reset(ctx context.Context, state State) error
}

// PointPrompt mirrors models.Point without importing internal/models, to
// keep this package's dependency surface limited to what it actually needs.
type PointPrompt struct {
	X, Y  float64
	Label int // 0 negative, 1 positive
}

// BoxPrompt mirrors models.Box.
type BoxPrompt struct {
	X1, Y1, X2, Y2 float64
}

// Propagation is a pull-based stream of PropagatedFrame values. It is
// modeled as an explicit Next/Close pair rather than a Go 1.23 iterator
// function so the job scheduler can check a cancellation flag between
// calls to Next without the iterator needing to know about cancellation
// itself (spec.md §5's "cooperative, checked each frame boundary").
type Propagation interface {
	// Next returns the next frame's masks, or ok=false once the stream is
	// exhausted or ctx passed to StreamPropagation was cancelled.
	Next() (frame PropagatedFrame, ok bool, err error)
	// Close releases any resources held by the stream.
	Close() error
}
