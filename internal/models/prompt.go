// Package models holds the orchestrator's domain value types: prompts,
// tracked objects, and jobs (spec.md §3).
package models

// PointLabel is the prompt polarity: positive (foreground) or negative
// (background).
type PointLabel int

const (
	Negative PointLabel = 0
	Positive PointLabel = 1
)

// Point is a single point prompt in the session's working frame dimensions.
type Point struct {
	X     float64
	Y     float64
	Label PointLabel
}

// Box is a box prompt; callers must validate X1 < X2 and Y1 < Y2 before use.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// PromptKind identifies which variant a PromptRecord holds.
type PromptKind string

const (
	InitialPoints    PromptKind = "initial_points"
	InitialBox       PromptKind = "initial_box"
	RefinementPoints PromptKind = "refinement_points"
	OverrideMaskKind PromptKind = "override_mask"
)

// PromptRecord is one entry in a TrackedObject's append-only prompt history.
type PromptRecord struct {
	Kind     PromptKind
	FrameIdx int
	Points   []Point // InitialPoints, RefinementPoints
	Box      *Box    // InitialBox
}
