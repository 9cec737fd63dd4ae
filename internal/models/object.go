package models

import (
	"sort"

	"videoseg/internal/mask"
)

// Color is an RGB triple assigned round-robin from a fixed palette at
// object creation (spec.md §3).
type Color struct {
	R, G, B uint8
}

// Palette is the fixed, round-robin color assignment palette. Order matches
// a typical qualitative annotation palette: visually distinct, colorblind
// tolerant enough for a first pass.
var Palette = []Color{
	{230, 25, 75},
	{60, 180, 75},
	{255, 225, 25},
	{0, 130, 200},
	{245, 130, 48},
	{145, 30, 180},
	{70, 240, 240},
	{240, 50, 230},
	{210, 245, 60},
	{250, 190, 212},
}

// TrackedObject is the in-memory record of one tracked object within a
// session: identity, visual metadata, prompt history, and per-frame masks.
type TrackedObject struct {
	ObjectID int
	Name     string
	Category string
	Color    Color

	// Prompts is append-only and preserves order of application.
	Prompts []PromptRecord

	// Masks maps frame_idx to the mask known for this object at that frame.
	Masks map[int]*mask.Mask
}

// NewTrackedObject creates an object with no prompts or masks yet; the
// caller appends the initial prompt record and mask once the Segmenter call
// succeeds, keeping the two in lockstep per spec.md §4.2's invariant.
func NewTrackedObject(objectID int, name, category string, color Color) *TrackedObject {
	return &TrackedObject{
		ObjectID: objectID,
		Name:     name,
		Category: category,
		Color:    color,
		Prompts:  nil,
		Masks:    make(map[int]*mask.Mask),
	}
}

// FramesWithMasks returns the sorted set of frame indices this object has a
// mask for, used by the Get-session response.
func (o *TrackedObject) FramesWithMasks() []int {
	frames := make([]int, 0, len(o.Masks))
	for f := range o.Masks {
		frames = append(frames, f)
	}
	sort.Ints(frames)
	return frames
}
