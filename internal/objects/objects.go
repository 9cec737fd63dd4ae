// Package objects implements the Tracked-Object State Machine (spec.md
// §4.2): applying object-level operations to a session while keeping the
// Segmenter's per-video state and the session's local object catalog in
// lockstep. Grounded on ericcug-dash2hlsd/internal/session/session.go's
// read-modify-write-under-lock pattern (resultLoop/updatePlaylists),
// applied here to objects[id].masks[frame] instead of availableSegments.
package objects

import (
	"context"

	"videoseg/internal/apierr"
	"videoseg/internal/logger"
	"videoseg/internal/mask"
	"videoseg/internal/models"
	"videoseg/internal/segmenter"
	"videoseg/internal/session"
)

// StateMachine applies object-level operations against sessions, backed by
// a Segmenter.
type StateMachine struct {
	seg segmenter.Segmenter
	log logger.Logger
}

// New returns a StateMachine bound to a Segmenter.
func New(seg segmenter.Segmenter, log logger.Logger) *StateMachine {
	return &StateMachine{seg: seg, log: log}
}

func validateFrameIdx(frameIdx, totalFrames int) error {
	if frameIdx < 0 || frameIdx >= totalFrames {
		return apierr.New(apierr.InvalidArgument, "frame_idx %d out of range [0,%d)", frameIdx, totalFrames)
	}
	return nil
}

func validatePoints(points []models.Point) error {
	for i, p := range points {
		if p.Label != models.Positive && p.Label != models.Negative {
			return apierr.New(apierr.InvalidArgument, "points[%d] has invalid label %d, want 0 or 1", i, p.Label)
		}
	}
	return nil
}

func validateBox(box models.Box, width, height int) error {
	if box.X1 >= box.X2 || box.Y1 >= box.Y2 {
		return apierr.New(apierr.InvalidArgument, "box must satisfy x1<x2 and y1<y2, got (%v,%v,%v,%v)", box.X1, box.Y1, box.X2, box.Y2)
	}
	if box.X1 < 0 || box.Y1 < 0 || box.X2 > float64(width) || box.Y2 > float64(height) {
		return apierr.New(apierr.InvalidArgument, "box (%v,%v,%v,%v) lies outside working frame %dx%d", box.X1, box.Y1, box.X2, box.Y2, width, height)
	}
	return nil
}

func allocateColor(sess *session.Session) models.Color {
	idx := len(sess.Objects) % len(models.Palette)
	return models.Palette[idx]
}

func toSegmenterPoints(points []models.Point) []segmenter.PointPrompt {
	out := make([]segmenter.PointPrompt, len(points))
	for i, p := range points {
		out[i] = segmenter.PointPrompt{X: p.X, Y: p.Y, Label: int(p.Label)}
	}
	return out
}

func (sm *StateMachine) maskFromValues(ctx context.Context, sess *session.Session, values []float32) *mask.Mask {
	var warned string
	m := mask.FromFloat32(sess.FrameWidth, sess.FrameHeight, values, func(w string) { warned = w })
	if warned != "" {
		sm.log.Warnf("session %s: %s", sess.SessionID, warned)
	}
	return m
}

// AddObject implements spec.md §4.2's AddObject operation.
func (sm *StateMachine) AddObject(ctx context.Context, sess *session.Session, frameIdx, objectID int, points []models.Point, name, category string) (*mask.Mask, error) {
	sess.Lock()
	defer sess.Unlock()

	if err := validateFrameIdx(frameIdx, sess.TotalFrames); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, apierr.New(apierr.InvalidArgument, "at least one point prompt is required")
	}
	if err := validatePoints(points); err != nil {
		return nil, err
	}
	if _, exists := sess.Objects[objectID]; exists {
		return nil, apierr.New(apierr.InvalidArgument, "object %d already exists in session %s", objectID, sess.SessionID)
	}

	sm.log.Debugf("session %s: AddObject oid=%d frame=%d points=%d", sess.SessionID, objectID, frameIdx, len(points))

	values, err := sm.seg.AddPrompts(ctx, sess.ModelState, frameIdx, objectID, toSegmenterPoints(points))
	if err != nil {
		return nil, apierr.Wrap(apierr.SegmenterFailed, err, "segmenter failed to add object %d", objectID)
	}

	obj := models.NewTrackedObject(objectID, name, category, allocateColor(sess))
	obj.Prompts = append(obj.Prompts, models.PromptRecord{Kind: models.InitialPoints, FrameIdx: frameIdx, Points: points})
	m := sm.maskFromValues(ctx, sess, values)
	obj.Masks[frameIdx] = m
	sess.Objects[objectID] = obj

	return m, nil
}

// AddObjectWithBox implements spec.md §4.2's box-prompt variant.
func (sm *StateMachine) AddObjectWithBox(ctx context.Context, sess *session.Session, frameIdx, objectID int, box models.Box, name, category string) (*mask.Mask, error) {
	sess.Lock()
	defer sess.Unlock()

	if err := validateFrameIdx(frameIdx, sess.TotalFrames); err != nil {
		return nil, err
	}
	if err := validateBox(box, sess.FrameWidth, sess.FrameHeight); err != nil {
		return nil, err
	}
	if _, exists := sess.Objects[objectID]; exists {
		return nil, apierr.New(apierr.InvalidArgument, "object %d already exists in session %s", objectID, sess.SessionID)
	}

	sm.log.Debugf("session %s: AddObjectWithBox oid=%d frame=%d box=%v", sess.SessionID, objectID, frameIdx, box)

	values, err := sm.seg.AddBoxPrompt(ctx, sess.ModelState, frameIdx, objectID, segmenter.BoxPrompt(box))
	if err != nil {
		return nil, apierr.Wrap(apierr.SegmenterFailed, err, "segmenter failed to add object %d", objectID)
	}

	obj := models.NewTrackedObject(objectID, name, category, allocateColor(sess))
	obj.Prompts = append(obj.Prompts, models.PromptRecord{Kind: models.InitialBox, FrameIdx: frameIdx, Box: &box})
	m := sm.maskFromValues(ctx, sess, values)
	obj.Masks[frameIdx] = m
	sess.Objects[objectID] = obj

	return m, nil
}

// Refine implements spec.md §4.2's Refine operation: the object must
// already exist; the returned mask replaces the mask at (objectID,
// frameIdx) only, leaving other frames untouched until propagation runs.
func (sm *StateMachine) Refine(ctx context.Context, sess *session.Session, frameIdx, objectID int, points []models.Point) (*mask.Mask, error) {
	sess.Lock()
	defer sess.Unlock()

	if err := validateFrameIdx(frameIdx, sess.TotalFrames); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, apierr.New(apierr.InvalidArgument, "at least one point prompt is required")
	}
	if err := validatePoints(points); err != nil {
		return nil, err
	}

	obj, ok := sess.Objects[objectID]
	if !ok {
		return nil, apierr.New(apierr.NotFound, "object %d not found in session %s", objectID, sess.SessionID)
	}

	sm.log.Debugf("session %s: Refine oid=%d frame=%d points=%d", sess.SessionID, objectID, frameIdx, len(points))

	values, err := sm.seg.AddPrompts(ctx, sess.ModelState, frameIdx, objectID, toSegmenterPoints(points))
	if err != nil {
		return nil, apierr.Wrap(apierr.SegmenterFailed, err, "segmenter failed to refine object %d", objectID)
	}

	obj.Prompts = append(obj.Prompts, models.PromptRecord{Kind: models.RefinementPoints, FrameIdx: frameIdx, Points: points})
	m := sm.maskFromValues(ctx, sess, values)
	obj.Masks[frameIdx] = m

	return m, nil
}

// OverrideMask implements spec.md §4.2's OverrideMask operation. The local
// map and the Segmenter state must not diverge: if injection fails, the
// local store is rolled back to its pre-override value and the operation
// is reported as failed.
func (sm *StateMachine) OverrideMask(ctx context.Context, sess *session.Session, frameIdx, objectID int, uploaded *mask.Mask) (*mask.Mask, error) {
	sess.Lock()
	defer sess.Unlock()

	if err := validateFrameIdx(frameIdx, sess.TotalFrames); err != nil {
		return nil, err
	}
	obj, ok := sess.Objects[objectID]
	if !ok {
		return nil, apierr.New(apierr.NotFound, "object %d not found in session %s", objectID, sess.SessionID)
	}

	normalized := uploaded.Normalize(sess.FrameWidth, sess.FrameHeight)

	previous, hadPrevious := obj.Masks[frameIdx]
	obj.Masks[frameIdx] = normalized

	values := make([]float32, sess.FrameWidth*sess.FrameHeight)
	for i, v := range normalized.Pix {
		if v != 0 {
			values[i] = 1
		} else {
			values[i] = -1
		}
	}

	if err := sm.seg.InjectMask(ctx, sess.ModelState, frameIdx, objectID, values); err != nil {
		// Roll back the local map so it cannot diverge from the
		// Segmenter's unchanged state (spec.md §4.2).
		if hadPrevious {
			obj.Masks[frameIdx] = previous
		} else {
			delete(obj.Masks, frameIdx)
		}
		return nil, apierr.Wrap(apierr.SegmenterFailed, err, "segmenter failed to inject override for object %d frame %d", objectID, frameIdx)
	}

	obj.Prompts = append(obj.Prompts, models.PromptRecord{Kind: models.OverrideMaskKind, FrameIdx: frameIdx})

	return normalized, nil
}

// GetFrameMasks implements spec.md §4.2's GetFrameMasks operation,
// returning only objects with a known mask at frameIdx.
func (sm *StateMachine) GetFrameMasks(sess *session.Session, frameIdx int) (map[int]*mask.Mask, error) {
	sess.Lock()
	defer sess.Unlock()

	if err := validateFrameIdx(frameIdx, sess.TotalFrames); err != nil {
		return nil, err
	}

	out := make(map[int]*mask.Mask)
	for id, obj := range sess.Objects {
		if m, ok := obj.Masks[frameIdx]; ok {
			out[id] = m
		}
	}
	return out, nil
}
