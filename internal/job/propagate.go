package job

import (
	"context"
	"time"

	"videoseg/internal/apierr"
	"videoseg/internal/logger"
	"videoseg/internal/mask"
	"videoseg/internal/models"
	"videoseg/internal/segmenter"
	"videoseg/internal/session"
)

// Direction is the propagation direction of spec.md §4.3.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
	Both     Direction = "both"
)

// PropagateRequest is the Propagate operation's input (spec.md §4.3).
// StartFrame/EndFrame use -1 as "not provided", defaulting to 0 and
// total_frames-1 respectively.
type PropagateRequest struct {
	SessionID  string
	StartFrame int
	EndFrame   int
	Direction  Direction
}

// SessionGetter is the narrow view of a session.Manager the propagation
// task body needs: looking a session up by id. Propagation tasks hold only
// this reference, resolving the session at submission and again when the
// task starts running rather than closing over a *Session directly, so a
// session closed before the run starts fails the job with NotFound. The
// session is not looked up again during the stream: a session closed while
// the task is streaming is not detected, and the task runs to the end
// against it.
type SessionGetter interface {
	Get(id string) (*session.Session, bool)
}

// Propagator builds propagation Tasks bound to a session manager and a
// Segmenter, and submits them through a job Manager.
type Propagator struct {
	sessions         SessionGetter
	seg              segmenter.Segmenter
	log              logger.Logger
	touchEvery       int
	progressLogEvery int
}

// NewPropagator returns a Propagator. touchEvery/progressLogEvery are the
// frame cadences of spec.md §4.3 and §6 (touch_every, progress_log_every).
func NewPropagator(sessions SessionGetter, seg segmenter.Segmenter, log logger.Logger, touchEvery, progressLogEvery int) *Propagator {
	if touchEvery <= 0 {
		touchEvery = 10
	}
	if progressLogEvery <= 0 {
		progressLogEvery = 50
	}
	return &Propagator{sessions: sessions, seg: seg, log: log, touchEvery: touchEvery, progressLogEvery: progressLogEvery}
}

// Submit validates the request against spec.md §4.3's preconditions and, if
// valid, submits a propagation Task to mgr, returning the job id.
func (p *Propagator) Submit(mgr *Manager, req PropagateRequest) (string, error) {
	sess, ok := p.sessions.Get(req.SessionID)
	if !ok {
		return "", apierr.New(apierr.NotFound, "session %s not found", req.SessionID)
	}

	sess.Lock()
	objectCount := len(sess.Objects)
	total := sess.TotalFrames
	sess.Unlock()

	if objectCount == 0 {
		return "", apierr.New(apierr.InvalidArgument, "session %s has no tracked objects to propagate", req.SessionID)
	}

	start, end, dir := req.StartFrame, req.EndFrame, req.Direction
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end = total - 1
	}
	if dir == "" {
		dir = Both
	}
	if start < 0 || start >= total || end < start || end >= total {
		return "", apierr.New(apierr.InvalidArgument, "invalid frame range [%d,%d] for %d total frames", start, end, total)
	}

	params := map[string]any{
		"session_id":  req.SessionID,
		"start_frame": start,
		"end_frame":   end,
		"direction":   string(dir),
	}

	jobID := mgr.Submit("propagate_masks", p.task(req.SessionID, start, end, dir), params)
	return jobID, nil
}

// task builds the Task body described in spec.md §4.3's five numbered
// steps.
func (p *Propagator) task(sessionID string, start, end int, dir Direction) Task {
	return func(ctx context.Context, progress func(pct float64)) (*models.JobResult, error) {
		sess, ok := p.sessions.Get(sessionID)
		if !ok {
			return nil, apierr.New(apierr.NotFound, "session %s not found", sessionID)
		}

		sess.Lock()
		defer sess.Unlock()

		log := p.log.With("session_id", sessionID, "direction", string(dir))

		lowestSeed, highestSeed, hasSeed := seedFrameBounds(sess.Objects)

		stream, err := p.seg.StreamPropagation(ctx, sess.ModelState)
		if err != nil {
			return nil, apierr.Wrap(apierr.SegmenterFailed, err, "failed to start propagation stream")
		}
		defer stream.Close()

		total := sess.TotalFrames
		framesCovered := 0
		objectSeen := make(map[int]struct{})
		framesSinceTouch := 0
		framesSinceLog := 0

		for {
			select {
			case <-ctx.Done():
				return nil, apierr.New(apierr.Cancelled, "propagation for session %s cancelled", sessionID)
			default:
			}

			pf, ok, err := stream.Next()
			if err != nil {
				// Masks already written to the session for earlier frames
				// are kept, not rolled back.
				return nil, apierr.Wrap(apierr.SegmenterFailed, err, "propagation stream failed")
			}
			if !ok {
				break
			}

			if !inDirectionRange(pf.FrameIdx, start, end, dir, lowestSeed, highestSeed, hasSeed) {
				continue
			}

			for _, om := range pf.Objects {
				obj, exists := sess.Objects[om.ObjectID]
				if !exists {
					continue
				}
				// Seeds (explicit initial/refinement/override masks) are
				// never overwritten by propagation, per spec.md §4.3's
				// direction semantics: the Segmenter is expected to honor
				// them through InjectMask, but the orchestrator enforces
				// it defensively here too.
				if isSeedFrame(obj, pf.FrameIdx) {
					continue
				}
				var warned string
				m := mask.FromFloat32(sess.FrameWidth, sess.FrameHeight, om.Values, func(w string) { warned = w })
				if warned != "" {
					log.Warnf("%s", warned)
				}
				obj.Masks[pf.FrameIdx] = m
				objectSeen[om.ObjectID] = struct{}{}
			}
			framesCovered++

			framesSinceTouch++
			if framesSinceTouch >= p.touchEvery {
				sess.LastAccessed = time.Now()
				framesSinceTouch = 0
			}

			framesSinceLog++
			if framesSinceLog >= p.progressLogEvery {
				pct := float64(pf.FrameIdx-start+1) / float64(end-start+1) * 100
				if pct > 100 {
					pct = 100
				}
				log.Infof("propagation at frame %d/%d (%.1f%%)", pf.FrameIdx, total, pct)
				progress(pct)
				framesSinceLog = 0
			}
		}

		objectIDs := make([]int, 0, len(objectSeen))
		for id := range objectSeen {
			objectIDs = append(objectIDs, id)
		}

		return &models.JobResult{
			SessionID:     sessionID,
			TotalFrames:   total,
			FramesCovered: framesCovered,
			ObjectIDs:     objectIDs,
		}, nil
	}
}

// isSeedFrame reports whether obj has an explicit (non-propagated) prompt
// record at frameIdx: an initial points/box prompt, a refinement, or an
// override. Propagation must not overwrite these (spec.md §4.3).
func isSeedFrame(obj *models.TrackedObject, frameIdx int) bool {
	for _, pr := range obj.Prompts {
		if pr.FrameIdx == frameIdx {
			return true
		}
	}
	return false
}

// seedFrameBounds scans every object's prompt history for the lowest and
// highest frame index carrying an explicit (non-propagated) prompt:
// forward propagation only reaches forward from the lowest such frame,
// backward only reaches backward from the highest (spec.md §4.3's
// direction semantics). ok is false when no object has a seed yet, in
// which case the caller should not narrow the range.
func seedFrameBounds(objects map[int]*models.TrackedObject) (lowest, highest int, ok bool) {
	for _, obj := range objects {
		for _, pr := range obj.Prompts {
			if !ok || pr.FrameIdx < lowest {
				lowest = pr.FrameIdx
			}
			if !ok || pr.FrameIdx > highest {
				highest = pr.FrameIdx
			}
			ok = true
		}
	}
	return lowest, highest, ok
}

// inDirectionRange implements the direction semantics of spec.md §4.3:
// forward propagates from the lowest seeded frame toward end, backward
// propagates from the highest seeded frame toward start, and both covers
// the whole [start, end] range. Every direction stays bounded to
// [start, end] regardless.
func inDirectionRange(frameIdx, start, end int, dir Direction, lowestSeed, highestSeed int, hasSeed bool) bool {
	if frameIdx < start || frameIdx > end {
		return false
	}
	if !hasSeed {
		return true
	}
	switch dir {
	case Forward:
		return frameIdx >= lowestSeed
	case Backward:
		return frameIdx <= highestSeed
	default:
		return true
	}
}

