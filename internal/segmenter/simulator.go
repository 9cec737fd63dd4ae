package segmenter

import (
	"context"
	"fmt"
	"sync"
)

// Simulator is a deterministic, no-accelerator Segmenter used for tests and
// for operators without a GPU (spec.md §9). It draws a disc of fixed radius
// around each positive point (subtracting discs around negative points) for
// prompts, and repeats the nearest seed mask unchanged on every frame for
// propagation — enough to exercise the full state machine and job pipeline
// without depending on any real model.
type Simulator struct {
	// Radius is the disc radius, in pixels, used for point prompts.
	Radius int
}

// NewSimulator returns a Simulator with a reasonable default radius.
func NewSimulator() *Simulator {
	return &Simulator{Radius: 30}
}

type simState struct {
	mu          sync.Mutex
	framesDir   string
	totalFrames int
	width       int
	height      int
	// seeds holds the last explicitly-set (prompt or override) mask for
	// each object, keyed by frame index, used as the anchor propagation
	// warps outward from.
	seeds map[int]map[int][]float32 // objectID -> frameIdx -> values
	// objectOrder preserves first-seen order so StreamPropagation has a
	// deterministic object iteration order.
	objectOrder []int
}

// PrepareVideoState implements Segmenter.
func (s *Simulator) PrepareVideoState(_ context.Context, framesDir string, totalFrames, width, height int) (State, error) {
	if totalFrames <= 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("simulator: invalid video dimensions %dx%d x%d frames", width, height, totalFrames)
	}
	return &simState{
		framesDir:   framesDir,
		totalFrames: totalFrames,
		width:       width,
		height:      height,
		seeds:       make(map[int]map[int][]float32),
	}, nil
}

func (s *Simulator) discMask(st *simState, points []PointPrompt) []float32 {
	values := make([]float32, st.width*st.height)
	for i := range values {
		values[i] = -1
	}
	for _, p := range points {
		sign := float32(-1)
		if p.Label == 1 {
			sign = 1
		}
		cx, cy := int(p.X), int(p.Y)
		r2 := s.Radius * s.Radius
		for y := cy - s.Radius; y <= cy+s.Radius; y++ {
			if y < 0 || y >= st.height {
				continue
			}
			for x := cx - s.Radius; x <= cx+s.Radius; x++ {
				if x < 0 || x >= st.width {
					continue
				}
				dx, dy := x-cx, y-cy
				if dx*dx+dy*dy <= r2 {
					idx := y*st.width + x
					values[idx] = sign
				}
			}
		}
	}
	return values
}

func (s *Simulator) boxMask(st *simState, box BoxPrompt) []float32 {
	values := make([]float32, st.width*st.height)
	for i := range values {
		values[i] = -1
	}
	x1, y1, x2, y2 := int(box.X1), int(box.Y1), int(box.X2), int(box.Y2)
	for y := y1; y < y2 && y < st.height; y++ {
		if y < 0 {
			continue
		}
		for x := x1; x < x2 && x < st.width; x++ {
			if x < 0 {
				continue
			}
			values[y*st.width+x] = 1
		}
	}
	return values
}

func (s *Simulator) recordSeed(st *simState, objectID, frameIdx int, values []float32) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.seeds[objectID]; !ok {
		st.seeds[objectID] = make(map[int][]float32)
		st.objectOrder = append(st.objectOrder, objectID)
	}
	st.seeds[objectID][frameIdx] = values
}

// AddPrompts implements Segmenter.
func (s *Simulator) AddPrompts(_ context.Context, state State, frameIdx, objectID int, points []PointPrompt) ([]float32, error) {
	st := state.(*simState)
	if frameIdx < 0 || frameIdx >= st.totalFrames {
		return nil, fmt.Errorf("simulator: frame %d out of range [0,%d)", frameIdx, st.totalFrames)
	}
	values := s.discMask(st, points)
	s.recordSeed(st, objectID, frameIdx, values)
	return values, nil
}

// AddBoxPrompt implements Segmenter.
func (s *Simulator) AddBoxPrompt(_ context.Context, state State, frameIdx, objectID int, box BoxPrompt) ([]float32, error) {
	st := state.(*simState)
	if frameIdx < 0 || frameIdx >= st.totalFrames {
		return nil, fmt.Errorf("simulator: frame %d out of range [0,%d)", frameIdx, st.totalFrames)
	}
	values := s.boxMask(st, box)
	s.recordSeed(st, objectID, frameIdx, values)
	return values, nil
}

// InjectMask implements Segmenter.
func (s *Simulator) InjectMask(_ context.Context, state State, frameIdx, objectID int, values []float32) error {
	st := state.(*simState)
	if frameIdx < 0 || frameIdx >= st.totalFrames {
		return fmt.Errorf("simulator: frame %d out of range [0,%d)", frameIdx, st.totalFrames)
	}
	cp := make([]float32, len(values))
	copy(cp, values)
	s.recordSeed(st, objectID, frameIdx, cp)
	return nil
}

// Reset implements Segmenter.
func (s *Simulator) Reset(_ context.Context, state State) error {
	st := state.(*simState)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.seeds = make(map[int]map[int][]float32)
	st.objectOrder = nil
	return nil
}

// StreamPropagation implements Segmenter.
func (s *Simulator) StreamPropagation(ctx context.Context, state State) (Propagation, error) {
	st := state.(*simState)
	st.mu.Lock()
	objectIDs := append([]int(nil), st.objectOrder...)
	seeds := make(map[int]map[int][]float32, len(st.seeds))
	for oid, byFrame := range st.seeds {
		cp := make(map[int][]float32, len(byFrame))
		for f, v := range byFrame {
			cp[f] = v
		}
		seeds[oid] = cp
	}
	st.mu.Unlock()

	return &simPropagation{
		ctx:         ctx,
		totalFrames: st.totalFrames,
		width:       st.width,
		height:      st.height,
		objectIDs:   objectIDs,
		seeds:       seeds,
		frame:       0,
	}, nil
}

// simPropagation walks frames 0..totalFrames-1 in order. For each object it
// uses the nearest seed frame at or before the current frame (holding the
// seed's shape steady — a "warp" in name only, since the simulator's job is
// determinism, not visual realism) so that seeded frames themselves are
// returned byte-identical to their seed, satisfying the "seed frames are
// not overwritten" invariant trivially.
type simPropagation struct {
	ctx         context.Context
	totalFrames int
	width       int
	height      int
	objectIDs   []int
	seeds       map[int]map[int][]float32
	frame       int
}

func (p *simPropagation) Next() (PropagatedFrame, bool, error) {
	if p.frame >= p.totalFrames {
		return PropagatedFrame{}, false, nil
	}
	select {
	case <-p.ctx.Done():
		return PropagatedFrame{}, false, nil
	default:
	}

	f := p.frame
	p.frame++

	out := PropagatedFrame{FrameIdx: f}
	for _, oid := range p.objectIDs {
		byFrame := p.seeds[oid]
		values := nearestSeed(byFrame, f, p.width*p.height)
		if values == nil {
			continue
		}
		out.Objects = append(out.Objects, ObjectMask{ObjectID: oid, Values: values})
	}
	return out, true, nil
}

func (p *simPropagation) Close() error { return nil }

// nearestSeed returns the seed values for the frame at or immediately
// preceding target, falling back to the earliest seed after target if none
// precedes it (so objects seeded only later in the video still produce a
// mask on earlier frames once propagation has passed through them).
func nearestSeed(byFrame map[int][]float32, target int, size int) []float32 {
	if len(byFrame) == 0 {
		return make([]float32, size)
	}
	bestBefore, haveBefore := -1, false
	bestAfter, haveAfter := -1, false
	for f := range byFrame {
		if f <= target && (!haveBefore || f > bestBefore) {
			bestBefore, haveBefore = f, true
		}
		if f >= target && (!haveAfter || f < bestAfter) {
			bestAfter, haveAfter = f, true
		}
	}
	if haveBefore {
		return byFrame[bestBefore]
	}
	if haveAfter {
		return byFrame[bestAfter]
	}
	return make([]float32, size)
}
