package objects

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoseg/internal/framesource"
	"videoseg/internal/logger"
	"videoseg/internal/mask"
	"videoseg/internal/models"
	"videoseg/internal/segmenter"
	"videoseg/internal/session"
)

type nullLogger struct{}

func (nullLogger) Debugf(string, ...interface{}) {}
func (nullLogger) Infof(string, ...interface{})  {}
func (nullLogger) Warnf(string, ...interface{})  {}
func (nullLogger) Errorf(string, ...interface{}) {}
func (n nullLogger) With(...interface{}) logger.Logger { return n }

func newTestSession(t *testing.T, seg segmenter.Segmenter) *session.Session {
	t.Helper()
	var log logger.Logger = nullLogger{}
	mgr := session.NewManager(log, framesource.NewSyntheticFrameSource(), framesource.NewFrameStore(t.TempDir()), seg, session.Config{
		SessionTimeout:        0,
		MaxConcurrentSessions: 10,
		MaxVideoFrames:        50,
		MaxFrameDimension:     256,
		FrameJPEGQuality:      90,
	})
	sess, err := mgr.Open(context.Background(), "synthetic:32x32:5")
	require.NoError(t, err)
	return sess
}

func TestAddObjectCreatesMaskAndTracksObject(t *testing.T) {
	seg := segmenter.NewSimulator()
	sess := newTestSession(t, seg)
	sm := New(seg, nullLogger{})

	m, err := sm.AddObject(context.Background(), sess, 0, 1, []models.Point{{X: 10, Y: 10, Label: models.Positive}}, "cup", "kitchenware")
	require.NoError(t, err)
	assert.False(t, m.Empty())

	obj, ok := sess.Objects[1]
	require.True(t, ok)
	assert.Equal(t, "cup", obj.Name)
	assert.Equal(t, []int{0}, obj.FramesWithMasks())
}

func TestAddObjectRejectsDuplicateID(t *testing.T) {
	seg := segmenter.NewSimulator()
	sess := newTestSession(t, seg)
	sm := New(seg, nullLogger{})

	_, err := sm.AddObject(context.Background(), sess, 0, 1, []models.Point{{X: 10, Y: 10, Label: models.Positive}}, "", "")
	require.NoError(t, err)

	_, err = sm.AddObject(context.Background(), sess, 1, 1, []models.Point{{X: 5, Y: 5, Label: models.Positive}}, "", "")
	assert.Error(t, err)
}

func TestAddObjectRejectsOutOfRangeFrame(t *testing.T) {
	seg := segmenter.NewSimulator()
	sess := newTestSession(t, seg)
	sm := New(seg, nullLogger{})

	_, err := sm.AddObject(context.Background(), sess, 99, 1, []models.Point{{X: 1, Y: 1, Label: models.Positive}}, "", "")
	assert.Error(t, err)
}

func TestAddObjectWithBoxValidatesBoxOrdering(t *testing.T) {
	seg := segmenter.NewSimulator()
	sess := newTestSession(t, seg)
	sm := New(seg, nullLogger{})

	_, err := sm.AddObjectWithBox(context.Background(), sess, 0, 1, models.Box{X1: 10, Y1: 10, X2: 5, Y2: 20}, "", "")
	assert.Error(t, err)

	_, err = sm.AddObjectWithBox(context.Background(), sess, 0, 1, models.Box{X1: 1, Y1: 1, X2: 20, Y2: 20}, "", "")
	assert.NoError(t, err)
}

func TestRefineRequiresExistingObject(t *testing.T) {
	seg := segmenter.NewSimulator()
	sess := newTestSession(t, seg)
	sm := New(seg, nullLogger{})

	_, err := sm.Refine(context.Background(), sess, 0, 1, []models.Point{{X: 1, Y: 1, Label: models.Positive}})
	assert.Error(t, err)
}

func TestRefineReplacesMaskAtFrameOnly(t *testing.T) {
	seg := segmenter.NewSimulator()
	sess := newTestSession(t, seg)
	sm := New(seg, nullLogger{})

	_, err := sm.AddObject(context.Background(), sess, 0, 1, []models.Point{{X: 10, Y: 10, Label: models.Positive}}, "", "")
	require.NoError(t, err)

	refined, err := sm.Refine(context.Background(), sess, 2, 1, []models.Point{{X: 20, Y: 20, Label: models.Positive}})
	require.NoError(t, err)
	assert.False(t, refined.Empty())

	obj := sess.Objects[1]
	assert.ElementsMatch(t, []int{0, 2}, obj.FramesWithMasks())
}

func TestOverrideMaskRollsBackOnInjectionFailure(t *testing.T) {
	seg := &failingInjectSegmenter{Segmenter: segmenter.NewSimulator()}
	sess := newTestSession(t, seg)
	sm := New(seg, nullLogger{})

	_, err := sm.AddObject(context.Background(), sess, 0, 1, []models.Point{{X: 10, Y: 10, Label: models.Positive}}, "", "")
	require.NoError(t, err)
	before := sess.Objects[1].Masks[0]

	uploaded := mask.New(32, 32)
	uploaded.Set(1, 1)

	_, err = sm.OverrideMask(context.Background(), sess, 0, 1, uploaded)
	require.Error(t, err)

	assert.Equal(t, before, sess.Objects[1].Masks[0], "local map must roll back to the pre-override mask")
}

func TestOverrideMaskSucceedsAndRecordsPrompt(t *testing.T) {
	seg := segmenter.NewSimulator()
	sess := newTestSession(t, seg)
	sm := New(seg, nullLogger{})

	_, err := sm.AddObject(context.Background(), sess, 0, 1, []models.Point{{X: 10, Y: 10, Label: models.Positive}}, "", "")
	require.NoError(t, err)

	uploaded := mask.New(32, 32)
	uploaded.Set(5, 5)

	result, err := sm.OverrideMask(context.Background(), sess, 0, 1, uploaded)
	require.NoError(t, err)
	assert.True(t, result.At(5, 5))

	last := sess.Objects[1].Prompts[len(sess.Objects[1].Prompts)-1]
	assert.Equal(t, models.OverrideMaskKind, last.Kind)
}

func TestGetFrameMasksReturnsOnlyKnownFrames(t *testing.T) {
	seg := segmenter.NewSimulator()
	sess := newTestSession(t, seg)
	sm := New(seg, nullLogger{})

	_, err := sm.AddObject(context.Background(), sess, 0, 1, []models.Point{{X: 10, Y: 10, Label: models.Positive}}, "", "")
	require.NoError(t, err)

	masks, err := sm.GetFrameMasks(sess, 0)
	require.NoError(t, err)
	assert.Len(t, masks, 1)

	masks, err = sm.GetFrameMasks(sess, 3)
	require.NoError(t, err)
	assert.Empty(t, masks)
}

// failingInjectSegmenter wraps a Segmenter but forces InjectMask to fail, so
// OverrideMask's rollback path can be exercised deterministically.
type failingInjectSegmenter struct {
	segmenter.Segmenter
}

func (f *failingInjectSegmenter) InjectMask(ctx context.Context, state segmenter.State, frameIdx, objectID int, values []float32) error {
	return assert.AnError
}
