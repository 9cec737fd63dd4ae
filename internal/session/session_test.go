package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoseg/internal/framesource"
	"videoseg/internal/logger"
	"videoseg/internal/segmenter"
)

type nullLogger struct{}

func (nullLogger) Debugf(string, ...interface{}) {}
func (nullLogger) Infof(string, ...interface{})  {}
func (nullLogger) Warnf(string, ...interface{})  {}
func (nullLogger) Errorf(string, ...interface{}) {}
func (n nullLogger) With(...interface{}) logger.Logger { return n }

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	source := framesource.NewSyntheticFrameSource()
	store := framesource.NewFrameStore(t.TempDir())
	seg := segmenter.NewSimulator()
	var log logger.Logger = nullLogger{}
	return NewManager(log, source, store, seg, cfg)
}

func defaultConfig() Config {
	return Config{
		SessionTimeout:        time.Hour,
		MaxConcurrentSessions: 2,
		MaxVideoFrames:        100,
		MaxFrameDimension:     256,
		FrameJPEGQuality:      90,
	}
}

func TestOpenCreatesSession(t *testing.T) {
	mgr := newTestManager(t, defaultConfig())
	sess, err := mgr.Open(context.Background(), "synthetic:32x32:5")
	require.NoError(t, err)

	assert.NotEmpty(t, sess.SessionID)
	assert.Equal(t, 5, sess.TotalFrames)
	assert.Equal(t, 32, sess.FrameWidth)
	assert.Equal(t, 32, sess.FrameHeight)
	assert.Equal(t, 1, mgr.Count())
}

func TestOpenTruncatesOverlongVideos(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxVideoFrames = 3
	mgr := newTestManager(t, cfg)

	sess, err := mgr.Open(context.Background(), "synthetic:16x16:10")
	require.NoError(t, err)
	assert.Equal(t, 3, sess.TotalFrames)
}

func TestOpenRejectsUnreadableVideo(t *testing.T) {
	mgr := newTestManager(t, defaultConfig())
	_, err := mgr.Open(context.Background(), "/no/such/directory")
	assert.Error(t, err)
}

func TestOpenEnforcesAdmissionCap(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxConcurrentSessions = 1
	mgr := newTestManager(t, cfg)

	_, err := mgr.Open(context.Background(), "synthetic:16x16:2")
	require.NoError(t, err)

	_, err = mgr.Open(context.Background(), "synthetic:16x16:2")
	assert.Error(t, err)
}

func TestGetTouchesLastAccessed(t *testing.T) {
	mgr := newTestManager(t, defaultConfig())
	sess, err := mgr.Open(context.Background(), "synthetic:16x16:2")
	require.NoError(t, err)

	sess.mutex.Lock()
	sess.LastAccessed = time.Now().Add(-time.Hour)
	sess.mutex.Unlock()

	_, ok := mgr.Get(sess.SessionID)
	require.True(t, ok)

	sess.mutex.Lock()
	idle := time.Since(sess.LastAccessed)
	sess.mutex.Unlock()
	assert.Less(t, idle, time.Second)
}

func TestCloseIsIdempotent(t *testing.T) {
	mgr := newTestManager(t, defaultConfig())
	sess, err := mgr.Open(context.Background(), "synthetic:16x16:2")
	require.NoError(t, err)

	require.NoError(t, mgr.Close(context.Background(), sess.SessionID))
	assert.Equal(t, 0, mgr.Count())

	// Closing again, or an unknown id, is not an error.
	assert.NoError(t, mgr.Close(context.Background(), sess.SessionID))
	assert.NoError(t, mgr.Close(context.Background(), "never-existed"))
}

func TestSweepExpiredClosesIdleSessions(t *testing.T) {
	cfg := defaultConfig()
	cfg.SessionTimeout = 10 * time.Millisecond
	mgr := newTestManager(t, cfg)

	sess, err := mgr.Open(context.Background(), "synthetic:16x16:2")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	removed := mgr.SweepExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, mgr.Count())

	_, ok := mgr.Get(sess.SessionID)
	assert.False(t, ok)
}

func TestStopClosesAllSessions(t *testing.T) {
	mgr := newTestManager(t, defaultConfig())
	_, err := mgr.Open(context.Background(), "synthetic:16x16:2")
	require.NoError(t, err)

	mgr.Stop(context.Background())
	assert.Equal(t, 0, mgr.Count())
}
