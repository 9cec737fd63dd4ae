// Package session implements the Session Manager (spec.md §4.1): video-bound
// sessions with admission control, idle eviction, and frame materialization.
// It is directly grounded on ericcug-dash2hlsd/internal/session/session.go's
// SessionManager/StreamSession pair — the per-entity mutex split from the
// manager's table mutex, and the double-checked-lock creation path, are kept
// verbatim in shape and adapted to the video-segmentation domain.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"videoseg/internal/apierr"
	"videoseg/internal/framesource"
	"videoseg/internal/logger"
	"videoseg/internal/models"
	"videoseg/internal/segmenter"
)

// Session is the bundle described in spec.md §3: video identity, frames,
// frame-store directory, prepared model state, object catalog, and access
// timestamps.
type Session struct {
	SessionID string
	VideoPath string

	FrameWidth  int
	FrameHeight int
	TotalFrames int
	FPS         float64

	FramesDir  string
	ModelState segmenter.State

	CreatedAt time.Time

	// mutex guards everything below: Objects, LastAccessed, and any
	// mutation a request handler or propagation job makes to this
	// session's state. Propagation holds this lock for the entire stream
	// (spec.md §5) so no interactive refinement races with it.
	mutex        sync.Mutex
	Objects      map[int]*models.TrackedObject
	LastAccessed time.Time
}

// TouchAccess refreshes LastAccessed; Manager.Get calls it on every hit. The
// propagation job, which already holds the session lock, refreshes
// LastAccessed directly on its keep-alive cadence instead (spec.md §4.3).
func (s *Session) TouchAccess() {
	s.mutex.Lock()
	s.LastAccessed = time.Now()
	s.mutex.Unlock()
}

// Lock acquires the session's per-entity lock. Callers (internal/objects,
// internal/job) hold it for the duration of one interactive operation or
// one full propagation stream.
func (s *Session) Lock() { s.mutex.Lock() }

// Unlock releases the session's per-entity lock.
func (s *Session) Unlock() { s.mutex.Unlock() }

// IdleTime reports how long the session has been idle. Caller must hold the
// session lock, or tolerate a benign race on LastAccessed for read-only
// reporting (Get, SweepExpired).
func (s *Session) IdleTime(now time.Time) time.Duration {
	return now.Sub(s.LastAccessed)
}

// Manager creates, looks up, evicts sessions, and enforces concurrency and
// size limits (spec.md §4.1).
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	log        logger.Logger
	source     framesource.FrameSource
	store      *framesource.FrameStore
	seg        segmenter.Segmenter
	timeout    time.Duration
	maxSess    int
	maxFrames  int
	maxDim     int
	jpegQual   int
}

// Config bundles a Manager's fixed policy knobs.
type Config struct {
	SessionTimeout        time.Duration
	MaxConcurrentSessions int
	MaxVideoFrames        int
	MaxFrameDimension     int
	FrameJPEGQuality      int
}

// NewManager constructs a SessionManager wired to a FrameSource, a
// FrameStore base directory, and a Segmenter, exactly as
// ericcug-dash2hlsd's session.NewManager wires a dash.Client and a
// cache.SegmentCache.
func NewManager(log logger.Logger, source framesource.FrameSource, store *framesource.FrameStore, seg segmenter.Segmenter, cfg Config) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		log:       log,
		source:    source,
		store:     store,
		seg:       seg,
		timeout:   cfg.SessionTimeout,
		maxSess:   cfg.MaxConcurrentSessions,
		maxFrames: cfg.MaxVideoFrames,
		maxDim:    cfg.MaxFrameDimension,
		jpegQual:  cfg.FrameJPEGQuality,
	}
}

// Open admits a new session for videoPath (spec.md §4.1): validates the
// video, downscales and truncates per policy, materializes frames, and asks
// the Segmenter to prepare per-video state.
func (m *Manager) Open(ctx context.Context, videoPath string) (*Session, error) {
	m.mu.Lock()
	if len(m.sessions) >= m.maxSess {
		m.mu.Unlock()
		m.SweepExpired()
		m.mu.Lock()
		if len(m.sessions) >= m.maxSess {
			m.mu.Unlock()
			return nil, apierr.New(apierr.CapacityExceeded,
				"at capacity: %d concurrent sessions already open (limit %d); close a session and retry",
				len(m.sessions), m.maxSess)
		}
	}
	m.mu.Unlock()

	video, err := m.source.Open(videoPath)
	if err != nil {
		return nil, apierr.Wrap(apierr.VideoUnreadable, err, "failed to read video %s", videoPath)
	}

	totalFrames := len(video.Frames)
	if totalFrames > m.maxFrames {
		m.log.Warnf("video %s has %d frames, exceeding max_video_frames=%d; dropping trailing frames", videoPath, totalFrames, m.maxFrames)
		video.Frames = video.Frames[:m.maxFrames]
		totalFrames = m.maxFrames
	}

	sessionID := uuid.NewString()
	log := m.log.With("session_id", sessionID)

	framesDir, width, height, err := m.store.Materialize(sessionID, video.Frames, m.maxDim, m.jpegQual)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, err, "failed to materialize frames for session %s", sessionID)
	}

	state, err := m.seg.PrepareVideoState(ctx, framesDir, totalFrames, width, height)
	if err != nil {
		m.store.Remove(framesDir)
		return nil, apierr.Wrap(apierr.SegmenterFailed, err, "failed to prepare segmenter state")
	}

	now := time.Now()
	sess := &Session{
		SessionID:    sessionID,
		VideoPath:    videoPath,
		FrameWidth:   width,
		FrameHeight:  height,
		TotalFrames:  totalFrames,
		FPS:          video.FPS,
		FramesDir:    framesDir,
		ModelState:   state,
		CreatedAt:    now,
		LastAccessed: now,
		Objects:      make(map[int]*models.TrackedObject),
	}

	m.mu.Lock()
	m.sessions[sessionID] = sess
	m.mu.Unlock()

	log.Infof("opened for video %s (%dx%d, %d frames, %.2f fps)", videoPath, width, height, totalFrames, video.FPS)
	return sess, nil
}

// Get returns the session for id, refreshing LastAccessed on a hit.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		sess.TouchAccess()
	}
	return sess, ok
}

// Close asks the Segmenter to release per-video state, removes the
// FrameStore directory, and drops the session. Closing an unknown id is not
// an error (spec.md §4.1's idempotence requirement).
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return m.closeSession(ctx, sess)
}

func (m *Manager) closeSession(ctx context.Context, sess *Session) error {
	log := m.log.With("session_id", sess.SessionID)
	if err := m.seg.Reset(ctx, sess.ModelState); err != nil {
		log.Warnf("failed to reset segmenter state: %v", err)
	}
	if err := m.store.Remove(sess.FramesDir); err != nil {
		return fmt.Errorf("failed to remove frame store for session %s: %w", sess.SessionID, err)
	}
	log.Infof("closed")
	return nil
}

// SweepExpired closes every session whose LastAccessed is older than the
// configured session timeout, returning the count removed.
func (m *Manager) SweepExpired() int {
	now := time.Now()

	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		sess.mutex.Lock()
		idle := sess.IdleTime(now)
		sess.mutex.Unlock()
		if idle >= m.timeout {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		if err := m.closeSession(context.Background(), sess); err != nil {
			m.log.Warnf("failed to clean up expired session %s: %v", sess.SessionID, err)
		}
	}
	return len(expired)
}

// Count returns the number of currently open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stop closes every session, used for graceful shutdown (spec.md §6's exit
// conditions), mirroring ericcug-dash2hlsd's SessionManager.Stop.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		if err := m.closeSession(ctx, sess); err != nil {
			m.log.Warnf("failed to close session %s during shutdown: %v", sess.SessionID, err)
		}
	}
}
