// Package api implements the Orchestrator API (spec.md §6): request
// handlers that translate user intents into Session + Segmenter + JobManager
// calls and encode masks on the wire. Grounded on
// ericcug-dash2hlsd/internal/api/router.go's registration and handler shape:
// one mux.HandleFunc("METHOD /path/{param}", handler) per operation, each
// handler decoding a request, calling exactly one domain method, and writing
// either a JSON body or an http.Error.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"videoseg/internal/apierr"
	"videoseg/internal/job"
	"videoseg/internal/logger"
	"videoseg/internal/mask"
	"videoseg/internal/models"
	"videoseg/internal/objects"
	"videoseg/internal/session"
)

// API bundles the handlers' dependencies.
type API struct {
	sessions   *session.Manager
	objects    *objects.StateMachine
	jobs       *job.Manager
	propagator *job.Propagator
	log        logger.Logger
}

// New builds the orchestrator's HTTP handler.
func New(sessions *session.Manager, objectsSM *objects.StateMachine, jobs *job.Manager, propagator *job.Propagator, log logger.Logger) http.Handler {
	a := &API{sessions: sessions, objects: objectsSM, jobs: jobs, propagator: propagator, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", a.handleOpenSession)
	mux.HandleFunc("GET /sessions/{sessionId}", a.handleGetSession)
	mux.HandleFunc("POST /sessions/{sessionId}/close", a.handleCloseSession)

	mux.HandleFunc("POST /sessions/{sessionId}/objects", a.handleAddObject)
	mux.HandleFunc("POST /sessions/{sessionId}/objects/box", a.handleAddObjectByBox)
	mux.HandleFunc("POST /sessions/{sessionId}/objects/{objectId}/refine", a.handleRefine)
	mux.HandleFunc("POST /sessions/{sessionId}/objects/{objectId}/override", a.handleOverrideMask)
	mux.HandleFunc("GET /sessions/{sessionId}/frames/{frameIdx}/masks", a.handleGetFrameMasks)

	mux.HandleFunc("POST /sessions/{sessionId}/propagate", a.handleStartPropagation)
	mux.HandleFunc("GET /jobs/{jobId}", a.handlePollJob)
	mux.HandleFunc("POST /jobs/{jobId}/cancel", a.handleCancelJob)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	kind := apierr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apierr.InvalidArgument:
		status = http.StatusBadRequest
	case apierr.NotFound:
		status = http.StatusNotFound
	case apierr.CapacityExceeded:
		status = http.StatusInsufficientStorage
	case apierr.VideoUnreadable:
		status = http.StatusNotFound
	case apierr.VideoTooLarge:
		status = http.StatusUnprocessableEntity
	case apierr.SegmenterFailed:
		status = http.StatusInternalServerError
	case apierr.Cancelled:
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, apierr.Wrap(apierr.InvalidArgument, err, "invalid request body"))
		return false
	}
	return true
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		writeError(w, apierr.New(apierr.InvalidArgument, "invalid %s %q", name, r.PathValue(name)))
		return 0, false
	}
	return v, true
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("sessionId")
	sess, ok := a.sessions.Get(id)
	if !ok {
		writeError(w, apierr.New(apierr.NotFound, "session %s not found", id))
		return nil, false
	}
	return sess, true
}

func colorOf(c models.Color) [3]uint8 { return [3]uint8{c.R, c.G, c.B} }

func encodeMask(w http.ResponseWriter, m *mask.Mask) (string, bool) {
	b64, err := m.EncodePNGBase64()
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, err, "failed to encode mask"))
		return "", false
	}
	return b64, true
}

func pointsFromRequest(coords [][2]float64, labels []int) ([]models.Point, error) {
	if len(labels) != 0 && len(labels) != len(coords) {
		return nil, apierr.New(apierr.InvalidArgument, "labels length %d does not match points length %d", len(labels), len(coords))
	}
	points := make([]models.Point, len(coords))
	for i, c := range coords {
		label := models.Positive
		if len(labels) != 0 {
			label = models.PointLabel(labels[i])
		}
		points[i] = models.Point{X: c[0], Y: c[1], Label: label}
	}
	return points, nil
}

// handleOpenSession implements the Open Session operation (spec.md §6).
func (a *API) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.VideoPath == "" {
		writeError(w, apierr.New(apierr.InvalidArgument, "video_path is required"))
		return
	}

	sess, err := a.sessions.Open(r.Context(), req.VideoPath)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, openSessionResponse{
		SessionID:   sess.SessionID,
		TotalFrames: sess.TotalFrames,
		FrameWidth:  sess.FrameWidth,
		FrameHeight: sess.FrameHeight,
		FPS:         sess.FPS,
	})
}

// handleGetSession implements the Get Session operation (spec.md §6).
func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.getSession(w, r)
	if !ok {
		return
	}

	sess.Lock()
	objs := make([]objectSummary, 0, len(sess.Objects))
	for _, obj := range sess.Objects {
		objs = append(objs, objectSummary{
			ID:              obj.ObjectID,
			Name:            obj.Name,
			Category:        obj.Category,
			Color:           colorOf(obj.Color),
			FramesWithMasks: obj.FramesWithMasks(),
		})
	}
	createdAt := sess.CreatedAt
	lastAccessed := sess.LastAccessed
	total := sess.TotalFrames
	idle := sess.IdleTime(time.Now())
	sess.Unlock()

	writeJSON(w, http.StatusOK, getSessionResponse{
		SessionID:    sess.SessionID,
		TotalFrames:  total,
		Objects:      objs,
		CreatedAt:    createdAt.Unix(),
		LastAccessed: lastAccessed.Unix(),
		IdleTimeSec:  idle.Seconds(),
	})
}

// handleCloseSession implements the Close Session operation (spec.md §6).
// Closing an unknown session id is not an error (idempotent).
func (a *API) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sessionId")
	if err := a.sessions.Close(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, closeSessionResponse{SessionID: id})
}

// handleAddObject implements the AddObject operation (spec.md §4.2/§6).
func (a *API) handleAddObject(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.getSession(w, r)
	if !ok {
		return
	}

	var req addObjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	points, err := pointsFromRequest(req.Points, req.Labels)
	if err != nil {
		writeError(w, err)
		return
	}

	m, err := a.objects.AddObject(r.Context(), sess, req.FrameIdx, req.ObjectID, points, req.Name, req.Category)
	if err != nil {
		writeError(w, err)
		return
	}
	b64, ok := encodeMask(w, m)
	if !ok {
		return
	}

	sess.Lock()
	obj := sess.Objects[req.ObjectID]
	sess.Unlock()

	writeJSON(w, http.StatusCreated, objectMaskResponse{
		ObjectID: req.ObjectID,
		Name:     obj.Name,
		Category: obj.Category,
		Color:    colorOf(obj.Color),
		FrameIdx: req.FrameIdx,
		Mask:     b64,
	})
}

// handleAddObjectByBox implements the box-prompt variant of AddObject
// (spec.md §4.2/§6).
func (a *API) handleAddObjectByBox(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.getSession(w, r)
	if !ok {
		return
	}

	var req addObjectByBoxRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	box := models.Box{X1: req.Box[0], Y1: req.Box[1], X2: req.Box[2], Y2: req.Box[3]}

	m, err := a.objects.AddObjectWithBox(r.Context(), sess, req.FrameIdx, req.ObjectID, box, req.Name, req.Category)
	if err != nil {
		writeError(w, err)
		return
	}
	b64, ok := encodeMask(w, m)
	if !ok {
		return
	}

	sess.Lock()
	obj := sess.Objects[req.ObjectID]
	sess.Unlock()

	writeJSON(w, http.StatusCreated, objectMaskResponse{
		ObjectID: req.ObjectID,
		Name:     obj.Name,
		Category: obj.Category,
		Color:    colorOf(obj.Color),
		FrameIdx: req.FrameIdx,
		Mask:     b64,
	})
}

// handleRefine implements the Refine operation (spec.md §4.2/§6).
func (a *API) handleRefine(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.getSession(w, r)
	if !ok {
		return
	}
	objectID, ok := pathInt(w, r, "objectId")
	if !ok {
		return
	}

	var req refineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	points, err := pointsFromRequest(req.Points, req.Labels)
	if err != nil {
		writeError(w, err)
		return
	}

	m, err := a.objects.Refine(r.Context(), sess, req.FrameIdx, objectID, points)
	if err != nil {
		writeError(w, err)
		return
	}
	b64, ok := encodeMask(w, m)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, refineResponse{ObjectID: objectID, FrameIdx: req.FrameIdx, Mask: b64})
}

// handleOverrideMask implements the OverrideMask operation (spec.md §4.2/§6).
func (a *API) handleOverrideMask(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.getSession(w, r)
	if !ok {
		return
	}
	objectID, ok := pathInt(w, r, "objectId")
	if !ok {
		return
	}

	var req overrideMaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	uploaded, err := mask.DecodePNGBase64(req.Mask)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.InvalidArgument, err, "invalid mask payload"))
		return
	}

	m, err := a.objects.OverrideMask(r.Context(), sess, req.FrameIdx, objectID, uploaded)
	if err != nil {
		writeError(w, err)
		return
	}
	b64, ok := encodeMask(w, m)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, refineResponse{ObjectID: objectID, FrameIdx: req.FrameIdx, Mask: b64})
}

// handleGetFrameMasks implements the GetFrameMasks operation (spec.md
// §4.2/§6).
func (a *API) handleGetFrameMasks(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.getSession(w, r)
	if !ok {
		return
	}
	frameIdx, ok := pathInt(w, r, "frameIdx")
	if !ok {
		return
	}

	masks, err := a.objects.GetFrameMasks(sess, frameIdx)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make(map[string]string, len(masks))
	for id, m := range masks {
		b64, ok := encodeMask(w, m)
		if !ok {
			return
		}
		out[strconv.Itoa(id)] = b64
	}

	writeJSON(w, http.StatusOK, getFrameMasksResponse{FrameIdx: frameIdx, Masks: out})
}

// handleStartPropagation implements the Start Propagation operation (spec.md
// §4.3/§6).
func (a *API) handleStartPropagation(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")

	var req startPropagationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	start, end := -1, -1
	if req.StartFrame != nil {
		start = *req.StartFrame
	}
	if req.EndFrame != nil {
		end = *req.EndFrame
	}
	dir := job.Direction(req.Direction)
	if dir == "" {
		dir = job.Both
	}

	jobID, err := a.propagator.Submit(a.jobs, job.PropagateRequest{
		SessionID:  sessionID,
		StartFrame: start,
		EndFrame:   end,
		Direction:  dir,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, startPropagationResponse{JobID: jobID})
}

// handlePollJob implements the Poll Job operation (spec.md §4.3/§6).
func (a *API) handlePollJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	j, ok := a.jobs.Get(jobID)
	if !ok {
		writeError(w, apierr.New(apierr.NotFound, "job %s not found", jobID))
		return
	}

	writeJSON(w, http.StatusOK, jobToResponse(j))
}

// handleCancelJob implements the Cancel Job operation (spec.md §4.3/§6).
func (a *API) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	j, err := a.jobs.Cancel(jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelJobResponse{JobID: j.JobID, Status: j.Status})
}

func jobToResponse(j models.Job) pollJobResponse {
	resp := pollJobResponse{
		JobID:     j.JobID,
		Status:    j.Status,
		Progress:  j.Progress,
		CreatedAt: j.CreatedAt.Unix(),
		Error:     j.Error,
	}
	if !j.StartedAt.IsZero() {
		t := j.StartedAt.Unix()
		resp.StartedAt = &t
	}
	if !j.CompletedAt.IsZero() {
		t := j.CompletedAt.Unix()
		resp.CompletedAt = &t
	}
	if j.Result != nil {
		resp.Result = &jobResultView{
			SessionID:     j.Result.SessionID,
			TotalFrames:   j.Result.TotalFrames,
			FramesCovered: j.Result.FramesCovered,
			ObjectIDs:     j.Result.ObjectIDs,
		}
	}
	return resp
}
