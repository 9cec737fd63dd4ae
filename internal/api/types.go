package api

import "videoseg/internal/models"

type openSessionRequest struct {
	VideoPath string `json:"video_path"`
}

type openSessionResponse struct {
	SessionID   string  `json:"session_id"`
	TotalFrames int     `json:"total_frames"`
	FrameWidth  int     `json:"frame_width"`
	FrameHeight int     `json:"frame_height"`
	FPS         float64 `json:"fps"`
}

type objectSummary struct {
	ID              int      `json:"id"`
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	Color           [3]uint8 `json:"color"`
	FramesWithMasks []int    `json:"frames_with_masks"`
}

type getSessionResponse struct {
	SessionID    string          `json:"session_id"`
	TotalFrames  int             `json:"total_frames"`
	Objects      []objectSummary `json:"objects"`
	CreatedAt    int64           `json:"created_at"`
	LastAccessed int64           `json:"last_accessed"`
	IdleTimeSec  float64         `json:"idle_time"`
}

type closeSessionResponse struct {
	SessionID string `json:"session_id"`
}

type addObjectRequest struct {
	SessionID string      `json:"session_id"`
	FrameIdx  int         `json:"frame_idx"`
	ObjectID  int         `json:"object_id"`
	Points    [][2]float64 `json:"points"`
	Labels    []int       `json:"labels"`
	Name      string      `json:"name,omitempty"`
	Category  string      `json:"category,omitempty"`
}

type addObjectByBoxRequest struct {
	SessionID string     `json:"session_id"`
	FrameIdx  int        `json:"frame_idx"`
	ObjectID  int        `json:"object_id"`
	Box       [4]float64 `json:"box"`
	Name      string     `json:"name,omitempty"`
	Category  string     `json:"category,omitempty"`
}

type objectMaskResponse struct {
	ObjectID int      `json:"object_id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Color    [3]uint8 `json:"color"`
	FrameIdx int       `json:"frame_idx"`
	Mask     string    `json:"mask"`
}

type refineRequest struct {
	SessionID string       `json:"session_id"`
	FrameIdx  int          `json:"frame_idx"`
	ObjectID  int          `json:"object_id"`
	Points    [][2]float64 `json:"points"`
	Labels    []int        `json:"labels"`
}

type refineResponse struct {
	ObjectID int    `json:"object_id"`
	FrameIdx int    `json:"frame_idx"`
	Mask     string `json:"mask"`
}

type overrideMaskRequest struct {
	SessionID string `json:"session_id"`
	FrameIdx  int    `json:"frame_idx"`
	ObjectID  int    `json:"object_id"`
	Mask      string `json:"mask"`
}

type getFrameMasksResponse struct {
	FrameIdx int               `json:"frame_idx"`
	Masks    map[string]string `json:"masks"`
}

type startPropagationRequest struct {
	SessionID  string `json:"session_id"`
	StartFrame *int   `json:"start_frame,omitempty"`
	EndFrame   *int   `json:"end_frame,omitempty"`
	Direction  string `json:"direction,omitempty"`
}

type startPropagationResponse struct {
	JobID string `json:"job_id"`
}

type pollJobResponse struct {
	JobID       string         `json:"job_id"`
	Status      models.JobStatus `json:"status"`
	Progress    float64        `json:"progress"`
	CreatedAt   int64          `json:"created_at"`
	StartedAt   *int64         `json:"started_at,omitempty"`
	CompletedAt *int64         `json:"completed_at,omitempty"`
	Result      *jobResultView `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
}

type jobResultView struct {
	SessionID     string `json:"session_id"`
	TotalFrames   int    `json:"total_frames"`
	FramesCovered int    `json:"frames_covered"`
	ObjectIDs     []int  `json:"object_ids"`
}

type cancelJobResponse struct {
	JobID  string           `json:"job_id"`
	Status models.JobStatus `json:"status"`
}
