package handlers

import (
	"time"

	"github.com/Catonlarge/PodFlow-sub000/internal/models"
)

// EpisodeResponse is the API representation of an episode.
type EpisodeResponse struct {
	ID               string    `json:"id"`
	FileHash         string    `json:"file_hash"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	AudioPath        string    `json:"audio_path"`
	FileSize         int64     `json:"file_size,omitempty"`
	Duration         float64   `json:"duration"`
	Language         string    `json:"language,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// EpisodeFromModel converts an episode model to its API representation.
func EpisodeFromModel(e *models.Episode) EpisodeResponse {
	return EpisodeResponse{
		ID:               e.ID.String(),
		FileHash:         e.FileHash,
		OriginalFilename: e.OriginalFilename,
		AudioPath:        e.AudioPath,
		FileSize:         e.FileSize,
		Duration:         e.Duration,
		Language:         e.Language,
		Status:           string(e.Status),
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

// SegmentResponse is the API representation of an audio segment.
type SegmentResponse struct {
	ID           string     `json:"id"`
	SegmentIndex int        `json:"segment_index"`
	Label        string     `json:"label"`
	StartTime    float64    `json:"start_time"`
	EndTime      float64    `json:"end_time"`
	Status       string     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	RecognizedAt *time.Time `json:"recognized_at,omitempty"`
}

// SegmentFromModel converts a segment model to its API representation.
// The temp clip path is a server-internal detail and is not exposed.
func SegmentFromModel(s *models.AudioSegment) SegmentResponse {
	return SegmentResponse{
		ID:           s.ID.String(),
		SegmentIndex: s.SegmentIndex,
		Label:        s.Label,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		Status:       string(s.Status),
		RetryCount:   s.RetryCount,
		ErrorMessage: s.ErrorMessage,
		StartedAt:    s.StartedAt,
		RecognizedAt: s.RecognizedAt,
	}
}

// CueResponse is the API representation of a transcript cue.
type CueResponse struct {
	ID        string  `json:"id"`
	SegmentID string  `json:"segment_id,omitempty"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
}

// CueFromModel converts a cue model to its API representation.
func CueFromModel(c *models.TranscriptCue) CueResponse {
	resp := CueResponse{
		ID:        c.ID.String(),
		StartTime: c.StartTime,
		EndTime:   c.EndTime,
		Speaker:   c.Speaker,
		Text:      c.Text,
	}
	if c.SegmentID != nil {
		resp.SegmentID = c.SegmentID.String()
	}
	return resp
}
