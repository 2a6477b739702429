package models

import (
	"fmt"

	"gorm.io/gorm"
)

// SegmentStatus represents the transcription state of one virtual segment.
type SegmentStatus string

const (
	// SegmentStatusPending indicates the segment is waiting for a worker.
	SegmentStatusPending SegmentStatus = "pending"
	// SegmentStatusProcessing indicates a worker owns the segment.
	SegmentStatusProcessing SegmentStatus = "processing"
	// SegmentStatusCompleted indicates the segment's cues are persisted.
	SegmentStatusCompleted SegmentStatus = "completed"
	// SegmentStatusFailed indicates the last attempt failed.
	SegmentStatusFailed SegmentStatus = "failed"
)

// AudioSegment is a virtual slice of an episode: a time range in the source
// audio that does not correspond to a standing file on disk. The PCM clip is
// materialized on demand and referenced through TempClipPath.
type AudioSegment struct {
	BaseModel

	// EpisodeID is the owning episode.
	EpisodeID ULID `gorm:"not null;type:varchar(26);uniqueIndex:idx_segments_episode_index,priority:1;index:idx_segments_episode_status,priority:1" json:"episode_id"`

	// SegmentIndex is the zero-based position of this slice. Contiguous,
	// no gaps; unique per episode.
	SegmentIndex int `gorm:"not null;uniqueIndex:idx_segments_episode_index,priority:2;index:idx_segments_episode_status,priority:3" json:"segment_index"`

	// Label is the stable human-readable identifier, "segment_NNN".
	Label string `gorm:"not null;size:32" json:"label"`

	// StartTime is the slice start in absolute seconds of the source audio.
	StartTime float64 `gorm:"not null" json:"start_time"`

	// EndTime is the slice end in absolute seconds, exclusive.
	EndTime float64 `gorm:"not null" json:"end_time"`

	// Status is the segment's transcription state.
	Status SegmentStatus `gorm:"not null;default:'pending';size:20;index:idx_segments_episode_status,priority:2" json:"status"`

	// RetryCount is the number of failed attempts. Monotonic; capped by
	// configuration.
	RetryCount int `gorm:"not null;default:0" json:"retry_count"`

	// ErrorMessage holds the last failure reason.
	ErrorMessage string `gorm:"size:4096" json:"error_message,omitempty"`

	// TempClipPath points at the extracted PCM clip. Null on create,
	// populated before ASR, cleared on success, retained on failure so a
	// retry can skip re-extraction.
	TempClipPath string `gorm:"size:1024" json:"temp_clip_path,omitempty"`

	// StartedAt is when the first attempt claimed this segment. Earliest
	// wins; never moved later by retries.
	StartedAt *Time `json:"started_at,omitempty"`

	// RecognizedAt is when transcription completed.
	RecognizedAt *Time `json:"recognized_at,omitempty"`
}

// TableName returns the table name for AudioSegment.
func (AudioSegment) TableName() string {
	return "audio_segments"
}

// SegmentLabel formats the stable identifier for a segment index.
func SegmentLabel(index int) string {
	return fmt.Sprintf("segment_%03d", index)
}

// Duration returns the slice length in seconds.
func (s *AudioSegment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// IsCompleted returns true if the segment has persisted cues.
func (s *AudioSegment) IsCompleted() bool {
	return s.Status == SegmentStatusCompleted
}

// IsProcessing returns true if a worker owns the segment.
func (s *AudioSegment) IsProcessing() bool {
	return s.Status == SegmentStatusProcessing
}

// CanRetry returns true if a failed segment may be re-driven.
func (s *AudioSegment) CanRetry(maxRetries int) bool {
	return s.Status == SegmentStatusFailed && s.RetryCount < maxRetries
}

// MarkProcessing claims the segment for a worker. StartedAt is set only on
// the first claim so retries keep the original timestamp; the previous error
// is cleared.
func (s *AudioSegment) MarkProcessing(clipPath string) {
	s.Status = SegmentStatusProcessing
	s.TempClipPath = clipPath
	s.ErrorMessage = ""
	if s.StartedAt == nil {
		now := Now()
		s.StartedAt = &now
	}
}

// MarkCompleted finalizes a successful attempt: the clip pointer is cleared
// because the file is deleted after commit.
func (s *AudioSegment) MarkCompleted() {
	s.Status = SegmentStatusCompleted
	now := Now()
	s.RecognizedAt = &now
	s.TempClipPath = ""
	s.ErrorMessage = ""
}

// MarkFailed records a failed attempt. The clip path is retained so a retry
// can reuse the extracted audio.
func (s *AudioSegment) MarkFailed(err error) {
	s.Status = SegmentStatusFailed
	s.RetryCount++
	if err != nil {
		s.ErrorMessage = err.Error()
	}
}

// Validate performs basic validation on the segment.
func (s *AudioSegment) Validate() error {
	if s.EpisodeID.IsZero() {
		return ErrEpisodeIDRequired
	}
	if s.SegmentIndex < 0 {
		return ErrInvalidSegmentIndex
	}
	if s.EndTime <= s.StartTime {
		return ErrInvalidTimeRange
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the segment and generates its ULID.
func (s *AudioSegment) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if s.Label == "" {
		s.Label = SegmentLabel(s.SegmentIndex)
	}
	return s.Validate()
}

// BeforeUpdate is a GORM hook that validates the segment before update.
func (s *AudioSegment) BeforeUpdate(tx *gorm.DB) error {
	return s.Validate()
}
