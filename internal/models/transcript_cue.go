package models

import (
	"gorm.io/gorm"
)

// DefaultSpeaker is the speaker label used when diarization is disabled or
// the engine could not attribute a span.
const DefaultSpeaker = "Unknown"

// TranscriptCue is one utterance span with absolute timestamps. Cues carry
// no stored sequence number: global transcript order is reconstructed at
// query time by start_time, because independently scheduled segment workers
// persist their cues in arbitrary order.
type TranscriptCue struct {
	BaseModel

	// EpisodeID is the owning episode.
	EpisodeID ULID `gorm:"not null;type:varchar(26);index:idx_cues_episode_start,priority:1" json:"episode_id"`

	// SegmentID is the segment whose transcription produced this cue.
	// Null for manually imported cues.
	SegmentID *ULID `gorm:"type:varchar(26);index" json:"segment_id,omitempty"`

	// Segment backs the foreign key so segment deletion cascades here.
	Segment *AudioSegment `gorm:"foreignKey:SegmentID;constraint:OnDelete:CASCADE" json:"-"`

	// StartTime is the cue start in absolute seconds of the source audio.
	StartTime float64 `gorm:"not null;index:idx_cues_episode_start,priority:2" json:"start_time"`

	// EndTime is the cue end in absolute seconds.
	EndTime float64 `gorm:"not null" json:"end_time"`

	// Speaker is the diarization label, DefaultSpeaker when unattributed.
	Speaker string `gorm:"not null;default:'Unknown';size:255" json:"speaker"`

	// Text is the utterance text.
	Text string `gorm:"not null" json:"text"`
}

// TableName returns the table name for TranscriptCue.
func (TranscriptCue) TableName() string {
	return "transcript_cues"
}

// Validate performs basic validation on the cue.
func (c *TranscriptCue) Validate() error {
	if c.EpisodeID.IsZero() {
		return ErrEpisodeIDRequired
	}
	if c.EndTime <= c.StartTime {
		return ErrInvalidTimeRange
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the cue and generates its ULID.
func (c *TranscriptCue) BeforeCreate(tx *gorm.DB) error {
	if err := c.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if c.Speaker == "" {
		c.Speaker = DefaultSpeaker
	}
	return c.Validate()
}
