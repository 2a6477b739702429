package models

import (
	"math"
	"regexp"
	"strings"

	"gorm.io/gorm"
)

// EpisodeStatus represents the transcription lifecycle state of an episode.
type EpisodeStatus string

const (
	// EpisodeStatusPending indicates the episode has not been transcribed yet,
	// or a running transcription was cancelled.
	EpisodeStatusPending EpisodeStatus = "pending"
	// EpisodeStatusProcessing indicates segment workers are active.
	EpisodeStatusProcessing EpisodeStatus = "processing"
	// EpisodeStatusCompleted indicates every segment completed.
	EpisodeStatusCompleted EpisodeStatus = "completed"
	// EpisodeStatusPartialFailed indicates a mix of completed and failed segments.
	EpisodeStatusPartialFailed EpisodeStatus = "partial_failed"
	// EpisodeStatusFailed indicates every segment failed.
	EpisodeStatusFailed EpisodeStatus = "failed"
)

// fileHashPattern matches a 32-character lowercase hex content fingerprint.
var fileHashPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Episode is the unit of ingestion: one uploaded audio file.
type Episode struct {
	BaseModel

	// FileHash is the content fingerprint used for deduplication.
	FileHash string `gorm:"not null;size:32;uniqueIndex" json:"file_hash"`

	// OriginalFilename is the name the file was uploaded with.
	OriginalFilename string `gorm:"size:512" json:"original_filename"`

	// AudioPath is the stored location of the ingested audio file.
	AudioPath string `gorm:"not null;size:1024" json:"audio_path"`

	// FileSize is the audio file size in bytes.
	FileSize int64 `json:"file_size"`

	// Duration is the total audio duration in seconds.
	Duration float64 `gorm:"not null" json:"duration"`

	// Language is a BCP 47 language tag, e.g. "en-US". Empty means the
	// configured default language applies.
	Language string `gorm:"size:35" json:"language,omitempty"`

	// Status is the aggregated transcription status.
	Status EpisodeStatus `gorm:"not null;default:'pending';size:20;index" json:"status"`

	// Segments are the virtual slices of this episode. Deleting the episode
	// cascades to them.
	Segments []AudioSegment `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	// Cues are the transcript cues of this episode. Deleting the episode
	// cascades to them.
	Cues []TranscriptCue `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Episode.
func (Episode) TableName() string {
	return "episodes"
}

// TotalSegments returns the number of virtual segments this episode divides
// into for the given segment duration.
func (e *Episode) TotalSegments(segmentDuration float64) int {
	if segmentDuration <= 0 || e.Duration <= 0 {
		return 0
	}
	return int(math.Ceil(e.Duration / segmentDuration))
}

// NeedsSegmentation returns true if the episode is longer than one segment.
// A single segment row is still created either way.
func (e *Episode) NeedsSegmentation(segmentDuration float64) bool {
	return e.Duration > segmentDuration
}

// LanguageCode returns the two-letter language code for the ASR engine,
// falling back to defaultLanguage when the episode language is unset.
func (e *Episode) LanguageCode(defaultLanguage string) string {
	tag := e.Language
	if tag == "" {
		tag = defaultLanguage
	}
	if i := strings.IndexByte(tag, '-'); i > 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

// Validate performs basic validation on the episode.
func (e *Episode) Validate() error {
	if e.FileHash == "" {
		return ErrFileHashRequired
	}
	if !fileHashPattern.MatchString(e.FileHash) {
		return ErrInvalidFileHash
	}
	if e.AudioPath == "" {
		return ErrAudioPathRequired
	}
	if e.Duration <= 0 {
		return ErrInvalidDuration
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the episode and generates its ULID.
func (e *Episode) BeforeCreate(tx *gorm.DB) error {
	if err := e.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return e.Validate()
}

// BeforeUpdate is a GORM hook that validates the episode before update.
func (e *Episode) BeforeUpdate(tx *gorm.DB) error {
	return e.Validate()
}
