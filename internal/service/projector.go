package service

import (
	"context"
	"math"

	"github.com/Catonlarge/PodFlow-sub000/internal/config"
	"github.com/Catonlarge/PodFlow-sub000/internal/models"
	"github.com/Catonlarge/PodFlow-sub000/internal/repository"
)

// statusDisplay maps episode statuses to listener-facing labels.
var statusDisplay = map[models.EpisodeStatus]string{
	models.EpisodeStatusPending:       "Not transcribed",
	models.EpisodeStatusProcessing:    "Transcribing",
	models.EpisodeStatusCompleted:     "Transcribed",
	models.EpisodeStatusPartialFailed: "Partially transcribed",
	models.EpisodeStatusFailed:        "Transcription failed",
}

// StatusDisplay returns the listener-facing label for an episode status.
func StatusDisplay(status models.EpisodeStatus) string {
	if label, ok := statusDisplay[status]; ok {
		return label
	}
	return string(status)
}

// EpisodeProgress is a read-only projection of an episode's transcription
// state, derived entirely from the segment rows.
type EpisodeProgress struct {
	EpisodeID     models.ULID          `json:"episode_id"`
	Status        models.EpisodeStatus `json:"status"`
	StatusDisplay string               `json:"status_display"`

	TotalSegments     int `json:"total_segments"`
	CompletedSegments int `json:"completed_segments"`
	FailedSegments    int `json:"failed_segments"`
	PendingSegments   int `json:"pending_segments"`
	ActiveSegments    int `json:"active_segments"`

	// ProgressPercent is completed over total, rounded to two decimals.
	ProgressPercent float64 `json:"progress_percent"`

	// ETASeconds projects remaining wall-clock time from the unfinished
	// audio duration and the empirical transcription speed factor. Zero
	// when nothing remains.
	ETASeconds float64 `json:"eta_seconds"`

	CueCount int64 `json:"cue_count"`

	// StartedAt is the earliest segment claim across all attempts.
	StartedAt *models.Time `json:"started_at,omitempty"`

	// CompletedAt is the latest segment completion, present only when every
	// segment completed.
	CompletedAt *models.Time `json:"completed_at,omitempty"`
}

// Projector computes episode progress projections.
type Projector struct {
	episodes repository.EpisodeRepository
	segments repository.SegmentRepository
	cues     repository.CueRepository
	cfg      config.TranscriptionConfig
}

// NewProjector creates a Projector.
func NewProjector(
	episodes repository.EpisodeRepository,
	segments repository.SegmentRepository,
	cues repository.CueRepository,
	cfg config.TranscriptionConfig,
) *Projector {
	return &Projector{episodes: episodes, segments: segments, cues: cues, cfg: cfg}
}

// Progress builds the progress projection for an episode.
func (p *Projector) Progress(ctx context.Context, episodeID models.ULID) (*EpisodeProgress, error) {
	episode, err := p.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if episode == nil {
		return nil, models.ErrEpisodeNotFound
	}

	segments, err := p.segments.GetByEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	cueCount, err := p.cues.CountByEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}

	progress := &EpisodeProgress{
		EpisodeID:     episodeID,
		Status:        episode.Status,
		StatusDisplay: StatusDisplay(episode.Status),
		TotalSegments: len(segments),
		CueCount:      cueCount,
	}

	var remainingAudio float64
	allCompleted := len(segments) > 0

	for _, segment := range segments {
		switch segment.Status {
		case models.SegmentStatusCompleted:
			progress.CompletedSegments++
		case models.SegmentStatusFailed:
			progress.FailedSegments++
			allCompleted = false
		case models.SegmentStatusProcessing:
			progress.ActiveSegments++
			remainingAudio += segment.Duration()
			allCompleted = false
		default:
			progress.PendingSegments++
			remainingAudio += segment.Duration()
			allCompleted = false
		}

		if segment.StartedAt != nil {
			if progress.StartedAt == nil || segment.StartedAt.Before(*progress.StartedAt) {
				progress.StartedAt = segment.StartedAt
			}
		}
	}

	if progress.TotalSegments > 0 {
		ratio := float64(progress.CompletedSegments) / float64(progress.TotalSegments)
		progress.ProgressPercent = math.Round(ratio*10000) / 100
	}
	progress.ETASeconds = math.Round(remainingAudio*p.cfg.SpeedFactor*100) / 100

	if allCompleted {
		for _, segment := range segments {
			if segment.RecognizedAt == nil {
				continue
			}
			if progress.CompletedAt == nil || segment.RecognizedAt.After(*progress.CompletedAt) {
				progress.CompletedAt = segment.RecognizedAt
			}
		}
	}

	return progress, nil
}
