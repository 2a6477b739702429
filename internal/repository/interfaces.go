// Package repository provides data access interfaces and GORM
// implementations for podflow entities.
package repository

import (
	"context"

	"github.com/Catonlarge/PodFlow-sub000/internal/asr"
	"github.com/Catonlarge/PodFlow-sub000/internal/models"
)

// EpisodeRepository defines operations for episode persistence.
type EpisodeRepository interface {
	Create(ctx context.Context, episode *models.Episode) error
	GetByID(ctx context.Context, id models.ULID) (*models.Episode, error)
	GetByFileHash(ctx context.Context, fileHash string) (*models.Episode, error)
	GetAll(ctx context.Context) ([]*models.Episode, error)
	GetByStatus(ctx context.Context, status models.EpisodeStatus) ([]*models.Episode, error)
	Update(ctx context.Context, episode *models.Episode) error
	UpdateStatus(ctx context.Context, id models.ULID, status models.EpisodeStatus) error
	Delete(ctx context.Context, id models.ULID) error
}

// SegmentRepository defines operations for audio segment persistence.
type SegmentRepository interface {
	CreateBatch(ctx context.Context, segments []*models.AudioSegment) error
	GetByID(ctx context.Context, id models.ULID) (*models.AudioSegment, error)
	GetByEpisode(ctx context.Context, episodeID models.ULID) ([]*models.AudioSegment, error)
	GetByEpisodeAndIndex(ctx context.Context, episodeID models.ULID, index int) (*models.AudioSegment, error)
	GetByEpisodeAndStatus(ctx context.Context, episodeID models.ULID, status models.SegmentStatus) ([]*models.AudioSegment, error)
	GetProcessing(ctx context.Context) ([]*models.AudioSegment, error)
	StatusCounts(ctx context.Context, episodeID models.ULID) (map[models.SegmentStatus]int, error)
	GetWithClipPaths(ctx context.Context) ([]*models.AudioSegment, error)
	Claim(ctx context.Context, id models.ULID) (bool, error)
	Release(ctx context.Context, id models.ULID) error
	SetClipPath(ctx context.Context, id models.ULID, clipPath string) error
	Update(ctx context.Context, segment *models.AudioSegment) error
}

// CueRepository defines operations for transcript cue persistence.
type CueRepository interface {
	// ReplaceSegmentCues atomically replaces a segment's cues with the
	// engine's raw output (translated to absolute time) and marks the
	// segment completed, all in one transaction.
	ReplaceSegmentCues(ctx context.Context, segment *models.AudioSegment, raw []asr.RawCue) error
	GetByEpisode(ctx context.Context, episodeID models.ULID) ([]*models.TranscriptCue, error)
	GetByEpisodeRange(ctx context.Context, episodeID models.ULID, from, to float64) ([]*models.TranscriptCue, error)
	GetBySegment(ctx context.Context, segmentID models.ULID) ([]*models.TranscriptCue, error)
	CountBySegment(ctx context.Context, segmentID models.ULID) (int64, error)
	CountByEpisode(ctx context.Context, episodeID models.ULID) (int64, error)
}

// AnnotationRepository defines operations for downstream cue annotations.
type AnnotationRepository interface {
	CreateHighlight(ctx context.Context, highlight *models.Highlight) error
	GetHighlightsByEpisode(ctx context.Context, episodeID models.ULID) ([]*models.Highlight, error)
	CreateNote(ctx context.Context, note *models.Note) error
	GetNotesByEpisode(ctx context.Context, episodeID models.ULID) ([]*models.Note, error)
	CreateAIQuery(ctx context.Context, record *models.AIQueryRecord) error
	GetAIQueriesByCue(ctx context.Context, cueID models.ULID) ([]*models.AIQueryRecord, error)
}
