package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Catonlarge/PodFlow-sub000/internal/asr"
	"github.com/Catonlarge/PodFlow-sub000/internal/models"
)

// cueRepo implements CueRepository using GORM.
type cueRepo struct {
	db *gorm.DB
}

// NewCueRepository creates a new CueRepository.
func NewCueRepository(db *gorm.DB) *cueRepo {
	return &cueRepo{db: db}
}

// ReplaceSegmentCues deletes any cues a previous attempt left for the
// segment, inserts the new ones with timestamps translated from clip-relative
// to absolute time, and marks the segment completed. All three steps commit
// or roll back together: a reader never observes a half-replaced segment,
// and a crash between delete and insert cannot lose the old cues.
func (r *cueRepo) ReplaceSegmentCues(ctx context.Context, segment *models.AudioSegment, raw []asr.RawCue) error {
	cues := translateCues(segment, raw)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("segment_id = ?", segment.ID).
			Delete(&models.TranscriptCue{}).Error; err != nil {
			return fmt.Errorf("deleting previous cues: %w", err)
		}

		if len(cues) > 0 {
			if err := tx.Create(cues).Error; err != nil {
				return fmt.Errorf("inserting cues: %w", err)
			}
		}

		segment.MarkCompleted()
		if err := tx.Save(segment).Error; err != nil {
			return fmt.Errorf("completing segment: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replacing segment cues: %w", err)
	}
	return nil
}

// translateCues maps raw engine cues to persistent cues. Timestamps shift by
// the segment's start offset, whitespace-only text is dropped, and missing
// speakers get the default label.
func translateCues(segment *models.AudioSegment, raw []asr.RawCue) []*models.TranscriptCue {
	cues := make([]*models.TranscriptCue, 0, len(raw))
	for _, rc := range raw {
		text := strings.TrimSpace(rc.Text)
		if text == "" {
			continue
		}
		speaker := rc.Speaker
		if speaker == "" {
			speaker = models.DefaultSpeaker
		}
		segmentID := segment.ID
		cues = append(cues, &models.TranscriptCue{
			EpisodeID: segment.EpisodeID,
			SegmentID: &segmentID,
			StartTime: segment.StartTime + rc.Start,
			EndTime:   segment.StartTime + rc.End,
			Speaker:   speaker,
			Text:      text,
		})
	}
	return cues
}

// GetByEpisode retrieves all cues of an episode in transcript order. Order
// is reconstructed by start time because segment workers persist out of
// index order; ties break on id, which is creation ordered.
func (r *cueRepo) GetByEpisode(ctx context.Context, episodeID models.ULID) ([]*models.TranscriptCue, error) {
	var cues []*models.TranscriptCue
	if err := r.db.WithContext(ctx).
		Where("episode_id = ?", episodeID).
		Order("start_time ASC, id ASC").
		Find(&cues).Error; err != nil {
		return nil, fmt.Errorf("getting cues by episode: %w", err)
	}
	return cues, nil
}

// GetByEpisodeRange retrieves an episode's cues overlapping [from, to).
func (r *cueRepo) GetByEpisodeRange(ctx context.Context, episodeID models.ULID, from, to float64) ([]*models.TranscriptCue, error) {
	var cues []*models.TranscriptCue
	if err := r.db.WithContext(ctx).
		Where("episode_id = ? AND end_time > ? AND start_time < ?", episodeID, from, to).
		Order("start_time ASC, id ASC").
		Find(&cues).Error; err != nil {
		return nil, fmt.Errorf("getting cues by range: %w", err)
	}
	return cues, nil
}

// GetBySegment retrieves the cues a segment's transcription produced.
func (r *cueRepo) GetBySegment(ctx context.Context, segmentID models.ULID) ([]*models.TranscriptCue, error) {
	var cues []*models.TranscriptCue
	if err := r.db.WithContext(ctx).
		Where("segment_id = ?", segmentID).
		Order("start_time ASC, id ASC").
		Find(&cues).Error; err != nil {
		return nil, fmt.Errorf("getting cues by segment: %w", err)
	}
	return cues, nil
}

// CountBySegment counts the cues attributed to a segment.
func (r *cueRepo) CountBySegment(ctx context.Context, segmentID models.ULID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TranscriptCue{}).
		Where("segment_id = ?", segmentID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting cues by segment: %w", err)
	}
	return count, nil
}

// CountByEpisode counts the cues of an episode.
func (r *cueRepo) CountByEpisode(ctx context.Context, episodeID models.ULID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TranscriptCue{}).
		Where("episode_id = ?", episodeID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting cues by episode: %w", err)
	}
	return count, nil
}

// Ensure cueRepo implements CueRepository at compile time.
var _ CueRepository = (*cueRepo)(nil)
