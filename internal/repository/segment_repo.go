package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Catonlarge/PodFlow-sub000/internal/models"
)

// segmentRepo implements SegmentRepository using GORM.
type segmentRepo struct {
	db *gorm.DB
}

// NewSegmentRepository creates a new SegmentRepository.
func NewSegmentRepository(db *gorm.DB) *segmentRepo {
	return &segmentRepo{db: db}
}

// CreateBatch inserts segment rows, skipping any that already exist for
// their (episode, index) pair. Re-running segmentation for an episode is
// therefore idempotent: existing rows keep their status and retry history.
func (r *segmentRepo) CreateBatch(ctx context.Context, segments []*models.AudioSegment) error {
	if len(segments) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "episode_id"}, {Name: "segment_index"}},
			DoNothing: true,
		}).
		Create(segments).Error
	if err != nil {
		return fmt.Errorf("creating segments: %w", err)
	}
	return nil
}

// GetByID retrieves a segment by ID.
func (r *segmentRepo) GetByID(ctx context.Context, id models.ULID) (*models.AudioSegment, error) {
	var segment models.AudioSegment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&segment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting segment by ID: %w", err)
	}
	return &segment, nil
}

// GetByEpisode retrieves all segments of an episode in index order.
func (r *segmentRepo) GetByEpisode(ctx context.Context, episodeID models.ULID) ([]*models.AudioSegment, error) {
	var segments []*models.AudioSegment
	if err := r.db.WithContext(ctx).
		Where("episode_id = ?", episodeID).
		Order("segment_index ASC").
		Find(&segments).Error; err != nil {
		return nil, fmt.Errorf("getting segments by episode: %w", err)
	}
	return segments, nil
}

// GetByEpisodeAndIndex retrieves one segment by its position.
func (r *segmentRepo) GetByEpisodeAndIndex(ctx context.Context, episodeID models.ULID, index int) (*models.AudioSegment, error) {
	var segment models.AudioSegment
	if err := r.db.WithContext(ctx).
		Where("episode_id = ? AND segment_index = ?", episodeID, index).
		First(&segment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting segment by index: %w", err)
	}
	return &segment, nil
}

// GetByEpisodeAndStatus retrieves an episode's segments in one status, in
// index order.
func (r *segmentRepo) GetByEpisodeAndStatus(ctx context.Context, episodeID models.ULID, status models.SegmentStatus) ([]*models.AudioSegment, error) {
	var segments []*models.AudioSegment
	if err := r.db.WithContext(ctx).
		Where("episode_id = ? AND status = ?", episodeID, status).
		Order("segment_index ASC").
		Find(&segments).Error; err != nil {
		return nil, fmt.Errorf("getting segments by status: %w", err)
	}
	return segments, nil
}

// GetProcessing retrieves all segments currently marked processing across
// every episode. Used at boot to find work orphaned by a crash.
func (r *segmentRepo) GetProcessing(ctx context.Context) ([]*models.AudioSegment, error) {
	var segments []*models.AudioSegment
	if err := r.db.WithContext(ctx).
		Where("status = ?", models.SegmentStatusProcessing).
		Order("episode_id ASC, segment_index ASC").
		Find(&segments).Error; err != nil {
		return nil, fmt.Errorf("getting processing segments: %w", err)
	}
	return segments, nil
}

// StatusCounts returns how many of the episode's segments are in each status.
func (r *segmentRepo) StatusCounts(ctx context.Context, episodeID models.ULID) (map[models.SegmentStatus]int, error) {
	var rows []struct {
		Status models.SegmentStatus
		N      int
	}
	if err := r.db.WithContext(ctx).Model(&models.AudioSegment{}).
		Select("status, COUNT(*) AS n").
		Where("episode_id = ?", episodeID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("counting segments by status: %w", err)
	}

	counts := make(map[models.SegmentStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}

// GetWithClipPaths returns every segment holding a temp clip reference. The
// sweeper uses these to decide which files on disk are still wanted.
func (r *segmentRepo) GetWithClipPaths(ctx context.Context) ([]*models.AudioSegment, error) {
	var segments []*models.AudioSegment
	if err := r.db.WithContext(ctx).
		Where("temp_clip_path <> ''").
		Find(&segments).Error; err != nil {
		return nil, fmt.Errorf("getting segments with clip paths: %w", err)
	}
	return segments, nil
}

// Claim atomically moves a segment from pending or failed to processing.
// Returns false if another worker got there first or the segment is in a
// non-claimable state. StartedAt is set only on the first ever claim.
func (r *segmentRepo) Claim(ctx context.Context, id models.ULID) (bool, error) {
	now := models.Now()
	result := r.db.WithContext(ctx).Model(&models.AudioSegment{}).
		Where("id = ? AND status IN (?, ?)", id, models.SegmentStatusPending, models.SegmentStatusFailed).
		UpdateColumns(map[string]interface{}{
			"status":        models.SegmentStatusProcessing,
			"error_message": "",
			"started_at":    gorm.Expr("COALESCE(started_at, ?)", now),
			"updated_at":    now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("claiming segment: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Release returns a processing segment to pending without recording an
// attempt. Used when a worker abandons work because the episode was
// cancelled. The clip path is left in place for the next attempt; retry
// count and started_at are untouched.
func (r *segmentRepo) Release(ctx context.Context, id models.ULID) error {
	result := r.db.WithContext(ctx).Model(&models.AudioSegment{}).
		Where("id = ? AND status = ?", id, models.SegmentStatusProcessing).
		UpdateColumns(map[string]interface{}{
			"status":     models.SegmentStatusPending,
			"updated_at": models.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("releasing segment: %w", result.Error)
	}
	return nil
}

// SetClipPath records the extracted clip location for a segment.
func (r *segmentRepo) SetClipPath(ctx context.Context, id models.ULID, clipPath string) error {
	result := r.db.WithContext(ctx).Model(&models.AudioSegment{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"temp_clip_path": clipPath,
			"updated_at":     models.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("setting segment clip path: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrSegmentNotFound
	}
	return nil
}

// Update updates an existing segment.
func (r *segmentRepo) Update(ctx context.Context, segment *models.AudioSegment) error {
	if err := r.db.WithContext(ctx).Save(segment).Error; err != nil {
		return fmt.Errorf("updating segment: %w", err)
	}
	return nil
}

// Ensure segmentRepo implements SegmentRepository at compile time.
var _ SegmentRepository = (*segmentRepo)(nil)
