package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Catonlarge/PodFlow-sub000/internal/models"
)

// episodeRepo implements EpisodeRepository using GORM.
type episodeRepo struct {
	db *gorm.DB
}

// NewEpisodeRepository creates a new EpisodeRepository.
func NewEpisodeRepository(db *gorm.DB) *episodeRepo {
	return &episodeRepo{db: db}
}

// Create creates a new episode.
func (r *episodeRepo) Create(ctx context.Context, episode *models.Episode) error {
	if err := r.db.WithContext(ctx).Create(episode).Error; err != nil {
		return fmt.Errorf("creating episode: %w", err)
	}
	return nil
}

// GetByID retrieves an episode by ID.
func (r *episodeRepo) GetByID(ctx context.Context, id models.ULID) (*models.Episode, error) {
	var episode models.Episode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&episode).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting episode by ID: %w", err)
	}
	return &episode, nil
}

// GetByFileHash retrieves an episode by its content fingerprint.
func (r *episodeRepo) GetByFileHash(ctx context.Context, fileHash string) (*models.Episode, error) {
	var episode models.Episode
	if err := r.db.WithContext(ctx).Where("file_hash = ?", fileHash).First(&episode).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting episode by file hash: %w", err)
	}
	return &episode, nil
}

// GetAll retrieves all episodes, newest first.
func (r *episodeRepo) GetAll(ctx context.Context) ([]*models.Episode, error) {
	var episodes []*models.Episode
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&episodes).Error; err != nil {
		return nil, fmt.Errorf("getting all episodes: %w", err)
	}
	return episodes, nil
}

// GetByStatus retrieves episodes by status.
func (r *episodeRepo) GetByStatus(ctx context.Context, status models.EpisodeStatus) ([]*models.Episode, error) {
	var episodes []*models.Episode
	if err := r.db.WithContext(ctx).Where("status = ?", status).Order("created_at ASC").Find(&episodes).Error; err != nil {
		return nil, fmt.Errorf("getting episodes by status: %w", err)
	}
	return episodes, nil
}

// Update updates an existing episode.
func (r *episodeRepo) Update(ctx context.Context, episode *models.Episode) error {
	if err := r.db.WithContext(ctx).Save(episode).Error; err != nil {
		return fmt.Errorf("updating episode: %w", err)
	}
	return nil
}

// UpdateStatus updates only the status column. Uses UpdateColumn to avoid
// triggering hooks on a partially loaded model.
func (r *episodeRepo) UpdateStatus(ctx context.Context, id models.ULID, status models.EpisodeStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Episode{}).Where("id = ?", id).
		UpdateColumn("status", status)
	if result.Error != nil {
		return fmt.Errorf("updating episode status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrEpisodeNotFound
	}
	return nil
}

// Delete deletes an episode by ID. Segments, cues, and annotations cascade.
func (r *episodeRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Episode{}).Error; err != nil {
		return fmt.Errorf("deleting episode: %w", err)
	}
	return nil
}

// Ensure episodeRepo implements EpisodeRepository at compile time.
var _ EpisodeRepository = (*episodeRepo)(nil)
