package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Catonlarge/PodFlow-sub000/internal/models"
)

// annotationRepo implements AnnotationRepository using GORM.
type annotationRepo struct {
	db *gorm.DB
}

// NewAnnotationRepository creates a new AnnotationRepository.
func NewAnnotationRepository(db *gorm.DB) *annotationRepo {
	return &annotationRepo{db: db}
}

// CreateHighlight creates a highlight on a cue.
func (r *annotationRepo) CreateHighlight(ctx context.Context, highlight *models.Highlight) error {
	if err := r.db.WithContext(ctx).Create(highlight).Error; err != nil {
		return fmt.Errorf("creating highlight: %w", err)
	}
	return nil
}

// GetHighlightsByEpisode retrieves an episode's highlights.
func (r *annotationRepo) GetHighlightsByEpisode(ctx context.Context, episodeID models.ULID) ([]*models.Highlight, error) {
	var highlights []*models.Highlight
	if err := r.db.WithContext(ctx).
		Where("episode_id = ?", episodeID).
		Order("created_at ASC").
		Find(&highlights).Error; err != nil {
		return nil, fmt.Errorf("getting highlights by episode: %w", err)
	}
	return highlights, nil
}

// CreateNote creates a note.
func (r *annotationRepo) CreateNote(ctx context.Context, note *models.Note) error {
	if err := r.db.WithContext(ctx).Create(note).Error; err != nil {
		return fmt.Errorf("creating note: %w", err)
	}
	return nil
}

// GetNotesByEpisode retrieves an episode's notes.
func (r *annotationRepo) GetNotesByEpisode(ctx context.Context, episodeID models.ULID) ([]*models.Note, error) {
	var notes []*models.Note
	if err := r.db.WithContext(ctx).
		Where("episode_id = ?", episodeID).
		Order("created_at ASC").
		Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("getting notes by episode: %w", err)
	}
	return notes, nil
}

// CreateAIQuery creates an AI query record.
func (r *annotationRepo) CreateAIQuery(ctx context.Context, record *models.AIQueryRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("creating AI query record: %w", err)
	}
	return nil
}

// GetAIQueriesByCue retrieves the AI queries made against a cue.
func (r *annotationRepo) GetAIQueriesByCue(ctx context.Context, cueID models.ULID) ([]*models.AIQueryRecord, error) {
	var records []*models.AIQueryRecord
	if err := r.db.WithContext(ctx).
		Where("cue_id = ?", cueID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("getting AI queries by cue: %w", err)
	}
	return records, nil
}

// Ensure annotationRepo implements AnnotationRepository at compile time.
var _ AnnotationRepository = (*annotationRepo)(nil)
