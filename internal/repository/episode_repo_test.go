package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Catonlarge/PodFlow-sub000/internal/models"
)

func TestEpisodeRepo_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEpisodeRepository(db)
	ctx := context.Background()

	episode := &models.Episode{
		FileHash:         "0123456789abcdef0123456789abcdef",
		OriginalFilename: "episode-042.mp3",
		AudioPath:        "/data/audio/episode-042.mp3",
		Duration:         1234.5,
	}

	err := repo.Create(ctx, episode)
	require.NoError(t, err)
	assert.False(t, episode.ID.IsZero())

	found, err := repo.GetByID(ctx, episode.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, models.EpisodeStatusPending, found.Status)
	assert.Equal(t, "episode-042.mp3", found.OriginalFilename)
}

func TestEpisodeRepo_Create_RejectsInvalid(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEpisodeRepository(db)
	ctx := context.Background()

	err := repo.Create(ctx, &models.Episode{
		FileHash:  "not-a-hash",
		AudioPath: "/data/audio/x.mp3",
		Duration:  60,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidFileHash)
}

func TestEpisodeRepo_GetByFileHash(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEpisodeRepository(db)
	ctx := context.Background()

	episode := createTestEpisode(t, db, 600)

	t.Run("existing hash", func(t *testing.T) {
		found, err := repo.GetByFileHash(ctx, episode.FileHash)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, episode.ID, found.ID)
	})

	t.Run("unknown hash", func(t *testing.T) {
		found, err := repo.GetByFileHash(ctx, "ffffffffffffffffffffffffffffffff")
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestEpisodeRepo_DuplicateFileHashRejected(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEpisodeRepository(db)
	ctx := context.Background()

	createTestEpisode(t, db, 600)

	err := repo.Create(ctx, &models.Episode{
		FileHash:  "0123456789abcdef0123456789abcdef",
		AudioPath: "/data/audio/copy.mp3",
		Duration:  600,
	})
	require.Error(t, err)
}

func TestEpisodeRepo_UpdateStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEpisodeRepository(db)
	ctx := context.Background()

	episode := createTestEpisode(t, db, 600)

	require.NoError(t, repo.UpdateStatus(ctx, episode.ID, models.EpisodeStatusProcessing))

	found, err := repo.GetByID(ctx, episode.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EpisodeStatusProcessing, found.Status)

	err = repo.UpdateStatus(ctx, models.NewULID(), models.EpisodeStatusCompleted)
	assert.ErrorIs(t, err, models.ErrEpisodeNotFound)
}

func TestEpisodeRepo_Delete_CascadesSegmentsAndCues(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEpisodeRepository(db)
	segRepo := NewSegmentRepository(db)
	cueRepo := NewCueRepository(db)
	ctx := context.Background()

	episode := createTestEpisode(t, db, 360)
	require.NoError(t, segRepo.CreateBatch(ctx, segmentsFor(episode, 180)))

	require.NoError(t, repo.Delete(ctx, episode.ID))

	segments, err := segRepo.GetByEpisode(ctx, episode.ID)
	require.NoError(t, err)
	assert.Empty(t, segments)

	count, err := cueRepo.CountByEpisode(ctx, episode.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
