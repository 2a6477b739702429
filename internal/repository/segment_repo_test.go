package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Catonlarge/PodFlow-sub000/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:?_pragma=foreign_keys(ON)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.Episode{},
		&models.AudioSegment{},
		&models.TranscriptCue{},
		&models.Highlight{},
		&models.Note{},
		&models.AIQueryRecord{},
	)
	require.NoError(t, err)

	return db
}

func createTestEpisode(t *testing.T, db *gorm.DB, duration float64) *models.Episode {
	t.Helper()
	episode := &models.Episode{
		FileHash:  "0123456789abcdef0123456789abcdef",
		AudioPath: "/data/audio/episode.mp3",
		Duration:  duration,
	}
	require.NoError(t, NewEpisodeRepository(db).Create(context.Background(), episode))
	return episode
}

func segmentsFor(episode *models.Episode, segmentDuration float64) []*models.AudioSegment {
	total := episode.TotalSegments(segmentDuration)
	segments := make([]*models.AudioSegment, 0, total)
	for i := 0; i < total; i++ {
		start := float64(i) * segmentDuration
		end := start + segmentDuration
		if end > episode.Duration {
			end = episode.Duration
		}
		segments = append(segments, &models.AudioSegment{
			EpisodeID:    episode.ID,
			SegmentIndex: i,
			StartTime:    start,
			EndTime:      end,
			Status:       models.SegmentStatusPending,
		})
	}
	return segments
}

func TestSegmentRepo_CreateBatch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSegmentRepository(db)
	ctx := context.Background()

	episode := createTestEpisode(t, db, 540)
	require.NoError(t, repo.CreateBatch(ctx, segmentsFor(episode, 180)))

	segments, err := repo.GetByEpisode(ctx, episode.ID)
	require.NoError(t, err)
	require.Len(t, segments, 3)

	assert.Equal(t, "segment_000", segments[0].Label)
	assert.Equal(t, "segment_002", segments[2].Label)
	assert.Equal(t, 360.0, segments[2].StartTime)
	assert.Equal(t, 540.0, segments[2].EndTime)
}

func TestSegmentRepo_CreateBatch_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSegmentRepository(db)
	ctx := context.Background()

	episode := createTestEpisode(t, db, 360)
	require.NoError(t, repo.CreateBatch(ctx, segmentsFor(episode, 180)))

	// Complete one segment, then re-run segmentation.
	segments, err := repo.GetByEpisode(ctx, episode.ID)
	require.NoError(t, err)
	segments[0].MarkCompleted()
	require.NoError(t, repo.Update(ctx, segments[0]))

	require.NoError(t, repo.CreateBatch(ctx, segmentsFor(episode, 180)))

	segments, err = repo.GetByEpisode(ctx, episode.ID)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, models.SegmentStatusCompleted, segments[0].Status, "existing rows keep their state")
}

func TestSegmentRepo_Claim(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSegmentRepository(db)
	ctx := context.Background()

	episode := createTestEpisode(t, db, 180)
	require.NoError(t, repo.CreateBatch(ctx, segmentsFor(episode, 180)))
	segments, err := repo.GetByEpisode(ctx, episode.ID)
	require.NoError(t, err)
	seg := segments[0]

	claimed, err := repo.Claim(ctx, seg.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	// A second claim on a processing segment loses.
	claimed, err = repo.Claim(ctx, seg.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err := repo.GetByID(ctx, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SegmentStatusProcessing, got.Status)
	require.NotNil(t, got.StartedAt)
}

func TestSegmentRepo_Claim_PreservesStartedAt(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSegmentRepository(db)
	ctx := context.Background()

	episode := createTestEpisode(t, db, 180)
	require.NoError(t, repo.CreateBatch(ctx, segmentsFor(episode, 180)))
	segments, err := repo.GetByEpisode(ctx, episode.ID)
	require.NoError(t, err)
	seg := segments[0]

	claimed, err := repo.Claim(ctx, seg.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	first, err := repo.GetByID(ctx, seg.ID)
	require.NoError(t, err)
	require.NotNil(t, first.StartedAt)

	// Fail the attempt, then reclaim for a retry.
	first.MarkFailed(assert.AnError)
	require.NoError(t, repo.Update(ctx, first))

	time.Sleep(10 * time.Millisecond)
	claimed, err = repo.Claim(ctx, seg.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	second, err := repo.GetByID(ctx, seg.ID)
	require.NoError(t, err)
	require.NotNil(t, second.StartedAt)
	assert.WithinDuration(t, *first.StartedAt, *second.StartedAt, time.Second,
		"retry must not move the original start timestamp")
	assert.Empty(t, second.ErrorMessage, "claim clears the previous error")
	assert.Equal(t, 1, second.RetryCount, "retry count survives the reclaim")
}

func TestSegmentRepo_StatusCounts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSegmentRepository(db)
	ctx := context.Background()

	episode := createTestEpisode(t, db, 540)
	require.NoError(t, repo.CreateBatch(ctx, segmentsFor(episode, 180)))
	segments, err := repo.GetByEpisode(ctx, episode.ID)
	require.NoError(t, err)

	segments[0].MarkCompleted()
	require.NoError(t, repo.Update(ctx, segments[0]))
	segments[1].MarkFailed(assert.AnError)
	require.NoError(t, repo.Update(ctx, segments[1]))

	counts, err := repo.StatusCounts(ctx, episode.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.SegmentStatusCompleted])
	assert.Equal(t, 1, counts[models.SegmentStatusFailed])
	assert.Equal(t, 1, counts[models.SegmentStatusPending])
}

func TestSegmentRepo_GetWithClipPaths(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSegmentRepository(db)
	ctx := context.Background()

	episode := createTestEpisode(t, db, 360)
	require.NoError(t, repo.CreateBatch(ctx, segmentsFor(episode, 180)))
	segments, err := repo.GetByEpisode(ctx, episode.ID)
	require.NoError(t, err)

	require.NoError(t, repo.SetClipPath(ctx, segments[0].ID, "/tmp/clips/a.wav"))

	withClips, err := repo.GetWithClipPaths(ctx)
	require.NoError(t, err)
	require.Len(t, withClips, 1)
	assert.Equal(t, "/tmp/clips/a.wav", withClips[0].TempClipPath)
}
