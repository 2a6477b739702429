package startup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Catonlarge/PodFlow-sub000/internal/models"
	"github.com/Catonlarge/PodFlow-sub000/internal/service"
)

func writeAgedClip(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("pcm"), 0o644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestClipSweeper_Sweep(t *testing.T) {
	env := newRecoveryEnv(t)
	ctx := context.Background()
	clipDir := t.TempDir()

	episode := &models.Episode{
		FileHash:  "0123456789abcdef0123456789abcdef",
		AudioPath: "/data/audio/show.mp3",
		Duration:  720,
		Status:    models.EpisodeStatusProcessing,
	}
	require.NoError(t, env.episodes.Create(ctx, episode))
	require.NoError(t, env.segments.CreateBatch(ctx, service.BuildSegments(episode, 180)))
	segments, err := env.segments.GetByEpisode(ctx, episode.ID)
	require.NoError(t, err)

	// Old but held by a processing segment: kept.
	processingClip := writeAgedClip(t, clipDir, "processing.wav", 2*time.Hour)
	claimed, err := env.segments.Claim(ctx, segments[0].ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, env.segments.SetClipPath(ctx, segments[0].ID, processingClip))

	// Old and held by a failed segment with retry budget: kept.
	retryClip := writeAgedClip(t, clipDir, "retryable.wav", 2*time.Hour)
	claimed, err = env.segments.Claim(ctx, segments[1].ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, env.segments.SetClipPath(ctx, segments[1].ID, retryClip))
	failed, err := env.segments.GetByID(ctx, segments[1].ID)
	require.NoError(t, err)
	failed.MarkFailed(assert.AnError)
	require.NoError(t, env.segments.Update(ctx, failed))

	// Old and held by a failed segment at the retry cap: swept.
	capClip := writeAgedClip(t, clipDir, "exhausted.wav", 2*time.Hour)
	claimed, err = env.segments.Claim(ctx, segments[2].ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, env.segments.SetClipPath(ctx, segments[2].ID, capClip))
	exhausted, err := env.segments.GetByID(ctx, segments[2].ID)
	require.NoError(t, err)
	exhausted.MarkFailed(assert.AnError)
	exhausted.RetryCount = 3
	require.NoError(t, env.segments.Update(ctx, exhausted))

	// Old and referenced by nothing: swept.
	orphanClip := writeAgedClip(t, clipDir, "orphan.wav", 2*time.Hour)

	// Unreferenced but recent: kept, it may belong to an in-flight extract.
	freshClip := writeAgedClip(t, clipDir, "fresh.wav", time.Minute)

	sweeper := NewClipSweeper(env.segments, clipDir, 30*time.Minute, 3, nil)
	removed, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.FileExists(t, processingClip)
	assert.FileExists(t, retryClip)
	assert.FileExists(t, freshClip)
	assert.NoFileExists(t, capClip)
	assert.NoFileExists(t, orphanClip)
}

func TestClipSweeper_MissingDirIsNotAnError(t *testing.T) {
	env := newRecoveryEnv(t)

	sweeper := NewClipSweeper(env.segments, filepath.Join(t.TempDir(), "nope"), time.Hour, 3, nil)
	removed, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}
