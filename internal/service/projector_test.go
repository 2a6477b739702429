package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Catonlarge/PodFlow-sub000/internal/models"
)

func TestProjector_Progress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	episode := env.createEpisode(t, 540)
	projector := NewProjector(env.episodes, env.segments, env.cues, env.cfg)

	// One of three segments fails, so completion stalls at one third.
	env.recognizer.failClip["/tmp/clips/clip_180.wav"] = errors.New("fault")
	env.recognizer.failClip["/tmp/clips/clip_360.wav"] = errors.New("fault")
	require.NoError(t, env.svc.StartEpisode(ctx, episode.ID))

	progress, err := projector.Progress(ctx, episode.ID)
	require.NoError(t, err)

	assert.Equal(t, models.EpisodeStatusPartialFailed, progress.Status)
	assert.Equal(t, "Partially transcribed", progress.StatusDisplay)
	assert.Equal(t, 3, progress.TotalSegments)
	assert.Equal(t, 1, progress.CompletedSegments)
	assert.Equal(t, 2, progress.FailedSegments)
	assert.InDelta(t, 33.33, progress.ProgressPercent, 0.001)
	assert.EqualValues(t, 1, progress.CueCount)
	assert.NotNil(t, progress.StartedAt)
	assert.Nil(t, progress.CompletedAt, "completion time requires every segment done")
	// Failed segments have no retry scheduled, so they do not count toward
	// the remaining-work projection.
	assert.Zero(t, progress.ETASeconds)
}

func TestProjector_Progress_PendingETA(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	episode := env.createEpisode(t, 540)
	projector := NewProjector(env.episodes, env.segments, env.cues, env.cfg)

	require.NoError(t, env.segments.CreateBatch(ctx, BuildSegments(episode, env.cfg.SegmentDuration)))

	progress, err := projector.Progress(ctx, episode.ID)
	require.NoError(t, err)

	assert.Equal(t, models.EpisodeStatusPending, progress.Status)
	assert.Equal(t, "Not transcribed", progress.StatusDisplay)
	assert.Equal(t, 3, progress.PendingSegments)
	assert.Zero(t, progress.ProgressPercent)
	// 540 seconds of audio at 0.4x wall-clock.
	assert.InDelta(t, 216.0, progress.ETASeconds, 0.001)
	assert.Nil(t, progress.StartedAt)
}

func TestProjector_Progress_Completed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	episode := env.createEpisode(t, 360)
	projector := NewProjector(env.episodes, env.segments, env.cues, env.cfg)

	require.NoError(t, env.svc.StartEpisode(ctx, episode.ID))

	progress, err := projector.Progress(ctx, episode.ID)
	require.NoError(t, err)

	assert.Equal(t, models.EpisodeStatusCompleted, progress.Status)
	assert.Equal(t, 100.0, progress.ProgressPercent)
	assert.Zero(t, progress.ETASeconds)
	require.NotNil(t, progress.StartedAt)
	require.NotNil(t, progress.CompletedAt)
	assert.False(t, progress.CompletedAt.Before(*progress.StartedAt))
}

func TestProjector_Progress_UnknownEpisode(t *testing.T) {
	env := newTestEnv(t)
	projector := NewProjector(env.episodes, env.segments, env.cues, env.cfg)

	_, err := projector.Progress(context.Background(), models.NewULID())
	assert.ErrorIs(t, err, models.ErrEpisodeNotFound)
}

func TestStatusDisplay(t *testing.T) {
	assert.Equal(t, "Transcribing", StatusDisplay(models.EpisodeStatusProcessing))
	assert.Equal(t, "Transcription failed", StatusDisplay(models.EpisodeStatusFailed))
	assert.Equal(t, "weird", StatusDisplay(models.EpisodeStatus("weird")))
}
