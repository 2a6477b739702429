package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Catonlarge/PodFlow-sub000/internal/asr"
	"github.com/Catonlarge/PodFlow-sub000/internal/models"
)

func TestCueRepo_ReplaceSegmentCues_TranslatesTimestamps(t *testing.T) {
	db := setupTestDB(t)
	segRepo := NewSegmentRepository(db)
	cueRepo := NewCueRepository(db)
	ctx := context.Background()

	episode := createTestEpisode(t, db, 540)
	require.NoError(t, segRepo.CreateBatch(ctx, segmentsFor(episode, 180)))
	segments, err := segRepo.GetByEpisode(ctx, episode.ID)
	require.NoError(t, err)

	// Second segment: clip-relative 0s maps to absolute 180s.
	seg := segments[1]
	raw := []asr.RawCue{
		{Start: 0.0, End: 4.2, Text: "Welcome back to the show."},
		{Start: 4.2, End: 9.8, Speaker: "SPEAKER_01", Text: "Thanks for having me."},
		{Start: 9.8, End: 10.1, Text: "   "},
	}
	require.NoError(t, cueRepo.ReplaceSegmentCues(ctx, seg, raw))

	cues, err := cueRepo.GetBySegment(ctx, seg.ID)
	require.NoError(t, err)
	require.Len(t, cues, 2, "whitespace-only cues are dropped")

	assert.Equal(t, 180.0, cues[0].StartTime)
	assert.Equal(t, 184.2, cues[0].EndTime)
	assert.Equal(t, models.DefaultSpeaker, cues[0].Speaker)
	assert.Equal(t, "SPEAKER_01", cues[1].Speaker)
	assert.Equal(t, episode.ID, cues[0].EpisodeID)

	assert.Equal(t, models.SegmentStatusCompleted, seg.Status)
	assert.Empty(t, seg.TempClipPath)
}

func TestCueRepo_ReplaceSegmentCues_RetryReplacesOldCues(t *testing.T) {
	db := setupTestDB(t)
	segRepo := NewSegmentRepository(db)
	cueRepo := NewCueRepository(db)
	ctx := context.Background()

	episode := createTestEpisode(t, db, 180)
	require.NoError(t, segRepo.CreateBatch(ctx, segmentsFor(episode, 180)))
	segments, err := segRepo.GetByEpisode(ctx, episode.ID)
	require.NoError(t, err)
	seg := segments[0]

	require.NoError(t, cueRepo.ReplaceSegmentCues(ctx, seg, []asr.RawCue{
		{Start: 0, End: 3, Text: "first attempt"},
		{Start: 3, End: 6, Text: "stale tail"},
	}))
	require.NoError(t, cueRepo.ReplaceSegmentCues(ctx, seg, []asr.RawCue{
		{Start: 0, End: 5, Text: "second attempt"},
	}))

	cues, err := cueRepo.GetBySegment(ctx, seg.ID)
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, "second attempt", cues[0].Text)

	count, err := cueRepo.CountByEpisode(ctx, episode.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestCueRepo_ReplaceSegmentCues_EmptyResultCompletesSegment(t *testing.T) {
	db := setupTestDB(t)
	segRepo := NewSegmentRepository(db)
	cueRepo := NewCueRepository(db)
	ctx := context.Background()

	episode := createTestEpisode(t, db, 180)
	require.NoError(t, segRepo.CreateBatch(ctx, segmentsFor(episode, 180)))
	segments, err := segRepo.GetByEpisode(ctx, episode.ID)
	require.NoError(t, err)
	seg := segments[0]

	// Silence is a legal transcription result.
	require.NoError(t, cueRepo.ReplaceSegmentCues(ctx, seg, nil))

	got, err := segRepo.GetByID(ctx, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SegmentStatusCompleted, got.Status)
	require.NotNil(t, got.RecognizedAt)

	count, err := cueRepo.CountBySegment(ctx, seg.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestCueRepo_GetByEpisode_OrderedByStartTime(t *testing.T) {
	db := setupTestDB(t)
	segRepo := NewSegmentRepository(db)
	cueRepo := NewCueRepository(db)
	ctx := context.Background()

	episode := createTestEpisode(t, db, 360)
	require.NoError(t, segRepo.CreateBatch(ctx, segmentsFor(episode, 180)))
	segments, err := segRepo.GetByEpisode(ctx, episode.ID)
	require.NoError(t, err)

	// Persist the later segment first; read order must still be temporal.
	require.NoError(t, cueRepo.ReplaceSegmentCues(ctx, segments[1], []asr.RawCue{
		{Start: 1, End: 4, Text: "later"},
	}))
	require.NoError(t, cueRepo.ReplaceSegmentCues(ctx, segments[0], []asr.RawCue{
		{Start: 2, End: 5, Text: "earlier"},
	}))

	cues, err := cueRepo.GetByEpisode(ctx, episode.ID)
	require.NoError(t, err)
	require.Len(t, cues, 2)
	assert.Equal(t, "earlier", cues[0].Text)
	assert.Equal(t, "later", cues[1].Text)
}

func TestCueRepo_GetByEpisodeRange(t *testing.T) {
	db := setupTestDB(t)
	segRepo := NewSegmentRepository(db)
	cueRepo := NewCueRepository(db)
	ctx := context.Background()

	episode := createTestEpisode(t, db, 360)
	require.NoError(t, segRepo.CreateBatch(ctx, segmentsFor(episode, 180)))
	segments, err := segRepo.GetByEpisode(ctx, episode.ID)
	require.NoError(t, err)

	require.NoError(t, cueRepo.ReplaceSegmentCues(ctx, segments[0], []asr.RawCue{
		{Start: 10, End: 20, Text: "inside"},
		{Start: 170, End: 179, Text: "straddles nothing"},
	}))
	require.NoError(t, cueRepo.ReplaceSegmentCues(ctx, segments[1], []asr.RawCue{
		{Start: 0, End: 10, Text: "outside"},
	}))

	cues, err := cueRepo.GetByEpisodeRange(ctx, episode.ID, 0, 60)
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, "inside", cues[0].Text)
}

func TestAnnotationRepo_CascadeOnCueReplacement(t *testing.T) {
	db := setupTestDB(t)
	segRepo := NewSegmentRepository(db)
	cueRepo := NewCueRepository(db)
	annRepo := NewAnnotationRepository(db)
	ctx := context.Background()

	episode := createTestEpisode(t, db, 180)
	require.NoError(t, segRepo.CreateBatch(ctx, segmentsFor(episode, 180)))
	segments, err := segRepo.GetByEpisode(ctx, episode.ID)
	require.NoError(t, err)
	seg := segments[0]

	require.NoError(t, cueRepo.ReplaceSegmentCues(ctx, seg, []asr.RawCue{
		{Start: 0, End: 3, Text: "highlighted line"},
	}))
	cues, err := cueRepo.GetBySegment(ctx, seg.ID)
	require.NoError(t, err)
	require.Len(t, cues, 1)

	require.NoError(t, annRepo.CreateHighlight(ctx, &models.Highlight{
		EpisodeID: episode.ID,
		CueID:     cues[0].ID,
		Color:     "yellow",
	}))

	// A re-drive reissues cue ids; the highlight anchored to the old cue
	// goes away with it.
	require.NoError(t, cueRepo.ReplaceSegmentCues(ctx, seg, []asr.RawCue{
		{Start: 0, End: 3, Text: "highlighted line, take two"},
	}))

	highlights, err := annRepo.GetHighlightsByEpisode(ctx, episode.ID)
	require.NoError(t, err)
	assert.Empty(t, highlights)
}
