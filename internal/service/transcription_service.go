// Package service implements the transcription orchestration: virtual
// segmentation, the per-segment extract/transcribe/persist pipeline, episode
// lifecycle, and progress projection.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Catonlarge/PodFlow-sub000/internal/asr"
	"github.com/Catonlarge/PodFlow-sub000/internal/config"
	"github.com/Catonlarge/PodFlow-sub000/internal/models"
	"github.com/Catonlarge/PodFlow-sub000/internal/repository"
)

// ClipExtractor materializes a time range of the source audio as a PCM clip.
type ClipExtractor interface {
	Extract(ctx context.Context, sourcePath string, start, duration float64) (string, error)
	Remove(clipPath string) error
	ClipDir() string
}

// Recognizer is the speech recognition capability the pipeline consumes.
// *asr.Adapter satisfies it.
type Recognizer interface {
	Transcribe(ctx context.Context, clipPath, language string, diarize bool) ([]asr.RawCue, error)
	LoadDiarization(ctx context.Context, authToken string) error
	ReleaseDiarization()
	DiarizationLoaded() bool
}

// TranscriptionService drives episode transcription end to end.
type TranscriptionService struct {
	episodes   repository.EpisodeRepository
	segments   repository.SegmentRepository
	cues       repository.CueRepository
	extractor  ClipExtractor
	recognizer Recognizer
	cfg        config.TranscriptionConfig
	logger     *slog.Logger
}

// NewTranscriptionService creates a TranscriptionService.
func NewTranscriptionService(
	episodes repository.EpisodeRepository,
	segments repository.SegmentRepository,
	cues repository.CueRepository,
	extractor ClipExtractor,
	recognizer Recognizer,
	cfg config.TranscriptionConfig,
	logger *slog.Logger,
) *TranscriptionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscriptionService{
		episodes:   episodes,
		segments:   segments,
		cues:       cues,
		extractor:  extractor,
		recognizer: recognizer,
		cfg:        cfg,
		logger:     logger,
	}
}

// BuildSegments computes the virtual segment rows for an episode. Slices are
// contiguous, gap-free, and cover [0, Duration); the last slice absorbs the
// remainder. An episode shorter than one slice still gets a single row.
func BuildSegments(episode *models.Episode, segmentDuration float64) []*models.AudioSegment {
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
			Label:        models.SegmentLabel(i),
			StartTime:    start,
			EndTime:      end,
			Status:       models.SegmentStatusPending,
		})
	}
	return segments
}

// AggregateStatus derives an episode status from its segment counts once no
// workers are active. All completed means completed, all failed means failed,
// a mix of terminal states means partial_failed. Segments still pending or
// processing keep the episode in its transient state.
func AggregateStatus(counts map[models.SegmentStatus]int) models.EpisodeStatus {
	total := 0
	for _, n := range counts {
		total += n
	}
	completed := counts[models.SegmentStatusCompleted]
	failed := counts[models.SegmentStatusFailed]

	switch {
	case total == 0:
		return models.EpisodeStatusPending
	case completed == total:
		return models.EpisodeStatusCompleted
	case failed == total:
		return models.EpisodeStatusFailed
	case completed+failed == total:
		return models.EpisodeStatusPartialFailed
	case counts[models.SegmentStatusProcessing] > 0:
		return models.EpisodeStatusProcessing
	default:
		return models.EpisodeStatusPending
	}
}

// StartEpisode transcribes every outstanding segment of an episode and
// updates the episode's aggregate status when done. It is the single entry
// point for first runs, resumes after partial failure, and recovery after a
// restart: segment rows are created idempotently and completed segments are
// never reprocessed. Blocks until the pipeline drains; callers wanting
// fire-and-forget run it on their own goroutine.
func (s *TranscriptionService) StartEpisode(ctx context.Context, episodeID models.ULID) error {
	episode, err := s.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return err
	}
	if episode == nil {
		return models.ErrEpisodeNotFound
	}
	if episode.Status == models.EpisodeStatusProcessing {
		return models.ErrEpisodeProcessing
	}

	if err := s.segments.CreateBatch(ctx, BuildSegments(episode, s.cfg.SegmentDuration)); err != nil {
		return err
	}
	if err := s.episodes.UpdateStatus(ctx, episodeID, models.EpisodeStatusProcessing); err != nil {
		return err
	}

	s.logger.Info("episode transcription started",
		slog.String("episode_id", episodeID.String()),
		slog.Int("total_segments", episode.TotalSegments(s.cfg.SegmentDuration)),
	)

	diarize := s.prepareDiarization(ctx)
	defer s.releaseDiarization(diarize)

	if err := s.runSegmentPool(ctx, episode, diarize); err != nil {
		return err
	}
	return s.finishEpisode(ctx, episodeID)
}

// CheckRetrySegment validates the preconditions for re-driving one segment
// without starting work. Lets the API reject bad requests synchronously
// before handing the actual run to a background goroutine.
func (s *TranscriptionService) CheckRetrySegment(ctx context.Context, episodeID models.ULID, index int) error {
	_, _, err := s.retryPreconditions(ctx, episodeID, index)
	return err
}

// retryPreconditions loads and validates the episode and segment for a
// re-drive.
func (s *TranscriptionService) retryPreconditions(ctx context.Context, episodeID models.ULID, index int) (*models.Episode, *models.AudioSegment, error) {
	episode, err := s.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return nil, nil, err
	}
	if episode == nil {
		return nil, nil, models.ErrEpisodeNotFound
	}
	if episode.Status == models.EpisodeStatusProcessing {
		return nil, nil, models.ErrEpisodeProcessing
	}

	segment, err := s.segments.GetByEpisodeAndIndex(ctx, episodeID, index)
	if err != nil {
		return nil, nil, err
	}
	if segment == nil {
		return nil, nil, models.ErrSegmentNotFound
	}
	switch segment.Status {
	case models.SegmentStatusProcessing:
		return nil, nil, models.ErrSegmentInProgress
	case models.SegmentStatusFailed:
		if !segment.CanRetry(s.cfg.MaxRetries) {
			return nil, nil, models.ErrRetryCapReached
		}
	default:
		return nil, nil, models.NewPreconditionError("retry segment", string(segment.Status), models.ErrSegmentNotRetryable)
	}
	return episode, segment, nil
}

// RetrySegment re-drives one failed segment. The episode must not be mid-run
// and the segment must have retry budget left.
func (s *TranscriptionService) RetrySegment(ctx context.Context, episodeID models.ULID, index int) error {
	episode, segment, err := s.retryPreconditions(ctx, episodeID, index)
	if err != nil {
		return err
	}

	if err := s.episodes.UpdateStatus(ctx, episodeID, models.EpisodeStatusProcessing); err != nil {
		return err
	}

	diarize := s.prepareDiarization(ctx)
	defer s.releaseDiarization(diarize)

	if err := s.processSegment(ctx, episode, segment, diarize); err != nil {
		return err
	}
	return s.finishEpisode(ctx, episodeID)
}

// RecoverableSegments returns the indexes a recovery run would re-drive:
// pending segments plus failed segments with retry budget left. An empty
// result means recovery would be a no-op.
func (s *TranscriptionService) RecoverableSegments(ctx context.Context, episodeID models.ULID) ([]int, error) {
	episode, err := s.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if episode == nil {
		return nil, models.ErrEpisodeNotFound
	}
	if episode.Status == models.EpisodeStatusProcessing {
		return nil, models.ErrEpisodeProcessing
	}

	segments, err := s.segments.GetByEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}

	indexes := make([]int, 0, len(segments))
	for _, segment := range segments {
		switch segment.Status {
		case models.SegmentStatusPending:
			indexes = append(indexes, segment.SegmentIndex)
		case models.SegmentStatusFailed:
			if segment.CanRetry(s.cfg.MaxRetries) {
				indexes = append(indexes, segment.SegmentIndex)
			}
		}
	}
	return indexes, nil
}

// CancelEpisode requests that a running transcription stop. Workers notice
// at their next stage boundary and abandon without recording failures; the
// episode returns to pending and a later start resumes where it left off.
// Cancelling an episode that is not processing is a no-op.
func (s *TranscriptionService) CancelEpisode(ctx context.Context, episodeID models.ULID) error {
	episode, err := s.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return err
	}
	if episode == nil {
		return models.ErrEpisodeNotFound
	}
	if episode.Status != models.EpisodeStatusProcessing {
		s.logger.Debug("cancel ignored, episode not processing",
			slog.String("episode_id", episodeID.String()),
			slog.String("status", string(episode.Status)),
		)
		return nil
	}

	if err := s.episodes.UpdateStatus(ctx, episodeID, models.EpisodeStatusPending); err != nil {
		return err
	}
	s.logger.Info("episode transcription cancelled", slog.String("episode_id", episodeID.String()))
	return nil
}

// RecomputeStatus re-derives and stores the aggregate status of an episode
// from its segment rows. Used after boot reconciliation.
func (s *TranscriptionService) RecomputeStatus(ctx context.Context, episodeID models.ULID) (models.EpisodeStatus, error) {
	counts, err := s.segments.StatusCounts(ctx, episodeID)
	if err != nil {
		return "", err
	}
	status := AggregateStatus(counts)
	if err := s.episodes.UpdateStatus(ctx, episodeID, status); err != nil {
		return "", err
	}
	return status, nil
}

// runSegmentPool dispatches outstanding segments to a bounded worker pool in
// index order. The pool bound caps extraction and DB concurrency; the
// recognizer additionally serializes the inference stage internally.
func (s *TranscriptionService) runSegmentPool(ctx context.Context, episode *models.Episode, diarize bool) error {
	segments, err := s.segments.GetByEpisode(ctx, episode.ID)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.WorkerCount)

	for _, segment := range segments {
		switch segment.Status {
		case models.SegmentStatusCompleted, models.SegmentStatusProcessing:
			continue
		case models.SegmentStatusFailed:
			if !segment.CanRetry(s.cfg.MaxRetries) {
				continue
			}
		}
		segment := segment
		g.Go(func() error {
			return s.processSegment(gctx, episode, segment, diarize)
		})
	}
	return g.Wait()
}

// processSegment runs the full pipeline for one segment: claim, extract,
// transcribe, persist. Pipeline failures are recorded on the segment row and
// do not propagate; only infrastructure errors return non-nil.
func (s *TranscriptionService) processSegment(ctx context.Context, episode *models.Episode, segment *models.AudioSegment, diarize bool) error {
	claimed, err := s.segments.Claim(ctx, segment.ID)
	if err != nil {
		return err
	}
	if !claimed {
		s.logger.Debug("segment claim lost", slog.String("segment", segment.Label))
		return nil
	}

	// Reload after the claim so later saves carry the claimed state.
	segment, err = s.segments.GetByID(ctx, segment.ID)
	if err != nil {
		return err
	}
	if segment == nil {
		return models.ErrSegmentNotFound
	}

	log := s.logger.With(
		slog.String("episode_id", episode.ID.String()),
		slog.String("segment", segment.Label),
	)

	if cancelled, err := s.episodeCancelled(ctx, episode.ID); err != nil || cancelled {
		if cancelled {
			log.Info("segment abandoned, episode cancelled")
			return s.segments.Release(ctx, segment.ID)
		}
		return err
	}

	clipPath, err := s.extractor.Extract(ctx, episode.AudioPath, segment.StartTime, segment.Duration())
	if err != nil {
		return s.failSegment(ctx, segment, fmt.Errorf("extracting clip: %w", err), log)
	}
	if err := s.segments.SetClipPath(ctx, segment.ID, clipPath); err != nil {
		return err
	}
	segment.TempClipPath = clipPath

	if cancelled, err := s.episodeCancelled(ctx, episode.ID); err != nil || cancelled {
		if cancelled {
			log.Info("segment abandoned before transcription, episode cancelled")
			return s.segments.Release(ctx, segment.ID)
		}
		return err
	}

	asrCtx, cancel := context.WithTimeout(ctx, s.cfg.ASRTimeout(segment.Duration()))
	raw, err := s.recognizer.Transcribe(asrCtx, clipPath, episode.LanguageCode(s.cfg.DefaultLanguage), diarize)
	cancel()
	if err != nil {
		return s.failSegment(ctx, segment, fmt.Errorf("transcribing: %w", err), log)
	}

	// Persist boundary: a cancel that arrived during inference discards the
	// result rather than writing cues into a cancelled episode.
	if cancelled, err := s.episodeCancelled(ctx, episode.ID); err != nil || cancelled {
		if cancelled {
			log.Info("segment result discarded, episode cancelled")
			return s.segments.Release(ctx, segment.ID)
		}
		return err
	}

	if err := s.cues.ReplaceSegmentCues(ctx, segment, raw); err != nil {
		return s.failSegment(ctx, segment, fmt.Errorf("persisting cues: %w", err), log)
	}

	// The row no longer references the clip; the file goes with it. Failure
	// here is not fatal, the sweeper collects strays.
	if err := s.extractor.Remove(clipPath); err != nil {
		log.Warn("removing clip after completion", slog.String("error", err.Error()))
	}

	log.Info("segment completed",
		slog.Int("cues", len(raw)),
		slog.Float64("start", segment.StartTime),
		slog.Float64("end", segment.EndTime),
	)
	return nil
}

// failSegment records a failed attempt on the segment. The clip is retained
// so the next attempt skips extraction.
func (s *TranscriptionService) failSegment(ctx context.Context, segment *models.AudioSegment, cause error, log *slog.Logger) error {
	segment.MarkFailed(cause)
	if err := s.segments.Update(ctx, segment); err != nil {
		return err
	}
	log.Warn("segment failed",
		slog.Int("retry_count", segment.RetryCount),
		slog.Int("max_retries", s.cfg.MaxRetries),
		slog.String("error", cause.Error()),
	)
	return nil
}

// episodeCancelled reports whether the episode left the processing state.
func (s *TranscriptionService) episodeCancelled(ctx context.Context, episodeID models.ULID) (bool, error) {
	episode, err := s.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return false, err
	}
	return episode == nil || episode.Status != models.EpisodeStatusProcessing, nil
}

// finishEpisode stores the aggregate status once the pool has drained. A
// cancelled episode is left alone: it is already pending and its remaining
// segments stay claimable.
func (s *TranscriptionService) finishEpisode(ctx context.Context, episodeID models.ULID) error {
	episode, err := s.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return err
	}
	if episode == nil || episode.Status != models.EpisodeStatusProcessing {
		return nil
	}

	status, err := s.RecomputeStatus(ctx, episodeID)
	if err != nil {
		return err
	}
	s.logger.Info("episode transcription finished",
		slog.String("episode_id", episodeID.String()),
		slog.String("status", string(status)),
	)
	return nil
}

// prepareDiarization loads the diarization model when configured. Failure
// downgrades to plain transcription rather than blocking the run.
func (s *TranscriptionService) prepareDiarization(ctx context.Context) bool {
	if !s.cfg.Diarization {
		return false
	}
	if err := s.recognizer.LoadDiarization(ctx, s.cfg.AuthToken); err != nil {
		s.logger.Warn("diarization unavailable, continuing without speaker attribution",
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// releaseDiarization releases the diarization model after a run.
func (s *TranscriptionService) releaseDiarization(loaded bool) {
	if loaded {
		s.recognizer.ReleaseDiarization()
	}
}
