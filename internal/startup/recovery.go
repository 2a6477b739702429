// Package startup provides boot-time reconciliation: re-homing work that a
// crashed or killed process left behind.
package startup

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Catonlarge/PodFlow-sub000/internal/models"
	"github.com/Catonlarge/PodFlow-sub000/internal/repository"
	"github.com/Catonlarge/PodFlow-sub000/internal/service"
)

// orphanReason is recorded on segments whose worker died with them.
const orphanReason = "orphaned at restart"

// Reconciler repairs persistent state after an unclean shutdown. A segment
// still marked processing at boot cannot have a live worker, so the claim is
// provably stale regardless of age.
type Reconciler struct {
	episodes repository.EpisodeRepository
	segments repository.SegmentRepository
	svc      *service.TranscriptionService
	logger   *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(
	episodes repository.EpisodeRepository,
	segments repository.SegmentRepository,
	svc *service.TranscriptionService,
	logger *slog.Logger,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{episodes: episodes, segments: segments, svc: svc, logger: logger}
}

// ReconcileOrphans marks every processing segment failed with an orphan
// reason, then re-derives the aggregate status of each episode that was
// mid-run. The failure consumes a retry so a segment that keeps killing the
// process cannot crash-loop forever; operators re-drive recovered episodes
// explicitly.
func (r *Reconciler) ReconcileOrphans(ctx context.Context) error {
	orphans, err := r.segments.GetProcessing(ctx)
	if err != nil {
		return err
	}

	touched := make(map[models.ULID]bool)
	for _, segment := range orphans {
		segment.MarkFailed(errors.New(orphanReason))
		if err := r.segments.Update(ctx, segment); err != nil {
			return err
		}
		touched[segment.EpisodeID] = true
		r.logger.Warn("segment orphaned by previous run",
			slog.String("episode_id", segment.EpisodeID.String()),
			slog.String("segment", segment.Label),
			slog.Int("retry_count", segment.RetryCount),
		)
	}

	// Episodes can be stuck processing without any processing segments,
	// e.g. killed between the status write and the first claim.
	stuck, err := r.episodes.GetByStatus(ctx, models.EpisodeStatusProcessing)
	if err != nil {
		return err
	}
	for _, episode := range stuck {
		touched[episode.ID] = true
	}

	for episodeID := range touched {
		status, err := r.svc.RecomputeStatus(ctx, episodeID)
		if err != nil {
			return err
		}
		r.logger.Info("episode reconciled after restart",
			slog.String("episode_id", episodeID.String()),
			slog.String("status", string(status)),
		)
	}

	if len(orphans) > 0 || len(stuck) > 0 {
		r.logger.Info("boot reconciliation finished",
			slog.Int("orphaned_segments", len(orphans)),
			slog.Int("episodes", len(touched)),
		)
	}
	return nil
}
