package startup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Catonlarge/PodFlow-sub000/internal/models"
	"github.com/Catonlarge/PodFlow-sub000/internal/repository"
)

// ClipSweeper removes temp clips that no segment will ever use again. The
// success path deletes its own clip after persist, but crashes, cancels, and
// retry-cap exhaustion all leave files behind; the sweeper is the backstop.
type ClipSweeper struct {
	segments   repository.SegmentRepository
	clipDir    string
	maxAge     time.Duration
	maxRetries int
	logger     *slog.Logger
}

// NewClipSweeper creates a ClipSweeper over clipDir.
func NewClipSweeper(
	segments repository.SegmentRepository,
	clipDir string,
	maxAge time.Duration,
	maxRetries int,
	logger *slog.Logger,
) *ClipSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClipSweeper{
		segments:   segments,
		clipDir:    clipDir,
		maxAge:     maxAge,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Sweep deletes stale clips and returns how many were removed. A clip
// survives when it is younger than the age floor, when a processing segment
// is using it, or when a failed segment with retry budget will want it. The
// DB is consulted on every run rather than cached: a clip that was orphaned
// a moment ago may have been re-referenced by a retry since.
func (s *ClipSweeper) Sweep(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.clipDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	holders, err := s.segments.GetWithClipPaths(ctx)
	if err != nil {
		return 0, err
	}
	wanted := make(map[string]*models.AudioSegment, len(holders))
	for _, segment := range holders {
		wanted[segment.TempClipPath] = segment
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.clipDir, entry.Name())

		if segment, ok := wanted[path]; ok {
			if segment.IsProcessing() || segment.CanRetry(s.maxRetries) {
				continue
			}
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			s.logger.Warn("removing orphan clip",
				slog.String("clip", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
		s.logger.Debug("orphan clip removed",
			slog.String("clip", path),
			slog.Duration("age", time.Since(info.ModTime()).Round(time.Second)),
		)
	}

	if removed > 0 {
		s.logger.Info("clip sweep finished", slog.Int("removed", removed))
	}
	return removed, nil
}
