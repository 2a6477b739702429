// Package clipper materializes virtual segments as temporary PCM clips by
// driving ffmpeg against the source audio.
package clipper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Extraction output format: ASR engines expect 16 kHz mono 16-bit PCM.
const (
	sampleRate = 16000
	channels   = 1
)

// Extractor extracts time ranges of a source audio file into WAV clips.
type Extractor struct {
	ffmpegPath string
	clipDir    string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewExtractor creates an Extractor writing clips under clipDir.
func NewExtractor(ffmpegPath, clipDir string, timeout time.Duration, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		ffmpegPath: ffmpegPath,
		clipDir:    clipDir,
		timeout:    timeout,
		logger:     logger,
	}
}

// ClipPath returns the deterministic output path for a time range of a
// source file. The name encodes source stem, start, and duration in
// milliseconds, so re-extracting the same range lands on the same file.
func (e *Extractor) ClipPath(sourcePath string, start, duration float64) string {
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	name := fmt.Sprintf("%s_%d-%d.wav", stem, int64(start*1000), int64(duration*1000))
	return filepath.Join(e.clipDir, name)
}

// Extract materializes the [start, start+duration) range of sourcePath as a
// 16 kHz mono PCM WAV clip and returns its path. An existing clip for the
// same range is reused, which lets retries skip re-extraction. Extraction is
// bounded by the configured timeout; decoding a three minute slice takes
// well under a second on anything modern, so hitting the bound means ffmpeg
// is stuck, not slow.
func (e *Extractor) Extract(ctx context.Context, sourcePath string, start, duration float64) (string, error) {
	outPath := e.ClipPath(sourcePath, start, duration)

	if info, err := os.Stat(outPath); err == nil && info.Size() > 0 {
		e.logger.Debug("reusing existing clip", slog.String("clip", outPath))
		return outPath, nil
	}

	if err := os.MkdirAll(e.clipDir, 0o755); err != nil {
		return "", fmt.Errorf("creating clip directory: %w", err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := extractArgs(sourcePath, outPath, start, duration)
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	startedAt := time.Now()
	if err := cmd.Run(); err != nil {
		// A partial file from a failed run must not be mistaken for a
		// reusable clip later.
		os.Remove(outPath)
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("ffmpeg extraction timed out after %s: %s", e.timeout, lastStderrLine(&stderr))
		}
		return "", fmt.Errorf("ffmpeg extraction failed: %w: %s", err, lastStderrLine(&stderr))
	}

	e.logger.Debug("clip extracted",
		slog.String("source", sourcePath),
		slog.String("clip", outPath),
		slog.Float64("start", start),
		slog.Float64("duration", duration),
		slog.Duration("elapsed", time.Since(startedAt)),
	)
	return outPath, nil
}

// Remove deletes a clip file. A missing file is not an error: success and
// sweep paths can both try to remove the same clip.
func (e *Extractor) Remove(clipPath string) error {
	if clipPath == "" {
		return nil
	}
	if err := os.Remove(clipPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing clip: %w", err)
	}
	return nil
}

// ClipDir returns the directory clips are written to.
func (e *Extractor) ClipDir() string {
	return e.clipDir
}

// extractArgs builds the ffmpeg argument list for one clip. -ss before -i
// seeks on the demuxer, which keeps extraction time independent of offset.
func extractArgs(sourcePath, outPath string, start, duration float64) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-i", sourcePath,
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		"-y",
		outPath,
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// lastStderrLine returns the final non-empty stderr line, which is where
// ffmpeg puts the actionable error.
func lastStderrLine(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no ffmpeg output"
}
