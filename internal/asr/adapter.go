package asr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Adapter owns the process-wide engine lifecycle and serializes inference.
// GPU-backed engines are not safe for concurrent calls, so a single mutex
// guards the whole transcribe path; lazy alignment-model loads happen under
// the same mutex, before the engine call, so they cannot race with it.
type Adapter struct {
	engine Engine
	logger *slog.Logger

	mu sync.Mutex

	loaded         bool
	modelName      string
	alignLanguage  string // language whose aligner is currently cached
	alignLoaded    bool
	diarizerLoaded bool
}

// NewAdapter creates an Adapter over the given engine.
func NewAdapter(engine Engine, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{engine: engine, logger: logger}
}

// EnsureLoaded loads the transcription model if it is not loaded yet.
// Idempotent; called once at startup. Load failure is fatal for the process.
func (a *Adapter) EnsureLoaded(ctx context.Context, modelName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loaded && a.modelName == modelName {
		return nil
	}
	if err := a.engine.Load(ctx, modelName); err != nil {
		return fmt.Errorf("loading asr model %q: %w", modelName, err)
	}
	a.loaded = true
	a.modelName = modelName
	a.logger.Info("asr model loaded", slog.String("model", modelName))
	return nil
}

// LoadDiarization loads the speaker attribution model. The orchestrator
// calls this around episode boundaries; individual workers never do.
func (a *Adapter) LoadDiarization(ctx context.Context, authToken string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.diarizerLoaded {
		return nil
	}
	if authToken == "" {
		return ErrAuthTokenRequired
	}
	if err := a.engine.LoadDiarizer(ctx, authToken); err != nil {
		return fmt.Errorf("loading diarization model: %w", err)
	}
	a.diarizerLoaded = true
	a.logger.Info("diarization model loaded")
	return nil
}

// ReleaseDiarization releases the diarization model if it is loaded.
// Release failures are tolerable and only logged by callers.
func (a *Adapter) ReleaseDiarization() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.diarizerLoaded {
		return
	}
	a.engine.ReleaseDiarizer()
	a.diarizerLoaded = false
	a.logger.Info("diarization model released")
}

// DiarizationLoaded reports whether the diarization model is resident.
func (a *Adapter) DiarizationLoaded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.diarizerLoaded
}

// Transcribe runs the transcribe, align, diarize pipeline on one clip and
// returns cues with clip-relative timestamps. Calls are serialized: only one
// worker is inside the engine at a time. The alignment model for the
// requested language is loaded lazily under the same lock; a language change
// evicts the previously cached aligner.
func (a *Adapter) Transcribe(ctx context.Context, clipPath, language string, diarize bool) ([]RawCue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.loaded {
		return nil, ErrModelNotLoaded
	}

	if err := a.ensureAlignerLocked(ctx, language); err != nil {
		return nil, err
	}

	diarize = diarize && a.diarizerLoaded

	cues, err := a.engine.Transcribe(ctx, clipPath, language, diarize)
	if err != nil {
		return nil, fmt.Errorf("transcribing %s: %w", clipPath, err)
	}
	if cues == nil {
		cues = []RawCue{}
	}
	return cues, nil
}

// ensureAlignerLocked loads the alignment model for language, evicting a
// cached aligner for a different language first. Caller holds a.mu.
func (a *Adapter) ensureAlignerLocked(ctx context.Context, language string) error {
	if a.alignLoaded && a.alignLanguage == language {
		return nil
	}
	if a.alignLoaded {
		a.engine.ReleaseAligner(a.alignLanguage)
		a.alignLoaded = false
		a.logger.Debug("alignment model evicted", slog.String("language", a.alignLanguage))
	}
	if err := a.engine.LoadAligner(ctx, language); err != nil {
		return fmt.Errorf("loading alignment model for %q: %w", language, err)
	}
	a.alignLanguage = language
	a.alignLoaded = true
	a.logger.Debug("alignment model loaded", slog.String("language", language))
	return nil
}
