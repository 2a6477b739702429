// Package asr adapts speech recognition engines to the transcription core.
// The engine itself is an external capability; this package owns model
// lifecycle, serialization of inference, and the per-language alignment
// cache.
package asr

import (
	"context"
	"errors"
)

// RawCue is one utterance span as returned by an engine, with timestamps
// relative to the transcribed clip (0-based seconds).
type RawCue struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
}

// Engine is the speech recognition capability consumed by the Adapter.
// Implementations may swap the backing model freely; the Adapter guarantees
// at most one goroutine is inside Transcribe, LoadAligner, LoadDiarizer, or
// their release counterparts at a time.
type Engine interface {
	// Load prepares the transcription model. Idempotent; expensive on the
	// first call.
	Load(ctx context.Context, model string) error

	// LoadAligner loads the forced-alignment model for a two-letter
	// language code.
	LoadAligner(ctx context.Context, language string) error

	// ReleaseAligner releases the alignment model for a language.
	ReleaseAligner(language string)

	// LoadDiarizer loads the speaker attribution model. The auth token is
	// required for model download.
	LoadDiarizer(ctx context.Context, authToken string) error

	// ReleaseDiarizer releases the diarization model.
	ReleaseDiarizer()

	// Transcribe runs transcription (and diarization when enabled) on a
	// 16 kHz mono PCM WAV clip and returns cues ordered by start time with
	// clip-relative timestamps. An empty result is legal and is not an
	// error.
	Transcribe(ctx context.Context, clipPath, language string, diarize bool) ([]RawCue, error)
}

// Engine lifecycle errors.
var (
	// ErrModelNotLoaded indicates Transcribe was called before EnsureLoaded.
	// This is a programming error, not a retryable condition.
	ErrModelNotLoaded = errors.New("asr model not loaded")

	// ErrAuthTokenRequired indicates diarization was requested without the
	// credential needed to download the model.
	ErrAuthTokenRequired = errors.New("auth token required for diarization model")
)
