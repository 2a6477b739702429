package asr

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEngine transcribes clips through the OpenAI audio API. The API does
// word alignment server-side, so the aligner hooks are no-ops, and it offers
// no speaker attribution, so diarization requests are honored only in the
// sense that cues come back with the default speaker.
type OpenAIEngine struct {
	client *openai.Client
	model  string
}

// NewOpenAIEngine creates an engine backed by the OpenAI audio API.
func NewOpenAIEngine(apiKey string) *OpenAIEngine {
	return &OpenAIEngine{client: openai.NewClient(apiKey)}
}

// Load records the model to use for transcription requests. The remote API
// is stateless, so there is nothing to warm up.
func (e *OpenAIEngine) Load(ctx context.Context, model string) error {
	if model == "" {
		model = openai.Whisper1
	}
	e.model = model
	return nil
}

// LoadAligner is a no-op: the API returns segment-level timestamps directly.
func (e *OpenAIEngine) LoadAligner(ctx context.Context, language string) error {
	return nil
}

// ReleaseAligner is a no-op.
func (e *OpenAIEngine) ReleaseAligner(language string) {}

// LoadDiarizer validates the credential. The API has no diarization
// endpoint; the token gate matches engines that do.
func (e *OpenAIEngine) LoadDiarizer(ctx context.Context, authToken string) error {
	if authToken == "" {
		return ErrAuthTokenRequired
	}
	return nil
}

// ReleaseDiarizer is a no-op.
func (e *OpenAIEngine) ReleaseDiarizer() {}

// Transcribe sends the clip to the audio API and maps the verbose response
// segments to cues. Empty or whitespace-only spans are dropped.
func (e *OpenAIEngine) Transcribe(ctx context.Context, clipPath, language string, diarize bool) ([]RawCue, error) {
	if e.model == "" {
		return nil, ErrModelNotLoaded
	}

	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    e.model,
		FilePath: clipPath,
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	cues := make([]RawCue, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		cues = append(cues, RawCue{
			Start:   seg.Start,
			End:     seg.End,
			Speaker: "",
			Text:    text,
		})
	}
	return cues, nil
}
