// Package handlers provides the HTTP API handlers for podflow.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Catonlarge/PodFlow-sub000/internal/models"
	"github.com/Catonlarge/PodFlow-sub000/internal/repository"
	"github.com/Catonlarge/PodFlow-sub000/internal/service"
)

// EpisodeHandler handles episode and transcription API endpoints.
type EpisodeHandler struct {
	episodes  repository.EpisodeRepository
	segments  repository.SegmentRepository
	cues      repository.CueRepository
	svc       *service.TranscriptionService
	projector *service.Projector
	logger    *slog.Logger
}

// NewEpisodeHandler creates a new episode handler.
func NewEpisodeHandler(
	episodes repository.EpisodeRepository,
	segments repository.SegmentRepository,
	cues repository.CueRepository,
	svc *service.TranscriptionService,
	projector *service.Projector,
	logger *slog.Logger,
) *EpisodeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EpisodeHandler{
		episodes:  episodes,
		segments:  segments,
		cues:      cues,
		svc:       svc,
		projector: projector,
		logger:    logger,
	}
}

// Register registers the episode routes with the API.
func (h *EpisodeHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "createEpisode",
		Method:        "POST",
		Path:          "/api/v1/episodes",
		Summary:       "Register episode",
		Description:   "Registers an ingested audio file. Re-registering the same content hash returns the existing episode.",
		Tags:          []string{"Episodes"},
		DefaultStatus: 201,
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "listEpisodes",
		Method:      "GET",
		Path:        "/api/v1/episodes",
		Summary:     "List episodes",
		Tags:        []string{"Episodes"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getEpisode",
		Method:      "GET",
		Path:        "/api/v1/episodes/{id}",
		Summary:     "Get episode",
		Description: "Returns an episode with its transcription progress projection",
		Tags:        []string{"Episodes"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "deleteEpisode",
		Method:      "DELETE",
		Path:        "/api/v1/episodes/{id}",
		Summary:     "Delete episode",
		Description: "Deletes an episode with its segments, cues, and annotations",
		Tags:        []string{"Episodes"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID:   "transcribeEpisode",
		Method:        "POST",
		Path:          "/api/v1/episodes/{id}/transcribe",
		Summary:       "Start transcription",
		Description:   "Starts or resumes transcription in the background. Completed segments are never reprocessed.",
		Tags:          []string{"Transcription"},
		DefaultStatus: 202,
	}, h.Transcribe)

	huma.Register(api, huma.Operation{
		OperationID: "cancelTranscription",
		Method:      "POST",
		Path:        "/api/v1/episodes/{id}/cancel",
		Summary:     "Cancel transcription",
		Description: "Requests a running transcription to stop at the next stage boundary",
		Tags:        []string{"Transcription"},
	}, h.Cancel)

	huma.Register(api, huma.Operation{
		OperationID:   "recoverEpisode",
		Method:        "POST",
		Path:          "/api/v1/episodes/{id}/recover",
		Summary:       "Recover episode",
		Description:   "Re-drives every pending or retryable failed segment in the background",
		Tags:          []string{"Transcription"},
		DefaultStatus: 202,
	}, h.Recover)

	huma.Register(api, huma.Operation{
		OperationID:   "retrySegment",
		Method:        "POST",
		Path:          "/api/v1/episodes/{id}/segments/{index}/retry",
		Summary:       "Retry segment",
		Description:   "Re-drives one failed segment in the background",
		Tags:          []string{"Transcription"},
		DefaultStatus: 202,
	}, h.RetrySegment)

	huma.Register(api, huma.Operation{
		OperationID: "listSegments",
		Method:      "GET",
		Path:        "/api/v1/episodes/{id}/segments",
		Summary:     "List segments",
		Description: "Returns the episode's segments in index order",
		Tags:        []string{"Transcription"},
	}, h.ListSegments)

	huma.Register(api, huma.Operation{
		OperationID: "listCues",
		Method:      "GET",
		Path:        "/api/v1/episodes/{id}/cues",
		Summary:     "List transcript cues",
		Description: "Returns the episode's cues in transcript order, optionally limited to a time range",
		Tags:        []string{"Transcription"},
	}, h.ListCues)
}

// apiError maps domain errors to HTTP problem responses.
func apiError(err error) error {
	switch {
	case errors.Is(err, models.ErrEpisodeNotFound),
		errors.Is(err, models.ErrSegmentNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, models.ErrEpisodeProcessing),
		errors.Is(err, models.ErrSegmentInProgress),
		errors.Is(err, models.ErrRetryCapReached),
		errors.Is(err, models.ErrSegmentNotRetryable):
		return huma.Error409Conflict(err.Error())
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}

// CreateEpisodeInput is the input for registering an episode.
type CreateEpisodeInput struct {
	Body struct {
		FileHash         string  `json:"file_hash" doc:"32-character lowercase hex content fingerprint" minLength:"32" maxLength:"32"`
		OriginalFilename string  `json:"original_filename,omitempty" doc:"Name the file was uploaded with"`
		AudioPath        string  `json:"audio_path" doc:"Stored location of the audio file"`
		FileSize         int64   `json:"file_size,omitempty" doc:"Audio file size in bytes"`
		Duration         float64 `json:"duration" doc:"Audio duration in seconds" minimum:"0" exclusiveMinimum:"true"`
		Language         string  `json:"language,omitempty" doc:"BCP 47 language tag, e.g. en-US"`
	}
}

// CreateEpisodeOutput is the output for registering an episode.
type CreateEpisodeOutput struct {
	Status int
	Body   EpisodeResponse
}

// Create registers an episode, deduplicating on the content hash.
func (h *EpisodeHandler) Create(ctx context.Context, input *CreateEpisodeInput) (*CreateEpisodeOutput, error) {
	existing, err := h.episodes.GetByFileHash(ctx, input.Body.FileHash)
	if err != nil {
		return nil, apiError(err)
	}
	if existing != nil {
		return &CreateEpisodeOutput{Status: 200, Body: EpisodeFromModel(existing)}, nil
	}

	episode := &models.Episode{
		FileHash:         input.Body.FileHash,
		OriginalFilename: input.Body.OriginalFilename,
		AudioPath:        input.Body.AudioPath,
		FileSize:         input.Body.FileSize,
		Duration:         input.Body.Duration,
		Language:         input.Body.Language,
	}
	if err := h.episodes.Create(ctx, episode); err != nil {
		if errors.Is(err, models.ErrInvalidFileHash) || errors.Is(err, models.ErrInvalidDuration) ||
			errors.Is(err, models.ErrFileHashRequired) || errors.Is(err, models.ErrAudioPathRequired) {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		return nil, apiError(err)
	}

	return &CreateEpisodeOutput{Status: 201, Body: EpisodeFromModel(episode)}, nil
}

// ListEpisodesInput is the input for listing episodes.
type ListEpisodesInput struct{}

// ListEpisodesOutput is the output for listing episodes.
type ListEpisodesOutput struct {
	Body struct {
		Episodes []EpisodeResponse `json:"episodes"`
	}
}

// List returns all episodes, newest first.
func (h *EpisodeHandler) List(ctx context.Context, input *ListEpisodesInput) (*ListEpisodesOutput, error) {
	episodes, err := h.episodes.GetAll(ctx)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &ListEpisodesOutput{}
	resp.Body.Episodes = make([]EpisodeResponse, 0, len(episodes))
	for _, e := range episodes {
		resp.Body.Episodes = append(resp.Body.Episodes, EpisodeFromModel(e))
	}
	return resp, nil
}

// GetEpisodeInput is the input for getting an episode.
type GetEpisodeInput struct {
	ID string `path:"id" doc:"Episode ID (ULID)"`
}

// GetEpisodeOutput is the output for getting an episode.
type GetEpisodeOutput struct {
	Body struct {
		Episode  EpisodeResponse          `json:"episode"`
		Progress *service.EpisodeProgress `json:"progress"`
	}
}

// GetByID returns an episode with its progress projection.
func (h *EpisodeHandler) GetByID(ctx context.Context, input *GetEpisodeInput) (*GetEpisodeOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	episode, err := h.episodes.GetByID(ctx, id)
	if err != nil {
		return nil, apiError(err)
	}
	if episode == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("episode %s not found", input.ID))
	}

	progress, err := h.projector.Progress(ctx, id)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &GetEpisodeOutput{}
	resp.Body.Episode = EpisodeFromModel(episode)
	resp.Body.Progress = progress
	return resp, nil
}

// DeleteEpisodeInput is the input for deleting an episode.
type DeleteEpisodeInput struct {
	ID string `path:"id" doc:"Episode ID (ULID)"`
}

// DeleteEpisodeOutput is the output for deleting an episode.
type DeleteEpisodeOutput struct{}

// Delete deletes an episode and everything hanging off it.
func (h *EpisodeHandler) Delete(ctx context.Context, input *DeleteEpisodeInput) (*DeleteEpisodeOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	episode, err := h.episodes.GetByID(ctx, id)
	if err != nil {
		return nil, apiError(err)
	}
	if episode == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("episode %s not found", input.ID))
	}
	if episode.Status == models.EpisodeStatusProcessing {
		return nil, huma.Error409Conflict("episode is processing; cancel before deleting")
	}

	if err := h.episodes.Delete(ctx, id); err != nil {
		return nil, apiError(err)
	}
	return &DeleteEpisodeOutput{}, nil
}

// TranscribeInput is the input for starting transcription.
type TranscribeInput struct {
	ID string `path:"id" doc:"Episode ID (ULID)"`
}

// TranscribeOutput is the output for starting transcription.
type TranscribeOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

// Transcribe starts or resumes transcription in the background.
func (h *EpisodeHandler) Transcribe(ctx context.Context, input *TranscribeInput) (*TranscribeOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	episode, err := h.episodes.GetByID(ctx, id)
	if err != nil {
		return nil, apiError(err)
	}
	if episode == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("episode %s not found", input.ID))
	}
	if episode.Status == models.EpisodeStatusProcessing {
		return nil, apiError(models.ErrEpisodeProcessing)
	}

	// The request only enqueues; the run outlives it.
	go func() {
		if err := h.svc.StartEpisode(context.Background(), id); err != nil {
			h.logger.Error("background transcription failed",
				slog.String("episode_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}()

	resp := &TranscribeOutput{}
	resp.Body.Message = "transcription started"
	return resp, nil
}

// CancelInput is the input for cancelling transcription.
type CancelInput struct {
	ID string `path:"id" doc:"Episode ID (ULID)"`
}

// CancelOutput is the output for cancelling transcription.
type CancelOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

// Cancel requests a running transcription to stop.
func (h *EpisodeHandler) Cancel(ctx context.Context, input *CancelInput) (*CancelOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	if err := h.svc.CancelEpisode(ctx, id); err != nil {
		return nil, apiError(err)
	}

	resp := &CancelOutput{}
	resp.Body.Message = "cancellation requested"
	return resp, nil
}

// RecoverInput is the input for recovering an episode.
type RecoverInput struct {
	ID string `path:"id" doc:"Episode ID (ULID)"`
}

// RecoverOutput is the output for recovering an episode.
type RecoverOutput struct {
	Status int
	Body   struct {
		Message  string `json:"message"`
		Segments []int  `json:"segments"`
	}
}

// Recover enumerates the recoverable segments synchronously and re-drives
// them in the background. An episode with nothing to recover is a no-op.
func (h *EpisodeHandler) Recover(ctx context.Context, input *RecoverInput) (*RecoverOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	indexes, err := h.svc.RecoverableSegments(ctx, id)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &RecoverOutput{}
	resp.Body.Segments = indexes
	if len(indexes) == 0 {
		resp.Status = 200
		resp.Body.Message = "nothing to recover"
		return resp, nil
	}

	go func() {
		if err := h.svc.StartEpisode(context.Background(), id); err != nil {
			h.logger.Error("background recovery failed",
				slog.String("episode_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}()

	resp.Status = 202
	resp.Body.Message = "recovery started"
	return resp, nil
}

// RetrySegmentInput is the input for re-driving a segment.
type RetrySegmentInput struct {
	ID    string `path:"id" doc:"Episode ID (ULID)"`
	Index int    `path:"index" doc:"Zero-based segment index" minimum:"0"`
}

// RetrySegmentOutput is the output for re-driving a segment.
type RetrySegmentOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

// RetrySegment validates the retry synchronously and runs it in the
// background.
func (h *EpisodeHandler) RetrySegment(ctx context.Context, input *RetrySegmentInput) (*RetrySegmentOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	if err := h.svc.CheckRetrySegment(ctx, id, input.Index); err != nil {
		return nil, apiError(err)
	}

	index := input.Index
	go func() {
		if err := h.svc.RetrySegment(context.Background(), id, index); err != nil {
			h.logger.Error("background segment retry failed",
				slog.String("episode_id", id.String()),
				slog.Int("segment_index", index),
				slog.String("error", err.Error()),
			)
		}
	}()

	resp := &RetrySegmentOutput{}
	resp.Body.Message = "segment retry started"
	return resp, nil
}

// ListSegmentsInput is the input for listing segments.
type ListSegmentsInput struct {
	ID string `path:"id" doc:"Episode ID (ULID)"`
}

// ListSegmentsOutput is the output for listing segments.
type ListSegmentsOutput struct {
	Body struct {
		Segments []SegmentResponse `json:"segments"`
	}
}

// ListSegments returns the episode's segments in index order.
func (h *EpisodeHandler) ListSegments(ctx context.Context, input *ListSegmentsInput) (*ListSegmentsOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	episode, err := h.episodes.GetByID(ctx, id)
	if err != nil {
		return nil, apiError(err)
	}
	if episode == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("episode %s not found", input.ID))
	}

	segments, err := h.segments.GetByEpisode(ctx, id)
	if err != nil {
		return nil, apiError(err)
	}

	resp := &ListSegmentsOutput{}
	resp.Body.Segments = make([]SegmentResponse, 0, len(segments))
	for _, s := range segments {
		resp.Body.Segments = append(resp.Body.Segments, SegmentFromModel(s))
	}
	return resp, nil
}

// ListCuesInput is the input for listing cues.
type ListCuesInput struct {
	ID   string   `path:"id" doc:"Episode ID (ULID)"`
	From *float64 `query:"from" doc:"Range start in seconds (inclusive)"`
	To   *float64 `query:"to" doc:"Range end in seconds (exclusive)"`
}

// ListCuesOutput is the output for listing cues.
type ListCuesOutput struct {
	Body struct {
		Cues []CueResponse `json:"cues"`
	}
}

// ListCues returns the transcript in temporal order.
func (h *EpisodeHandler) ListCues(ctx context.Context, input *ListCuesInput) (*ListCuesOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	episode, err := h.episodes.GetByID(ctx, id)
	if err != nil {
		return nil, apiError(err)
	}
	if episode == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("episode %s not found", input.ID))
	}

	var cues []*models.TranscriptCue
	if input.From != nil || input.To != nil {
		from := 0.0
		if input.From != nil {
			from = *input.From
		}
		to := episode.Duration
		if input.To != nil {
			to = *input.To
		}
		cues, err = h.cues.GetByEpisodeRange(ctx, id, from, to)
	} else {
		cues, err = h.cues.GetByEpisode(ctx, id)
	}
	if err != nil {
		return nil, apiError(err)
	}

	resp := &ListCuesOutput{}
	resp.Body.Cues = make([]CueResponse, 0, len(cues))
	for _, c := range cues {
		resp.Body.Cues = append(resp.Body.Cues, CueFromModel(c))
	}
	return resp, nil
}
