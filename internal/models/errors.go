package models

import (
	"errors"
	"fmt"
)

// Common validation errors for models.
var (
	// ErrFileHashRequired indicates a required content fingerprint is empty.
	ErrFileHashRequired = errors.New("file_hash is required")

	// ErrInvalidFileHash indicates a malformed content fingerprint.
	ErrInvalidFileHash = errors.New("file_hash must be 32 lowercase hex characters")

	// ErrAudioPathRequired indicates a required audio path field is empty.
	ErrAudioPathRequired = errors.New("audio_path is required")

	// ErrInvalidDuration indicates a non-positive episode duration.
	ErrInvalidDuration = errors.New("duration must be positive")

	// ErrEpisodeIDRequired indicates a required episode ID field is zero.
	ErrEpisodeIDRequired = errors.New("episode_id is required")

	// ErrInvalidTimeRange indicates end time is not after start time.
	ErrInvalidTimeRange = errors.New("end_time must be after start_time")

	// ErrInvalidSegmentIndex indicates a negative segment index.
	ErrInvalidSegmentIndex = errors.New("segment_index must not be negative")

	// ErrEpisodeNotFound indicates the referenced episode does not exist.
	ErrEpisodeNotFound = errors.New("episode not found")

	// ErrSegmentNotFound indicates the referenced segment does not exist.
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrEpisodeProcessing indicates the episode is already being transcribed.
	ErrEpisodeProcessing = errors.New("episode is already processing")

	// ErrRetryCapReached indicates a segment has exhausted its retry budget.
	ErrRetryCapReached = errors.New("segment retry cap reached")

	// ErrSegmentInProgress indicates a segment is owned by another worker.
	ErrSegmentInProgress = errors.New("segment is already processing")

	// ErrSegmentNotRetryable indicates a re-drive was requested for a
	// segment that is not in the failed state.
	ErrSegmentNotRetryable = errors.New("segment is not in a retryable state")
)

// PreconditionError reports an operation that is syntactically legal but
// disallowed by the current state of its target. The current state is
// attached so callers can surface it without a second lookup.
type PreconditionError struct {
	Op    string
	State string
	Err   error
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s rejected in state %s: %v", e.Op, e.State, e.Err)
}

// Unwrap returns the underlying sentinel error.
func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// NewPreconditionError builds a PreconditionError for op against state.
func NewPreconditionError(op, state string, err error) *PreconditionError {
	return &PreconditionError{Op: op, State: state, Err: err}
}
