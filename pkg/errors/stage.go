package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a classified stage error.
type ErrorCode string

const (
	// ErrInput: invalid or unsupported input rejected before any stage runs.
	ErrInput ErrorCode = "input_error"
	// ErrStageTimeout: an external tool exceeded the configured ceiling.
	ErrStageTimeout ErrorCode = "stage_timeout"
	// ErrExternalService: transcription/model/calendar/index service failed.
	ErrExternalService ErrorCode = "external_service_error"
	// ErrArgumentValidation: tool-call arguments failed schema validation.
	ErrArgumentValidation ErrorCode = "validation_error"
	// ErrIdentity: no user context, or no stored delegated authorization.
	ErrIdentity ErrorCode = "identity_error"
	// ErrNoTranscript: transcription yielded zero segments.
	ErrNoTranscript ErrorCode = "empty_transcript"
	// ErrProcessing: unclassified processing error.
	ErrProcessing ErrorCode = "processing_error"
)

// StageError is a structured error for pipeline stage failures.
type StageError struct {
	Code     ErrorCode
	Stage    string
	Message  string
	Duration time.Duration
	Timeout  time.Duration
	Cause    error
}

func (e *StageError) Error() string {
	if e.Timeout > 0 && e.Duration > 0 {
		return fmt.Sprintf("%s: %s timed out after %s (limit: %s)", e.Code, e.Stage, e.Duration.Truncate(time.Second), e.Timeout.Truncate(time.Second))
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// NewStageError builds a StageError with an explicit code.
func NewStageError(code ErrorCode, stage, message string) *StageError {
	return &StageError{Code: code, Stage: stage, Message: message}
}

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Retryable       bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrInput: {
		Code:            ErrInput,
		Retryable:       false,
		Description:     "Input file missing, unreadable, or unsupported media kind",
		SuggestedAction: "Check the file path and extension; see genminute ingest --help for supported formats",
	},
	ErrStageTimeout: {
		Code:            ErrStageTimeout,
		Retryable:       true,
		Description:     "External tool exceeded the configured time ceiling",
		SuggestedAction: "Raise media.stage_timeout in config, or retry with a shorter recording",
	},
	ErrExternalService: {
		Code:            ErrExternalService,
		Retryable:       true,
		Description:     "An external service (transcriber, model, calendar, index) failed",
		SuggestedAction: "Check service health with genminute doctor, then retry",
	},
	ErrArgumentValidation: {
		Code:            ErrArgumentValidation,
		Retryable:       false,
		Description:     "Tool-call arguments failed schema validation",
		SuggestedAction: "No action needed; the item was skipped and siblings were processed",
	},
	ErrIdentity: {
		Code:            ErrIdentity,
		Retryable:       false,
		Description:     "No user identity, or no stored delegated authorization",
		SuggestedAction: "Run genminute auth to store calendar authorization for the user",
	},
	ErrNoTranscript: {
		Code:            ErrNoTranscript,
		Retryable:       false,
		Description:     "Transcription produced zero segments",
		SuggestedAction: "Verify the recording contains audible speech",
	},
	ErrProcessing: {
		Code:            ErrProcessing,
		Retryable:       false,
		Description:     "Unclassified processing error",
		SuggestedAction: "Check logs for the failing stage",
	},
}

// IsRetryable returns true if the given error code represents a transient, retryable error.
func IsRetryable(code ErrorCode) bool {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Retryable
	}
	return false
}

// Classify inspects an error and returns a *StageError with the appropriate code.
// If the error doesn't match any known pattern, it returns a StageError with ErrProcessing.
func Classify(err error, stage string) *StageError {
	if err == nil {
		return nil
	}

	var se *StageError
	if errors.As(err, &se) {
		return se
	}

	ce := &StageError{
		Stage: stage,
		Cause: err,
	}

	if errors.Is(err, context.DeadlineExceeded) {
		ce.Code = ErrStageTimeout
		ce.Message = "operation timed out"
		return ce
	}

	if IsIdentity(err) {
		ce.Code = ErrIdentity
		ce.Message = err.Error()
		return ce
	}

	if IsValidation(err) {
		ce.Code = ErrArgumentValidation
		ce.Message = err.Error()
		return ce
	}

	if IsEmptyTranscript(err) {
		ce.Code = ErrNoTranscript
		ce.Message = err.Error()
		return ce
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	if strings.Contains(lower, "timed out") || strings.Contains(lower, "timeout") {
		ce.Code = ErrStageTimeout
		ce.Message = msg
		return ce
	}

	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "unavailable") ||
		strings.Contains(lower, "no such host") || strings.Contains(lower, "503") ||
		strings.Contains(lower, "429") || strings.Contains(lower, "quota") {
		ce.Code = ErrExternalService
		ce.Message = msg
		return ce
	}

	if strings.Contains(lower, "no such file") || strings.Contains(lower, "unsupported") {
		ce.Code = ErrInput
		ce.Message = msg
		return ce
	}

	ce.Code = ErrProcessing
	ce.Message = msg
	return ce
}

// IsStageTimeout returns true if the error is a stage timeout error.
func IsStageTimeout(err error) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Code == ErrStageTimeout
	}
	return false
}
