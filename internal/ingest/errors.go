package ingest

import (
	"errors"
	"fmt"

	"github.com/nerrad567/airguard-core/internal/telemetry"
)

var (
	// ErrStopped is returned once the subscriber has been stopped.
	ErrStopped = errors.New("ingest: subscriber stopped")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("ingest: subscriber already started")

	// ErrInvalidOptions is returned by NewSubscriber for unusable options.
	ErrInvalidOptions = errors.New("ingest: invalid subscriber options")
)

// StorageError reports a failed write transaction. Nothing from the
// message was committed.
type StorageError struct {
	// Op names the step that failed, e.g. "insert reading".
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ingest: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Outcome labels one processed message in logs and metrics.
type Outcome string

const (
	OutcomeStored       Outcome = "stored"
	OutcomeDecodeError  Outcome = "decode_error"
	OutcomeInvalid      Outcome = "validation_error"
	OutcomeBadActuator  Outcome = "format_error"
	OutcomeStorageError Outcome = "storage_error"
	OutcomePanic        Outcome = "panic"
	OutcomeUnknownError Outcome = "error"
)

// Classify maps a pipeline error to its outcome. A nil error is OutcomeStored.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeStored
	}

	var (
		decodeErr  *telemetry.DecodeError
		formatErr  *telemetry.FormatError
		invalidErr *telemetry.ValidationError
		storageErr *StorageError
	)
	switch {
	case errors.As(err, &decodeErr):
		return OutcomeDecodeError
	// A FormatError arrives wrapped in a ValidationError; test it first.
	case errors.As(err, &formatErr):
		return OutcomeBadActuator
	case errors.As(err, &invalidErr):
		return OutcomeInvalid
	case errors.As(err, &storageErr):
		return OutcomeStorageError
	default:
		return OutcomeUnknownError
	}
}
