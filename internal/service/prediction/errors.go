package prediction

import (
	"errors"
	"fmt"
)

var (
	ErrMissingClientID = errors.New("missing client id")
	ErrEmptyDataset    = errors.New("empty dataset")
	ErrInference       = errors.New("feature schema mismatch")
)

// ClientNotFoundError carries the looked-up id; its message is the 404 body.
type ClientNotFoundError struct {
	ID int64
}

func (e *ClientNotFoundError) Error() string {
	return fmt.Sprintf("Client ID %d non trouvé", e.ID)
}

// InferenceError reports a row the classifier could not score.
type InferenceError struct {
	ClientID int64
	Err      error
}

func (e *InferenceError) Error() string {
	return ErrInference.Error() + ": " + e.Err.Error()
}

func (e *InferenceError) Unwrap() error { return e.Err }

func (e *InferenceError) Is(target error) bool { return target == ErrInference }
