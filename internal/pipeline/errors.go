package pipeline

import (
	"errors"
	"fmt"

	"github.com/LatVAlY/specWise/features/job"
	"github.com/LatVAlY/specWise/internal/text"
)

// ErrCanceled stops a run cleanly. It never reaches the job record.
var ErrCanceled = errors.New("job canceled")

// PersistenceError wraps a failed job store read or write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// stageError tags a stage failure with the kind recorded on the job.
type stageError struct {
	kind job.ErrorKind
	err  error
}

func (e *stageError) Error() string { return e.err.Error() }

func (e *stageError) Unwrap() error { return e.err }

func errorKind(err error) job.ErrorKind {
	var se *stageError
	var pe *PersistenceError
	switch {
	case errors.As(err, &se):
		return se.kind
	case errors.As(err, &pe):
		return job.ErrorKindPersistence
	case errors.Is(err, text.ErrInvalidWindowSize):
		return job.ErrorKindInvalidWindow
	default:
		return job.ErrorKindInternal
	}
}
