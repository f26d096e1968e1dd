package extract

import (
	"fmt"

	"github.com/LatVAlY/specWise/internal/text"
)

// ValidationError describes why a completion answer was rejected.
type ValidationError struct {
	Reason string
	Output string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid extraction output: %s: %v", e.Reason, e.Err)
	}
	return "invalid extraction output: " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ExtractionFailed is returned once a chunk has used all of its attempts.
type ExtractionFailed struct {
	Chunk    text.ChunkID
	Attempts Attempt
	LastErr  error
}

func (e *ExtractionFailed) Error() string {
	return fmt.Sprintf("extraction failed for pages %s after %d attempts: %v", e.Chunk, e.Attempts, e.LastErr)
}

func (e *ExtractionFailed) Unwrap() error {
	return e.LastErr
}
