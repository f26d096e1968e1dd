package job

import (
	"encoding/json"
	"errors"
	"time"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusUpdating   Status = "UPDATING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCanceled   Status = "CANCELED"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusFailed, StatusCanceled},
	StatusInProgress: {StatusUpdating, StatusCompleted, StatusFailed, StatusCanceled},
	StatusUpdating:   {StatusInProgress, StatusCompleted, StatusFailed, StatusCanceled},
}

// Terminal states only leave by deletion.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusUpdating, StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// sourcesOf lists every state that may move to the given state.
func sourcesOf(to Status) []Status {
	var from []Status
	for _, s := range []Status{StatusPending, StatusInProgress, StatusUpdating} {
		if CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

type ErrorKind string

const (
	ErrorKindPersistence   ErrorKind = "PersistenceError"
	ErrorKindPageSource    ErrorKind = "PageSourceError"
	ErrorKindInvalidWindow ErrorKind = "InvalidWindowSize"
	ErrorKindDispatch      ErrorKind = "DispatchError"
	ErrorKindStalled       ErrorKind = "Stalled"
	ErrorKindInternal      ErrorKind = "InternalError"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrNotCompleted      = errors.New("job has not completed")
	ErrTerminal          = errors.New("job already finished")
	ErrInvalidRequest    = errors.New("invalid job request")
)

type Job struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collection_id"`
	DocumentID   string    `json:"document_id"`
	FileName     string    `json:"file_name"`
	Status       Status    `json:"status"`
	Description  string    `json:"description"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ItemCount    int       `json:"item_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Stage names the last pipeline stage whose output was checkpointed.
type Stage string

const (
	StageExtracted Stage = "extracted"
	StageResolved  Stage = "resolved"
)

type Checkpoint struct {
	JobID     string          `json:"job_id"`
	Stage     Stage           `json:"stage"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	CollectionID string
	Status       Status
	Limit        int
}

// ProcessMessage is the queue payload that asks a worker to run a job.
type ProcessMessage struct {
	JobID         string `json:"job_id"`
	CorrelationID string `json:"correlation_id"`
}
