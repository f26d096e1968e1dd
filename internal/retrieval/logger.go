package retrieval

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// QueryLogEntry is one line of the search log. SKUs lists the hits in rank order.
type QueryLogEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Query         string    `json:"query"`
	CollectionID  string    `json:"collection_id"`
	JobID         string    `json:"job_id,omitempty"`
	SKU           string    `json:"sku,omitempty"`
	Alpha         float32   `json:"alpha"`
	Limit         int       `json:"limit"`
	Reranked      bool      `json:"reranked"`
	NumResults    int       `json:"num_results"`
	SKUs          []string  `json:"skus,omitempty"`
	LatencyMs     int64     `json:"latency_ms"`
	Error         string    `json:"error,omitempty"`
}

// QueryLogger writes search log entries as JSON lines. It is safe for
// concurrent use.
type QueryLogger struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

func NewQueryLogger(w io.Writer) *QueryLogger {
	return &QueryLogger{enc: json.NewEncoder(w)}
}

// NewFileQueryLogger appends to path, creating it and its directory if needed.
func NewFileQueryLogger(path string) (*QueryLogger, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("query log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path comes from QUERY_LOG_PATH
	if err != nil {
		return nil, fmt.Errorf("query log: %w", err)
	}
	l := NewQueryLogger(f)
	l.closer = f
	return l, nil
}

// Record stamps entry with the current time and its latency since start.
func (l *QueryLogger) Record(entry QueryLogEntry, start time.Time) {
	entry.Timestamp = time.Now().UTC()
	entry.LatencyMs = entry.Timestamp.Sub(start).Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(entry); err != nil {
		slog.Error("failed to write query log entry", "error", err)
	}
}

func (l *QueryLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
