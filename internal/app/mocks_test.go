package app

import (
	"context"
	"sync"

	"github.com/LatVAlY/specWise/internal/retrieval"
	"github.com/LatVAlY/specWise/internal/worker"
)

// MockVectorStore records stored items in memory.
type MockVectorStore struct {
	mu              sync.Mutex
	EnsureSchemaErr error
	Items           []worker.LineItem
	Deleted         []string
}

func (m *MockVectorStore) EnsureSchema(ctx context.Context) error {
	return m.EnsureSchemaErr
}

func (m *MockVectorStore) StoreItem(ctx context.Context, item worker.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Items = append(m.Items, item)
	return nil
}

func (m *MockVectorStore) DeleteByJob(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, jobID)
	return nil
}

func (m *MockVectorStore) Search(ctx context.Context, query string, vector []float32, alpha float32, limit int, f retrieval.Filter) ([]retrieval.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []retrieval.SearchResult
	for _, it := range m.Items {
		if f.CollectionID != "" && it.CollectionID != f.CollectionID {
			continue
		}
		out = append(out, retrieval.SearchResult{Content: it.Content, SKU: it.SKU, JobID: it.JobID, Position: it.Position})
	}
	return out, nil
}

func (m *MockVectorStore) CountItems(ctx context.Context, f retrieval.Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Items), nil
}

type MockPublisher struct {
	mu       sync.Mutex
	Messages map[string][][]byte
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Messages == nil {
		m.Messages = make(map[string][][]byte)
	}
	m.Messages[topic] = append(m.Messages[topic], body)
	return nil
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}
