package retrieval_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/LatVAlY/specWise/internal/middleware"
	"github.com/LatVAlY/specWise/internal/retrieval"
)

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockStore struct{ mock.Mock }

func (m *MockStore) Search(ctx context.Context, query string, vector []float32, alpha float32, limit int, filter retrieval.Filter) ([]retrieval.SearchResult, error) {
	args := m.Called(ctx, query, vector, alpha, limit, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.SearchResult), args.Error(1)
}

type MockReranker struct{ mock.Mock }

func (m *MockReranker) Rerank(ctx context.Context, query string, docs []string) ([]int, error) {
	args := m.Called(ctx, query, docs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func ptr[T any](v T) *T { return &v }

func TestService_Search(t *testing.T) {
	defaults := retrieval.Defaults{Alpha: 0.5, TopK: 10}

	tests := []struct {
		name    string
		query   string
		opts    *retrieval.SearchOptions
		setup   func(*MockEmbedder, *MockStore)
		wantLen int
		wantErr error
	}{
		{
			name:  "Defaults",
			query: "Holztür",
			setup: func(e *MockEmbedder, s *MockStore) {
				e.On("Embed", mock.Anything, "Holztür").Return([]float32{0.1}, nil)
				s.On("Search", mock.Anything, "Holztür", []float32{0.1}, float32(0.5), 10, retrieval.Filter{}).
					Return([]retrieval.SearchResult{{Content: "Innentür", SKU: "620001", Score: 0.9}}, nil)
			},
			wantLen: 1,
		},
		{
			name:  "Overrides And Filter",
			query: "Tor",
			opts: &retrieval.SearchOptions{
				Alpha:  ptr(float32(0.2)),
				Limit:  ptr(3),
				Filter: retrieval.Filter{CollectionID: "col-1", SKU: "680001"},
			},
			setup: func(e *MockEmbedder, s *MockStore) {
				e.On("Embed", mock.Anything, "Tor").Return([]float32{0.3}, nil)
				s.On("Search", mock.Anything, "Tor", []float32{0.3}, float32(0.2), 3, retrieval.Filter{CollectionID: "col-1", SKU: "680001"}).
					Return([]retrieval.SearchResult{{Content: "Sektionaltor"}, {Content: "Rolltor"}}, nil)
			},
			wantLen: 2,
		},
		{
			name:  "Non Positive Limit Falls Back",
			query: "Zarge",
			opts:  &retrieval.SearchOptions{Limit: ptr(0)},
			setup: func(e *MockEmbedder, s *MockStore) {
				e.On("Embed", mock.Anything, "Zarge").Return([]float32{0.2}, nil)
				s.On("Search", mock.Anything, "Zarge", []float32{0.2}, float32(0.5), 10, retrieval.Filter{}).
					Return([]retrieval.SearchResult{}, nil)
			},
			wantLen: 0,
		},
		{
			name:    "Empty Query",
			query:   "",
			setup:   func(e *MockEmbedder, s *MockStore) {},
			wantErr: retrieval.ErrEmptyQuery,
		},
		{
			name:  "Embed Error",
			query: "Tür",
			setup: func(e *MockEmbedder, s *MockStore) {
				e.On("Embed", mock.Anything, "Tür").Return(nil, errors.New("quota"))
			},
			wantErr: errors.New("quota"),
		},
		{
			name:  "Store Error",
			query: "Tür",
			setup: func(e *MockEmbedder, s *MockStore) {
				e.On("Embed", mock.Anything, "Tür").Return([]float32{0.1}, nil)
				s.On("Search", mock.Anything, "Tür", []float32{0.1}, float32(0.5), 10, retrieval.Filter{}).
					Return(nil, errors.New("weaviate down"))
			},
			wantErr: errors.New("weaviate down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := new(MockEmbedder)
			s := new(MockStore)
			tt.setup(e, s)

			svc := retrieval.NewService(e, s, nil, defaults, nil)
			res, err := svc.Search(context.Background(), tt.query, tt.opts)
			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
				return
			}
			require.NoError(t, err)
			assert.Len(t, res, tt.wantLen)
			e.AssertExpectations(t)
			s.AssertExpectations(t)
		})
	}
}

func TestService_Search_LogsQuery(t *testing.T) {
	e := new(MockEmbedder)
	s := new(MockStore)
	filter := retrieval.Filter{CollectionID: "col-1", JobID: "job-1"}
	e.On("Embed", mock.Anything, "Holztür").Return([]float32{0.1}, nil)
	s.On("Search", mock.Anything, "Holztür", []float32{0.1}, float32(0.5), 5, filter).
		Return([]retrieval.SearchResult{{Content: "A", SKU: "620001"}, {Content: "B", SKU: "620002"}}, nil)

	var buf bytes.Buffer
	svc := retrieval.NewService(e, s, nil, retrieval.Defaults{Alpha: 0.5}, retrieval.NewQueryLogger(&buf))

	ctx := middleware.WithCorrelationID(context.Background(), "corr-1")
	_, err := svc.Search(ctx, "Holztür", &retrieval.SearchOptions{Limit: ptr(5), Filter: filter})
	require.NoError(t, err)

	var entry retrieval.QueryLogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Holztür", entry.Query)
	assert.Equal(t, "col-1", entry.CollectionID)
	assert.Equal(t, "job-1", entry.JobID)
	assert.Equal(t, float32(0.5), entry.Alpha)
	assert.Equal(t, 5, entry.Limit)
	assert.Equal(t, 2, entry.NumResults)
	assert.Equal(t, []string{"620001", "620002"}, entry.SKUs)
	assert.False(t, entry.Reranked)
	assert.Empty(t, entry.Error)
	assert.Equal(t, "corr-1", entry.CorrelationID)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestService_Search_LogsFailure(t *testing.T) {
	e := new(MockEmbedder)
	s := new(MockStore)
	e.On("Embed", mock.Anything, "Tor").Return(nil, errors.New("quota"))

	var buf bytes.Buffer
	svc := retrieval.NewService(e, s, nil, retrieval.Defaults{}, retrieval.NewQueryLogger(&buf))

	_, err := svc.Search(context.Background(), "Tor", &retrieval.SearchOptions{Filter: retrieval.Filter{CollectionID: "col-1"}})
	require.Error(t, err)

	var entry retrieval.QueryLogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "quota", entry.Error)
	assert.Zero(t, entry.NumResults)
	s.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Search_Rerank(t *testing.T) {
	e := new(MockEmbedder)
	s := new(MockStore)
	r := new(MockReranker)
	e.On("Embed", mock.Anything, "Tor").Return([]float32{0.1}, nil)
	s.On("Search", mock.Anything, "Tor", []float32{0.1}, float32(0.5), 10, retrieval.Filter{}).
		Return([]retrieval.SearchResult{{Content: "Zarge"}, {Content: "Sektionaltor"}, {Content: "Rolltor"}}, nil)
	r.On("Rerank", mock.Anything, "Tor", []string{"Zarge", "Sektionaltor", "Rolltor"}).Return([]int{1, 2, 0}, nil)

	svc := retrieval.NewService(e, s, r, retrieval.Defaults{Alpha: 0.5, TopK: 10}, nil)
	res, err := svc.Search(context.Background(), "Tor", nil)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "Sektionaltor", res[0].Content)
	assert.Equal(t, "Rolltor", res[1].Content)
	assert.Equal(t, "Zarge", res[2].Content)
}

func TestService_Search_RerankError(t *testing.T) {
	e := new(MockEmbedder)
	s := new(MockStore)
	r := new(MockReranker)
	e.On("Embed", mock.Anything, "Tor").Return([]float32{0.1}, nil)
	s.On("Search", mock.Anything, "Tor", []float32{0.1}, float32(0.5), 10, retrieval.Filter{}).
		Return([]retrieval.SearchResult{{Content: "A"}, {Content: "B"}}, nil)
	r.On("Rerank", mock.Anything, "Tor", []string{"A", "B"}).Return(nil, errors.New("rate limited"))

	svc := retrieval.NewService(e, s, r, retrieval.Defaults{Alpha: 0.5, TopK: 10}, nil)
	_, err := svc.Search(context.Background(), "Tor", nil)
	assert.EqualError(t, err, "rate limited")
}
