package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

const (
	ProviderJina   = "jina"
	ProviderCohere = "cohere"

	// Tender texts are German, so both defaults are multilingual models.
	defaultJinaModel   = "jina-reranker-v2-base-multilingual"
	defaultCohereModel = "rerank-multilingual-v3.0"
	defaultJinaURL     = "https://api.jina.ai/v1/rerank"
)

type Config struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the provider endpoint.
	BaseURL string
	Timeout time.Duration
}

// Client reorders documents by relevance to a query. With no provider
// configured it keeps the input order.
type Client struct {
	provider string
	apiKey   string
	model    string
	baseURL  string
	http     *http.Client
	cohere   *cohereclient.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		provider: cfg.Provider,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		baseURL:  cfg.BaseURL,
		http:     &http.Client{Timeout: cfg.Timeout},
	}

	switch cfg.Provider {
	case ProviderJina:
		if c.model == "" {
			c.model = defaultJinaModel
		}
		if c.baseURL == "" {
			c.baseURL = defaultJinaURL
		}
	case ProviderCohere:
		if c.model == "" {
			c.model = defaultCohereModel
		}
		if cfg.BaseURL != "" {
			c.cohere = cohereclient.NewClient(
				cohereclient.WithToken(cfg.APIKey),
				cohereclient.WithHTTPClient(c.http),
				cohereclient.WithBaseURL(cfg.BaseURL),
			)
		} else {
			c.cohere = cohereclient.NewClient(
				cohereclient.WithToken(cfg.APIKey),
				cohereclient.WithHTTPClient(c.http),
			)
		}
	}
	return c
}

// Enabled reports whether a reranking provider is configured.
func (c *Client) Enabled() bool {
	return c.provider == ProviderJina || c.provider == ProviderCohere
}

// Rerank returns the indices of docs, most relevant first.
func (c *Client) Rerank(ctx context.Context, query string, docs []string) ([]int, error) {
	if len(docs) == 0 {
		return []int{}, nil
	}
	switch c.provider {
	case ProviderJina:
		return c.rerankJina(ctx, query, docs)
	case ProviderCohere:
		return c.rerankCohere(ctx, query, docs)
	}

	indices := make([]int, len(docs))
	for i := range indices {
		indices[i] = i
	}
	return indices, nil
}

func (c *Client) rerankJina(ctx context.Context, query string, docs []string) ([]int, error) {
	body, err := json.Marshal(map[string]interface{}{
		"model":            c.model,
		"query":            query,
		"documents":        docs,
		"top_n":            len(docs),
		"return_documents": false,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jina api error: %d", resp.StatusCode)
	}

	var result struct {
		Results []struct {
			Index int     `json:"index"`
			Score float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	indices := make([]int, 0, len(result.Results))
	for _, r := range result.Results {
		if r.Index >= 0 && r.Index < len(docs) {
			indices = append(indices, r.Index)
		}
	}
	return indices, nil
}

func (c *Client) rerankCohere(ctx context.Context, query string, docs []string) ([]int, error) {
	items := make([]*cohere.RerankRequestDocumentsItem, len(docs))
	for i, d := range docs {
		items[i] = &cohere.RerankRequestDocumentsItem{String: d}
	}
	topN := len(docs)

	resp, err := c.cohere.Rerank(ctx, &cohere.RerankRequest{
		Model:     &c.model,
		Query:     query,
		Documents: items,
		TopN:      &topN,
	})
	if err != nil {
		return nil, fmt.Errorf("cohere rerank error: %w", err)
	}

	indices := make([]int, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Index >= 0 && r.Index < len(docs) {
			indices = append(indices, r.Index)
		}
	}
	return indices, nil
}
