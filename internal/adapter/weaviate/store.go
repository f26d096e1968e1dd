package weaviate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"github.com/LatVAlY/specWise/internal/retrieval"
	"github.com/LatVAlY/specWise/internal/vector"
	"github.com/LatVAlY/specWise/internal/worker"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// EnsureSchema creates or migrates the LineItem class.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, vector.NewWeaviateSchema(s.client))
}

func (s *Store) StoreItem(ctx context.Context, item worker.LineItem) error {
	_, err := s.client.Data().Creator().
		WithClassName(vector.ClassLineItem).
		WithProperties(map[string]interface{}{
			"content":      item.Content,
			"name":         item.Name,
			"jobId":        item.JobID,
			"collectionId": item.CollectionID,
			"documentId":   item.DocumentID,
			"sku":          item.SKU,
			"commission":   item.Commission,
			"quantityUnit": item.QuantityUnit,
			"position":     item.Position,
			"quantity":     item.Quantity,
		}).
		WithVector(item.Vector).
		Do(ctx)
	return err
}

// DeleteByJob removes every indexed item produced by a job.
func (s *Store) DeleteByJob(ctx context.Context, jobID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassLineItem).
		WithOutput("minimal").
		WithWhere(equal("jobId", jobID)).
		Do(ctx)
	return err
}

func equal(path, value string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{path}).
		WithOperator(filters.Equal).
		WithValueString(value)
}

// where returns nil when the filter is empty.
func where(f retrieval.Filter) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder
	if f.CollectionID != "" {
		operands = append(operands, equal("collectionId", f.CollectionID))
	}
	if f.JobID != "" {
		operands = append(operands, equal("jobId", f.JobID))
	}
	if f.SKU != "" {
		operands = append(operands, equal("sku", f.SKU))
	}

	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(operands)
	}
}

func (s *Store) Search(ctx context.Context, query string, vec []float32, alpha float32, limit int, f retrieval.Filter) ([]retrieval.SearchResult, error) {
	hybrid := s.client.GraphQL().HybridArgumentBuilder().
		WithQuery(query).
		WithVector(vec).
		WithAlpha(alpha)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "name"},
		{Name: "jobId"},
		{Name: "documentId"},
		{Name: "sku"},
		{Name: "commission"},
		{Name: "quantityUnit"},
		{Name: "position"},
		{Name: "quantity"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
	}

	get := s.client.GraphQL().Get().
		WithClassName(vector.ClassLineItem).
		WithHybrid(hybrid).
		WithLimit(limit).
		WithFields(fields...)
	if w := where(f); w != nil {
		get = get.WithWhere(w)
	}

	res, err := get.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var results []retrieval.SearchResult
	data, _ := res.Data["Get"].(map[string]interface{})
	items, _ := data[vector.ClassLineItem].([]interface{})
	for _, raw := range items {
		props, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		result := retrieval.SearchResult{
			Content:      str(props["content"]),
			Name:         str(props["name"]),
			JobID:        str(props["jobId"]),
			DocumentID:   str(props["documentId"]),
			SKU:          str(props["sku"]),
			Commission:   str(props["commission"]),
			QuantityUnit: str(props["quantityUnit"]),
		}
		if pos, ok := props["position"].(float64); ok {
			result.Position = int(pos)
		}
		if qty, ok := props["quantity"].(float64); ok {
			result.Quantity = qty
		}

		// Weaviate reports the hybrid score as a string.
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			switch score := additional["score"].(type) {
			case string:
				if v, err := strconv.ParseFloat(score, 32); err == nil {
					result.Score = float32(v)
				}
			case float64:
				result.Score = float32(score)
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// CountItems returns the number of indexed items matching the filter.
func (s *Store) CountItems(ctx context.Context, f retrieval.Filter) (int, error) {
	agg := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassLineItem).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}})
	if w := where(f); w != nil {
		agg = agg.WithWhere(w)
	}

	res, err := agg.Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	data, _ := res.Data["Aggregate"].(map[string]interface{})
	groups, _ := data[vector.ClassLineItem].([]interface{})
	if len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]interface{})
	meta, _ := group["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
