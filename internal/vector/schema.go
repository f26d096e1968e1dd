package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

// ClassLineItem holds one object per classified line item.
const ClassLineItem = "LineItem"

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

func keyword(name string) *models.Property {
	return &models.Property{Name: name, DataType: []string{"text"}, Tokenization: "field"}
}

// LineItemClass describes the LineItem class. Identifier properties use field
// tokenization so filters match them exactly.
func LineItemClass() *models.Class {
	return &models.Class{
		Class:       ClassLineItem,
		Description: "A classified line item of a specification document",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "name", DataType: []string{"text"}},
			keyword("jobId"),
			keyword("collectionId"),
			keyword("documentId"),
			keyword("sku"),
			keyword("commission"),
			keyword("quantityUnit"),
			{Name: "position", DataType: []string{"int"}},
			{Name: "quantity", DataType: []string{"number"}},
		},
	}
}

// EnsureSchema creates the LineItem class, or adds the properties an older
// deployment is missing.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	return ensureClass(ctx, client, LineItemClass())
}

func ensureClass(ctx context.Context, client SchemaClient, want *models.Class) error {
	exists, err := client.ClassExists(ctx, want.Class)
	if err != nil {
		return err
	}
	if !exists {
		return client.CreateClass(ctx, want)
	}

	class, err := client.GetClass(ctx, want.Class)
	if err != nil {
		return err
	}

	existing := make(map[string]bool, len(class.Properties))
	for _, p := range class.Properties {
		existing[p.Name] = true
	}
	for _, p := range want.Properties {
		if existing[p.Name] {
			continue
		}
		if err := client.AddProperty(ctx, want.Class, p); err != nil {
			return err
		}
	}
	return nil
}
