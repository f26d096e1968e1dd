package classify

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrEmptyCatalog = errors.New("catalog has no categories")

// Category is one service offer items can be mapped to.
type Category struct {
	Name  string   `yaml:"name" json:"name"`
	SKU   string   `yaml:"sku" json:"sku"`
	Hints []string `yaml:"hints,omitempty" json:"hints,omitempty"`
}

type Catalog struct {
	Categories []Category `yaml:"categories" json:"categories"`
}

// DefaultCatalog is the door and hardware offer list used when no catalog file is configured.
func DefaultCatalog() Catalog {
	return Catalog{Categories: []Category{
		{Name: "Holztüren, Holzzargen", SKU: "620001", Hints: []string{"Holztürblatt mit Stahlzarge"}},
		{Name: "Stahltüren, Stahlzargen, Rohrrahmentüren", SKU: "670001", Hints: []string{"Verglasung mit Stahlzarge"}},
		{Name: "Haustüren", SKU: "660001"},
		{Name: "Glastüren", SKU: "610001"},
		{Name: "Tore", SKU: "680001"},
		{Name: "Beschläge", SKU: "240001"},
		{Name: "Türstopper", SKU: "330001"},
		{Name: "Lüftungsgitter", SKU: "450001"},
		{Name: "Türschließer", SKU: "290001"},
		{Name: "Schlösser / E-Öffner", SKU: "360001"},
		{Name: "Wartung", SKU: "DL8110016"},
		{Name: "Stundenlohnarbeiten", SKU: "DL5010008"},
		{Name: "Sonstige Arbeiten", SKU: "DL5019990", Hints: []string{"Baustelleneinrichtung", "Aufmaß", "Mustertürblatt"}},
	}}
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (Catalog, error) {
	b, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

func (c Catalog) Validate() error {
	if len(c.Categories) == 0 {
		return ErrEmptyCatalog
	}
	seen := make(map[string]struct{}, len(c.Categories))
	for i, cat := range c.Categories {
		sku := normalizeSKU(cat.SKU)
		if sku == "" || strings.TrimSpace(cat.Name) == "" {
			return fmt.Errorf("category %d: name and sku are required", i)
		}
		if _, dup := seen[sku]; dup {
			return fmt.Errorf("category %d: duplicate sku %s", i, cat.SKU)
		}
		seen[sku] = struct{}{}
	}
	return nil
}

// Lookup finds a category by SKU, ignoring case and surrounding whitespace.
func (c Catalog) Lookup(sku string) (Category, bool) {
	want := normalizeSKU(sku)
	for _, cat := range c.Categories {
		if normalizeSKU(cat.SKU) == want {
			return cat, true
		}
	}
	return Category{}, false
}

func (c Catalog) render() string {
	var b strings.Builder
	for _, cat := range c.Categories {
		fmt.Fprintf(&b, "- %s: %s\n", cat.Name, cat.SKU)
		for _, h := range cat.Hints {
			fmt.Fprintf(&b, "  - %s: %s\n", h, cat.SKU)
		}
	}
	return b.String()
}

func normalizeSKU(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
