package job

import (
	"encoding/xml"
	"strconv"

	"github.com/LatVAlY/specWise/internal/classify"
)

type xmlCatalog struct {
	XMLName xml.Name  `xml:"catalog"`
	Items   []xmlItem `xml:"item"`
}

type xmlItem struct {
	SKU          string `xml:"sku"`
	Name         string `xml:"name"`
	Text         string `xml:"text"`
	Quantity     string `xml:"quantity"`
	QuantityUnit string `xml:"quantityUnit"`
	Price        string `xml:"price"`
	PriceUnit    string `xml:"priceUnit"`
	Commission   string `xml:"commission"`
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// selectItems keeps the items whose commission is listed, in result order.
func selectItems(items []classify.Item, commissions []string) []classify.Item {
	want := make(map[string]bool, len(commissions))
	for _, c := range commissions {
		want[c] = true
	}
	var out []classify.Item
	for _, it := range items {
		if want[it.Commission] {
			out = append(out, it)
		}
	}
	return out
}

// MarshalXML renders items as the catalog document consumed by the ERP import.
func MarshalXML(items []classify.Item) ([]byte, error) {
	doc := xmlCatalog{Items: make([]xmlItem, 0, len(items))}
	for _, it := range items {
		doc.Items = append(doc.Items, xmlItem{
			SKU:          it.SKU,
			Name:         it.Name,
			Text:         it.Text,
			Quantity:     formatNumber(it.Quantity),
			QuantityUnit: it.QuantityUnit,
			Price:        formatNumber(it.Price),
			PriceUnit:    it.PriceUnit,
			Commission:   it.Commission,
		})
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
