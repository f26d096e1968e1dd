package worker

// IndexPayload is one classified line item on the index topic.
type IndexPayload struct {
	JobID        string `json:"job_id"`
	CollectionID string `json:"collection_id"`
	DocumentID   string `json:"document_id"`
	Position     int    `json:"position"`

	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Text         string  `json:"text"`
	Quantity     float64 `json:"quantity"`
	QuantityUnit string  `json:"quantity_unit"`
	Commission   string  `json:"commission"`

	CorrelationID string `json:"correlation_id"`
}
