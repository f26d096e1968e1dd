package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoPages is returned when a document has no stored page text.
var ErrNoPages = errors.New("document has no pages")

// PostgresRepo reads the per-page plain text the upload service stores in document_pages.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// GetPages returns page texts in page order.
func (r *PostgresRepo) GetPages(ctx context.Context, documentID string) ([]string, error) {
	query := `SELECT page_number, text FROM document_pages WHERE document_id = $1 ORDER BY page_number`
	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []string
	expected := 1
	for rows.Next() {
		var number int
		var text string
		if err := rows.Scan(&number, &text); err != nil {
			return nil, err
		}
		if number != expected {
			return nil, fmt.Errorf("document %s: page %d missing", documentID, expected)
		}
		pages = append(pages, text)
		expected++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPages, documentID)
	}
	return pages, nil
}

// SavePages replaces the stored pages of a document.
func (r *PostgresRepo) SavePages(ctx context.Context, documentID string, pages []string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM document_pages WHERE document_id = $1`, documentID); err != nil {
		return err
	}
	for i, text := range pages {
		if _, err = tx.ExecContext(ctx, `INSERT INTO document_pages (document_id, page_number, text) VALUES ($1, $2, $3)`, documentID, i+1, text); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Static serves pages held in memory, keyed by document id.
type Static map[string][]string

func (s Static) GetPages(_ context.Context, documentID string) ([]string, error) {
	pages, ok := s[documentID]
	if !ok || len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPages, documentID)
	}
	return pages, nil
}
