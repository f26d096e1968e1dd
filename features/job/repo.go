package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/LatVAlY/specWise/internal/classify"
)

const defaultListLimit = 100

type Repository interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, f ListFilter) ([]Job, error)
	Delete(ctx context.Context, id string) error

	// Transition moves the job to `to` only if its current status may do so.
	Transition(ctx context.Context, id string, to Status) error
	// UpdateProgress rewrites the description of an IN_PROGRESS job.
	UpdateProgress(ctx context.Context, id, description string) error
	Fail(ctx context.Context, id string, kind ErrorKind, message string) error
	Cancel(ctx context.Context, id string) error
	// CompleteWithResult stores items and marks an UPDATING job COMPLETED atomically.
	// A job canceled meanwhile is left untouched and ErrInvalidTransition is returned.
	CompleteWithResult(ctx context.Context, id string, items []classify.Item) error
	GetResult(ctx context.Context, id string) ([]classify.Item, error)

	// SaveCheckpoint writes only while the job is IN_PROGRESS; otherwise it
	// returns ErrInvalidTransition or ErrNotFound.
	SaveCheckpoint(ctx context.Context, cp Checkpoint) error
	// LoadCheckpoint returns nil when the job has no checkpoint.
	LoadCheckpoint(ctx context.Context, jobID string) (*Checkpoint, error)

	CountByStatus(ctx context.Context) (map[Status]int, error)
	// FailStuck fails active jobs that have not been updated since before cutoff.
	FailStuck(ctx context.Context, cutoff time.Time) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const jobColumns = `id, collection_id, document_id, file_name, status, description, error_kind, error_message, item_count, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*Job, error) {
	var j Job
	var status, kind string
	if err := s.Scan(&j.ID, &j.CollectionID, &j.DocumentID, &j.FileName, &status, &j.Description, &kind, &j.ErrorMessage, &j.ItemCount, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Status = Status(status)
	j.ErrorKind = ErrorKind(kind)
	return &j, nil
}

func statusArray(statuses []Status) any {
	s := make([]string, len(statuses))
	for i, st := range statuses {
		s[i] = string(st)
	}
	return pq.Array(s)
}

func (r *PostgresRepo) Create(ctx context.Context, j *Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = StatusPending
	}
	query := `INSERT INTO jobs (id, collection_id, document_id, file_name, status, description) VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, j.ID, j.CollectionID, j.DocumentID, j.FileName, string(j.Status), j.Description).Scan(&j.CreatedAt, &j.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	j, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return j, err
}

func (r *PostgresRepo) List(ctx context.Context, f ListFilter) ([]Job, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE ($1 = '' OR collection_id = $1) AND ($2 = '' OR status = $2) ORDER BY created_at DESC LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, f.CollectionID, string(f.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrNotFound)
}

func (r *PostgresRepo) Transition(ctx context.Context, id string, to Status) error {
	from := sourcesOf(to)
	if len(from) == 0 {
		return fmt.Errorf("%w: nothing moves to %s", ErrInvalidTransition, to)
	}
	query := `UPDATE jobs SET status = $1, updated_at = NOW() WHERE id = $2 AND status = ANY($3)`
	res, err := r.db.ExecContext(ctx, query, string(to), id, statusArray(from))
	if err != nil {
		return err
	}
	return r.explainMiss(ctx, res, id, to)
}

func (r *PostgresRepo) UpdateProgress(ctx context.Context, id, description string) error {
	query := `UPDATE jobs SET description = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, description, id, string(StatusInProgress))
	if err != nil {
		return err
	}
	return r.explainMiss(ctx, res, id, StatusInProgress)
}

func (r *PostgresRepo) Fail(ctx context.Context, id string, kind ErrorKind, message string) error {
	query := `UPDATE jobs SET status = $1, error_kind = $2, error_message = $3, updated_at = NOW() WHERE id = $4 AND status = ANY($5)`
	res, err := r.db.ExecContext(ctx, query, string(StatusFailed), string(kind), message, id, statusArray(sourcesOf(StatusFailed)))
	if err != nil {
		return err
	}
	return r.explainMiss(ctx, res, id, StatusFailed)
}

func (r *PostgresRepo) Cancel(ctx context.Context, id string) error {
	query := `UPDATE jobs SET status = $1, description = $2, updated_at = NOW() WHERE id = $3 AND status = ANY($4)`
	res, err := r.db.ExecContext(ctx, query, string(StatusCanceled), "Canceled", id, statusArray(sourcesOf(StatusCanceled)))
	if err != nil {
		return err
	}
	return r.explainMiss(ctx, res, id, StatusCanceled)
}

// explainMiss turns a zero-row conditional update into ErrNotFound or ErrInvalidTransition.
func (r *PostgresRepo) explainMiss(ctx context.Context, res sql.Result, id string, to Status) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
}

func (r *PostgresRepo) CompleteWithResult(ctx context.Context, id string, items []classify.Item) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if Status(current) != StatusUpdating {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, StatusCompleted)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM job_items WHERE job_id = $1`, id); err != nil {
		return err
	}

	insert := `INSERT INTO job_items (job_id, position, sku, name, text, quantity, quantity_unit, price, price_unit, commission, confidence) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	for i, it := range items {
		if _, err = tx.ExecContext(ctx, insert, id, i, it.SKU, it.Name, it.Text, it.Quantity, it.QuantityUnit, it.Price, it.PriceUnit, it.Commission, it.Confidence); err != nil {
			return err
		}
	}

	update := `UPDATE jobs SET status = $1, description = $2, item_count = $3, updated_at = NOW() WHERE id = $4`
	if _, err = tx.ExecContext(ctx, update, string(StatusCompleted), "Completed", len(items), id); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM job_checkpoints WHERE job_id = $1`, id); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepo) GetResult(ctx context.Context, id string) ([]classify.Item, error) {
	query := `SELECT sku, name, text, quantity, quantity_unit, price, price_unit, commission, confidence FROM job_items WHERE job_id = $1 ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []classify.Item{}
	for rows.Next() {
		var it classify.Item
		if err := rows.Scan(&it.SKU, &it.Name, &it.Text, &it.Quantity, &it.QuantityUnit, &it.Price, &it.PriceUnit, &it.Commission, &it.Confidence); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PostgresRepo) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	query := `INSERT INTO job_checkpoints (job_id, stage, payload, updated_at)
		SELECT $1::text, $2::text, $3::jsonb, NOW() WHERE EXISTS (SELECT 1 FROM jobs WHERE id = $1 AND status = 'IN_PROGRESS')
		ON CONFLICT (job_id) DO UPDATE SET stage = EXCLUDED.stage, payload = EXCLUDED.payload, updated_at = NOW()`
	res, err := r.db.ExecContext(ctx, query, cp.JobID, string(cp.Stage), string(cp.Payload))
	if err != nil {
		return err
	}
	return r.explainMiss(ctx, res, cp.JobID, StatusInProgress)
}

func (r *PostgresRepo) LoadCheckpoint(ctx context.Context, jobID string) (*Checkpoint, error) {
	cp := &Checkpoint{}
	var stage string
	var payload []byte
	query := `SELECT job_id, stage, payload, updated_at FROM job_checkpoints WHERE job_id = $1`
	err := r.db.QueryRowContext(ctx, query, jobID).Scan(&cp.JobID, &stage, &payload, &cp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cp.Stage = Stage(stage)
	cp.Payload = json.RawMessage(payload)
	return cp, nil
}

func (r *PostgresRepo) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

func (r *PostgresRepo) FailStuck(ctx context.Context, cutoff time.Time) (int, error) {
	query := `UPDATE jobs SET status = $1, error_kind = $2, error_message = $3, updated_at = NOW() WHERE status = ANY($4) AND updated_at < $5`
	res, err := r.db.ExecContext(ctx, query,
		string(StatusFailed), string(ErrorKindStalled), "no progress reported before timeout",
		statusArray([]Status{StatusInProgress, StatusUpdating}), cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
