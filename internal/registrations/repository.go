package registrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aura-events/regreview/internal/models"
)

// ErrNotFound is returned when the target document does not exist.
var ErrNotFound = errors.New("registration not found")

// Store is the document store holding registration submissions.
type Store interface {
	ListAll(ctx context.Context) ([]models.RawRecord, error)
	UpdateStatus(ctx context.Context, id string, status models.Status, reason *string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// DB is the subset of pgxpool.Pool used by Repository.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository stores each registration as a JSONB document keyed by id.
type Repository struct {
	db DB
}

// NewRepository creates a registrations repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// ListAll returns every document, unordered. Ordering happens after timestamps are normalized.
func (r *Repository) ListAll(ctx context.Context) ([]models.RawRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT id, data FROM registrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.RawRecord{}
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		data, err := decodeDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
		list = append(list, models.RawRecord{ID: id, Data: data})
	}
	return list, rows.Err()
}

// UpdateStatus writes the review status. The rejection reason is stored only for rejected
// registrations and removed from the document otherwise.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status models.Status, reason *string, updatedAt time.Time) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if status == models.StatusRejected {
		text := ""
		if reason != nil {
			text = *reason
		}
		const q = `UPDATE registrations
			SET data = data || jsonb_build_object('status', $2::text, 'rejectionReason', $3::text, 'updatedAt', $4::bigint)
			WHERE id = $1`
		tag, err = r.db.Exec(ctx, q, id, string(status), text, updatedAt.UnixMilli())
	} else {
		const q = `UPDATE registrations
			SET data = (data - 'rejectionReason') || jsonb_build_object('status', $2::text, 'updatedAt', $3::bigint)
			WHERE id = $1`
		tag, err = r.db.Exec(ctx, q, id, string(status), updatedAt.UnixMilli())
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	return err
}

func decodeDocument(raw []byte) (map[string]any, error) {
	data := map[string]any{}
	if len(raw) == 0 {
		return data, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}
