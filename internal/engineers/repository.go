package engineers

import (
	"context"

	"github.com/engineerhub/engineerhub/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	conn db.DBTX
}

// NewRepository constructs a repository.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{conn: conn}
}

// Insert stores e and returns it with the database timestamp.
func (r *Repository) Insert(ctx context.Context, e Engineer) (Engineer, error) {
	err := r.conn.QueryRow(ctx, `
		INSERT INTO engineers (id, name, surname, city, contact_number, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		e.ID, e.Name, e.Surname, e.City, e.ContactNumber, e.CreatedBy, e.CreatedAt,
	).Scan(&e.CreatedAt)
	if err != nil {
		return Engineer{}, err
	}
	return e, nil
}

// List returns up to limit engineers, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]Engineer, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id::text, name, surname, city, contact_number, created_by::text, created_at
		FROM engineers
		ORDER BY created_at DESC, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	engineers := make([]Engineer, 0)
	for rows.Next() {
		var e Engineer
		if err := rows.Scan(&e.ID, &e.Name, &e.Surname, &e.City, &e.ContactNumber, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		engineers = append(engineers, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return engineers, nil
}
