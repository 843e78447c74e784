package tokens

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) (*PostgresRepository, error) {
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Add(ctx context.Context, token string, revokedAt time.Time) error {
	query :=
		`INSERT INTO revoked_tokens (token, revoked_at)
		 VALUES ($1, $2)
		 ON CONFLICT (token) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, token, revokedAt)
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}

	return nil
}

func (r *PostgresRepository) IsRevoked(ctx context.Context, token string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token = $1)`

	var revoked bool
	err := r.db.QueryRowContext(ctx, query, token).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("error performing sql request: %v", err)
	}

	return revoked, nil
}
