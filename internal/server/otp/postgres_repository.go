package otp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avdeev-dm/accountd/internal/common"
	"github.com/avdeev-dm/accountd/internal/dbx"
)

// PostgresRepository runs against any dbx.DBTX, so the same implementation
// serves both direct queries and the Engine's transactional path.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Lock takes a transaction-scoped advisory lock keyed on the pair, so two
// concurrent issuances (or verifications) for the same (email, purpose)
// serialize instead of both passing the cooldown or existence checks.
func (r *PostgresRepository) Lock(ctx context.Context, email string, purpose Purpose) error {
	_, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, email, string(purpose))
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	return nil
}

func (r *PostgresRepository) FindLatest(ctx context.Context, email string, purpose Purpose) (*Challenge, error) {
	query :=
		`SELECT id, email, code, purpose, created_at, expires_at FROM otp_challenges
		 WHERE email = $1 AND purpose = $2
		 ORDER BY created_at DESC
		 LIMIT 1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, email, string(purpose)))
}

func (r *PostgresRepository) Find(ctx context.Context, email, code string, purpose Purpose) (*Challenge, error) {
	query :=
		`SELECT id, email, code, purpose, created_at, expires_at FROM otp_challenges
		 WHERE email = $1 AND code = $2 AND purpose = $3
		 LIMIT 1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, email, code, string(purpose)))
}

func (r *PostgresRepository) Create(ctx context.Context, challenge *Challenge) error {
	query :=
		`INSERT INTO otp_challenges (email, code, purpose, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		challenge.Email, challenge.Code, string(challenge.Purpose), challenge.CreatedAt, challenge.ExpiresAt).
		Scan(&challenge.ID)
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteAll(ctx context.Context, email string, purpose Purpose) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE email = $1 AND purpose = $2`, email, string(purpose))
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	return nil
}

// Delete reports common.ErrorNotFound when the row is already gone, so a
// verification that lost a race does not claim success.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*Challenge, error) {
	c := &Challenge{}
	var purpose string
	err := row.Scan(&c.ID, &c.Email, &c.Code, &purpose, &c.CreatedAt, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}
	c.Purpose = Purpose(purpose)
	return c, nil
}
