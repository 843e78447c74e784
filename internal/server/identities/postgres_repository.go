package identities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avdeev-dm/accountd/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) (*PostgresRepository, error) {
	return &PostgresRepository{db: db}, nil
}

const identityColumns = `id, name, email, password_hash, is_verified, federated, COALESCE(avatar_ref, ''), created_at`

func scanIdentity(row *sql.Row) (*Identity, error) {
	i := &Identity{}
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.PasswordHash, &i.IsVerified, &i.Federated, &i.AvatarRef, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	return i, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = $1`

	identity, err := scanIdentity(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}

	return identity, nil
}

func (r *PostgresRepository) CreateLocal(ctx context.Context, name, email, passwordHash string) (*Identity, error) {
	query :=
		`INSERT INTO identities (name, email, password_hash, is_verified, federated)
		 VALUES ($1, $2, $3, FALSE, FALSE)
		 RETURNING ` + identityColumns

	identity, err := scanIdentity(r.db.QueryRowContext(ctx, query, name, email, passwordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}

	return identity, nil
}

func (r *PostgresRepository) CreateOrUpdateFederated(ctx context.Context, email, name, avatarRef string) (*Identity, error) {
	// The upsert merges into an existing row without touching password_hash
	// or is_verified; a fresh federated account is created verified.
	query :=
		`INSERT INTO identities (name, email, password_hash, is_verified, federated, avatar_ref)
		 VALUES ($1, $2, '', TRUE, TRUE, NULLIF($3, ''))
		 ON CONFLICT (email) DO UPDATE
		 SET name       = EXCLUDED.name,
		     avatar_ref = COALESCE(NULLIF($3, ''), identities.avatar_ref)
		 RETURNING ` + identityColumns

	identity, err := scanIdentity(r.db.QueryRowContext(ctx, query, name, email, avatarRef))
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}

	return identity, nil
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE identities SET is_verified = TRUE WHERE id = $1`, id)
}

func (r *PostgresRepository) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	return r.exec(ctx, `UPDATE identities SET password_hash = $2 WHERE id = $1`, id, passwordHash)
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id int64, name, avatarRef string) error {
	return r.exec(ctx, `UPDATE identities SET name = $2, avatar_ref = NULLIF($3, '') WHERE id = $1`, id, name, avatarRef)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}

	return nil
}
