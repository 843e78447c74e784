package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/avdeev-dm/accountd/internal/server/identities"
	"github.com/avdeev-dm/accountd/internal/server/migrations"
	"github.com/avdeev-dm/accountd/internal/server/tokens"
)

type PostgresRepositoryManager struct {
	db            *sql.DB
	identities    identities.Repository
	revokedTokens tokens.Repository
}

func (m *PostgresRepositoryManager) Conn() *sql.DB {
	return m.db
}

func (m *PostgresRepositoryManager) Identities() identities.Repository {
	return m.identities
}

func (m *PostgresRepositoryManager) RevokedTokens() tokens.Repository {
	return m.revokedTokens
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return err
	}

	return nil
}

func NewPostgresRepositoryManager(dsn string) (RepositoryManager, error) {

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	identityRepo, err := identities.NewPostgresRepository(db)
	if err != nil {
		return nil, fmt.Errorf("identity repo creation error: %w", err)
	}

	revokedTokenRepo, err := tokens.NewPostgresRepository(db)
	if err != nil {
		return nil, fmt.Errorf("revoked token repo creation error: %w", err)
	}

	m := &PostgresRepositoryManager{
		db:            db,
		identities:    identityRepo,
		revokedTokens: revokedTokenRepo,
	}

	err = m.RunMigrations(context.Background())
	if err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}
