package db

import (
	"context"
	"database/sql"

	"github.com/avdeev-dm/accountd/internal/server/identities"
	"github.com/avdeev-dm/accountd/internal/server/tokens"
)

type RepositoryManager interface {
	RunMigrations(context.Context) error
	Conn() *sql.DB
	Identities() identities.Repository
	RevokedTokens() tokens.Repository
}
