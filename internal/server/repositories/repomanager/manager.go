package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/parcelsync/internal/dbx"
	"github.com/dmitrijs2005/parcelsync/internal/server/repositories/records"
	"github.com/dmitrijs2005/parcelsync/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/parcelsync/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX so services can run
// the same code inside or outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Records(db dbx.DBTX) records.Repository
}
