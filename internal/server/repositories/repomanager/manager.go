package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/keepr/internal/dbx"
	"github.com/dmitrijs2005/keepr/internal/server/repositories/challenges"
	"github.com/dmitrijs2005/keepr/internal/server/repositories/contacts"
	"github.com/dmitrijs2005/keepr/internal/server/repositories/publickeys"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Challenges(db dbx.DBTX) challenges.Repository
	PublicKeys(db dbx.DBTX) publickeys.Repository
	Contacts(db dbx.DBTX) contacts.Repository
}
