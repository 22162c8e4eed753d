package repomanager

import (
	"context"
	"database/sql"

	"github.com/funews/funews/internal/dbx"
	"github.com/funews/funews/internal/server/repositories/accounts"
	"github.com/funews/funews/internal/server/repositories/articles"
	"github.com/funews/funews/internal/server/repositories/categories"
	"github.com/funews/funews/internal/server/repositories/refreshtokens"
	"github.com/funews/funews/internal/server/repositories/tags"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Categories(db dbx.DBTX) categories.Repository
	Articles(db dbx.DBTX) articles.Repository
	Tags(db dbx.DBTX) tags.Repository
}
