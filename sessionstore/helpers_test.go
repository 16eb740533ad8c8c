package sessionstore_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/goliatone/go-condo-auth/sessionstore"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

var testSigningKey = []byte("test-signing-key-0123456789abcdef")

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, sessionstore.CreateSchema(context.Background(), db))

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func setupAccounts(t *testing.T) sessionstore.Accounts {
	t.Helper()
	return sessionstore.NewAccountsRepository(setupDB(t), sessionstore.WithPasswordCost(bcrypt.MinCost))
}

func register(t *testing.T, accounts sessionstore.Accounts, email, password, role string, approved bool) *sessionstore.Account {
	t.Helper()
	account, err := accounts.Register(context.Background(), &sessionstore.Account{
		Email:       email,
		DisplayName: "Name of " + email,
		ActorType:   "owner",
		Role:        role,
		Approved:    approved,
	}, password)
	require.NoError(t, err)
	return account
}
