package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	auth "github.com/goliatone/go-condo-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts is the accounts repository backing Store
type Accounts interface {
	repository.Repository[*Account]

	GetByIdentifier(ctx context.Context, identifier string) (*Account, error)
	Register(ctx context.Context, account *Account, password string) (*Account, error)
	SetApproval(ctx context.Context, id uuid.UUID, approved bool, approvedBy string) (*Account, error)
	SetRole(ctx context.Context, id uuid.UUID, role string) (*Account, error)
	TrackLogin(ctx context.Context, id uuid.UUID) error
}

type accounts struct {
	repository.Repository[*Account]
	db           *bun.DB
	passwordCost int
}

var _ Accounts = (*accounts)(nil)

// AccountsOption customizes the accounts repository
type AccountsOption func(*accounts)

// WithPasswordCost sets the bcrypt cost used by Register
func WithPasswordCost(cost int) AccountsOption {
	return func(a *accounts) {
		a.passwordCost = cost
	}
}

// NewAccountsRepository creates the bun backed accounts repository
func NewAccountsRepository(db *bun.DB, opts ...AccountsOption) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	out := &accounts{
		Repository:   repo,
		db:           db,
		passwordCost: passwordHashCost(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(out)
		}
	}
	return out
}

// CreateSchema creates the accounts table
func CreateSchema(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*Account)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create accounts table")
	}
	return nil
}

// GetByIdentifier finds an account by id or email
func (a *accounts) GetByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil, repository.NewRecordNotFound()
	}

	options := make([]identifierOption, 0, 2)
	if isUUID(trimmed) {
		options = append(options, identifierOption{column: "id", value: trimmed})
	}
	if isEmail(trimmed) {
		options = append(options, identifierOption{column: "email", value: normalizeEmail(trimmed)})
	}

	for _, opt := range options {
		record := &Account{}
		err := a.db.NewSelect().
			Model(record).
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

// Register hashes password and stores the account
func (a *accounts) Register(ctx context.Context, account *Account, password string) (*Account, error) {
	if account == nil {
		return nil, goerrors.New("account must not be nil", goerrors.CategoryBadInput)
	}

	hash, err := HashPassword(password, a.passwordCost)
	if err != nil {
		return nil, err
	}

	account.PasswordHash = hash
	prepareAccountDefaults(account)

	if _, err := a.db.NewInsert().Model(account).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to register account")
	}
	return account, nil
}

// SetApproval flips the approval flag. Approving stamps approved_at.
func (a *accounts) SetApproval(ctx context.Context, id uuid.UUID, approved bool, approvedBy string) (*Account, error) {
	now := time.Now().UTC()

	q := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("approved = ?", approved).
		Set("updated_at = ?", now).
		Where("id = ?", id)

	if approved {
		q = q.Set("approved_at = ?", now).Set("approved_by = ?", approvedBy)
	} else {
		q = q.Set("approved_at = NULL").Set("approved_by = ''")
	}

	return a.updated(ctx, id, q)
}

// SetRole changes the role of an account. Unknown roles are rejected.
func (a *accounts) SetRole(ctx context.Context, id uuid.UUID, role string) (*Account, error) {
	parsed, ok := auth.ParseRole(role)
	if !ok {
		return nil, goerrors.New("unknown role "+role, goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	q := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("role = ?", parsed.String()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id)

	return a.updated(ctx, id, q)
}

// TrackLogin stamps the last successful sign in
func (a *accounts) TrackLogin(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("loggedin_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (a *accounts) updated(ctx context.Context, id uuid.UUID, q *bun.UpdateQuery) (*Account, error) {
	res, err := q.Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return a.GetByIdentifier(ctx, id.String())
}

type identifierOption struct {
	column string
	value  string
}

func isNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows)
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
