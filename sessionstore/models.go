package sessionstore

import (
	"strings"
	"time"

	auth "github.com/goliatone/go-condo-auth"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is a sign-in record. Role and approval end up in the session's
// app metadata, display name and actor type in its user metadata.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	DisplayName   string     `bun:"display_name" json:"display_name,omitempty"`
	ActorType     string     `bun:"actor_type" json:"actor_type,omitempty"`
	Role          string     `bun:"role,notnull" json:"role,omitempty"`
	Approved      bool       `bun:"approved,notnull" json:"approved"`
	ApprovedAt    *time.Time `bun:"approved_at,nullzero" json:"approved_at,omitempty"`
	ApprovedBy    string     `bun:"approved_by" json:"approved_by,omitempty"`
	LoggedInAt    *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// AppMetadata is the app controlled claim bundle
func (a *Account) AppMetadata() map[string]any {
	meta := map[string]any{
		"role":     a.Role,
		"approved": a.Approved,
	}
	if a.ApprovedAt != nil {
		meta["approved_at"] = a.ApprovedAt.UTC().Format(time.RFC3339)
	}
	if a.ApprovedBy != "" {
		meta["approved_by"] = a.ApprovedBy
	}
	return meta
}

// UserMetadata is the user editable claim bundle
func (a *Account) UserMetadata() map[string]any {
	meta := map[string]any{}
	if a.DisplayName != "" {
		meta["display_name"] = a.DisplayName
	}
	if a.ActorType != "" {
		meta["actor_type"] = a.ActorType
	}
	return meta
}

func prepareAccountDefaults(account *Account) {
	if account == nil {
		return
	}

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}

	account.Email = normalizeEmail(account.Email)

	role, ok := auth.ParseRole(account.Role)
	if !ok {
		role = auth.RoleResident
	}
	account.Role = role.String()

	if account.Approved && account.ApprovedAt == nil {
		now := time.Now().UTC()
		account.ApprovedAt = &now
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
