package enrichment

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Unit is a condominium unit (apartment, house, shop)
type Unit struct {
	bun.BaseModel `bun:"table:units,alias:unt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Number        string     `bun:"number,notnull" json:"number"`
	Block         string     `bun:"block" json:"block,omitempty"`
	Floor         string     `bun:"floor" json:"floor,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Profile holds the data an identity is enriched with. UserID is the
// session subject.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        string     `bun:"user_id,notnull,unique" json:"user_id"`
	FullName      string     `bun:"full_name" json:"full_name,omitempty"`
	UserType      string     `bun:"user_type" json:"user_type,omitempty"`
	Phone         string     `bun:"phone" json:"phone,omitempty"`
	UnitID        uuid.UUID  `bun:"unit_id,nullzero,type:uuid" json:"unit_id,omitempty"`
	Unit          *Unit      `bun:"rel:belongs-to,join:unit_id=id" json:"unit,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}
