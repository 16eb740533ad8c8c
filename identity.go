package auth

import "time"

// Identity is the resolved actor. A basic identity is derived from the
// session claims only; an enriched identity additionally carries profile
// data from the EnrichmentStore and has Enriched set.
type Identity struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	Email       string          `json:"email,omitempty"`
	Role        Role            `json:"role"`
	ActorType   string          `json:"actor_type,omitempty"`
	Approved    bool            `json:"approved"`
	ApprovedAt  *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy  string          `json:"approved_by,omitempty"`
	Superadmin  bool            `json:"superadmin"`
	Phone       string          `json:"phone,omitempty"`
	Unit        *UnitAssignment `json:"unit,omitempty"`
	Enriched    bool            `json:"enriched"`
}

// Clone returns a deep copy so published identities are never shared
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}

	out := *i
	if i.ApprovedAt != nil {
		at := *i.ApprovedAt
		out.ApprovedAt = &at
	}
	if i.Unit != nil {
		unit := *i.Unit
		out.Unit = &unit
	}
	return &out
}

// HasUnit reports whether a unit assignment is known
func (i *Identity) HasUnit() bool {
	return i != nil && i.Unit != nil && i.Unit.ID != ""
}

// withRecord merges an enrichment record into a copy of the identity.
// Role, approval and superadmin are never touched.
func (i *Identity) withRecord(record *EnrichmentRecord) *Identity {
	out := i.Clone()
	if record == nil {
		return out
	}

	if record.DisplayName != "" {
		out.DisplayName = record.DisplayName
	}
	if record.ActorType != "" {
		out.ActorType = record.ActorType
	}
	if record.Phone != "" {
		out.Phone = record.Phone
	}
	if record.Unit != nil {
		unit := *record.Unit
		out.Unit = &unit
	}
	out.Enriched = true
	return out
}
