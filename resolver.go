package auth

import (
	"context"
	"strings"
	"time"
)

// IdentityResolver turns a Session into an Identity in two stages: a
// synchronous basic identity from claims, then an optional enrichment
// lookup bounded by a short timeout.
type IdentityResolver struct {
	superadminID  string
	store         EnrichmentStore
	enrichTimeout time.Duration
	gate          ApprovalGate
	logger        Logger
}

// ResolverOption customizes an IdentityResolver
type ResolverOption func(*IdentityResolver)

// WithSuperadminID sets the subject id that is always admin and approved
func WithSuperadminID(id string) ResolverOption {
	return func(r *IdentityResolver) {
		r.superadminID = strings.TrimSpace(id)
	}
}

// WithEnrichTimeout overrides the enrichment lookup bound
func WithEnrichTimeout(timeout time.Duration) ResolverOption {
	return func(r *IdentityResolver) {
		if timeout > 0 {
			r.enrichTimeout = timeout
		}
	}
}

// WithResolverGate overrides the admission check applied before enrichment
func WithResolverGate(gate ApprovalGate) ResolverOption {
	return func(r *IdentityResolver) {
		if gate != nil {
			r.gate = gate
		}
	}
}

// WithResolverLogger sets the logger
func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *IdentityResolver) {
		r.logger = normalizeLogger(logger)
	}
}

// NewIdentityResolver returns a resolver. store may be nil, in which case
// identities are never enriched.
func NewIdentityResolver(store EnrichmentStore, opts ...ResolverOption) *IdentityResolver {
	r := &IdentityResolver{
		store:         store,
		enrichTimeout: DefaultEnrichTimeout,
		gate:          IsAdmitted,
		logger:        defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// ToBasicIdentity maps the session claims to an identity without any I/O.
// The superadmin override is evaluated first and wins over any claim.
func (r *IdentityResolver) ToBasicIdentity(session *Session) *Identity {
	if session == nil || session.UserID == "" {
		return nil
	}

	claims := session.Claims()

	identity := &Identity{
		ID:          session.UserID,
		Email:       session.Email,
		DisplayName: claims.DisplayName,
		ActorType:   claims.ActorType,
		ApprovedAt:  claims.ApprovedAt,
		ApprovedBy:  claims.ApprovedBy,
	}

	if r.superadminID != "" && session.UserID == r.superadminID {
		identity.Role = RoleAdmin
		identity.Approved = true
		identity.Superadmin = true
	} else {
		identity.Role = RoleResident
		if claims.Role != "" {
			if role, ok := ParseRole(claims.Role); ok {
				identity.Role = role
			} else {
				r.logger.Warn("unknown role claim %q for subject %s, using %s", claims.Role, session.UserID, RoleResident)
			}
		}
		if claims.Approved != nil {
			identity.Approved = *claims.Approved
		}
	}

	if identity.DisplayName == "" {
		identity.DisplayName = displayNameFromEmail(session.Email)
	}

	return identity
}

// Enrich resolves the enriched identity for session. It returns nil when
// the session does not pass the approval gate, when the lookup fails or
// times out, or when there is no record: nil means "nothing to add".
func (r *IdentityResolver) Enrich(ctx context.Context, session *Session) *Identity {
	basic := r.ToBasicIdentity(session)
	if basic == nil || !r.gate(basic) {
		return nil
	}
	return r.EnrichIdentity(ctx, basic)
}

// EnrichIdentity performs the lookup for an identity that already passed
// the approval gate.
func (r *IdentityResolver) EnrichIdentity(ctx context.Context, basic *Identity) *Identity {
	if basic == nil || r.store == nil {
		return nil
	}

	record, err := AwaitWithTimeout(ctx, r.enrichTimeout, func(ctx context.Context) (*EnrichmentRecord, error) {
		return r.store.FindBySubjectID(ctx, basic.ID)
	})

	if err != nil {
		if IsTimeoutError(err) {
			r.logger.Warn("enrichment lookup for %s timed out after %s", basic.ID, r.enrichTimeout)
		} else {
			r.logger.Error("enrichment lookup for %s failed: %v", basic.ID, err)
		}
		return nil
	}

	if record == nil {
		r.logger.Debug("no enrichment record for %s", basic.ID)
		return nil
	}

	if record.SubjectID != "" && record.SubjectID != basic.ID {
		r.logger.Warn("enrichment record subject %s does not match %s", record.SubjectID, basic.ID)
		return nil
	}

	return basic.withRecord(record)
}

func displayNameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found {
		return email
	}
	return local
}
