package auth

import (
	"strconv"
	"strings"
	"time"
)

// ClaimSet is the typed projection of the claim bundles embedded in a
// Session. Optional fields are pointers or empty strings; defaults are
// resolved by the IdentityResolver, not here.
type ClaimSet struct {
	Role        string
	Approved    *bool
	ApprovedAt  *time.Time
	ApprovedBy  string
	DisplayName string
	ActorType   string
}

var (
	roleClaimKeys        = []string{"role", "user_role"}
	approvedClaimKeys    = []string{"approved", "is_approved"}
	approvedAtClaimKeys  = []string{"approved_at"}
	approvedByClaimKeys  = []string{"approved_by"}
	displayNameClaimKeys = []string{"display_name", "full_name", "name"}
	actorTypeClaimKeys   = []string{"actor_type", "user_type"}
)

// ParseClaims reads the app controlled and the user editable bundles.
// Role and approval claims come from app only. Profile claims prefer app
// and fall back to user.
func ParseClaims(app, user map[string]any) ClaimSet {
	trusted := []map[string]any{app}
	profile := []map[string]any{app, user}

	claims := ClaimSet{
		Role:        claimString(trusted, roleClaimKeys...),
		ApprovedBy:  claimString(trusted, approvedByClaimKeys...),
		DisplayName: claimString(profile, displayNameClaimKeys...),
		ActorType:   claimString(profile, actorTypeClaimKeys...),
	}

	if approved, ok := claimBool(trusted, approvedClaimKeys...); ok {
		claims.Approved = &approved
	}

	if at, ok := claimTime(trusted, approvedAtClaimKeys...); ok {
		claims.ApprovedAt = &at
	}

	return claims
}

func claimValue(bundles []map[string]any, keys ...string) (any, bool) {
	for _, bundle := range bundles {
		if bundle == nil {
			continue
		}
		for _, key := range keys {
			if val, ok := bundle[key]; ok && val != nil {
				return val, true
			}
		}
	}
	return nil, false
}

func claimString(bundles []map[string]any, keys ...string) string {
	val, ok := claimValue(bundles, keys...)
	if !ok {
		return ""
	}
	if str, ok := val.(string); ok {
		return strings.TrimSpace(str)
	}
	return ""
}

func claimBool(bundles []map[string]any, keys ...string) (bool, bool) {
	val, ok := claimValue(bundles, keys...)
	if !ok {
		return false, false
	}

	switch typed := val.(type) {
	case bool:
		return typed, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(typed))
		if err != nil {
			return false, false
		}
		return b, true
	}
	return false, false
}

func claimTime(bundles []map[string]any, keys ...string) (time.Time, bool) {
	val, ok := claimValue(bundles, keys...)
	if !ok {
		return time.Time{}, false
	}

	switch typed := val.(type) {
	case time.Time:
		return typed, !typed.IsZero()
	case string:
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(typed))
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case float64:
		return time.Unix(int64(typed), 0).UTC(), true
	case int64:
		return time.Unix(typed, 0).UTC(), true
	case int:
		return time.Unix(int64(typed), 0).UTC(), true
	}
	return time.Time{}, false
}
