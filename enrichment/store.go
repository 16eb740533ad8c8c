// Package enrichment looks up profile and unit data for a session subject.
package enrichment

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	auth "github.com/goliatone/go-condo-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is used to parse phone numbers stored without a
// country code
const DefaultPhoneRegion = "BR"

// Store implements auth.EnrichmentStore on top of the profiles and units
// tables
type Store struct {
	db     bun.IDB
	region string
	logger auth.Logger
}

var _ auth.EnrichmentStore = (*Store)(nil)

// Option customizes a Store
type Option func(*Store)

// WithPhoneRegion sets the region used for numbers without country code
func WithPhoneRegion(region string) Option {
	return func(s *Store) {
		if region = strings.ToUpper(strings.TrimSpace(region)); region != "" {
			s.region = region
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger auth.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewStore(db bun.IDB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		region: DefaultPhoneRegion,
		logger: nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateSchema creates the units and profiles tables
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{(*Unit)(nil), (*Profile)(nil)}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create enrichment tables")
		}
	}
	return nil
}

// FindBySubjectID returns the enrichment record for subjectID, or nil
// when there is no live profile.
func (s *Store) FindBySubjectID(ctx context.Context, subjectID string) (*auth.EnrichmentRecord, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, nil
	}

	profile := &Profile{}
	err := s.db.NewSelect().
		Model(profile).
		Relation("Unit").
		Where("?TableAlias.user_id = ?", subjectID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) || isNoRows(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load profile").
			WithMetadata(map[string]any{"subject_id": subjectID})
	}

	return s.toRecord(profile), nil
}

// SaveProfile inserts or replaces the profile of profile.UserID
func (s *Store) SaveProfile(ctx context.Context, profile *Profile) (*Profile, error) {
	if profile == nil || strings.TrimSpace(profile.UserID) == "" {
		return nil, goerrors.New("profile needs a user id", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}

	_, err := s.db.NewInsert().
		Model(profile).
		On("CONFLICT (user_id) DO UPDATE").
		Set("full_name = EXCLUDED.full_name").
		Set("user_type = EXCLUDED.user_type").
		Set("phone = EXCLUDED.phone").
		Set("unit_id = EXCLUDED.unit_id").
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save profile")
	}
	return profile, nil
}

// SaveUnit inserts a unit
func (s *Store) SaveUnit(ctx context.Context, unit *Unit) (*Unit, error) {
	if unit == nil || strings.TrimSpace(unit.Number) == "" {
		return nil, goerrors.New("unit needs a number", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	if unit.ID == uuid.Nil {
		unit.ID = uuid.New()
	}
	if _, err := s.db.NewInsert().Model(unit).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save unit")
	}
	return unit, nil
}

func (s *Store) toRecord(profile *Profile) *auth.EnrichmentRecord {
	record := &auth.EnrichmentRecord{
		SubjectID:   profile.UserID,
		DisplayName: strings.TrimSpace(profile.FullName),
		ActorType:   strings.TrimSpace(profile.UserType),
		Phone:       s.normalizePhone(profile.Phone),
	}

	if profile.Unit != nil && profile.Unit.ID != uuid.Nil {
		record.Unit = &auth.UnitAssignment{
			ID:     profile.Unit.ID.String(),
			Number: profile.Unit.Number,
			Block:  profile.Unit.Block,
			Floor:  profile.Unit.Floor,
		}
	}

	return record
}

// normalizePhone formats raw as E.164. Numbers that cannot be parsed are
// returned trimmed.
func (s *Store) normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	num, err := phonenumbers.Parse(raw, s.region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		s.logger.Debug("keeping unparsable phone %q", raw)
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
