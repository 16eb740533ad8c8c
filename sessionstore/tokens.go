package sessionstore

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-condo-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultIssuer     = "condo-session"
)

// Claims is the JWT payload. The two metadata bundles are what the
// identity resolver reads.
type Claims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email,omitempty"`
	TokenType    string         `json:"token_type"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
}

// TokenService issues and validates HS256 session tokens
type TokenService struct {
	signingKey []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenOption customizes a TokenService
type TokenOption func(*TokenService)

// WithIssuer sets the iss claim
func WithIssuer(issuer string) TokenOption {
	return func(ts *TokenService) {
		if issuer != "" {
			ts.issuer = issuer
		}
	}
}

// WithTokenTTL sets access and refresh token lifetimes
func WithTokenTTL(access, refresh time.Duration) TokenOption {
	return func(ts *TokenService) {
		if access > 0 {
			ts.accessTTL = access
		}
		if refresh > 0 {
			ts.refreshTTL = refresh
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) TokenOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

func NewTokenService(signingKey []byte, opts ...TokenOption) *TokenService {
	ts := &TokenService{
		signingKey: signingKey,
		issuer:     DefaultIssuer,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

// Issue creates an access and refresh token pair for account
func (ts *TokenService) Issue(account *Account) (*auth.Session, error) {
	if account == nil || account.ID == uuid.Nil {
		return nil, goerrors.New("account must have an id", goerrors.CategoryInternal)
	}

	now := ts.now()
	appMeta := account.AppMetadata()
	userMeta := account.UserMetadata()

	access, err := ts.sign(ts.claims(account, TokenTypeAccess, now, ts.accessTTL, appMeta, userMeta))
	if err != nil {
		return nil, err
	}

	refresh, err := ts.sign(ts.claims(account, TokenTypeRefresh, now, ts.refreshTTL, nil, nil))
	if err != nil {
		return nil, err
	}

	return &auth.Session{
		UserID:       account.ID.String(),
		Email:        account.Email,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(ts.accessTTL),
		UserMetadata: userMeta,
		AppMetadata:  appMeta,
	}, nil
}

// Parse validates token and checks it is of tokenType
func (ts *TokenService) Parse(token, tokenType string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	},
		jwt.WithIssuer(ts.issuer),
		jwt.WithTimeFunc(ts.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}

	if claims.TokenType != tokenType {
		return nil, ErrWrongTokenType
	}

	return claims, nil
}

// SessionFromToken rebuilds a session from a valid access token
func (ts *TokenService) SessionFromToken(access, refresh string) (*auth.Session, error) {
	claims, err := ts.Parse(access, TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	session := &auth.Session{
		UserID:       claims.Subject,
		Email:        claims.Email,
		AccessToken:  access,
		RefreshToken: refresh,
		UserMetadata: claims.UserMetadata,
		AppMetadata:  claims.AppMetadata,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

func (ts *TokenService) claims(account *Account, tokenType string, now time.Time, ttl time.Duration, appMeta, userMeta map[string]any) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:        account.Email,
		TokenType:    tokenType,
		UserMetadata: userMeta,
		AppMetadata:  appMeta,
	}
}

func (ts *TokenService) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}
	return signed, nil
}
