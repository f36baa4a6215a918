package authcore

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenPair bundles the access and refresh tokens issued for a single
// authentication event.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenService mints and verifies signed, time-bound tokens. Access and
// refresh tokens are signed with separate secrets, not just separate TTLs, so
// compromise of one signing secret cannot forge the other kind and a refresh
// token can never be replayed as an access token.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	logger        Logger
	now           func() time.Time
}

// NewTokenService creates a TokenService from the process configuration. It
// fails fast when either signing secret is absent or the two are identical.
func NewTokenService(cfg Config, logger Logger) (*TokenService, error) {
	if logger == nil {
		logger = defLogger{}
	}

	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return nil, errors.New("both token signing secrets are required", errors.CategoryBadInput)
	}

	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, errors.New("access and refresh token secrets must differ", errors.CategoryBadInput)
	}

	return &TokenService{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.accessTTL(),
		refreshTTL:    cfg.refreshTTL(),
		logger:        logger,
		now:           time.Now,
	}, nil
}

// WithClock injects a custom clock (useful for tests).
func (ts *TokenService) WithClock(clock func() time.Time) *TokenService {
	if clock != nil {
		ts.now = clock
	}
	return ts
}

// IssueAccessToken signs a short-lived token asserting accountID.
func (ts *TokenService) IssueAccessToken(accountID string) (string, error) {
	return ts.issue(accountID, ts.accessSecret, ts.accessTTL)
}

// IssueRefreshToken signs a long-lived token asserting accountID.
func (ts *TokenService) IssueRefreshToken(accountID string) (string, error) {
	return ts.issue(accountID, ts.refreshSecret, ts.refreshTTL)
}

// IssueTokenPair mints an access and refresh token together. If either mint
// fails the whole call fails; no partial pair is returned.
func (ts *TokenService) IssueTokenPair(accountID string) (TokenPair, error) {
	access, err := ts.IssueAccessToken(accountID)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := ts.IssueRefreshToken(accountID)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccessToken parses and validates an access token, returning its
// claims. Failure kinds are distinguishable: ErrTokenExpired when the exp
// claim has passed, ErrTokenMalformed for signature or structure failures,
// and an internal error for anything else.
func (ts *TokenService) VerifyAccessToken(token string) (*TokenClaims, error) {
	return ts.verify(token, ts.accessSecret)
}

// VerifyRefreshToken parses and validates a refresh token.
func (ts *TokenService) VerifyRefreshToken(token string) (*TokenClaims, error) {
	return ts.verify(token, ts.refreshSecret)
}

func (ts *TokenService) issue(accountID string, secret []byte, ttl time.Duration) (string, error) {
	if accountID == "" {
		return "", errors.New("account id is required", errors.CategoryBadInput)
	}

	now := ts.now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(secret)
	if err != nil {
		ts.logger.Error("TokenService failed to sign token", "error", err)
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}

func (ts *TokenService) verify(tokenString string, secret []byte) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService verify encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(ts.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService verify could not decode claims")
	return nil, errors.New("unable to decode token claims", errors.CategoryInternal)
}

// ExtractBearerToken parses an "Authorization: Bearer <token>" header value.
// It returns "" when the header is absent or malformed: no credential was
// presented, which is not the same as an invalid one.
func ExtractBearerToken(headerValue string) string {
	const scheme = "Bearer "
	if !strings.HasPrefix(headerValue, scheme) {
		return ""
	}

	token := strings.TrimSpace(headerValue[len(scheme):])
	if token == "" || strings.ContainsRune(token, ' ') {
		return ""
	}
	return token
}
