package authcore

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// Auther authenticates credentials and manages refresh token rotation.
type Auther struct {
	repo         RepositoryManager
	tokens       *TokenService
	hasher       SecretHasher
	logger       Logger
	activitySink ActivitySink
}

// NewAuther returns a new Auther.
func NewAuther(repo RepositoryManager, tokens *TokenService, hasher SecretHasher) *Auther {
	return &Auther{
		repo:         repo,
		tokens:       tokens,
		hasher:       hasher,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// Login verifies an email/password pair and mints a fresh token pair. A
// missing account and a wrong password both come back as
// ErrInvalidCredentials; callers cannot probe which emails exist.
func (s *Auther) Login(ctx context.Context, email, password string) (*Account, TokenPair, error) {
	account, err := s.repo.Accounts().FindByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.emitAuthEvent(ctx, ActivityEventLoginFailure, "", map[string]any{
				"identifier": email,
				"error":      ErrInvalidCredentials.Error(),
			})
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "login lookup failed")
	}

	if statusErr := statusAuthError(account.Status); statusErr != nil {
		s.logger.Warn("Login blocked due to account status", "status", account.Status)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, account.ID.String(), map[string]any{
			"identifier": email,
			"status":     string(account.Status),
		})
		return nil, TokenPair{}, statusErr
	}

	if account.NeedsPasswordSetup() {
		return nil, TokenPair{}, ErrPasswordSetupRequired
	}

	match, err := s.hasher.ComparePasswordAndHash(password, account.PasswordHash)
	if err != nil {
		s.logger.Error("Login password comparison error", "error", err)
		return nil, TokenPair{}, err
	}
	if !match {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, account.ID.String(), map[string]any{
			"identifier": email,
			"error":      ErrInvalidCredentials.Error(),
		})
		return nil, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.rotateTokens(ctx, account.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	account.RefreshToken = pair.RefreshToken

	if err := s.repo.Accounts().TrackLogin(ctx, account); err != nil {
		s.logger.Warn("Login could not track login time", "error", err)
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, account.ID.String(), map[string]any{
		"identifier": email,
	})

	return account.Sanitized(), pair, nil
}

// Refresh exchanges a valid refresh token for a fresh pair. The presented
// token must both verify against the refresh secret and match the token on
// record; rotation invalidates the old one.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	id, err := uuid.Parse(claims.AccountID())
	if err != nil {
		return TokenPair{}, ErrTokenMalformed
	}

	account, err := s.repo.Accounts().FindByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return TokenPair{}, ErrUnauthenticated
		}
		return TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "refresh lookup failed")
	}

	if statusErr := statusAuthError(account.Status); statusErr != nil {
		return TokenPair{}, statusErr
	}

	// A signed-but-unrecognized refresh token means it was rotated out or
	// never stored. The holder has to authenticate again.
	if account.RefreshToken == "" || account.RefreshToken != refreshToken {
		s.emitAuthEvent(ctx, ActivityEventTokenRejected, account.ID.String(), map[string]any{
			"reason": TextCodeRefreshNotRecognized,
		})
		return TokenPair{}, ErrUnauthenticated
	}

	pair, err := s.rotateTokens(ctx, account.ID)
	if err != nil {
		return TokenPair{}, err
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefreshed, account.ID.String(), nil)

	return pair, nil
}

func (s *Auther) rotateTokens(ctx context.Context, id uuid.UUID) (TokenPair, error) {
	pair, err := s.tokens.IssueTokenPair(id.String())
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.repo.Accounts().StoreRefreshToken(ctx, id, pair.RefreshToken); err != nil {
		return TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "could not persist refresh token")
	}

	return pair, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, accountID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType: eventType,
		AccountID: accountID,
		Metadata:  metadata,
	}
	if err := normalizeActivitySink(s.activitySink).Record(ctx, event); err != nil {
		s.logger.Warn("auth activity sink error: %v", err)
	}
}
