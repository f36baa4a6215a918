package authcore_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian/authcore"
)

type registerHarness struct {
	repo     authcore.RepositoryManager
	tokens   *authcore.TokenService
	handler  *authcore.RegisterAccountHandler
	notifier *recordingNotifier
	sink     *recordingSink
}

func setupRegisterHandler(t *testing.T, opts ...authcore.RegisterOption) *registerHarness {
	t.Helper()

	cfg := testConfig()
	repo := setupRepoManager(t)
	tokens, err := authcore.NewTokenService(cfg, nopLogger{})
	require.NoError(t, err)
	codec, err := authcore.NewCodec(cfg, nopLogger{})
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	sink := &recordingSink{}

	base := []authcore.RegisterOption{
		authcore.WithRegisterNotifier(notifier),
		authcore.WithRegisterActivitySink(sink),
		authcore.WithRegisterLogger(nopLogger{}),
	}

	handler := authcore.NewRegisterAccountHandler(
		repo, tokens, codec, authcore.NewHasher(cfg), cfg,
		append(base, opts...)...,
	)

	return &registerHarness{
		repo:     repo,
		tokens:   tokens,
		handler:  handler,
		notifier: notifier,
		sink:     sink,
	}
}

func TestRegisterAccount(t *testing.T) {
	h := setupRegisterHandler(t)

	var response *authcore.RegistrationResponse
	msg := validRegistration()
	msg.OnResponse = func(r *authcore.RegistrationResponse) { response = r }

	require.NoError(t, h.handler.Execute(context.Background(), msg))
	require.NotNil(t, response)

	account := response.Account
	assert.Equal(t, "a@b.com", account.Email)
	assert.Equal(t, "user1", account.Username)
	assert.Equal(t, authcore.RoleUser, account.Role)
	assert.Equal(t, authcore.AccountStatusActive, account.Status)
	assert.False(t, account.IsVerified)

	// the response is sanitized
	assert.Empty(t, account.PasswordHash)
	assert.Empty(t, account.VerificationToken)
	assert.Empty(t, account.RefreshToken)

	// both tokens verify and assert the new account as subject
	claims, err := h.tokens.VerifyAccessToken(response.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), claims.AccountID())

	refreshClaims, err := h.tokens.VerifyRefreshToken(response.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), refreshClaims.AccountID())

	// the refresh token was persisted
	stored, err := h.repo.Accounts().FindByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, response.Tokens.RefreshToken, stored.RefreshToken)
	assert.NotEmpty(t, stored.PasswordHash)
	assert.NotEqual(t, "Str0ng!Pass", stored.PasswordHash)

	// a verification token with an expiry window was minted
	assert.NotEmpty(t, stored.VerificationToken)
	require.NotNil(t, stored.VerificationExpires)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *stored.VerificationExpires, time.Minute)

	// the notification carried the same token
	sends := h.notifier.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, "a@b.com", sends[0].Email)
	assert.Equal(t, stored.VerificationToken, sends[0].Token)
	assert.True(t, response.NotificationSent)

	events := h.sink.byType(authcore.ActivityEventAccountRegistered)
	require.Len(t, events, 1)
	assert.Equal(t, account.ID.String(), events[0].AccountID)
}

func TestRegisterAccountValidation(t *testing.T) {
	h := setupRegisterHandler(t)

	msg := validRegistration()
	msg.Password = "weak"

	err := h.handler.Execute(context.Background(), msg)
	require.Error(t, err)
	assert.NotEmpty(t, authcore.ViolationsFromError(err))

	// nothing was persisted or sent
	assert.Empty(t, h.notifier.sent())
	_, lookupErr := h.repo.Accounts().FindByEmail(context.Background(), msg.Email)
	assert.Error(t, lookupErr)
}

func TestRegisterAccountUniqueness(t *testing.T) {
	h := setupRegisterHandler(t)

	require.NoError(t, h.handler.Execute(context.Background(), validRegistration()))

	t.Run("duplicate email", func(t *testing.T) {
		msg := validRegistration()
		msg.Username = "different"

		err := h.handler.Execute(context.Background(), msg)
		assert.ErrorIs(t, err, authcore.ErrEmailTaken)
	})

	t.Run("duplicate email is case insensitive", func(t *testing.T) {
		msg := validRegistration()
		msg.Email = "A@B.COM"
		msg.Username = "different"

		err := h.handler.Execute(context.Background(), msg)
		assert.ErrorIs(t, err, authcore.ErrEmailTaken)
	})

	t.Run("duplicate username", func(t *testing.T) {
		msg := validRegistration()
		msg.Email = "other@b.com"

		err := h.handler.Execute(context.Background(), msg)
		assert.ErrorIs(t, err, authcore.ErrUsernameTaken)
	})

	t.Run("username comparison preserves case", func(t *testing.T) {
		msg := validRegistration()
		msg.Email = "cased@b.com"
		msg.Username = "USER1"

		assert.NoError(t, h.handler.Execute(context.Background(), msg))
	})

	t.Run("both collide reports the email", func(t *testing.T) {
		err := h.handler.Execute(context.Background(), validRegistration())
		assert.ErrorIs(t, err, authcore.ErrEmailTaken)
	})
}

func TestRegisterAccountNotificationFailureDoesNotUnwind(t *testing.T) {
	h := setupRegisterHandler(t)
	h.notifier.sendFn = func(context.Context, string, string) error {
		return goerrors.New("smtp down", goerrors.CategoryOperation)
	}

	var response *authcore.RegistrationResponse
	msg := validRegistration()
	msg.OnResponse = func(r *authcore.RegistrationResponse) { response = r }

	// the failure is surfaced, after the response callback fired
	err := h.handler.Execute(context.Background(), msg)
	require.Error(t, err)
	require.NotNil(t, response)
	assert.False(t, response.NotificationSent)
	assert.NotNil(t, response.Account)

	// the account exists despite the delivery failure
	_, err = h.repo.Accounts().FindByEmail(context.Background(), "a@b.com")
	assert.NoError(t, err)
}

func TestRegisterAccountWithoutNotifier(t *testing.T) {
	cfg := testConfig()
	repo := setupRepoManager(t)
	tokens, err := authcore.NewTokenService(cfg, nopLogger{})
	require.NoError(t, err)
	codec, err := authcore.NewCodec(cfg, nopLogger{})
	require.NoError(t, err)

	handler := authcore.NewRegisterAccountHandler(
		repo, tokens, codec, authcore.NewHasher(cfg), cfg,
		authcore.WithRegisterLogger(nopLogger{}),
	)

	var response *authcore.RegistrationResponse
	msg := validRegistration()
	msg.OnResponse = func(r *authcore.RegistrationResponse) { response = r }

	require.NoError(t, handler.Execute(context.Background(), msg))
	require.NotNil(t, response)
	assert.False(t, response.NotificationSent)
}

func TestRegisterAccountCancelledContext(t *testing.T) {
	h := setupRegisterHandler(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.handler.Execute(ctx, validRegistration())
	assert.Error(t, err)
}
