package authcore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian/authcore"
)

// TestFullAccountLifecycle walks one account through the whole flow:
// register, verify email, authenticate requests, refresh the session,
// survive a suspension round trip.
func TestFullAccountLifecycle(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	notifier := &recordingNotifier{}
	sink := &recordingSink{}

	db := setupTestDB(t)
	// repository-driven suspend/reinstate publish through the state machine,
	// so the sink has to be wired in here as well
	repo := authcore.NewRepositoryManager(db,
		authcore.WithAccountsStateMachineOptions(
			authcore.WithStateMachineActivitySink(sink),
		),
	)
	repo.MustValidate()

	tokens, err := authcore.NewTokenService(cfg, nopLogger{})
	require.NoError(t, err)
	codec, err := authcore.NewCodec(cfg, nopLogger{})
	require.NoError(t, err)
	hasher := authcore.NewHasher(cfg)

	register := authcore.NewRegisterAccountHandler(
		repo, tokens, codec, hasher, cfg,
		authcore.WithRegisterNotifier(notifier),
		authcore.WithRegisterActivitySink(sink),
		authcore.WithRegisterLogger(nopLogger{}),
	)
	verify := authcore.NewVerifyEmailHandler(repo,
		authcore.WithVerifyActivitySink(sink),
		authcore.WithVerifyLogger(nopLogger{}),
	)
	auther := authcore.NewAuther(repo, tokens, hasher).
		WithLogger(nopLogger{}).
		WithActivitySink(sink)
	guard := authcore.NewGuard(tokens, repo).
		WithLogger(nopLogger{}).
		WithActivitySink(sink)

	ctx := context.Background()

	// register
	var registered *authcore.RegistrationResponse
	msg := validRegistration()
	msg.OnResponse = func(r *authcore.RegistrationResponse) { registered = r }
	require.NoError(t, register.Execute(ctx, msg))
	require.NotNil(t, registered)
	require.True(t, registered.NotificationSent)

	stored, err := repo.Accounts().FindByID(ctx, registered.Account.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsVerified)
	require.NotNil(t, stored.VerificationExpires)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *stored.VerificationExpires, time.Minute)

	// the fresh access token already authenticates requests
	current, err := guard.Authenticate(ctx, "Bearer "+registered.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.Account.ID, current.ID)
	assert.False(t, current.IsVerified)

	// verify the email with the delivered token
	sends := notifier.sent()
	require.Len(t, sends, 1)
	require.NoError(t, verify.Execute(ctx, authcore.VerifyEmailMessage{Token: sends[0].Token}))

	current, err = guard.Authenticate(ctx, "Bearer "+registered.Tokens.AccessToken)
	require.NoError(t, err)
	assert.True(t, current.IsVerified)

	// log in again and refresh the session
	_, pair, err := auther.Login(ctx, "a@b.com", "Str0ng!Pass")
	require.NoError(t, err)
	fresh, err := auther.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	current, err = guard.Authenticate(ctx, "Bearer "+fresh.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.Account.ID, current.ID)

	// suspension blocks both the guard and new logins
	stored, err = repo.Accounts().FindByID(ctx, registered.Account.ID)
	require.NoError(t, err)
	_, err = repo.Accounts().Suspend(ctx, authcore.ActorRef{ID: "admin-1", Type: "admin"}, stored,
		authcore.WithTransitionReason("manual review"))
	require.NoError(t, err)

	_, err = guard.Authenticate(ctx, "Bearer "+fresh.AccessToken)
	assert.ErrorIs(t, err, authcore.ErrAccountSuspended)
	_, _, err = auther.Login(ctx, "a@b.com", "Str0ng!Pass")
	assert.ErrorIs(t, err, authcore.ErrAccountSuspended)

	// reinstatement restores access
	_, err = repo.Accounts().Reinstate(ctx, authcore.ActorRef{ID: "admin-1", Type: "admin"}, stored)
	require.NoError(t, err)

	_, err = guard.Authenticate(ctx, "Bearer "+fresh.AccessToken)
	assert.NoError(t, err)

	// the audit trail covers the journey
	assert.NotEmpty(t, sink.byType(authcore.ActivityEventAccountRegistered))
	assert.NotEmpty(t, sink.byType(authcore.ActivityEventAccountVerified))
	assert.NotEmpty(t, sink.byType(authcore.ActivityEventLoginSuccess))
	assert.NotEmpty(t, sink.byType(authcore.ActivityEventTokenRefreshed))
	assert.Len(t, sink.byType(authcore.ActivityEventAccountStatusChanged), 2)
}
