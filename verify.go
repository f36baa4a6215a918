package authcore

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// VerifyEmailMessage consumes a verification token sent to a new account.
type VerifyEmailMessage struct {
	Token string `json:"token"`

	OnResponse func(*Account)
}

func (e VerifyEmailMessage) Type() string { return "account.verify_email" }

// VerifyEmailHandler looks up the account holding the presented token and
// marks it verified. Tokens are single use: the mark clears the token so a
// second presentation fails the lookup.
type VerifyEmailHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

func NewVerifyEmailHandler(repo RepositoryManager, opts ...VerifyOption) *VerifyEmailHandler {
	h := &VerifyEmailHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	return h
}

// VerifyOption customizes handler construction.
type VerifyOption func(*VerifyEmailHandler)

func WithVerifyActivitySink(sink ActivitySink) VerifyOption {
	return func(h *VerifyEmailHandler) {
		h.activity = normalizeActivitySink(sink)
	}
}

func WithVerifyLogger(logger Logger) VerifyOption {
	return func(h *VerifyEmailHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithVerifyClock(clock func() time.Time) VerifyOption {
	return func(h *VerifyEmailHandler) {
		if clock != nil {
			h.now = clock
		}
	}
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	if event.Token == "" {
		return ErrVerificationInvalid
	}

	account, err := h.repo.Accounts().FindByVerificationToken(ctx, event.Token)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrVerificationInvalid
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "verification lookup failed")
	}

	if account.VerificationExpires != nil && h.now().After(*account.VerificationExpires) {
		return ErrVerificationExpired
	}

	if err := h.repo.Accounts().MarkVerified(ctx, account.ID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not mark account verified")
	}

	account.IsVerified = true
	account.VerificationToken = ""
	account.VerificationExpires = nil

	h.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventAccountVerified,
		AccountID: account.ID.String(),
		Metadata: map[string]any{
			"email": account.Email,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(account.Sanitized())
	}

	return nil
}

func (h *VerifyEmailHandler) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = h.now()
	}
	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("verify activity sink error: %v", err)
	}
}
