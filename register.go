package authcore

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// RegisterAccountMessage carries a registration request through the command
// pipeline.
type RegisterAccountMessage struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`

	OnResponse func(*RegistrationResponse)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// RegistrationResponse is what a successful registration hands back: the
// sanitized account, a fresh token pair, and whether the verification
// notification went out.
type RegistrationResponse struct {
	Account          *Account  `json:"account"`
	Tokens           TokenPair `json:"tokens"`
	NotificationSent bool      `json:"notification_sent"`
}

// RegisterAccountHandler runs the full registration sequence: validate the
// input, check uniqueness, hash the password, mint a verification token,
// persist the account with profile defaults, issue a token pair, and send
// the verification notification.
type RegisterAccountHandler struct {
	repo            RepositoryManager
	tokens          *TokenService
	codec           *Codec
	hasher          SecretHasher
	notifier        NotificationSender
	activity        ActivitySink
	logger          Logger
	verificationTTL time.Duration
	now             func() time.Time
}

// NewRegisterAccountHandler wires the handler. notifier may be nil; the
// verification notification is then skipped and reported as not sent.
func NewRegisterAccountHandler(
	repo RepositoryManager,
	tokens *TokenService,
	codec *Codec,
	hasher SecretHasher,
	cfg Config,
	opts ...RegisterOption,
) *RegisterAccountHandler {
	h := &RegisterAccountHandler{
		repo:            repo,
		tokens:          tokens,
		codec:           codec,
		hasher:          hasher,
		activity:        noopActivitySink{},
		logger:          defLogger{},
		verificationTTL: cfg.verificationTTL(),
		now:             time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	return h
}

// RegisterOption customizes handler construction.
type RegisterOption func(*RegisterAccountHandler)

func WithRegisterNotifier(notifier NotificationSender) RegisterOption {
	return func(h *RegisterAccountHandler) {
		h.notifier = notifier
	}
}

func WithRegisterActivitySink(sink ActivitySink) RegisterOption {
	return func(h *RegisterAccountHandler) {
		h.activity = normalizeActivitySink(sink)
	}
}

func WithRegisterLogger(logger Logger) RegisterOption {
	return func(h *RegisterAccountHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithRegisterClock(clock func() time.Time) RegisterOption {
	return func(h *RegisterAccountHandler) {
		if clock != nil {
			h.now = clock
		}
	}
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	input := RegistrationInput{
		Email:     event.Email,
		Password:  event.Password,
		Username:  event.Username,
		FirstName: event.FirstName,
		LastName:  event.LastName,
		Phone:     event.Phone,
	}

	if err := input.Validate(); err != nil {
		return err
	}

	if err := h.checkUniqueness(ctx, input); err != nil {
		return err
	}

	hash, err := h.hasher.HashPassword(input.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	verificationToken, err := h.codec.RandomToken(DefaultTokenBytes)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mint verification token")
	}

	account := NewAccount(input)
	account.PasswordHash = hash
	account.VerificationToken = verificationToken
	expires := h.now().Add(h.verificationTTL)
	account.VerificationExpires = &expires

	if account, err = h.repo.Accounts().Register(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
	}

	pair, err := h.tokens.IssueTokenPair(account.ID.String())
	if err != nil {
		return err
	}

	// The refresh token is persisted in a second write after the insert.
	// A crash between the two leaves a valid account whose refresh token
	// is simply not honored until the next login.
	if err := h.repo.Accounts().StoreRefreshToken(ctx, account.ID, pair.RefreshToken); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not persist refresh token")
	}
	account.RefreshToken = pair.RefreshToken

	sent, notifyErr := h.sendVerification(ctx, account.Email, verificationToken)

	h.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventAccountRegistered,
		AccountID: account.ID.String(),
		Metadata: map[string]any{
			"email":             account.Email,
			"username":          account.Username,
			"notification_sent": sent,
		},
	})

	// The response fires before any notification error is returned; the
	// account is created and usable either way.
	if event.OnResponse != nil {
		event.OnResponse(&RegistrationResponse{
			Account:          account.Sanitized(),
			Tokens:           pair,
			NotificationSent: sent,
		})
	}

	return notifyErr
}

// checkUniqueness reports a conflict when either the email or the username
// is already taken. Email is checked first, so when both collide with
// different rows the conflict is reported against the email.
func (h *RegisterAccountHandler) checkUniqueness(ctx context.Context, input RegistrationInput) error {
	existing, err := h.repo.Accounts().FindByEmailOrUsername(ctx, input.Email, input.Username)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "uniqueness check failed")
	}

	if existing.Email == normalizeEmail(input.Email) {
		return ErrEmailTaken
	}
	return ErrUsernameTaken
}

// sendVerification never rolls back a registration. A delivery failure is
// logged and returned so the caller knows the token did not go out.
func (h *RegisterAccountHandler) sendVerification(ctx context.Context, email, token string) (bool, error) {
	if h.notifier == nil {
		return false, nil
	}

	if err := h.notifier.SendVerification(ctx, email, token); err != nil {
		h.logger.Warn("verification notification failed", "email", email, "error", err)
		return false, goerrors.Wrap(err, goerrors.CategoryOperation, "verification notification failed").
			WithTextCode(TextCodeNotificationFailed)
	}
	return true, nil
}

func (h *RegisterAccountHandler) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = h.now()
	}
	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("register activity sink error: %v", err)
	}
}
