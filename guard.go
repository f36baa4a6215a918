package authcore

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// DefaultContextKey is where the middleware stores the sanitized account in
// the router context.
const DefaultContextKey = "account"

// Guard authenticates incoming requests: it extracts the bearer token,
// verifies it, loads the subject account, checks its standing, and attaches
// the sanitized record to the request context.
type Guard struct {
	tokens       *TokenService
	repo         RepositoryManager
	logger       Logger
	activitySink ActivitySink
	contextKey   string
}

// NewGuard returns a Guard backed by the given token service and repository.
func NewGuard(tokens *TokenService, repo RepositoryManager) *Guard {
	return &Guard{
		tokens:       tokens,
		repo:         repo,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		contextKey:   DefaultContextKey,
	}
}

func (g *Guard) WithLogger(logger Logger) *Guard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// WithActivitySink configures an ActivitySink for emitting rejection events.
func (g *Guard) WithActivitySink(sink ActivitySink) *Guard {
	g.activitySink = normalizeActivitySink(sink)
	return g
}

// WithContextKey overrides the router locals key the account is stored under.
func (g *Guard) WithContextKey(key string) *Guard {
	if key != "" {
		g.contextKey = key
	}
	return g
}

// Authenticate runs the full check against a raw Authorization header value
// and returns the sanitized account on success.
//
// A missing header, an unknown subject, and a deleted account all come back
// as ErrUnauthenticated. A suspended account comes back as
// ErrAccountSuspended so callers can render 403 instead of 401.
func (g *Guard) Authenticate(ctx context.Context, authorizationHeader string) (*Account, error) {
	token := ExtractBearerToken(authorizationHeader)
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := g.tokens.VerifyAccessToken(token)
	if err != nil {
		if IsTokenExpiredError(err) {
			g.logger.Info("Guard rejected expired token")
			g.emitRejection(ctx, "", TextCodeTokenExpired)
			return nil, ErrTokenExpired
		}

		g.logger.Warn("Guard rejected invalid token", "error", err)
		g.emitRejection(ctx, "", TextCodeTokenMalformed)
		return nil, ErrTokenMalformed
	}

	id, err := uuid.Parse(claims.AccountID())
	if err != nil {
		g.logger.Warn("Guard token subject is not a valid id", "subject", claims.AccountID())
		return nil, ErrUnauthenticated
	}

	account, err := g.repo.Accounts().FindByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			g.emitRejection(ctx, claims.AccountID(), TextCodeUnauthenticated)
			return nil, ErrUnauthenticated
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account lookup failed")
	}

	if statusErr := statusAuthError(account.Status); statusErr != nil {
		g.logger.Warn("Guard blocked account by status",
			"account_id", account.ID.String(),
			"status", string(account.Status),
		)
		g.emitRejection(ctx, account.ID.String(), string(account.Status))
		return nil, statusErr
	}

	return account.Sanitized(), nil
}

// Middleware adapts the guard to the router. On success the sanitized
// account is stored in locals and on the request context.
func (g *Guard) Middleware() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			header := c.GetString(router.HeaderAuthorization, "")

			account, err := g.Authenticate(c.Context(), header)
			if err != nil {
				return g.rejectRequest(c, err)
			}

			c.Locals(g.contextKey, account)
			c.SetContext(WithContext(c.Context(), account))

			return c.Next()
		}
	}
}

// RequireRole returns a predicate middleware that rejects authenticated
// accounts below the required role. It must run after Middleware.
func (g *Guard) RequireRole(required AccountRole) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			account, ok := FromContext(c.Context())
			if !ok {
				return c.Status(router.StatusUnauthorized).SendString(ErrUnauthenticated.Message)
			}

			if !account.Role.AtLeast(required) {
				g.logger.Warn("Guard role check failed",
					"account_id", account.ID.String(),
					"role", string(account.Role),
					"required", string(required),
				)
				return c.JSON(router.StatusForbidden, map[string]string{
					"error": "insufficient role",
					"code":  TextCodeInsufficientRole,
				})
			}

			return c.Next()
		}
	}
}

// RequireVerified rejects accounts that have not completed email
// verification. It must run after Middleware.
func (g *Guard) RequireVerified() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			account, ok := FromContext(c.Context())
			if !ok {
				return c.Status(router.StatusUnauthorized).SendString(ErrUnauthenticated.Message)
			}

			if !account.IsVerified {
				return c.JSON(router.StatusForbidden, map[string]string{
					"error": "email not verified",
					"code":  TextCodeEmailNotVerified,
				})
			}

			return c.Next()
		}
	}
}

func (g *Guard) rejectRequest(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		g.logger.Error("Guard unexpected error", "error", err)
		return c.Status(router.StatusInternalServerError).SendString("authentication error")
	}

	g.logger.Debug("Guard rejection",
		"text_code", richErr.TextCode,
		"metadata", print.MaybePrettyJSON(richErr.Metadata),
	)

	status := router.StatusUnauthorized
	if richErr.Category == goerrors.CategoryAuthz {
		status = router.StatusForbidden
	}

	return c.JSON(status, map[string]string{
		"error": richErr.Message,
		"code":  richErr.TextCode,
	})
}

func (g *Guard) emitRejection(ctx context.Context, accountID, reason string) {
	event := ActivityEvent{
		EventType: ActivityEventTokenRejected,
		AccountID: accountID,
		Metadata:  map[string]any{"reason": reason},
	}
	if err := normalizeActivitySink(g.activitySink).Record(ctx, event); err != nil {
		g.logger.Warn("guard activity sink error: %v", err)
	}
}
