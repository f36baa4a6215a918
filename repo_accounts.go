package authcore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var MarkAccountVerifiedSQL = `UPDATE "accounts" AS "a"
SET
	"is_verified" = TRUE,
	"verification_token" = NULL,
	"verification_expires" = NULL
WHERE
	"a"."deleted_at" IS NULL
AND (
	"a"."id" = ?
) RETURNING *;`

var StoreRefreshTokenSQL = `UPDATE "accounts" AS "a"
SET
	"refresh_token" = ?
WHERE
	"a"."deleted_at" IS NULL
AND (
	"a"."id" = ?
) RETURNING *;`

var UpdateAccountStatusSQL = `UPDATE "accounts" AS "a"
SET
	"status" = ?,
	"suspended_at" = ?
WHERE
	"a"."deleted_at" IS NULL
AND (
	"a"."id" = ?
) RETURNING *;`

// Accounts is the persistence surface for account records.
type Accounts interface {
	repository.Repository[*Account]

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)

	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByEmailOrUsername(ctx context.Context, email, username string) (*Account, error)
	FindByVerificationToken(ctx context.Context, token string) (*Account, error)

	StoreRefreshToken(ctx context.Context, id uuid.UUID, refreshToken string) error
	StoreRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, refreshToken string) error
	TrackLogin(ctx context.Context, account *Account) error
	TrackLoginTx(ctx context.Context, tx bun.IDB, account *Account) error
	MarkVerified(ctx context.Context, id uuid.UUID) error
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	UpdateStatus(ctx context.Context, id uuid.UUID, status AccountStatus, opts ...StatusUpdateOption) (*Account, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status AccountStatus, opts ...StatusUpdateOption) (*Account, error)
	Suspend(ctx context.Context, actor ActorRef, account *Account, opts ...TransitionOption) (*Account, error)
	Reinstate(ctx context.Context, actor ActorRef, account *Account, opts ...TransitionOption) (*Account, error)
}

type accounts struct {
	repository.Repository[*Account]
	db                  *bun.DB
	stateMachine        AccountStateMachine
	stateMachineOptions []StateMachineOption
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

type AccountsOption func(*accounts)

func NewAccountsRepository(db *bun.DB, opts ...AccountsOption) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoAccounts := &accounts{
		Repository: repo,
		db:         db,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(repoAccounts)
		}
	}

	return repoAccounts
}

func WithAccountsStateMachineOptions(options ...StateMachineOption) AccountsOption {
	return func(a *accounts) {
		if len(options) == 0 {
			return
		}
		a.stateMachineOptions = append(a.stateMachineOptions, options...)
		a.stateMachine = nil
	}
}

func WithAccountsStateMachine(sm AccountStateMachine) AccountsOption {
	return func(a *accounts) {
		a.stateMachine = sm
	}
}

func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	return a.CreateTx(ctx, tx, account)
}

func (a *accounts) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *accounts) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return a.findOne(ctx, "id", id.String())
}

// FindByEmail matches case-insensitively; email is stored lowercased.
func (a *accounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return a.findOne(ctx, "email", normalizeEmail(email))
}

// FindByEmailOrUsername looks up by email before username, so when both
// values collide with different existing rows the email match wins. Callers
// report the conflict on whichever column matched.
func (a *accounts) FindByEmailOrUsername(ctx context.Context, email, username string) (*Account, error) {
	account, err := a.FindByEmail(ctx, email)
	if err == nil {
		return account, nil
	}
	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	return a.findOne(ctx, "username", strings.TrimSpace(username))
}

func (a *accounts) FindByVerificationToken(ctx context.Context, token string) (*Account, error) {
	return a.findOne(ctx, "verification_token", token)
}

func (a *accounts) findOne(ctx context.Context, column, value string) (*Account, error) {
	if value == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"column": column})
	}

	record := &Account{}
	err := a.db.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"column": column, "value": value})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) StoreRefreshToken(ctx context.Context, id uuid.UUID, refreshToken string) error {
	return a.StoreRefreshTokenTx(ctx, a.db, id, refreshToken)
}

func (a *accounts) StoreRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, refreshToken string) error {
	res, err := a.Repository.RawTx(ctx, tx, StoreRefreshTokenSQL, refreshToken, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *accounts) TrackLogin(ctx context.Context, account *Account) error {
	return a.TrackLoginTx(ctx, a.db, account)
}

func (a *accounts) TrackLoginTx(ctx context.Context, tx bun.IDB, account *Account) error {
	loggedInAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "accounts" AS "a"
		SET
			"last_login" = ?
		WHERE
			("a".id = ?)
			AND "a"."deleted_at" IS NULL;
	`, loggedInAt, account.ID).Exec(ctx)

	if err == nil {
		account.LastLogin = &loggedInAt
	}

	return err
}

func (a *accounts) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return a.MarkVerifiedTx(ctx, a.db, id)
}

func (a *accounts) MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := a.Repository.RawTx(ctx, tx, MarkAccountVerifiedSQL, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *accounts) UpdateStatus(ctx context.Context, id uuid.UUID, status AccountStatus, opts ...StatusUpdateOption) (*Account, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status, opts...)
}

// UpdateStatusTx writes suspended_at on every status change; a nil pointer
// clears the column.
func (a *accounts) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status AccountStatus, opts ...StatusUpdateOption) (*Account, error) {
	record := &Account{
		ID:     id,
		Status: status,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(record)
		}
	}

	res, err := a.Repository.RawTx(ctx, tx, UpdateAccountStatusSQL, string(record.Status), record.SuspendedAt, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return res[0], nil
}

func (a *accounts) Suspend(ctx context.Context, actor ActorRef, account *Account, opts ...TransitionOption) (*Account, error) {
	return a.lifecycleMachine().Transition(ctx, actor, account, AccountStatusSuspended, opts...)
}

func (a *accounts) Reinstate(ctx context.Context, actor ActorRef, account *Account, opts ...TransitionOption) (*Account, error) {
	return a.lifecycleMachine().Transition(ctx, actor, account, AccountStatusActive, opts...)
}

// StatusUpdateOption allows callers to mutate the account record before persisting status changes.
type StatusUpdateOption func(*Account)

// WithSuspendedAt sets the SuspendedAt timestamp during a status transition.
func WithSuspendedAt(at *time.Time) StatusUpdateOption {
	return func(a *Account) {
		a.SuspendedAt = at
	}
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.EnsureRole()
	record.EnsureStatus()
	record.Email = normalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func (a *accounts) lifecycleMachine() AccountStateMachine {
	if a.stateMachine == nil {
		a.stateMachine = NewAccountStateMachine(a, a.stateMachineOptions...)
	}
	return a.stateMachine
}
