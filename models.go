package authcore

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the persisted identity record. Email is stored lowercased and
// compared case-insensitively; Username keeps the caller's casing and is
// matched exactly.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID        uuid.UUID `bun:"id,pk,notnull" json:"id"`
	Email     string    `bun:"email,notnull,unique" json:"email"`
	Username  string    `bun:"username,notnull,unique" json:"username"`
	FirstName string    `bun:"first_name" json:"first_name"`
	LastName  string    `bun:"last_name" json:"last_name"`

	PasswordHash string `bun:"password_hash" json:"-"`
	Provider     string `bun:"provider" json:"provider,omitempty"`
	ProviderID   string `bun:"provider_id" json:"-"`

	Role   AccountRole   `bun:"role,notnull" json:"role"`
	Status AccountStatus `bun:"status,notnull" json:"status"`

	IsVerified          bool       `bun:"is_verified,notnull,default:false" json:"is_verified"`
	VerificationToken   string     `bun:"verification_token" json:"-"`
	VerificationExpires *time.Time `bun:"verification_expires,nullzero" json:"-"`

	RefreshToken string     `bun:"refresh_token" json:"-"`
	LastLogin    *time.Time `bun:"last_login,nullzero" json:"last_login,omitempty"`

	// Reserved for the password reset flow; no operation in this module
	// populates them yet.
	ResetPasswordToken   string     `bun:"reset_password_token" json:"-"`
	ResetPasswordExpires *time.Time `bun:"reset_password_expires,nullzero" json:"-"`

	DisplayName string `bun:"display_name" json:"display_name"`
	Bio         string `bun:"bio" json:"bio"`
	AvatarURL   string `bun:"avatar_url" json:"avatar_url"`

	Online     bool       `bun:"online,notnull,default:false" json:"online"`
	LastSeenAt *time.Time `bun:"last_seen_at,nullzero" json:"last_seen_at,omitempty"`

	PushEnabled         bool `bun:"push_enabled,notnull,default:true" json:"push_enabled"`
	EmailEnabled        bool `bun:"email_enabled,notnull,default:true" json:"email_enabled"`
	LastSeenVisible     bool `bun:"last_seen_visible,notnull,default:true" json:"last_seen_visible"`
	ProfilePhotoVisible bool `bun:"profile_photo_visible,notnull,default:true" json:"profile_photo_visible"`

	SuspendedAt *time.Time `bun:"suspended_at,nullzero" json:"suspended_at,omitempty"`

	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// NeedsPasswordSetup reports whether the account was created through an
// external provider and has no local password to compare against.
func (a *Account) NeedsPasswordSetup() bool {
	return a.PasswordHash == "" && a.Provider != ""
}

// Sanitized returns a copy of the account with credential material removed.
// The copy is what gets attached to request contexts and serialized back to
// callers.
func (a *Account) Sanitized() *Account {
	clone := *a
	clone.PasswordHash = ""
	clone.VerificationToken = ""
	clone.VerificationExpires = nil
	clone.RefreshToken = ""
	clone.ResetPasswordToken = ""
	clone.ResetPasswordExpires = nil
	return &clone
}

// EnsureStatus backfills the status column for rows created before the
// column existed.
func (a *Account) EnsureStatus() {
	if a.Status == "" {
		a.Status = AccountStatusActive
	}
}

// EnsureRole backfills the role column.
func (a *Account) EnsureRole() {
	if a.Role == "" {
		a.Role = RoleUser
	}
}

// NewAccount builds an account from validated registration input, applying
// the profile and settings defaults every fresh registration gets.
func NewAccount(input RegistrationInput) *Account {
	email := normalizeEmail(input.Email)
	username := strings.TrimSpace(input.Username)

	id, err := hashid.NewUUID(email)
	if err != nil {
		id = uuid.New()
	}

	return &Account{
		ID:        id,
		Email:     email,
		Username:  username,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Role:      RoleUser,
		Status:    AccountStatusActive,

		DisplayName: username,
		Bio:         "",
		AvatarURL:   defaultAvatarURL(username),

		Online: false,

		PushEnabled:         true,
		EmailEnabled:        true,
		LastSeenVisible:     true,
		ProfilePhotoVisible: true,
	}
}

func defaultAvatarURL(seed string) string {
	return fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=%s", seed)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
