package authcore

import "strings"

// AccountStatus tracks an account's standing in the lifecycle.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusInactive  AccountStatus = "inactive"
	AccountStatusSuspended AccountStatus = "suspended"
)

// ParseStatus normalizes a stored status string. Empty values are treated as
// active, matching rows written before the column existed.
func ParseStatus(status string) AccountStatus {
	s := AccountStatus(strings.ToLower(strings.TrimSpace(status)))
	switch s {
	case AccountStatusActive, AccountStatusInactive, AccountStatusSuspended:
		return s
	}
	return AccountStatusActive
}

// CanAuthenticate reports whether an account in this status may hold a
// session.
func (s AccountStatus) CanAuthenticate() bool {
	return ParseStatus(string(s)) == AccountStatusActive
}

// statusAuthError maps a non-active status to the error the caller should
// see. Both are policy blocks and surface as forbidden, distinct from an
// authentication failure.
func statusAuthError(status AccountStatus) error {
	switch ParseStatus(string(status)) {
	case AccountStatusSuspended:
		return ErrAccountSuspended
	case AccountStatusInactive:
		return ErrAccountInactive
	}
	return nil
}
