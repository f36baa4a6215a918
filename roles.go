package authcore

import "strings"

// AccountRole classifies what an account is allowed to do.
type AccountRole string

const (
	RoleUser  AccountRole = "user"
	RoleAdmin AccountRole = "admin"
)

var roleRank = map[AccountRole]int{
	RoleUser:  1,
	RoleAdmin: 2,
}

// ParseRole normalizes a stored role string. Unknown values degrade to
// RoleUser rather than erroring so a bad row cannot lock anyone out.
func ParseRole(role string) AccountRole {
	r := AccountRole(strings.ToLower(strings.TrimSpace(role)))
	if _, ok := roleRank[r]; ok {
		return r
	}
	return RoleUser
}

// IsValid reports whether the role is one we recognize.
func (r AccountRole) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r carries at least the privileges of required.
func (r AccountRole) AtLeast(required AccountRole) bool {
	return roleRank[ParseRole(string(r))] >= roleRank[ParseRole(string(required))]
}
