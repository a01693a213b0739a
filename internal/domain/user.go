package domain

import "time"

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusDisabled UserStatus = "DISABLED"
)

// RoleCode is a role assigned to a user in the directory.
type RoleCode string

const (
	RoleCustomer       RoleCode = "CUSTOMER"
	RoleCareStaff      RoleCode = "CARE_STAFF"
	RoleTechnicalStaff RoleCode = "TECHNICAL_STAFF"
	RoleAdmin          RoleCode = "ADMIN"
)

// User is a directory entry for customers, support staff and administrators.
type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	Status        UserStatus
	Roles         []RoleCode
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsActive reports whether the account may act.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// Capabilities resolves the user's role codes.
func (u *User) Capabilities() CapabilitySet {
	if u == nil {
		return CapabilitySet(0)
	}
	return CapabilitiesFromRoles(u.Roles)
}

// IsActiveCareStaff reports whether the user can be handed support work.
func (u *User) IsActiveCareStaff() bool {
	return u.IsActive() && u.Capabilities().Has(CapabilityCareStaff)
}
