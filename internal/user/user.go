// Package user defines the user record exchanged between the HTTP API,
// the service layer and every storage backend.
package user

import (
	validator "github.com/go-playground/validator/v10"
)

// Role is the access role of a user. It is an open string type: RoleAdmin and
// RoleSuperAdmin are the roles this service grants privileges to, other values
// are stored and returned as is.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// IsKnown reports whether the role is one of the roles the service recognizes.
func (r Role) IsKnown() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User represents a system user.
//
// Optional fields are pointers so that an absent value and an empty value stay
// distinguishable across serialization. Password holds the plain password on
// creation requests and the bcrypt hash inside storage; it is never returned by
// the API.
type User struct {
	// ID is the primary identifier of the user, meaning a UUID.
	ID string `json:"id" bson:"_id" validate:"required"`

	// LegacyID is an alternate identifier carried over from an older system.
	LegacyID *string `json:"_id,omitempty" bson:"legacy_id,omitempty"`

	Name  string `json:"name" bson:"name" validate:"required"`
	Email string `json:"email" bson:"email" validate:"required"`

	Password *string `json:"password,omitempty" bson:"password,omitempty"`

	Role Role `json:"role" bson:"role" validate:"required"`

	Designation *string `json:"designation,omitempty" bson:"designation,omitempty"`
	Photo       *string `json:"photo,omitempty" bson:"photo,omitempty"`
	Signature   *string `json:"signature,omitempty" bson:"signature,omitempty"`

	CreatedAt string `json:"createdAt" bson:"created_at" validate:"required"`
	UpdatedAt string `json:"updatedAt" bson:"updated_at" validate:"required"`
}

var structValidator = validator.New()

// Validate checks that every required field is populated.
// Optional fields are never inspected.
func (u *User) Validate() error {
	return structValidator.Struct(u)
}

// WithoutPassword returns a shallow copy of the user with Password cleared.
func (u User) WithoutPassword() User {
	u.Password = nil
	return u
}

// StringPtr returns a pointer to s. Handy for populating optional fields.
func StringPtr(s string) *string {
	return &s
}
