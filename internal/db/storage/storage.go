// Package storage declares the contract every user storage backend satisfies.
package storage

import (
	"context"

	"github.com/patric-chuzhbe/sitegate/internal/user"
)

// Storage persists user records.
//
// Lookups of a missing user return models.ErrUserNotFound and inserting a
// second user with an existing email returns models.ErrUserExists.
// Implementations must store optional fields exactly as given: a nil pointer
// stays nil and a pointer to an empty string stays an empty string.
type Storage interface {
	CreateUser(ctx context.Context, usr *user.User) error

	GetUserByID(ctx context.Context, userID string) (*user.User, error)

	GetUserByEmail(ctx context.Context, email string) (*user.User, error)

	ListUsers(ctx context.Context) ([]user.User, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error

	Close() error
}
