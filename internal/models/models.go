package models

import (
	"errors"

	"github.com/patric-chuzhbe/sitegate/internal/user"
)

type CreateUserRequest struct {
	LegacyID    *string   `json:"_id,omitempty"`
	Name        string    `json:"name" validate:"required"`
	Email       string    `json:"email" validate:"required,email"`
	Password    string    `json:"password" validate:"required,min=8"`
	Role        user.Role `json:"role" validate:"required"`
	Designation *string   `json:"designation,omitempty"`
	Photo       *string   `json:"photo,omitempty"`
	Signature   *string   `json:"signature,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type InternalStatsResponse struct {
	Users int64 `json:"users"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeMongo
	StorageTypeFile
	StorageTypeMemory
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)
