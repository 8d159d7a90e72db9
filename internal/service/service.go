package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/thoas/go-funk"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/sitegate/internal/models"
	"github.com/patric-chuzhbe/sitegate/internal/user"
)

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User) error
	GetUserByID(ctx context.Context, userID string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	GetNumberOfUsers(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	userKeeper
	pinger
}

type tokenIssuer interface {
	BuildJWTString(userID string, role user.Role) (string, error)
}

var (
	// ErrInvalidRequest wraps every validation failure of an incoming request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrForbiddenRole is returned when the actor may not assign the requested role.
	ErrForbiddenRole = errors.New("the role cannot be assigned by the current user")
)

type Service struct {
	db           storage
	tokens       tokenIssuer
	validate     *validator.Validate
	passwordCost int
	now          func() time.Time
}

// Option customizes New.
type Option func(*Service)

// WithPasswordCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithPasswordCost(cost int) Option {
	return func(s *Service) {
		s.passwordCost = cost
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(db storage, tokens tokenIssuer, opts ...Option) *Service {
	s := &Service{
		db:           db,
		tokens:       tokens,
		validate:     validator.New(),
		passwordCost: bcrypt.DefaultCost,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateUser validates the request, hashes the password and stores a new user.
// Only a superadmin may create another superadmin. The returned user carries
// no password.
func (s *Service) CreateUser(
	ctx context.Context,
	request models.CreateUserRequest,
	actorRole user.Role,
) (*user.User, error) {
	request.Email = normalizeEmail(request.Email)
	request.Name = strings.TrimSpace(request.Name)

	if err := s.validate.Struct(request); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if request.Role == user.RoleSuperAdmin && actorRole != user.RoleSuperAdmin {
		return nil, ErrForbiddenRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(request.Password), s.passwordCost)
	if err != nil {
		return nil, err
	}

	timestamp := s.now().UTC().Format(time.RFC3339)
	usr := &user.User{
		ID:          uuid.New().String(),
		LegacyID:    request.LegacyID,
		Name:        request.Name,
		Email:       request.Email,
		Password:    user.StringPtr(string(hash)),
		Role:        request.Role,
		Designation: request.Designation,
		Photo:       request.Photo,
		Signature:   request.Signature,
		CreatedAt:   timestamp,
		UpdatedAt:   timestamp,
	}
	if err := usr.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if err := s.db.CreateUser(ctx, usr); err != nil {
		return nil, err
	}

	result := usr.WithoutPassword()

	return &result, nil
}

// GetUser returns the user without its password.
func (s *Service) GetUser(ctx context.Context, userID string) (*user.User, error) {
	usr, err := s.db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := usr.WithoutPassword()

	return &result, nil
}

// ListUsers returns every user without passwords.
func (s *Service) ListUsers(ctx context.Context) ([]user.User, error) {
	users, err := s.db.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	return funk.Map(users, func(usr user.User) user.User {
		return usr.WithoutPassword()
	}).([]user.User), nil
}

// Login checks the credentials and returns a signed token.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, request models.LoginRequest) (string, error) {
	if err := s.validate.Struct(request); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	usr, err := s.db.GetUserByEmail(ctx, normalizeEmail(request.Email))
	if errors.Is(err, models.ErrUserNotFound) {
		return "", models.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if usr.Password == nil {
		return "", models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*usr.Password), []byte(request.Password)); err != nil {
		return "", models.ErrInvalidCredentials
	}

	return s.tokens.BuildJWTString(usr.ID, usr.Role)
}

// EnsureSuperAdmin creates the first superadmin when no user with the email
// exists yet. It reports whether a user was created.
func (s *Service) EnsureSuperAdmin(ctx context.Context, email, password, name string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}

	_, err := s.db.GetUserByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return false, err
	}

	_, err = s.CreateUser(
		ctx,
		models.CreateUserRequest{
			Name:     name,
			Email:    email,
			Password: password,
			Role:     user.RoleSuperAdmin,
		},
		user.RoleSuperAdmin,
	)
	if errors.Is(err, models.ErrUserExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// GetInternalStats returns the number of stored users.
func (s *Service) GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error) {
	users, err := s.db.GetNumberOfUsers(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	return models.InternalStatsResponse{Users: users}, nil
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
