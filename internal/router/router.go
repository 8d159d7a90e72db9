// Package router wires the HTTP routes of the service: the product-to-service
// redirect, the health check and the admin user API.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/patric-chuzhbe/sitegate/internal/auth"
	"github.com/patric-chuzhbe/sitegate/internal/logger"
	"github.com/patric-chuzhbe/sitegate/internal/models"
	"github.com/patric-chuzhbe/sitegate/internal/service"
	"github.com/patric-chuzhbe/sitegate/internal/user"
)

const (
	productsPathPrefix = "/products/"
	servicesPathPrefix = "/services/"
)

type userService interface {
	CreateUser(ctx context.Context, request models.CreateUserRequest, actorRole user.Role) (*user.User, error)
	GetUser(ctx context.Context, userID string) (*user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	Login(ctx context.Context, request models.LoginRequest) (string, error)
	GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error)
	Ping(ctx context.Context) error
}

type authenticator interface {
	AuthenticateUser(h http.Handler) http.Handler
	RequireRole(roles ...user.Role) func(http.Handler) http.Handler
	CookieName() string
	TokenTTL() time.Duration
}

// Router holds the dependencies of the HTTP handlers.
type Router struct {
	svc  userService
	auth authenticator
}

// New builds the chi router with every route and middleware attached.
func New(svc userService, theAuth authenticator) *chi.Mux {
	myRouter := Router{
		svc:  svc,
		auth: theAuth,
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		middleware.Recoverer,
		middleware.GetHead,
	)

	router.Get(productsPathPrefix+`{slug}`, myRouter.GetProductsToServices)
	router.Get(`/ping`, myRouter.GetPing)

	router.Route(`/api`, func(api chi.Router) {
		api.Use(middleware.Compress(5, "application/json"))

		api.Post(`/login`, myRouter.PostApilogin)

		api.Group(func(admin chi.Router) {
			admin.Use(
				theAuth.AuthenticateUser,
				theAuth.RequireRole(user.RoleAdmin, user.RoleSuperAdmin),
			)
			admin.Get(`/users`, myRouter.GetApiusers)
			admin.Post(`/users`, myRouter.PostApiusers)
			admin.Get(`/users/{id}`, myRouter.GetApiuser)
		})

		api.Group(func(superadmin chi.Router) {
			superadmin.Use(
				theAuth.AuthenticateUser,
				theAuth.RequireRole(user.RoleSuperAdmin),
			)
			superadmin.Get(`/internal/stats`, myRouter.GetApiinternalstats)
		})
	})

	return router
}

// ServicesPath returns the redirect target for a product slug.
// The slug is used verbatim.
func ServicesPath(slug string) string {
	return servicesPathPrefix + slug
}

// GetProductsToServices redirects /products/{slug} to /services/{slug}.
// The slug is copied from the escaped request path without validation, so
// "%20" or "%2F" stay escaped in the target. http.Redirect is not used
// because it cleans dot segments.
func (r *Router) GetProductsToServices(res http.ResponseWriter, req *http.Request) {
	slug := strings.TrimPrefix(req.URL.EscapedPath(), productsPathPrefix)

	res.Header().Set("Location", ServicesPath(slug))
	res.WriteHeader(http.StatusTemporaryRedirect)
}

// GetPing reports whether the storage is reachable.
func (r *Router) GetPing(res http.ResponseWriter, req *http.Request) {
	if err := r.svc.Ping(req.Context()); err != nil {
		logger.Log.Debugw("storage ping failed", "error", err)
		res.WriteHeader(http.StatusInternalServerError)
		return
	}

	res.WriteHeader(http.StatusOK)
}

// PostApilogin exchanges credentials for a token, returned both in the body
// and as the auth cookie.
func (r *Router) PostApilogin(res http.ResponseWriter, req *http.Request) {
	var request models.LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		writeError(res, http.StatusBadRequest, "malformed JSON body")
		return
	}

	token, err := r.svc.Login(req.Context(), request)
	if err != nil {
		writeServiceError(res, err)
		return
	}

	http.SetCookie(res, &http.Cookie{
		Name:     r.auth.CookieName(),
		Value:    token,
		Path:     "/",
		MaxAge:   int(r.auth.TokenTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	res.Header().Set("Authorization", token)

	writeJSON(res, http.StatusOK, models.LoginResponse{Token: token})
}

// GetApiusers lists every user without passwords.
func (r *Router) GetApiusers(res http.ResponseWriter, req *http.Request) {
	users, err := r.svc.ListUsers(req.Context())
	if err != nil {
		writeServiceError(res, err)
		return
	}

	writeJSON(res, http.StatusOK, users)
}

// GetApiuser returns a single user by ID.
func (r *Router) GetApiuser(res http.ResponseWriter, req *http.Request) {
	usr, err := r.svc.GetUser(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		writeServiceError(res, err)
		return
	}

	writeJSON(res, http.StatusOK, usr)
}

// PostApiusers creates a user on behalf of the authenticated admin.
func (r *Router) PostApiusers(res http.ResponseWriter, req *http.Request) {
	var request models.CreateUserRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		writeError(res, http.StatusBadRequest, "malformed JSON body")
		return
	}

	actorRole, _ := auth.RoleFromContext(req.Context())

	created, err := r.svc.CreateUser(req.Context(), request, actorRole)
	if err != nil {
		writeServiceError(res, err)
		return
	}

	res.Header().Set("Location", "/api/users/"+created.ID)
	writeJSON(res, http.StatusCreated, created)
}

// GetApiinternalstats returns service statistics.
func (r *Router) GetApiinternalstats(res http.ResponseWriter, req *http.Request) {
	stats, err := r.svc.GetInternalStats(req.Context())
	if err != nil {
		writeServiceError(res, err)
		return
	}

	writeJSON(res, http.StatusOK, stats)
}

func writeServiceError(res http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(res, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrForbiddenRole):
		writeError(res, http.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrInvalidCredentials):
		writeError(res, http.StatusUnauthorized, err.Error())
	case errors.Is(err, models.ErrUserNotFound):
		writeError(res, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrUserExists):
		writeError(res, http.StatusConflict, err.Error())
	default:
		logger.Log.Debugw("request failed", "error", err)
		writeError(res, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func writeError(res http.ResponseWriter, status int, message string) {
	writeJSON(res, status, models.ErrorResponse{Error: message})
}

func writeJSON(res http.ResponseWriter, status int, body any) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)

	if err := json.NewEncoder(res).Encode(body); err != nil {
		logger.Log.Debugw("response encoding failed", "error", err)
	}
}
