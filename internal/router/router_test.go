package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/sitegate/internal/auth"
	"github.com/patric-chuzhbe/sitegate/internal/db/memorystorage"
	"github.com/patric-chuzhbe/sitegate/internal/logger"
	"github.com/patric-chuzhbe/sitegate/internal/mockstorage"
	"github.com/patric-chuzhbe/sitegate/internal/models"
	"github.com/patric-chuzhbe/sitegate/internal/service"
	"github.com/patric-chuzhbe/sitegate/internal/user"
)

const (
	superAdminEmail    = "root@example.com"
	superAdminPassword = "root-password"
)

type storage interface {
	CreateUser(ctx context.Context, usr *user.User) error
	GetUserByID(ctx context.Context, userID string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	GetNumberOfUsers(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

type initOption func(*initOptions)

type initOptions struct {
	storage storage
}

func withStorage(db storage) initOption {
	return func(options *initOptions) {
		options.storage = db
	}
}

func setupTestRouter(t *testing.T, optionsProto ...initOption) (*httptest.Server, *service.Service) {
	t.Helper()

	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if options.storage == nil {
		db, err := memorystorage.New()
		require.NoError(t, err)
		options.storage = db
	}

	theAuth := auth.New("auth", []byte("router-test-key"), time.Hour)
	svc := service.New(options.storage, theAuth, service.WithPasswordCost(bcrypt.MinCost))

	server := httptest.NewServer(New(svc, theAuth))
	t.Cleanup(server.Close)

	return server, svc
}

func login(t *testing.T, serverURL, email, password string) string {
	t.Helper()

	var result models.LoginResponse
	resp, err := resty.New().R().
		SetBody(models.LoginRequest{Email: email, Password: password}).
		SetResult(&result).
		Post(serverURL + "/api/login")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())

	return result.Token
}

func seedSuperAdmin(t *testing.T, svc *service.Service) {
	t.Helper()

	created, err := svc.EnsureSuperAdmin(context.Background(), superAdminEmail, superAdminPassword, "Root")
	require.NoError(t, err)
	require.True(t, created)
}

func TestGetProductsToServices(t *testing.T) {
	err := logger.Init("debug")
	require.NoError(t, err)

	tests := []struct {
		name     string
		target   string
		location string
	}{
		{
			name:     "plain slug",
			target:   "/products/blue-widget",
			location: "/services/blue-widget",
		},
		{
			name:     "mixed case with dots and underscores",
			target:   "/products/Blue_Widget.v2",
			location: "/services/Blue_Widget.v2",
		},
		{
			name:     "query string is not carried over",
			target:   "/products/blue-widget?ref=home",
			location: "/services/blue-widget",
		},
		{
			name:     "escaped slash stays escaped",
			target:   "/products/blue%2Fwidget",
			location: "/services/blue%2Fwidget",
		},
		{
			name:     "dot segments are not cleaned",
			target:   "/products/..",
			location: "/services/..",
		},
		{
			name:     "numeric slug",
			target:   "/products/42",
			location: "/services/42",
		},
		{
			name:     "escaped space stays escaped",
			target:   "/products/%20x",
			location: "/services/%20x",
		},
		{
			name:     "escaped unicode stays escaped",
			target:   "/products/caf%C3%A9",
			location: "/services/caf%C3%A9",
		},
	}

	db, err := memorystorage.New()
	require.NoError(t, err)
	theAuth := auth.New("auth", []byte("k"), time.Hour)
	router := New(service.New(db, theAuth), theAuth)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, tt.target, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, request)

			result := w.Result()
			defer result.Body.Close()

			assert.Equal(t, http.StatusTemporaryRedirect, result.StatusCode)
			assert.Equal(t, tt.location, result.Header.Get("Location"))
		})
	}
}

func TestGetProductsToServicesOverHTTP(t *testing.T) {
	server, _ := setupTestRouter(t)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	for _, slug := range []string{"blue-widget", "red-gadget", "x"} {
		t.Run(slug, func(t *testing.T) {
			resp, err := client.Get(server.URL + "/products/" + slug)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
			assert.Equal(t, "/services/"+slug, resp.Header.Get("Location"))
		})
	}
}

func TestGetProductsToServicesIgnoresStorageState(t *testing.T) {
	db := &mockstorage.StorageMock{}
	server, _ := setupTestRouter(t, withStorage(db))

	resp, err := resty.New().
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		})).
		R().
		Get(server.URL + "/products/blue-widget")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode())
	assert.Equal(t, "/services/blue-widget", resp.Header().Get("Location"))

	db.AssertNotCalled(t, "Ping", mock.Anything)
	db.AssertNotCalled(t, "GetUserByID", mock.Anything, mock.Anything)
}

func TestHeadProductsToServices(t *testing.T) {
	server, _ := setupTestRouter(t)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Head(server.URL + "/products/blue-widget")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/services/blue-widget", resp.Header.Get("Location"))
}

func TestServicesPath(t *testing.T) {
	assert.Equal(t, "/services/blue-widget", ServicesPath("blue-widget"))
	assert.Equal(t, "/services/", ServicesPath(""))
	assert.Equal(t, "/services/a b", ServicesPath("a b"))
}

func TestGetPing(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
	}{
		{name: "storage reachable", wantStatus: http.StatusOK},
		{name: "storage down", pingErr: errors.New("down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &mockstorage.StorageMock{}
			db.On("Ping", mock.Anything).Return(tt.pingErr)

			server, _ := setupTestRouter(t, withStorage(db))

			resp, err := resty.New().R().Get(server.URL + "/ping")
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode())
			db.AssertExpectations(t)
		})
	}
}

func TestPostApilogin(t *testing.T) {
	server, svc := setupTestRouter(t)
	seedSuperAdmin(t, svc)

	type tExpectedResponse struct {
		code        int
		tokenIssued bool
	}
	testCases := []struct {
		name             string
		body             string
		expectedResponse tExpectedResponse
	}{
		{
			name:             "positive",
			body:             fmt.Sprintf(`{"email":%q,"password":%q}`, superAdminEmail, superAdminPassword),
			expectedResponse: tExpectedResponse{code: http.StatusOK, tokenIssued: true},
		},
		{
			name:             "wrong password",
			body:             fmt.Sprintf(`{"email":%q,"password":"nope"}`, superAdminEmail),
			expectedResponse: tExpectedResponse{code: http.StatusUnauthorized},
		},
		{
			name:             "empty_JSON",
			body:             `{}`,
			expectedResponse: tExpectedResponse{code: http.StatusUnprocessableEntity},
		},
		{
			name:             "malformed JSON",
			body:             `{"email":`,
			expectedResponse: tExpectedResponse{code: http.StatusBadRequest},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			resp, err := resty.New().R().
				SetHeader("Content-Type", "application/json").
				SetBody(testCase.body).
				Post(server.URL + "/api/login")
			require.NoError(t, err, "error making HTTP request")

			assert.Equal(t, testCase.expectedResponse.code, resp.StatusCode(), "Response code didn't match expected value")

			if testCase.expectedResponse.tokenIssued {
				assert.NotEmpty(t, resp.Header().Get("Authorization"))
				var cookieFound bool
				for _, cookie := range resp.Cookies() {
					if cookie.Name == "auth" {
						cookieFound = true
						assert.True(t, cookie.HttpOnly)
					}
				}
				assert.True(t, cookieFound, "the auth cookie should be set")
			}
		})
	}
}

func TestUsersAPI(t *testing.T) {
	server, svc := setupTestRouter(t)
	seedSuperAdmin(t, svc)

	rootToken := login(t, server.URL, superAdminEmail, superAdminPassword)

	// The superadmin creates an admin with every optional field.
	var created user.User
	resp, err := resty.New().R().
		SetAuthToken(rootToken).
		SetBody(map[string]any{
			"_id":         "65f0c0ffee",
			"name":        "Jane Doe",
			"email":       "jane@example.com",
			"password":    "correct horse",
			"role":        "admin",
			"designation": "Head of Sales",
			"photo":       "https://cdn.example.com/jane.png",
			"signature":   "https://cdn.example.com/jane-sign.png",
		}).
		SetResult(&created).
		Post(server.URL + "/api/users")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())

	assert.Equal(t, "/api/users/"+created.ID, resp.Header().Get("Location"))
	assert.NotContains(t, resp.String(), `"password"`)
	require.NotNil(t, created.LegacyID)
	assert.Equal(t, "65f0c0ffee", *created.LegacyID)
	require.NotNil(t, created.Designation)
	assert.Equal(t, "Head of Sales", *created.Designation)

	// The new admin logs in and reads the user back.
	janeToken := login(t, server.URL, "jane@example.com", "correct horse")

	var fetched user.User
	resp, err = resty.New().R().
		SetAuthToken(janeToken).
		SetResult(&fetched).
		Get(server.URL + "/api/users/" + created.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, created, fetched)

	// Listing never exposes passwords and keeps absent optional fields absent.
	resp, err = resty.New().R().
		SetAuthToken(janeToken).
		Get(server.URL + "/api/users")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.NotContains(t, resp.String(), `"password"`)
	assert.Equal(t, 1, strings.Count(resp.String(), `"designation"`), "only Jane has a designation")

	// An admin cannot mint a superadmin.
	resp, err = resty.New().R().
		SetAuthToken(janeToken).
		SetBody(models.CreateUserRequest{
			Name:     "Mallory",
			Email:    "mallory@example.com",
			Password: "correct horse",
			Role:     user.RoleSuperAdmin,
		}).
		Post(server.URL + "/api/users")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	// A duplicate email conflicts.
	resp, err = resty.New().R().
		SetAuthToken(rootToken).
		SetBody(models.CreateUserRequest{
			Name:     "Jane Again",
			Email:    "jane@example.com",
			Password: "correct horse",
			Role:     user.RoleAdmin,
		}).
		Post(server.URL + "/api/users")
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode())

	// Unknown user.
	resp, err = resty.New().R().
		SetAuthToken(rootToken).
		Get(server.URL + "/api/users/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())

	// Stats are reserved to the superadmin.
	resp, err = resty.New().R().
		SetAuthToken(janeToken).
		Get(server.URL + "/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	var stats models.InternalStatsResponse
	resp, err = resty.New().R().
		SetAuthToken(rootToken).
		SetResult(&stats).
		Get(server.URL + "/api/internal/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, int64(2), stats.Users)
}

func TestUsersAPIRequiresAuthentication(t *testing.T) {
	server, _ := setupTestRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/users"},
		{http.MethodPost, "/api/users"},
		{http.MethodGet, "/api/users/some-id"},
		{http.MethodGet, "/api/internal/stats"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.method+" "+testCase.path, func(t *testing.T) {
			req := resty.New().R()
			req.Method = testCase.method
			req.URL = server.URL + testCase.path

			resp, err := req.Send()
			require.NoError(t, err)

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
		})
	}
}

func TestUsersAPIRejectsUnknownRoles(t *testing.T) {
	db, err := memorystorage.New()
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("editor-password"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.CreateUser(context.Background(), &user.User{
		ID:        "editor",
		Name:      "Editor",
		Email:     "editor@example.com",
		Password:  user.StringPtr(string(hash)),
		Role:      "editor",
		CreatedAt: "2024-01-01T00:00:00Z",
		UpdatedAt: "2024-01-01T00:00:00Z",
	}))

	server, _ := setupTestRouter(t, withStorage(db))
	token := login(t, server.URL, "editor@example.com", "editor-password")

	resp, err := resty.New().R().
		SetAuthToken(token).
		Get(server.URL + "/api/users")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
}

func TestPostApiusersValidation(t *testing.T) {
	server, svc := setupTestRouter(t)
	seedSuperAdmin(t, svc)
	rootToken := login(t, server.URL, superAdminEmail, superAdminPassword)

	testCases := []struct {
		name string
		body string
		code int
	}{
		{name: "empty_JSON", body: `{}`, code: http.StatusUnprocessableEntity},
		{name: "malformed", body: `{"name":`, code: http.StatusBadRequest},
		{
			name: "bad email",
			body: `{"name":"n","email":"nope","password":"long enough","role":"admin"}`,
			code: http.StatusUnprocessableEntity,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			resp, err := resty.New().R().
				SetAuthToken(rootToken).
				SetHeader("Content-Type", "application/json").
				SetBody(testCase.body).
				Post(server.URL + "/api/users")
			require.NoError(t, err)

			assert.Equal(t, testCase.code, resp.StatusCode(), resp.String())
		})
	}
}

func TestGetApiusersStorageFailure(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("ListUsers", mock.Anything).Return(nil, errors.New("boom"))

	theAuth := auth.New("auth", []byte("router-test-key"), time.Hour)
	token, err := theAuth.BuildJWTString("root", user.RoleSuperAdmin)
	require.NoError(t, err)

	server, _ := setupTestRouter(t, withStorage(db))

	resp, err := resty.New().R().
		SetAuthToken(token).
		Get(server.URL + "/api/users")
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
	db.AssertExpectations(t)
}
