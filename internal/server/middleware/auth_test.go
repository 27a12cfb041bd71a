package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func TestUserFromClaims(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		claims    jwt.MapClaims
		wantSub   string
		wantRole  string
		wantPerms []string
		wantErr   bool
	}{
		{
			name:      "subject with defaults",
			claims:    jwt.MapClaims{"sub": "u1"},
			wantSub:   "u1",
			wantRole:  "user",
			wantPerms: []string{PermissionJobCreate, PermissionJobView, PermissionJobDelete},
		},
		{
			name:      "numeric id",
			claims:    jwt.MapClaims{"id": float64(42), "permissions": []any{PermissionJobView}},
			wantSub:   "42",
			wantRole:  "user",
			wantPerms: []string{PermissionJobView},
		},
		{
			name:      "admin gets everything",
			claims:    jwt.MapClaims{"sub": "a", "role": RoleAdmin},
			wantSub:   "a",
			wantRole:  RoleAdmin,
			wantPerms: allPermissions,
		},
		{
			name:    "no subject",
			claims:  jwt.MapClaims{"role": RoleAdmin},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			user, err := UserFromClaims(tt.claims)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidUser) {
					t.Fatalf("got %v, want ErrInvalidUser", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if user.Subject != tt.wantSub || user.Role != tt.wantRole {
				t.Fatalf("got %+v, want subject %q role %q", user, tt.wantSub, tt.wantRole)
			}
			if !slices.Equal(user.Permissions, tt.wantPerms) {
				t.Fatalf("got %v, want %v", user.Permissions, tt.wantPerms)
			}
		})
	}
}

func serve(app *App, token string, h echo.HandlerFunc, mws ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, *AppContext) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	cc := &AppContext{Context: e.NewContext(req, rec), App: app}

	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	if err := h(cc); err != nil {
		e.HTTPErrorHandler(err, cc)
	}
	return rec, cc
}

func ok(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	app := &App{MasterAPIKey: "secret"}

	rec, _ := serve(app, "", ok, AuthMiddleware)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: got %d, want 401", rec.Code)
	}

	rec, _ = serve(app, "nope", ok, AuthMiddleware)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown token without jwks: got %d, want 401", rec.Code)
	}

	rec, cc := serve(app, "secret", ok, AuthMiddleware)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("master key: got %d, want 204", rec.Code)
	}
	if cc.User == nil || !IsAdmin(cc.User) || !HasPermission(cc.User, PermissionJobViewAll) {
		t.Fatalf("got user %+v", cc.User)
	}
}

func TestRequirePermission(t *testing.T) {
	t.Parallel()

	setUser := func(user *AppUser) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				c.(*AppContext).User = user
				return next(c)
			}
		}
	}
	viewer := &AppUser{Subject: "v", Permissions: []string{PermissionJobView}}

	tests := []struct {
		name string
		user *AppUser
		mw   echo.MiddlewareFunc
		want int
	}{
		{"anonymous", nil, RequirePermission(PermissionJobView), http.StatusUnauthorized},
		{"granted", viewer, RequirePermission(PermissionJobView), http.StatusNoContent},
		{"missing", viewer, RequirePermission(PermissionJobDelete), http.StatusForbidden},
		{"any granted", viewer, RequireAnyPermission(PermissionJobViewAll, PermissionJobView), http.StatusNoContent},
		{"any missing", viewer, RequireAnyPermission(PermissionJobViewAll, PermissionJobDelete), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, _ := serve(&App{}, "", ok, setUser(tt.user), tt.mw)
			if rec.Code != tt.want {
				t.Fatalf("got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequireJobs(t *testing.T) {
	t.Parallel()

	rec, _ := serve(&App{}, "", ok, RequireJobs)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", rec.Code)
	}
}
