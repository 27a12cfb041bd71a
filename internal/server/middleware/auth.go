package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const RoleAdmin = "admin"

var ErrInvalidUser = errors.New("invalid user id")

var allPermissions = []string{
	PermissionJobCreate,
	PermissionJobView,
	PermissionJobViewAll,
	PermissionJobDelete,
}

func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		cc := c.(*AppContext)
		app := cc.App

		// Master API Key bypass
		if app.MasterAPIKey != "" && token == app.MasterAPIKey {
			cc.User = &AppUser{
				Subject:     "master",
				Role:        RoleAdmin,
				Permissions: allPermissions,
			}
			return next(c)
		}

		if app.Key == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		k := *app.Key
		parsed, err := jwt.Parse(token, k.Keyfunc)
		if err != nil || !parsed.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		user, err := UserFromClaims(claims)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid user ID"})
		}
		cc.User = user

		return next(c)
	}
}

// UserFromClaims reads the subject (sub, falling back to id), role and
// permissions of a token. Admins without explicit permissions get all.
func UserFromClaims(claims jwt.MapClaims) (*AppUser, error) {
	subject, _ := claims.GetSubject()
	if subject == "" {
		switch id := claims["id"].(type) {
		case string:
			subject = id
		case float64:
			subject = fmt.Sprintf("%.0f", id)
		}
	}
	if subject == "" {
		return nil, ErrInvalidUser
	}

	role := "user"
	if roleClaim, ok := claims["role"].(string); ok {
		role = roleClaim
	}

	var permissions []string
	if permsClaim, ok := claims["permissions"].([]any); ok {
		for _, p := range permsClaim {
			if pStr, ok := p.(string); ok {
				permissions = append(permissions, pStr)
			}
		}
	}

	if role == RoleAdmin && len(permissions) == 0 {
		permissions = allPermissions
	}
	if role != RoleAdmin && len(permissions) == 0 {
		permissions = []string{PermissionJobCreate, PermissionJobView, PermissionJobDelete}
	}

	return &AppUser{
		Subject:     subject,
		Role:        role,
		Permissions: permissions,
	}, nil
}
