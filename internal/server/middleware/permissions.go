package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/FrameNetBrasil/daisy/pkg/logger"
)

// PermissionNetworkRebuild allows queueing a rebuild of the materialized
// frame network.
const PermissionNetworkRebuild = "network.rebuild"

// RoleAdmin holds every permission regardless of the token's claims.
const RoleAdmin = "admin"

var allPermissions = []string{
	PermissionNetworkRebuild,
}

type permissionDenied struct {
	Message    string `json:"message"`
	Permission string `json:"permission,omitempty"`
}

// HasPermission reports whether user may use permission. Names outside
// allPermissions are never granted, not even to admins.
func HasPermission(user *AppUser, permission string) bool {
	if user == nil || !slices.Contains(allPermissions, permission) {
		return false
	}
	if user.Role == RoleAdmin {
		return true
	}
	return slices.Contains(user.Permissions, permission)
}

func RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ac, ok := c.(*AppContext)
			if !ok || ac.User == nil {
				return c.JSON(http.StatusUnauthorized, permissionDenied{Message: "Unauthorized"})
			}

			if !HasPermission(ac.User, permission) {
				logger.Warn("[Server] Permission denied",
					"user_id", ac.User.UserID,
					"role", ac.User.Role,
					"permission", permission,
					"path", c.Path(),
				)
				return c.JSON(http.StatusForbidden, permissionDenied{
					Message:    "Forbidden",
					Permission: permission,
				})
			}

			return next(c)
		}
	}
}
