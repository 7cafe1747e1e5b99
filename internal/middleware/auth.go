package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"carepulse-server/internal/models"
	"carepulse-server/internal/utils"
)

// AuthMiddleware creates a middleware for JWT authentication.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			utils.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1], secret)
		if err != nil {
			utils.Unauthorized(c, "Invalid token: "+err.Error())
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("userRole", claims.Role)

		c.Next()
	}
}

// RoleAuthMiddleware creates a middleware for role-based authorization.
// It should be used *after* AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRoleFromContext(c)
		if !ok {
			utils.InternalServerError(c, "User role not found in context. AuthMiddleware might be missing.")
			c.Abort()
			return
		}

		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				c.Next()
				return
			}
		}

		utils.Forbidden(c, "You do not have permission to access this resource.")
		c.Abort()
	}
}

// SelfOrAdmin allows admins, and patients acting on their own :param.
func SelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CanActFor(c, c.Param(param)) {
			utils.Forbidden(c, "You do not have permission to access this resource.")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CanActFor reports whether the caller is an admin or the user ownerID.
func CanActFor(c *gin.Context, ownerID string) bool {
	role, ok := GetUserRoleFromContext(c)
	if !ok {
		return false
	}
	if role == models.RoleAdmin {
		return true
	}
	userID, ok := GetUserIDFromContext(c)
	return ok && userID != "" && userID == ownerID
}

// GetUserIDFromContext returns the authenticated user id.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		return "", false
	}
	idStr, ok := userID.(string)
	return idStr, ok
}

// GetUserRoleFromContext returns the authenticated role.
func GetUserRoleFromContext(c *gin.Context) (models.Role, bool) {
	userRole, exists := c.Get("userRole")
	if !exists {
		return "", false
	}
	role, ok := userRole.(models.Role)
	return role, ok
}
