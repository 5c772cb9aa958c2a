package middlewares

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/onpointkonceptz/goldbond/utils"
)

// RequireRoles restricts a route group to the given roles. Admin always passes.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleValue, exists := c.Get("role")
		if !exists {
			utils.RespondError(c, 401, errors.New("unauthorized"))
			c.Abort()
			return
		}

		role, ok := roleValue.(string)
		if !ok {
			utils.RespondError(c, 401, errors.New("unauthorized"))
			c.Abort()
			return
		}

		if role == "admin" {
			c.Next()
			return
		}

		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}

		utils.RespondError(c, 403, errors.New("forbidden: insufficient role"))
		c.Abort()
	}
}

// RoleCheck matches the :role path parameter against the token role.
// Used by the WebSocket endpoint /ws/:role.
func RoleCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("role")
		if !exists {
			utils.RespondError(c, 401, errors.New("unauthorized"))
			c.Abort()
			return
		}

		requested := c.Param("role")
		if requested == "" || userRole == "admin" || userRole == requested {
			c.Next()
			return
		}

		utils.RespondError(c, 403, errors.New("forbidden: role mismatch"))
		c.Abort()
	}
}
