package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

const principalContextKey = "vinci.principal"

// principal is the verified identity the gateway attaches to each request.
// This engine never authenticates credentials itself.
type principal struct {
	ID    string
	Roles []string
}

func (p principal) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, r := range p.Roles {
		if strings.ToLower(r) == role {
			return true
		}
	}
	return false
}

// IdentityMiddleware trusts the gateway-verified identity headers. Requests
// without them proceed unauthenticated and fail at requireIdentity.
type IdentityMiddleware struct {
	UserHeader string
	RoleHeader string
}

func (m IdentityMiddleware) Handle(c *gin.Context) {
	userHeader := m.UserHeader
	if userHeader == "" {
		userHeader = "X-User-Id"
	}
	roleHeader := m.RoleHeader
	if roleHeader == "" {
		roleHeader = "X-User-Roles"
	}
	userID := strings.TrimSpace(c.GetHeader(userHeader))
	if userID == "" {
		c.Next()
		return
	}
	var roles []string
	for _, role := range strings.Split(c.GetHeader(roleHeader), ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	setPrincipal(c, principal{ID: userID, Roles: roles})
	c.Next()
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireIdentity(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	return p, true
}
