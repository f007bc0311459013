package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// UserAuth enforces bearer JWT tokens signed with HS256.
func UserAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// CurrentUser returns the authenticated user id, or "" when the request
// carries no verified identity.
func CurrentUser(c *gin.Context) string {
	v, ok := c.Get(claimsKey)
	if !ok {
		return ""
	}
	claims, _ := v.(Claims)
	return claims.UserID()
}

// SetClaims attaches claims to the context. Tests use it to bypass UserAuth.
func SetClaims(c *gin.Context, claims Claims) {
	c.Set(claimsKey, claims)
}
