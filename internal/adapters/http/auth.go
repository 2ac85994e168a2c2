package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/audionoise/jam/internal/domain"
)

const principalKey = "principal"

// Principal is the authenticated caller, resolved from the bearer
// token the main application issued.
type Principal struct {
	User     domain.UserID
	Username string
}

type claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the Authorization bearer token and stores
// the principal on the request context. Requests without a valid
// token stop here with 401.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": domain.ErrAuthRequired.Error(),
				"code":  "auth_required",
			})
			return
		}
		var cl claims
		token, err := jwt.ParseWithClaims(raw, &cl, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || cl.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": domain.ErrAuthRequired.Error(),
				"code":  "auth_required",
			})
			return
		}
		c.Set(principalKey, Principal{
			User:     domain.UserID(cl.Subject),
			Username: cl.Name,
		})
		c.Next()
	}
}

func principal(c *gin.Context) Principal {
	p, _ := c.Get(principalKey)
	pr, _ := p.(Principal)
	return pr
}
