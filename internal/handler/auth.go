package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/shopkart/storefront/internal/domain/auth"
)

// Auth validates the bearer token and stores the caller identity in the
// request context. Tokens carry user_id and is_admin claims signed with HMAC.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			writeError(c, http.StatusUnauthorized, "unauthenticated", "missing authorization header")
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(c, http.StatusUnauthorized, "unauthenticated", "authorization header must be a bearer token")
			return
		}

		id, err := parseIdentity(raw, secret)
		if err != nil {
			writeError(c, http.StatusUnauthorized, "unauthenticated", "invalid token")
			return
		}

		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

func parseIdentity(raw string, secret []byte) (auth.Identity, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return auth.Identity{}, errors.Wrap(err, "parse token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return auth.Identity{}, errors.New("invalid claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return auth.Identity{}, errors.New("missing user_id claim")
	}
	isAdmin, _ := claims["is_admin"].(bool)

	return auth.Identity{UserID: userID, IsAdmin: isAdmin}, nil
}

// RequireAdmin rejects non-admin callers. Must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.IdentityFrom(c.Request.Context())
		if !ok {
			writeError(c, http.StatusUnauthorized, "unauthenticated", "authentication required")
			return
		}
		if !id.IsAdmin {
			writeError(c, http.StatusForbidden, "access_denied", "access denied")
			return
		}
		c.Next()
	}
}

// identity fetches the caller from the context. Auth guarantees presence on
// protected routes; the fallback guards direct handler use in tests.
func identity(c *gin.Context) (auth.Identity, bool) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		writeError(c, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return auth.Identity{}, false
	}
	return id, true
}
