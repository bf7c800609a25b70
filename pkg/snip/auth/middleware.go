package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/snipdev/snip/pkg/snip/apperr"
)

const (
	// ContextKeyUser is the key for the authenticated UserSummary in gin context
	ContextKeyUser = "user"
)

// TokenValidator resolves a bearer token to the acting user
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (UserSummary, error)
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// present is false when the header is absent.
func bearerToken(c *gin.Context) (token string, present bool, ok bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false, false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", true, false
	}
	return strings.TrimSpace(parts[1]), true, true
}

func authenticate(c *gin.Context, validator TokenValidator, required bool) {
	token, present, ok := bearerToken(c)
	if !present {
		if required {
			apperr.AbortWithStatus(c, http.StatusUnauthorized, "Authorization header required")
			return
		}
		c.Next()
		return
	}
	if !ok {
		apperr.AbortWithStatus(c, http.StatusUnauthorized, "Invalid authorization header format")
		return
	}

	user, err := validator.ValidateToken(c.Request.Context(), token)
	if err != nil {
		apperr.Abort(c, err)
		return
	}

	c.Set(ContextKeyUser, user)
	c.Next()
}

// AuthMiddleware requires a valid bearer token and sets the user in context
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticate(c, validator, true)
	}
}

// OptionalAuthMiddleware lets requests without a token through anonymously,
// but still rejects a token that is present and invalid
func OptionalAuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticate(c, validator, false)
	}
}

// GetUser returns the authenticated user from the gin context
func GetUser(c *gin.Context) (UserSummary, bool) {
	v, exists := c.Get(ContextKeyUser)
	if !exists {
		return UserSummary{}, false
	}
	user, ok := v.(UserSummary)
	return user, ok
}

// GetUserID returns the authenticated user's id from the gin context
func GetUserID(c *gin.Context) (string, bool) {
	user, ok := GetUser(c)
	if !ok {
		return "", false
	}
	return user.ID, true
}
