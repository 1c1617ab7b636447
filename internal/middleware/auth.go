package middleware

import (
	"context"
	"strings"

	"kanban-board/internal/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	ContextUserID = "user_id"
	ContextClaims = "claims"
)

// TokenParser is the part of the auth service the middleware needs.
type TokenParser interface {
	ParseToken(ctx context.Context, tokenString string) (*services.Claims, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. It returns "" when the header is missing or malformed.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Auth rejects requests without a valid, unrevoked bearer token and stores the
// caller's user id and claims on the context.
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Error(services.ErrInvalidToken)
			c.Abort()
			return
		}

		claims, err := parser.ParseToken(c.Request.Context(), token)
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		log.WithFields(log.Fields{"user_id": userID, "jti": claims.ID}).Debug("request authenticated")

		c.Set(ContextUserID, userID)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// UserID returns the authenticated caller. The bool is false when Auth did
// not run for this route.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func Claims(c *gin.Context) (*services.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*services.Claims)
	return claims, ok
}
