package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-feed/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-feed/internal/platform/config"
	"github.com/jsamuelsen/quote-feed/internal/platform/logging"
)

const (
	// ContextKeyClaims is the gin context key for storing extracted claims.
	ContextKeyClaims = "claims"

	defaultSubjectHeader = "X-User-ID"
)

// Claims represents the caller identity passed by the gateway. The gateway
// validates the token; this service only trusts the forwarded subject.
type Claims struct {
	// Subject is the user ID (sub claim).
	Subject string
}

// ExtractClaims reads the caller identity from request headers.
func ExtractClaims(c *gin.Context, cfg *config.AuthConfig) *Claims {
	header := defaultSubjectHeader
	if cfg != nil && cfg.SubjectHeader != "" {
		header = cfg.SubjectHeader
	}

	return &Claims{Subject: strings.TrimSpace(c.GetHeader(header))}
}

// GetClaims retrieves claims from the gin context.
// Returns nil if claims are not present.
func GetClaims(c *gin.Context) *Claims {
	if claims, exists := c.Get(ContextKeyClaims); exists {
		if cl, ok := claims.(*Claims); ok {
			return cl
		}
	}

	return nil
}

// UserID returns the authenticated subject, or "" for anonymous callers.
func UserID(c *gin.Context) string {
	if claims := GetClaims(c); claims != nil {
		return claims.Subject
	}

	return ""
}

// RequireAuth rejects requests without a subject with 401.
func RequireAuth(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ExtractClaims(c, cfg)

		if claims.Subject == "" {
			dto.AbortWithCode(c, dto.ErrorCodeUnauthorized, "authentication required")
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth records the subject when present and lets anonymous
// requests through.
func OptionalAuth(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := ExtractClaims(c, cfg); claims.Subject != "" {
			setClaims(c, claims)
		}

		c.Next()
	}
}

func setClaims(c *gin.Context, claims *Claims) {
	c.Set(ContextKeyClaims, claims)

	ctx := logging.WithUserID(c.Request.Context(), claims.Subject)
	c.Request = c.Request.WithContext(ctx)
}
