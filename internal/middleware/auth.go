package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dispensing-api/internal/handler"
	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/internal/rbac"
	"github.com/jwalitptl/dispensing-api/internal/session"
)

const (
	ContextIdentity  = "identity"
	ContextToken     = "session_token"
	ContextSessionID = "session_id"
)

// AccessDeniedView is the data of every 403 response.
var AccessDeniedView = gin.H{"view": "access_denied"}

type AuthMiddleware struct {
	sessions   *session.Manager
	cookieName string
}

func NewAuthMiddleware(sessions *session.Manager, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{
		sessions:   sessions,
		cookieName: cookieName,
	}
}

// Token returns the session token carried by the request, from the session
// cookie or a bearer Authorization header.
func (m *AuthMiddleware) Token(c *gin.Context) string {
	if token, err := c.Cookie(m.cookieName); err == nil && token != "" {
		return token
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// Authenticate resolves the session of the request and rejects it when there
// is none.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.Token(c)
		identity := m.sessions.Current(c.Request.Context(), token)
		if identity == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("authentication required"))
			return
		}

		c.Set(ContextIdentity, identity)
		c.Set(ContextToken, token)
		c.Set(ContextSessionID, m.sessions.SessionID(token))
		c.Next()
	}
}

// RequireCapability renders the access denied view unless the identity may
// use the capability.
func (m *AuthMiddleware) RequireCapability(capability rbac.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rbac.CanAccess(IdentityFrom(c), capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, &handler.Response{
				Status:  "error",
				Message: "access denied",
				Data:    AccessDeniedView,
			})
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity set by Authenticate, or nil.
func IdentityFrom(c *gin.Context) *model.Identity {
	if v, ok := c.Get(ContextIdentity); ok {
		if identity, ok := v.(*model.Identity); ok {
			return identity
		}
	}
	return nil
}

// SessionIDFrom returns the session id set by Authenticate.
func SessionIDFrom(c *gin.Context) string {
	return c.GetString(ContextSessionID)
}
