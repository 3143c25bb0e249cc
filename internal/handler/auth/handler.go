package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dispensing-api/internal/handler"
	"github.com/jwalitptl/dispensing-api/internal/middleware"
	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/internal/rbac"
	"github.com/jwalitptl/dispensing-api/internal/session"
)

// FlowEnder tears down per-session work when a session ends.
type FlowEnder interface {
	End(sessionID string)
}

type CookieConfig struct {
	Name   string
	Secure bool
}

type Handler struct {
	sessions *session.Manager
	auth     *middleware.AuthMiddleware
	flows    FlowEnder
	cookie   CookieConfig
}

func NewHandler(sessions *session.Manager, auth *middleware.AuthMiddleware, flows FlowEnder, cookie CookieConfig) *Handler {
	return &Handler{
		sessions: sessions,
		auth:     auth,
		flows:    flows,
		cookie:   cookie,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", h.auth.Authenticate(), h.Me)
	}
}

// sessionView is the identity plus the pages it may open.
type sessionView struct {
	Identity     *model.Identity   `json:"identity"`
	Capabilities []rbac.Capability `json:"capabilities"`
}

type loginView struct {
	Token string `json:"token"`
	sessionView
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("email and password are required"))
		return
	}

	prior := h.auth.Token(c)
	priorID := h.sessions.SessionID(prior)

	identity, token, err := h.sessions.Login(c.Request.Context(), req, prior)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid credentials"))
			return
		}
		handler.Fail(c, err)
		return
	}

	if priorID != "" && h.flows != nil {
		h.flows.End(priorID)
	}

	h.setCookie(c, token, int(h.sessions.TTL().Seconds()))
	c.JSON(http.StatusOK, handler.NewSuccessResponse(loginView{
		Token:       token,
		sessionView: sessionView{Identity: identity, Capabilities: rbac.Allowed(identity.Role)},
	}))
}

func (h *Handler) Logout(c *gin.Context) {
	token := h.auth.Token(c)
	sessionID := h.sessions.SessionID(token)

	if err := h.sessions.Logout(c.Request.Context(), token); err != nil {
		handler.Fail(c, err)
		return
	}
	if sessionID != "" && h.flows != nil {
		h.flows.End(sessionID)
	}

	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, handler.NewSuccessResponse("logged out successfully"))
}

func (h *Handler) Me(c *gin.Context) {
	identity := middleware.IdentityFrom(c)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(sessionView{
		Identity:     identity,
		Capabilities: rbac.Allowed(identity.Role),
	}))
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", "", h.cookie.Secure, true)
}
