package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dispensing-api/internal/middleware"
	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/internal/session"
)

const cookieName = "medcol-user"

type stubAuthenticator map[string]*model.User

func (s stubAuthenticator) Authenticate(_ context.Context, email, password string) (*model.User, error) {
	u, ok := s[email]
	if !ok || password != "password" {
		return nil, session.ErrInvalidCredentials
	}
	return u, nil
}

type endedFlows struct {
	ended []string
}

func (e *endedFlows) End(sessionID string) {
	e.ended = append(e.ended, sessionID)
}

type fixture struct {
	engine   *gin.Engine
	sessions *session.Manager
	flows    *endedFlows
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := session.NewTokens("auth-handler-secret")
	require.NoError(t, err)
	users := stubAuthenticator{
		"externo@medcol.com": {
			Base:  model.Base{ID: uuid.New()},
			Name:  "Usuario Externo",
			Email: "externo@medcol.com",
			Role:  model.RoleExternal,
		},
	}
	sessions := session.NewManager(session.NewMemoryStore(time.Minute), tokens, users, time.Hour, nil)
	flows := &endedFlows{}

	h := NewHandler(sessions, middleware.NewAuthMiddleware(sessions, cookieName), flows, CookieConfig{Name: cookieName})
	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))

	return &fixture{engine: r, sessions: sessions, flows: flows}
}

func (f *fixture) request(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

type loginResponse struct {
	Status string `json:"status"`
	Data   struct {
		Token        string          `json:"token"`
		Identity     *model.Identity `json:"identity"`
		Capabilities []string        `json:"capabilities"`
	} `json:"data"`
}

func (f *fixture) login(t *testing.T) string {
	t.Helper()
	w := f.request(t, http.MethodPost, "/api/v1/auth/login", model.LoginRequest{Email: "externo@medcol.com", Password: "password"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/auth/login", model.LoginRequest{Email: "externo@medcol.com", Password: "password"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, model.RoleExternal, resp.Data.Identity.Role)
	assert.Equal(t, []string{"dashboard", "document_consultation", "saved_documents"}, resp.Data.Capabilities)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, cookieName, cookies[0].Name)
	assert.Equal(t, resp.Data.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
}

func TestLogin_Rejected(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/auth/login", model.LoginRequest{Email: "externo@medcol.com", Password: "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid credentials")
	assert.Empty(t, w.Result().Cookies())

	w = f.request(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "not-an-email"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_ReplacesPriorSession(t *testing.T) {
	f := newFixture(t)
	prior := f.login(t)
	priorID := f.sessions.SessionID(prior)

	w := f.request(t, http.MethodPost, "/api/v1/auth/login", model.LoginRequest{Email: "externo@medcol.com", Password: "password"}, prior)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{priorID}, f.flows.ended)
	assert.Nil(t, f.sessions.Current(context.Background(), prior))
}

func TestMe(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodGet, "/api/v1/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := f.login(t)
	w = f.request(t, http.MethodGet, "/api/v1/auth/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Usuario Externo"`)
	assert.NotContains(t, w.Body.String(), "admin_users")
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	sessionID := f.sessions.SessionID(token)

	w := f.request(t, http.MethodPost, "/api/v1/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{sessionID}, f.flows.ended)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)

	w = f.request(t, http.MethodGet, "/api/v1/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.request(t, http.MethodPost, "/api/v1/auth/logout", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.flows.ended, 1)
}
