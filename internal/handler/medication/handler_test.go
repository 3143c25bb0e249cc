package medication

import (
	"context"
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
	apperrors "github.com/jwalitptl/dispensing-api/pkg/errors"
)

type fakeService struct {
	filter    *model.MedicationFilter
	deliverer uuid.UUID
}

func (f *fakeService) Delivered(_ context.Context, filter *model.MedicationFilter) ([]*model.Medication, error) {
	f.filter = filter
	return []*model.Medication{{ID: "MED-001", Name: "Acetaminofén", Status: "Entregado"}}, nil
}

func (f *fakeService) Pending(_ context.Context, filter *model.MedicationFilter) ([]*model.Medication, error) {
	f.filter = filter
	return []*model.Medication{}, nil
}

func (f *fakeService) MarkDelivered(_ context.Context, id string, actor uuid.UUID) (*model.Medication, error) {
	if id != "MED-004" {
		return nil, apperrors.NotFound("medication", nil)
	}
	f.deliverer = actor
	now := time.Now()
	return &model.Medication{ID: id, Status: "Entregado", DeliveryDate: &now}, nil
}

type users map[string]*model.User

func (u users) Authenticate(_ context.Context, email, _ string) (*model.User, error) {
	if user, ok := u[email]; ok {
		return user, nil
	}
	return nil, session.ErrInvalidCredentials
}

func setup(t *testing.T) (*gin.Engine, *fakeService, func(email string) string, users) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := session.NewTokens("medication-handler-secret")
	require.NoError(t, err)
	accounts := users{
		"user@medcol.com":    {Base: model.Base{ID: uuid.New()}, Role: model.RoleUser},
		"externo@medcol.com": {Base: model.Base{ID: uuid.New()}, Role: model.RoleExternal},
	}
	sessions := session.NewManager(session.NewMemoryStore(time.Minute), tokens, accounts, time.Hour, nil)

	svc := &fakeService{}
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"), middleware.NewAuthMiddleware(sessions, "medcol-user"))

	login := func(email string) string {
		_, token, err := sessions.Login(context.Background(), model.LoginRequest{Email: email}, "")
		require.NoError(t, err)
		return token
	}
	return r, svc, login, accounts
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListDelivered(t *testing.T) {
	r, svc, login, _ := setup(t)

	w := serve(r, http.MethodGet, "/api/v1/medications/delivered?q=aceta", login("user@medcol.com"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"MED-001"`)
	require.NotNil(t, svc.filter)
	assert.Equal(t, "aceta", svc.filter.SearchTerm)

	w = serve(r, http.MethodGet, "/api/v1/medications/pending", login("user@medcol.com"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestExternalUsersAreDenied(t *testing.T) {
	r, _, login, _ := setup(t)

	w := serve(r, http.MethodGet, "/api/v1/medications/delivered", login("externo@medcol.com"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"view":"access_denied"`)
}

func TestMarkDelivered(t *testing.T) {
	r, svc, login, accounts := setup(t)
	token := login("user@medcol.com")

	w := serve(r, http.MethodPost, "/api/v1/medications/MED-999/deliver", token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, http.MethodPost, "/api/v1/medications/MED-004/deliver", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"Entregado"`)
	assert.Equal(t, accounts["user@medcol.com"].ID, svc.deliverer)
}
