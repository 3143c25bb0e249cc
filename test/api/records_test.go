//go:build e2e

package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedicationRecords(t *testing.T) {
	resp := makeRequest(http.MethodGet, "/medications/delivered", nil, userToken)
	require.True(t, resp.IsSuccess(), resp.Message)

	var delivered []struct {
		Status string `json:"status"`
	}
	resp.Decode(t, &delivered)
	for _, m := range delivered {
		assert.Equal(t, "Entregado", m.Status)
	}

	resp = makeRequest(http.MethodGet, "/medications/pending", nil, extToken)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestSavedDocuments(t *testing.T) {
	resp := makeRequest(http.MethodGet, "/documents?type=national_id&q=1098765432", nil, extToken)
	require.True(t, resp.IsSuccess(), resp.Message)

	var docs []struct {
		ID        string `json:"id"`
		PatientID string `json:"patient_id"`
	}
	resp.Decode(t, &docs)
	for _, d := range docs {
		assert.Contains(t, d.PatientID, "1098765432")
	}

	if len(docs) > 0 {
		resp = makeRequest(http.MethodDelete, "/documents/"+docs[0].ID, nil, extToken)
		assert.Equal(t, http.StatusForbidden, resp.Code)
	}
}

func TestDashboard(t *testing.T) {
	resp := makeRequest(http.MethodGet, "/dashboard", nil, adminToken)
	require.True(t, resp.IsSuccess(), resp.Message)

	var summary struct {
		Documents int `json:"documents"`
	}
	resp.Decode(t, &summary)
	assert.Positive(t, summary.Documents)
}

func TestUserAdministration(t *testing.T) {
	email := uniqueEmail("e2e")
	resp := makeRequest(http.MethodPost, "/users", map[string]string{
		"name":     "Prueba E2E",
		"email":    email,
		"password": "secreto1",
		"role":     "user",
		"status":   "active",
	}, adminToken)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)

	var user struct {
		ID string `json:"id"`
	}
	resp.Decode(t, &user)

	resp = makeRequest(http.MethodPost, "/users", map[string]string{
		"name":     "Prueba E2E",
		"email":    email,
		"password": "secreto1",
		"role":     "user",
		"status":   "active",
	}, adminToken)
	assert.Equal(t, http.StatusConflict, resp.Code)

	_, err := login(email, "secreto1")
	require.NoError(t, err)

	resp = makeRequest(http.MethodDelete, "/users/"+user.ID, nil, adminToken)
	assert.True(t, resp.IsSuccess(), resp.Message)
}
