package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(h.Middleware())
	r.GET("/documents/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/metrics", h.Handler())

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, float64(3), testutil.ToFloat64(h.requestTotal.WithLabelValues("GET", "/documents/:id", "404")))
	assert.Equal(t, float64(3), testutil.ToFloat64(h.errorTotal.WithLabelValues("GET", "/documents/:id", "404")))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.requestTotal.WithLabelValues("GET", "unmatched", "404")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",path="/documents/:id",status="404"} 3`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
