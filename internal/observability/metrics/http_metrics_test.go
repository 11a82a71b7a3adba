package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetricsUseRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewHTTPMetricsWithRegisterer(prometheus.NewRegistry(), Config{ServiceName: "esimmock"})

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/v1/connectivity/esims/:esimId", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"maya_a", "maya_b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/connectivity/esims/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues("GET", "/v1/connectivity/esims/:esimId", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.inFlight))
}

func TestHTTPMetricsNilIsNoop(t *testing.T) {
	var m *HTTPMetrics
	m.ObserveRequest("GET", "/health", http.StatusOK, 0)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
