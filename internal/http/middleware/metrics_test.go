package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRouteAndStatus(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/things/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	ctr := httpReqs.WithLabelValues(http.MethodGet, "/things/:id", "200")
	before := testutil.ToFloat64(ctr)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/7", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/8", nil))

	if got := testutil.ToFloat64(ctr) - before; got != 2 {
		t.Fatalf("counter delta = %v; want 2", got)
	}
}

func TestMetrics_UnmatchedRouteUsesRawPath(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())

	ctr := httpReqs.WithLabelValues(http.MethodGet, "/nope", "404")
	before := testutil.ToFloat64(ctr)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	if got := testutil.ToFloat64(ctr) - before; got != 1 {
		t.Fatalf("counter delta = %v; want 1", got)
	}
}

func TestMetrics_InflightReturnsToBaseline(t *testing.T) {
	base := testutil.ToFloat64(httpInflight)

	var during float64
	r := gin.New()
	r.Use(Metrics())
	r.GET("/x", func(c *gin.Context) {
		during = testutil.ToFloat64(httpInflight)
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if during != base+1 {
		t.Fatalf("inflight during request = %v; want %v", during, base+1)
	}
	if got := testutil.ToFloat64(httpInflight); got != base {
		t.Fatalf("inflight after request = %v; want %v", got, base)
	}
}
