package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAuth_SetsUserIDFromHeader(t *testing.T) {
	var uid string
	var present bool

	r := gin.New()
	r.Use(Auth())
	r.GET("/x", func(c *gin.Context) {
		var v any
		v, present = c.Get("userID")
		uid, _ = v.(string)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-User-ID", "  user-7  ")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if !present {
		t.Fatalf("userID not set in context")
	}
	if uid != "user-7" {
		t.Fatalf("userID = %q; want trimmed user-7", uid)
	}
}

func TestAuth_PassesThroughWithoutHeader(t *testing.T) {
	var present bool

	r := gin.New()
	r.Use(Auth())
	r.GET("/x", func(c *gin.Context) {
		_, present = c.Get("userID")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("unauthenticated request was blocked: %d", w.Code)
	}
	if present {
		t.Fatalf("userID set despite missing header")
	}
}

func TestAuth_IgnoresBlankHeader(t *testing.T) {
	var present bool

	r := gin.New()
	r.Use(Auth())
	r.GET("/x", func(c *gin.Context) {
		_, present = c.Get("userID")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-User-ID", "   ")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if present {
		t.Fatalf("blank header should not set an identity")
	}
}
