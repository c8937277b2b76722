package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TestRequestID はRequestIDミドルウェアを検証する。
func TestRequestID(t *testing.T) {
	t.Parallel()

	t.Run("X-Request-IDが無い場合はUUIDが割り当てられること", func(t *testing.T) {
		t.Parallel()

		var fromGin, fromCtx string
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			fromGin = GetRequestID(c)
			fromCtx = RequestIDFromContext(c.Request.Context())
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		got := w.Header().Get("X-Request-ID")
		if _, err := uuid.Parse(got); err != nil {
			t.Fatalf("X-Request-ID = %q はUUIDではない: %v", got, err)
		}
		if fromGin != got || fromCtx != got {
			t.Errorf("GetRequestID() = %q, RequestIDFromContext() = %q, want %q", fromGin, fromCtx, got)
		}
	})

	t.Run("クライアントが送ったX-Request-IDを引き継ぐこと", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Request-ID", "client-supplied-id")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get("X-Request-ID"); got != "client-supplied-id" {
			t.Errorf("X-Request-ID = %q, want %q", got, "client-supplied-id")
		}
	})

	t.Run("ミドルウェアを通らないコンテキストでは空文字列が返ること", func(t *testing.T) {
		t.Parallel()

		if got := RequestIDFromContext(t.Context()); got != "" {
			t.Errorf("RequestIDFromContext() = %q, want empty string", got)
		}
	})
}
