package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// serveCORS はCORSミドルウェアを適用した /items にリクエストを送り、ハンドラーが呼ばれたかどうかを返す。
func serveCORS(allowed []string, method, origin string) (*httptest.ResponseRecorder, bool) {
	called := false
	router := gin.New()
	router.Use(CORS(allowed))
	router.Handle(method, "/items", func(c *gin.Context) {
		called = true
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(method, "/items", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w, called
}

// TestCORS はCORSミドルウェアを検証する。
func TestCORS(t *testing.T) {
	t.Parallel()

	t.Run("許可されたオリジンにはCORSヘッダーがすべて設定されること", func(t *testing.T) {
		t.Parallel()

		w, called := serveCORS([]string{"http://localhost:3000"}, http.MethodGet, "http://localhost:3000")
		if !called {
			t.Error("GETリクエストでハンドラーが呼ばれるべき")
		}

		want := map[string]string{
			"Access-Control-Allow-Origin":   "http://localhost:3000",
			"Access-Control-Allow-Methods":  "GET, POST, PUT, DELETE, OPTIONS",
			"Access-Control-Allow-Headers":  "Authorization, Content-Type, X-Request-ID",
			"Access-Control-Expose-Headers": "X-Request-ID",
			"Access-Control-Max-Age":        "86400",
			"Vary":                          "Origin",
		}
		for k, v := range want {
			if got := w.Header().Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}
	})

	origins := []struct {
		name      string
		allowed   []string
		origin    string
		wantAllow string
	}{
		{name: "許可リストの2番目のオリジンも許可されること", allowed: []string{"http://localhost:3000", "https://example.com"}, origin: "https://example.com", wantAllow: "https://example.com"},
		{name: "許可リストの末尾スラッシュは無視されること", allowed: []string{"https://example.com/"}, origin: "https://example.com", wantAllow: "https://example.com"},
		{name: "*は任意のオリジンを許可すること", allowed: []string{"*"}, origin: "https://anywhere.example", wantAllow: "https://anywhere.example"},
		{name: "許可されていないオリジンにはヘッダーが付かないこと", allowed: []string{"http://localhost:3000"}, origin: "https://evil.com"},
		{name: "Originヘッダーが無い場合はヘッダーが付かないこと", allowed: []string{"*"}},
		{name: "空の許可リストではヘッダーが付かないこと", allowed: nil, origin: "http://localhost:3000"},
	}
	for _, tt := range origins {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w, _ := serveCORS(tt.allowed, http.MethodGet, tt.origin)
			if w.Code != http.StatusOK {
				t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}

	t.Run("OPTIONSリクエストはオリジンに関わらず204で中断されること", func(t *testing.T) {
		t.Parallel()

		for _, origin := range []string{"http://localhost:3000", "https://evil.com"} {
			w, called := serveCORS([]string{"http://localhost:3000"}, http.MethodOptions, origin)
			if w.Code != http.StatusNoContent {
				t.Errorf("%s: ステータスコード = %d, want %d", origin, w.Code, http.StatusNoContent)
			}
			if called {
				t.Errorf("%s: OPTIONSリクエストでハンドラーが呼ばれるべきではない", origin)
			}
		}
	})
}
