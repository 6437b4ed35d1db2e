package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TIANLI0/MatteKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger(), CORS())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
	return r
}

func TestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := utils.Logger
	utils.Logger = zap.New(core)
	defer func() { utils.Logger = prev }()

	r := newRouter()
	for _, path := range []string{"/ok", "/fail", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path+"?q=1", nil))
	}

	entries := logs.FilterMessage("request").All()
	if len(entries) != 3 {
		t.Fatalf("logged %d requests, want 3", len(entries))
	}
	levels := []string{"info", "error", "warn"}
	for i, e := range entries {
		if e.Level.String() != levels[i] {
			t.Errorf("request %d logged at %s, want %s", i, e.Level, levels[i])
		}
		if q := e.ContextMap()["query"]; q != "q=1" {
			t.Errorf("request %d query = %v", i, q)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/ok", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q", got)
	}
}
