package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/freightquote-backend/internal/platform/ctxutil"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
	"github.com/yungbote/freightquote-backend/internal/services"
)

func TestLimiterStoreForgetsIdleKeys(t *testing.T) {
	s := NewLimiterStore(1, 1, time.Minute)
	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	a := s.Get("carrier:a")
	if s.Get("carrier:a") != a {
		t.Fatalf("same key must reuse its limiter")
	}
	s.Get("client:b")
	clock = clock.Add(2 * time.Minute)
	s.Get("client:b")
	if removed := s.Cleanup(); removed != 1 || s.Len() != 1 {
		t.Fatalf("cleanup: removed=%d len=%d", removed, s.Len())
	}
}

func withActor(role string, id uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(ctxutil.WithActor(c.Request.Context(), &ctxutil.Actor{PartyID: id, Role: role}))
		c.Next()
	}
}

func TestRateLimitIsPerActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := NewLimiterStore(0.001, 2, time.Minute)
	noisy, quiet := uuid.New(), uuid.New()

	serve := func(id uuid.UUID) *httptest.ResponseRecorder {
		r := gin.New()
		r.Use(withActor("carrier", id), RateLimit(store, nil))
		r.POST("/api/negotiations/:id/carrier-decision", func(c *gin.Context) { c.Status(http.StatusOK) })
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/negotiations/x/carrier-decision", nil))
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := serve(noisy); rec.Code != http.StatusOK {
			t.Fatalf("request %d within burst: %d", i, rec.Code)
		}
	}
	rec := serve(noisy)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("over burst: code=%d retry-after=%q", rec.Code, rec.Header().Get("Retry-After"))
	}
	if rec := serve(quiet); rec.Code != http.StatusOK {
		t.Fatalf("other actor throttled: %d", rec.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(NewLimiterStore(0, 1, 0), nil))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("disabled limiter rejected request %d", i)
		}
	}
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	auth := services.NewAuthService(log, "mw-secret", "")
	party := uuid.New()
	token, err := auth.IssueToken("client", party, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	r := gin.New()
	r.Use(NewAuthMiddleware(log, auth).RequireAuth())
	r.GET("/api/me", func(c *gin.Context) {
		a := ctxutil.GetActor(c.Request.Context())
		if a == nil || a.PartyID != party || c.GetString("actor_role") != "client" {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	cases := map[string]int{
		"":                        http.StatusUnauthorized,
		"Bearer not-a-jwt":        http.StatusUnauthorized,
		"Basic dXNlcjpwYXNz":      http.StatusUnauthorized,
		"Bearer " + token:         http.StatusOK,
		"bearer " + token + "   ": http.StatusOK,
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("header %q: want=%d got=%d", header, want, rec.Code)
		}
	}
}

func TestRequestTimeoutSetsDeadline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestTimeout(time.Second))
	r.GET("/x", func(c *gin.Context) {
		if _, ok := c.Request.Context().Deadline(); !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil).WithContext(context.Background()))
	if rec.Code != http.StatusOK {
		t.Fatalf("no deadline on request context")
	}
}

func TestAttachTraceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen *ctxutil.TraceData
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "  req-42 ")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if seen == nil || seen.RequestID != "req-42" || seen.TraceID == "" {
		t.Fatalf("trace data: %+v", seen)
	}
	if rec.Header().Get(headerRequestID) != "req-42" || rec.Header().Get(headerTraceID) != seen.TraceID {
		t.Fatalf("response headers: %v", rec.Header())
	}
}
