package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shion-ptpe/oauth/internal/auth"
	"github.com/shion-ptpe/oauth/internal/middleware"
	"github.com/shion-ptpe/oauth/internal/session"
	"github.com/shion-ptpe/oauth/internal/user/usertest"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newProtected(t *testing.T) (*gin.Engine, *usertest.Repository, *session.CacheStore) {
	t.Helper()

	repo := usertest.NewRepository()
	store := session.NewMemoryStore(time.Hour)
	sessions := session.NewManager(store, time.Hour, session.CookieOptions{Name: "sid"})
	svc := auth.NewService(nil, repo, auth.Options{})

	r := gin.New()
	r.Use(sessions.Middleware(), middleware.RequireAuth(svc))
	r.GET("/me", func(c *gin.Context) {
		u, ok := middleware.UserFromContext(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, u.SubjectID)
	})
	return r, repo, store
}

func seedSession(t *testing.T, store *session.CacheStore, token string) *http.Cookie {
	t.Helper()
	sess := session.New("sid-" + token)
	sess.SetToken(token)
	require.NoError(t, store.Save(context.Background(), sess, time.Hour))
	return &http.Cookie{Name: "sid", Value: sess.ID}
}

func get(r http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	t.Run("anonymous", func(t *testing.T) {
		t.Parallel()
		r, _, _ := newProtected(t)
		assert.Equal(t, http.StatusUnauthorized, get(r, "/me", nil).Code)
	})

	t.Run("bound token", func(t *testing.T) {
		t.Parallel()
		r, repo, store := newProtected(t)
		repo.Add("U1", "T1")

		rec := get(r, "/me", seedSession(t, store, "T1"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "U1", rec.Body.String())
	})

	t.Run("stale token", func(t *testing.T) {
		t.Parallel()
		r, repo, store := newProtected(t)
		repo.Add("U1", "T2")

		assert.Equal(t, http.StatusUnauthorized, get(r, "/me", seedSession(t, store, "T1")).Code)
	})

	t.Run("lookup error", func(t *testing.T) {
		t.Parallel()
		r, repo, store := newProtected(t)
		repo.FindErr = errors.New("connection reset")

		assert.Equal(t, http.StatusInternalServerError, get(r, "/me", seedSession(t, store, "T1")).Code)
	})
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(middleware.RequestLogger())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, middleware.RequestID(c))
	})

	rec := get(r, "/ping", nil)
	id := rec.Header().Get(middleware.RequestIDHeader)
	_, err := ksuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.Body.String())

	incoming := ksuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(middleware.RequestIDHeader, incoming)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, incoming, rec.Header().Get(middleware.RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(middleware.RequestIDHeader, "not-an-id\nforged")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-an-id\nforged", rec.Header().Get(middleware.RequestIDHeader))
}

func TestWithCORS(t *testing.T) {
	t.Parallel()

	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	preflight := func(h http.Handler, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/oauth/session", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	h := middleware.WithCORS(inner, []string{"https://app.example.com"})

	rec := preflight(h, "https://app.example.com")
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = preflight(h, "https://evil.example.com")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = preflight(middleware.WithCORS(inner, nil), "https://app.example.com")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
