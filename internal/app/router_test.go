package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/gesticom/gesticom/internal/observability"
	"github.com/gesticom/gesticom/internal/platform/httpx"
	"github.com/gesticom/gesticom/internal/rbac"
	"github.com/gesticom/gesticom/internal/shared"
)

type whoami struct {
	rbac rbac.Middleware
}

func (h whoami) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(shared.PermStockView)).Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		id, _ := shared.IdentityFromContext(r.Context())
		httpx.JSON(w, http.StatusOK, map[string]string{"user": strconv.FormatInt(id.UserID, 10), "role": string(id.Role)})
	})
}

func newTestRouter(t *testing.T) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := shared.NewSessionManager(client, "gesticom_session", time.Hour, false)
	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second, RateLimitPerMinute: 1000}
	router := NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessions,
		Metrics:        observability.NewMetrics(),
		Modules:        []RouteMounter{whoami{rbac: rbac.Middleware{Policy: rbac.NewPolicy(rbac.DefaultGrants()), Logger: logger}}},
	})
	return router, sessions
}

func loginCookie(t *testing.T, sessions *shared.SessionManager, id shared.Identity) *http.Cookie {
	t.Helper()
	sess, err := sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetIdentity(id)
	rec := httptest.NewRecorder()
	require.NoError(t, sessions.Commit(context.Background(), rec, sess))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestHealthzAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `gesticom_http_requests_total{code="200",route="/healthz"} 1`)
}

func TestSessionIdentityReachesHandlers(t *testing.T) {
	router, sessions := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(loginCookie(t, sessions, shared.Identity{UserID: 42, Role: shared.RoleCashier, EntityID: 3}))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.JSONEq(t, `{"user":"42","role":"CASHIER"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "gesticom_session", Value: "expired"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
