package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/campus-events/internal/helpers"
	"github.com/joshua-takyi/campus-events/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler(discard))
	r.Use(mw...)
	return r
}

func do(r http.Handler, method, path string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestErrorHandlerMapsKinds(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{models.NewValidationError("name is required"), http.StatusBadRequest, "name is required"},
		{models.ErrDuplicateEmail, http.StatusBadRequest, "user already exists"},
		{models.ErrInvalidCredentials, http.StatusBadRequest, "invalid credentials"},
		{models.ErrEventFull, http.StatusBadRequest, "event is fully booked"},
		{models.NewUnauthorizedError("no token"), http.StatusUnauthorized, "no token"},
		{models.NewForbiddenError("admin access required"), http.StatusForbidden, "admin access required"},
		{models.NewNotFoundError("event"), http.StatusNotFound, "event not found"},
		{models.NewRateLimitedError(), http.StatusTooManyRequests, "rate limit exceeded, try again later"},
		{models.NewInternalError("failed to insert", errors.New("dial tcp: refused")), http.StatusInternalServerError, "Internal server error"},
		{errors.New("untagged"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			r := newEngine()
			r.GET("/x", func(c *gin.Context) { c.Error(tt.err) })

			w, body := do(r, http.MethodGet, "/x", nil)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.msg, body["error"])
			assert.NotEmpty(t, body["request_id"])
		})
	}
}

func TestRequestIDPropagates(t *testing.T) {
	r := newEngine()
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w, _ := do(r, http.MethodGet, "/x", map[string]string{"X-Request-ID": "req-123"})
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	w, _ = do(r, http.MethodGet, "/x", nil)
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

type fakeAuth struct {
	id primitive.ObjectID
}

func (f fakeAuth) Authenticate(token string) (*helpers.Claims, primitive.ObjectID, error) {
	if token != "good" {
		return nil, primitive.NilObjectID, models.NewUnauthorizedError("invalid or expired token")
	}
	return &helpers.Claims{UserID: f.id.Hex()}, f.id, nil
}

type fakeUsers map[primitive.ObjectID]*models.User

func (f fakeUsers) GetProfile(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, models.NewNotFoundError("user")
}

func TestAuthMiddleware(t *testing.T) {
	id := primitive.NewObjectID()
	r := newEngine(AuthMiddleware(fakeAuth{id: id}))
	r.GET("/me", func(c *gin.Context) {
		got, err := helpers.UserIDFromContext(c)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": got.Hex()})
	})

	w, body := do(r, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "no token, authorization denied", body["error"])

	w, _ = do(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = do(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id.Hex(), body["id"])
}

func TestAdminOnly(t *testing.T) {
	adminID, memberID, ghostID := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	users := fakeUsers{
		adminID:  {ID: adminID, IsAdmin: true},
		memberID: {ID: memberID},
	}
	run := func(id primitive.ObjectID) int {
		r := newEngine(AuthMiddleware(fakeAuth{id: id}), AdminOnly(users))
		r.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })
		w, _ := do(r, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer good"})
		return w.Code
	}

	assert.Equal(t, http.StatusOK, run(adminID))
	assert.Equal(t, http.StatusForbidden, run(memberID))
	assert.Equal(t, http.StatusUnauthorized, run(ghostID))
}

func TestRateLimitMemory(t *testing.T) {
	l := NewMemoryLimiter(2)
	defer l.Stop()
	r := newEngine(RateLimit(l, "auth", discard))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w, _ := do(r, http.MethodPost, "/login", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, body := do(r, http.MethodPost, "/login", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded, try again later", body["error"])
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis: connection refused")
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := newEngine(RateLimit(brokenLimiter{}, "public", discard))
	r.GET("/events", func(c *gin.Context) { c.Status(http.StatusOK) })

	w, _ := do(r, http.MethodGet, "/events", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMemoryLimiterCleanup(t *testing.T) {
	l := NewMemoryLimiter(5)
	defer l.Stop()
	_, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)

	l.cleanup(-time.Second)

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.limiters)
}

func TestQueryToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/ws?token=abc", nil)
	assert.Equal(t, "abc", QueryToken(c))

	c.Request.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", QueryToken(c))
}
