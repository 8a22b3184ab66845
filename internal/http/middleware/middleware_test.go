package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"
)

type MockTokenParser struct {
	mock.Mock
}

func (m *MockTokenParser) ParseAccess(token string) (uuid.UUID, string, error) {
	args := m.Called(token)
	return args.Get(0).(uuid.UUID), args.String(1), args.Error(2)
}

type MockPrincipalLoader struct {
	mock.Mock
}

func (m *MockPrincipalLoader) GetPrincipal(ctx context.Context, id uuid.UUID) (models.Principal, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Principal), args.Error(1)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	tokens := new(MockTokenParser)
	principals := new(MockPrincipalLoader)

	userID := uuid.New()
	admin := models.Principal{ID: userID, Name: "root", Role: models.RoleAdmin}
	tokens.On("ParseAccess", "good").Return(userID, models.RoleFreelancer, nil)
	tokens.On("ParseAccess", "bad").Return(uuid.Nil, "", errors.New("expired"))
	principals.On("GetPrincipal", mock.Anything, userID).Return(admin, nil)

	r := gin.New()
	r.GET("/me", AuthMiddleware(tokens, principals), func(c *gin.Context) {
		p := c.MustGet(ContextPrincipalKey).(models.Principal)
		c.JSON(http.StatusOK, gin.H{"role": p.Role, "name": p.Name})
	})

	w := perform(r, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), string(apperror.ErrCodeUnauthorized))

	w = perform(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Роль берётся из БД, а не из токена.
	w = perform(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"role":"admin","name":"root"}`, w.Body.String())
}

func TestAuthMiddleware_UnknownUser(t *testing.T) {
	tokens := new(MockTokenParser)
	principals := new(MockPrincipalLoader)
	userID := uuid.New()
	tokens.On("ParseAccess", "orphan").Return(userID, models.RoleClient, nil)
	principals.On("GetPrincipal", mock.Anything, userID).Return(models.Principal{}, apperror.ErrUserNotFound)

	r := gin.New()
	r.GET("/me", AuthMiddleware(tokens, principals), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer orphan"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	r.GET("/admin", func(c *gin.Context) {
		c.Set(ContextRoleKey, c.Query("role"))
	}, RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/admin?role=admin", nil).Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/admin?role=client", nil).Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/admin", nil).Code)
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/resolved", func(c *gin.Context) { _ = c.Error(apperror.AlreadyResolved("completed")) })
	r.GET("/balance", func(c *gin.Context) { _ = c.Error(apperror.ErrInsufficientBalance) })
	r.GET("/boom", func(c *gin.Context) { _ = c.Error(errors.New("pq: connection refused")) })
	r.GET("/ok", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	w := perform(r, http.MethodGet, "/resolved", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"ALREADY_RESOLVED"`)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)

	w = perform(r, http.MethodGet, "/balance", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"INSUFFICIENT_BALANCE"`)

	w = perform(r, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/ok", nil).Code)
}

func TestUUIDValidator(t *testing.T) {
	r := gin.New()
	r.GET("/jobs/:id", UUIDValidator("id"), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/jobs/"+uuid.NewString(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodGet, "/jobs/42", nil).Code)
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://skillhire.app"}))
	r.GET("/api/jobs", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodOptions, "/api/jobs", map[string]string{
		"Origin":                        "https://skillhire.app",
		"Access-Control-Request-Method": http.MethodGet,
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://skillhire.app", w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(r, http.MethodGet, "/api/jobs", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func rateLimitedRouter(t *testing.T, client *redis.Client) *gin.Engine {
	t.Helper()
	store, err := NewRateLimitStore(client)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/ping", RateLimitMiddleware(store, 2, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimitMiddleware_Memory(t *testing.T) {
	r := rateLimitedRouter(t, nil)

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/ping", nil).Code)
	w := perform(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodGet, "/ping", nil).Code)
}

func TestRateLimitMiddleware_RedisSharedAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	first, second := rateLimitedRouter(t, client), rateLimitedRouter(t, client)

	assert.Equal(t, http.StatusOK, perform(first, http.MethodGet, "/ping", nil).Code)
	assert.Equal(t, http.StatusOK, perform(second, http.MethodGet, "/ping", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(first, http.MethodGet, "/ping", nil).Code)
}
