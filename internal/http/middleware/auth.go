package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey    = "userID"
	ContextRoleKey      = "role"
	ContextPrincipalKey = "principal"
)

// TokenParser проверяет access токен.
type TokenParser interface {
	ParseAccess(token string) (uuid.UUID, string, error)
}

// PrincipalLoader загружает актуальные данные пользователя: роль и блокировку.
type PrincipalLoader interface {
	GetPrincipal(ctx context.Context, id uuid.UUID) (models.Principal, error)
}

// AuthMiddleware проверяет JWT access токен и кладёт Principal в контекст.
// Роль берётся из БД, а не из токена, чтобы смена роли и блокировка
// вступали в силу сразу.
func AuthMiddleware(tokens TokenParser, principals PrincipalLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			abortWith(c, apperror.ErrUnauthorized)
			return
		}

		raw := strings.TrimPrefix(auth, "Bearer ")
		userID, _, err := tokens.ParseAccess(raw)
		if err != nil || userID == uuid.Nil {
			abortWith(c, apperror.New(apperror.ErrCodeUnauthorized, "токен невалиден"))
			return
		}

		p, err := principals.GetPrincipal(c.Request.Context(), userID)
		if err != nil {
			abortWith(c, apperror.New(apperror.ErrCodeUnauthorized, "пользователь не найден"))
			return
		}

		c.Set(ContextUserIDKey, p.ID)
		c.Set(ContextRoleKey, p.Role)
		c.Set(ContextPrincipalKey, p)
		c.Next()
	}
}

// RequireRole пропускает только пользователей с одной из ролей.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRoleKey)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		abortWith(c, apperror.ErrForbidden)
	}
}

func abortWith(c *gin.Context, err *apperror.AppError) {
	status := err.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, errorBody(err))
}
