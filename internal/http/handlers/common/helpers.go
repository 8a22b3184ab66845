package common

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/skillhire-backend/internal/http/middleware"
	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"
)

// CurrentPrincipal извлекает аутентифицированного пользователя из контекста.
func CurrentPrincipal(c *gin.Context) (models.Principal, error) {
	raw, exists := c.Get(middleware.ContextPrincipalKey)
	if !exists {
		return models.Principal{}, apperror.ErrUnauthorized
	}
	p, ok := raw.(models.Principal)
	if !ok || p.ID == uuid.Nil {
		return models.Principal{}, apperror.ErrUnauthorized
	}
	return p, nil
}

// CurrentUserID extracts user ID from Gin context
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	p, err := CurrentPrincipal(c)
	if err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

// ParseUUIDParam parses UUID from URL parameter
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(c.Param(paramName))
	if err != nil {
		return uuid.Nil, apperror.Validation("параметр " + paramName + " должен быть валидным UUID")
	}
	return parsed, nil
}

// BindJSON разбирает тело запроса и превращает ошибку биндинга в ошибку валидации.
func BindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		// Money.UnmarshalJSON возвращает AppError с понятным текстом.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperror.Validation("некорректное тело запроса: " + err.Error())
	}
	return nil
}

// Fail передаёт ошибку в middleware.ErrorHandler.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// RespondJSON sends a JSON response with the given status code and data
func RespondJSON(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// RespondOK отвечает 200 с данными.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// ParseIntQuery safely reads an integer query parameter with a fallback value
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination extracts limit and offset from query parameters with defaults
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", 20)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return
}

// OptionalUUIDQuery читает необязательный UUID из query.
func OptionalUUIDQuery(c *gin.Context, key string) (*uuid.UUID, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.Validation("параметр " + key + " должен быть валидным UUID")
	}
	return &id, nil
}
