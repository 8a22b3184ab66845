package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"
)

// UUIDValidator проверяет, что параметры с указанными именами являются валидными UUID.
// Использование: router.GET("/jobs/:id", UUIDValidator("id"), handler.GetJob)
func UUIDValidator(paramNames ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range paramNames {
			raw := c.Param(name)
			if raw == "" {
				abortWith(c, apperror.Validation("параметр "+name+" обязателен"))
				return
			}
			if _, err := uuid.Parse(raw); err != nil {
				abortWith(c, apperror.Validation("параметр "+name+" должен быть валидным UUID"))
				return
			}
		}
		c.Next()
	}
}
