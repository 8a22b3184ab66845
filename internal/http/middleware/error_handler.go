package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/skillhire-backend/internal/logger"
	"github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно.
// Хендлеры кладут ошибку через c.Error и выходят. AppError отдаётся клиенту
// с кодом и деталями, остальные ошибки маскируются как внутренние.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Проверяем, не был ли уже отправлен ответ
		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		var appErr *apperror.AppError
		if !errors.As(err, &appErr) || appErr.Code == apperror.ErrCodeInternal {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("Request error")
			c.JSON(http.StatusInternalServerError, errorBody(apperror.ErrInternal))
			return
		}

		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if status >= http.StatusInternalServerError {
			logger.Log.WithError(err).WithField("path", c.Request.URL.Path).Error("Request error")
		}
		c.JSON(status, errorBody(appErr))
	}
}

func errorBody(err *apperror.AppError) gin.H {
	body := gin.H{
		"error": err.Message,
		"code":  err.Code,
	}
	if len(err.Details) > 0 {
		body["details"] = err.Details
	}
	return body
}
