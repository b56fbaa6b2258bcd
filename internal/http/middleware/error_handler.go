package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/construction-backend/internal/logger"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно. Ошибки apperror несут
// свой HTTP статус и безопасное для клиента сообщение; всё остальное
// маскируется как внутренняя ошибка.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()

		if logger.Log != nil {
			entry := logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			})
			if apperror.IsInvariant(err.Err) {
				entry.Error("нарушение финансового инварианта")
			} else {
				entry.Error("ошибка запроса")
			}
		}

		statusCode := http.StatusInternalServerError
		message := "внутренняя ошибка сервера"

		var appErr *apperror.AppError
		if errors.As(err.Err, &appErr) {
			statusCode = appErr.HTTPStatus
			if statusCode < http.StatusInternalServerError {
				message = appErr.Message
			}
		}

		c.JSON(statusCode, gin.H{"error": message})
	}
}
