package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/hrflow-gin/internal/workflow"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()

			var apiErr *APIError
			if errors.As(err, &apiErr) {
				Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			} else {
				Error(c, http.StatusInternalServerError, "internal server error", err.Error())
			}
		}
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// HandleError 把业务错误映射为 HTTP 响应
// 校验 400、不存在 404、无权限 403、状态冲突 409,其余一律 500
func HandleError(c *gin.Context, err error) {
	var wfErr *workflow.Error
	if !errors.As(err, &wfErr) {
		Error(c, http.StatusInternalServerError, "internal server error", err.Error())
		return
	}

	switch wfErr.Kind {
	case workflow.KindValidation:
		Error(c, http.StatusBadRequest, "invalid request", wfErr.Error())
	case workflow.KindNotFound:
		Error(c, http.StatusNotFound, "not found", wfErr.Error())
	case workflow.KindForbidden:
		Error(c, http.StatusForbidden, "forbidden", wfErr.Error())
	case workflow.KindConflict:
		Error(c, http.StatusConflict, "conflict", wfErr.Error())
	default:
		Error(c, http.StatusInternalServerError, "internal server error", wfErr.Error())
	}
}
