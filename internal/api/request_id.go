package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDMiddleware 请求 ID 中间件
// 透传客户端带来的 X-Request-ID,否则生成新的,
// 同时写入请求上下文供审计日志使用
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		ctx := c.Request.Context()
		ctx = context.WithValue(ctx, "request_id", requestID) //nolint:staticcheck
		ctx = context.WithValue(ctx, "ip", c.ClientIP())      //nolint:staticcheck
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
