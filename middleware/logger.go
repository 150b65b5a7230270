package middleware

import (
	"time"

	"github.com/TIANLI0/DetectKit/client"
	"github.com/TIANLI0/DetectKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"

// RequestID 为每个请求分配追踪ID，已带有时沿用，并把带 request_id 的 logger 写入请求 context
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(client.HeaderRequestID)
		if id == "" {
			id = utils.NewRequestID()
		}
		c.Set(requestIDKey, id)
		c.Header(client.HeaderRequestID, id)

		logger := utils.Logger.With(zap.String(requestIDKey, id))
		ctx := client.WithRequestID(utils.WithLogger(c.Request.Context(), logger), id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Logger 访问日志，按状态码选择级别
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("cost", time.Since(start)),
			zap.Int("size", c.Writer.Size()),
			zap.String("ip", c.ClientIP()),
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		log := utils.L(c.Request.Context())
		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
