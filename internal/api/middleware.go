package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	logx "cadence/pkg/logx"
)

const (
	headerRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"
)

// withRequestID keeps a sane client-supplied X-Request-ID or mints one.
func withRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}

func accessLog(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []logx.Field{
			logx.String("method", c.Request.Method),
			logx.String("path", c.Request.URL.Path),
			logx.Int("status", status),
			logx.Duration("took", time.Since(start)),
			logx.String("ip", c.ClientIP()),
			logx.String("request_id", requestID(c)),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields = append(fields, logx.String("err", errs.String()))
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("http request", fields...)
		case strings.HasSuffix(c.FullPath(), "/healthz"):
			log.Trace("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}

func recovery(log logx.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		log.Error("http handler panic",
			logx.Any("panic", recovered),
			logx.String("path", c.Request.URL.Path),
			logx.String("request_id", requestID(c)),
			logx.Stack(logx.StackTrace(3, 32)),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Error:     "internal error",
			RequestID: requestID(c),
		})
	})
}

// rateLimit applies the server's current limiter, if any.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if lim := s.limiter.Load(); lim != nil && !lim.Allow() {
			c.Header("Retry-After", "1")
			s.fail(c, errRateLimited)
			return
		}
		c.Next()
	}
}

// SetRate swaps the limiter for mutating routes. rps <= 0 disables it.
func (s *Server) SetRate(rps, burst int) {
	if rps <= 0 {
		s.limiter.Store(nil)
		return
	}
	if burst <= 0 {
		burst = rps
	}
	s.limiter.Store(rate.NewLimiter(rate.Limit(rps), burst))
}
