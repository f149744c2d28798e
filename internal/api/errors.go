package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cadence/internal/schedule"
)

var errRateLimited = errors.New("too many requests")

// statusFor maps a manager error to an HTTP status and a client-safe message.
// Validation and lookup messages are passed through; store and timer
// failures are not.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, schedule.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, schedule.ErrNotFound):
		return http.StatusNotFound, "Schedule not found"
	case errors.Is(err, schedule.ErrInactive):
		return http.StatusConflict, "Schedule is inactive"
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, schedule.ErrActionExecution) && errors.Is(err, schedule.ErrHistoryRecording):
		return http.StatusInternalServerError, "one or more actions failed and history was not recorded"
	case errors.Is(err, schedule.ErrActionExecution):
		return http.StatusInternalServerError, "one or more actions failed"
	case errors.Is(err, schedule.ErrHistoryRecording):
		return http.StatusInternalServerError, "actions ran but history was not recorded"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	s.failWith(c, err, nil)
}

func (s *Server) failWith(c *gin.Context, err error, report *runNowResponse) {
	code, msg := statusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(code, errorResponse{
		Error:     msg,
		RequestID: requestID(c),
		Report:    report,
	})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg, RequestID: requestID(c)})
}
