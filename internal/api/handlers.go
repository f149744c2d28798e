package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cadence/internal/schedule"
)

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(withRequestID(), accessLog(s.log), recovery(s.log))

	g := r.Group(s.cfg.BasePath)
	g.GET("/healthz", s.healthz)
	g.GET("/status", s.getStatus)
	g.GET("/schedules", s.listSchedules)
	g.GET("/schedules/:id", s.getSchedule)
	g.GET("/report_history", s.reportHistory)

	w := g.Group("", s.rateLimit())
	w.POST("/schedules", s.createSchedule)
	w.PUT("/schedules/:id", s.updateSchedule)
	w.DELETE("/schedules/:id", s.deleteSchedule)
	w.POST("/schedules/:id/run_now", s.runNow)
	return r
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now()})
}

func (s *Server) getStatus(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.status())
}

func (s *Server) listSchedules(c *gin.Context) {
	views, err := s.schedules.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]scheduleResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toScheduleResponse(v))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getSchedule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	v, err := s.schedules.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toScheduleResponse(v))
}

func (s *Server) createSchedule(c *gin.Context) {
	var req scheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Description == nil || req.IntervalMinutes == nil {
		badRequest(c, "description and interval_minutes are required")
		return
	}
	in := req.input()
	if err := in.Validate(); err != nil {
		s.fail(c, err)
		return
	}
	v, err := s.schedules.Create(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toScheduleResponse(v))
}

func (s *Server) updateSchedule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req scheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	p := req.patch()
	if err := schedule.ValidatePatch(p); err != nil {
		s.fail(c, err)
		return
	}
	v, err := s.schedules.Update(c.Request.Context(), id, p)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toScheduleResponse(v))
}

func (s *Server) deleteSchedule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.schedules.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Schedule deleted successfully"})
}

func (s *Server) runNow(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rep, err := s.schedules.RunNow(c.Request.Context(), id)
	body := runNowResponse{
		Message:    "Schedule executed",
		ScheduleID: rep.ScheduleID,
		Actions:    rep.Actions,
	}
	if rep.History != nil {
		body.HistoryID = &rep.History.ID
	}
	if err != nil {
		// Actions may have run; the report tells the caller which.
		if len(rep.Actions) > 0 {
			body.Message = "Schedule executed with errors"
			s.failWith(c, err, &body)
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) reportHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	hist, err := s.schedules.History(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]historyResponse, 0, len(hist))
	for _, h := range hist {
		out = append(out, historyResponse{
			ID:          h.ID,
			ScheduleID:  h.ScheduleID,
			Description: h.Description,
			CompletedAt: h.CompletedAt,
			Source:      h.Source,
		})
	}
	c.JSON(http.StatusOK, out)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// bindJSON decodes the body; type mismatches such as a fractional
// interval_minutes are rejected here.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
