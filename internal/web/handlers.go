package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tomato/internal/pomodoro"
)

const (
	maxReportDays  = 366
	eventStreamBuf = 16
)

type changeTypeRequest struct {
	Phase string `json:"phase" binding:"required"`
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.State())
}

func (s *Server) handleStart(c *gin.Context) {
	s.engine.Start()
	c.JSON(http.StatusOK, s.engine.State())
}

func (s *Server) handlePause(c *gin.Context) {
	s.engine.Pause()
	c.JSON(http.StatusOK, s.engine.State())
}

func (s *Server) handleReset(c *gin.Context) {
	s.engine.Reset()
	c.JSON(http.StatusOK, s.engine.State())
}

func (s *Server) handleSkip(c *gin.Context) {
	s.engine.Skip()
	c.JSON(http.StatusOK, s.engine.State())
}

func (s *Server) handleChangeType(c *gin.Context) {
	var req changeTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phase is required"})
		return
	}
	phase, err := pomodoro.ParsePhase(req.Phase)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.ChangeType(phase); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.engine.State())
}

func (s *Server) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Settings())
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var patch pomodoro.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings body: " + err.Error()})
		return
	}
	if err := s.engine.UpdateSettings(patch); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pomodoro.ErrInvalidSettings) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.engine.Settings())
}

func (s *Server) handleReport(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 || days > maxReportDays {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 366"})
		return
	}
	summary, err := s.reporter(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// handleEvents streams engine events as server-sent events. The first
// event is a "snapshot" of the current state.
func (s *Server) handleEvents(c *gin.Context) {
	sub := s.engine.Subscribe(eventStreamBuf)
	defer s.engine.Unsubscribe(sub)

	c.SSEvent("snapshot", s.engine.State())
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-sub:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		}
	})
}
