package web

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tomato/internal/pomodoro"
	"tomato/internal/report"
)

// Reporter builds the history summary for the last days days.
type Reporter func(ctx context.Context, days int) (report.Summary, error)

// Server is the HTTP API in front of the timer engine
type Server struct {
	engine   *pomodoro.Engine
	reporter Reporter
	router   *gin.Engine
}

// NewServer creates the router. reporter may be nil, in which case the
// report route is not registered.
func NewServer(engine *pomodoro.Engine, reporter Reporter) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		engine:   engine,
		reporter: reporter,
		router:   router,
	}

	api := router.Group("/api")
	{
		api.GET("/timer", s.handleState)
		api.POST("/timer/start", s.handleStart)
		api.POST("/timer/pause", s.handlePause)
		api.POST("/timer/reset", s.handleReset)
		api.POST("/timer/skip", s.handleSkip)
		api.POST("/timer/type", s.handleChangeType)
		api.GET("/settings", s.handleGetSettings)
		api.PATCH("/settings", s.handleUpdateSettings)
		api.GET("/events", s.handleEvents)
		if reporter != nil {
			api.GET("/report", s.handleReport)
		}
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		// Requests inherit ctx so open event streams end on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
