package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"telegram-ai-diary/internal/models"
	"telegram-ai-diary/internal/storage"
)

const (
	RoutineMorning = "morning"
	RoutineEvening = "evening"
)

// ReminderCounter reports how many reminders are waiting to fire.
type ReminderCounter interface {
	Count() int
}

// Status is the body of GET /status.
type Status struct {
	Chats            int            `json:"chats"`
	Modes            map[string]int `json:"modes"`
	PendingReminders int            `json:"pending_reminders"`
	Uptime           string         `json:"uptime"`
}

// Routines are the daily routines POST /routines/:name can start.
type Routines interface {
	SendMorning(ctx context.Context)
	SendEvening(ctx context.Context)
}

type Server struct {
	store     storage.Store
	reminders ReminderCounter
	routines  Routines
	started   time.Time
	router    *gin.Engine
}

// NewServer builds the router. reminders and routines may be nil; without
// routines the /routines endpoint answers 404.
func NewServer(store storage.Store, reminders ReminderCounter, routines Routines) *Server {
	if gin.Mode() == gin.DebugMode && os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		store:     store,
		reminders: reminders,
		routines:  routines,
		started:   time.Now(),
		router:    router,
	}

	router.GET("/healthz", s.handleHealthz)
	router.GET("/status", s.handleStatus)
	router.POST("/routines/:name", s.handleRoutine)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	data, err := s.store.Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	st := Status{
		Chats: len(data),
		Modes: map[string]int{
			models.ModeNone.String():     0,
			models.ModePlan.String():     0,
			models.ModeSchedule.String(): 0,
			models.ModeReflect.String():  0,
		},
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	for _, rec := range data {
		st.Modes[rec.Mode.String()]++
	}
	if s.reminders != nil {
		st.PendingReminders = s.reminders.Count()
	}
	c.JSON(http.StatusOK, st)
}

// handleRoutine runs a daily routine inside the bot process, under the same
// per-chat locks as message handling.
func (s *Server) handleRoutine(c *gin.Context) {
	name := c.Param("name")
	if s.routines == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "routines not available"})
		return
	}

	var run func(context.Context)
	switch name {
	case RoutineMorning:
		run = s.routines.SendMorning
	case RoutineEvening:
		run = s.routines.SendEvening
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown routine %q", name)})
		return
	}

	run(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"routine": name, "status": "sent"})
}

// Serve runs the server on addr until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("health server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
