// internal/api/server.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Slade66/hourglass/internal/status"
	"github.com/Slade66/hourglass/pkg/task"
)

// Publisher hands commands to the workers: creates to any of them,
// everything else to the owner of the hourglass.
type Publisher interface {
	Publish(ctx context.Context, cmd task.Command) (string, error)
	PublishTo(ctx context.Context, owner string, cmd task.Command) (string, error)
}

// StatusStore is the part of the status manager the API needs.
type StatusStore interface {
	Init(ctx context.Context, id string, total time.Duration) error
	Get(ctx context.Context, id string) (*status.StatusInfo, error)
	List(ctx context.Context) ([]status.StatusInfo, error)
}

// Server serves the hourglass control API.
type Server struct {
	publisher Publisher
	status    StatusStore
	log       zerolog.Logger
}

func NewServer(publisher Publisher, statusStore StatusStore, log zerolog.Logger) *Server {
	return &Server{
		publisher: publisher,
		status:    statusStore,
		log:       log.With().Str("component", "api").Logger(),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log))

	api := router.Group("/api")
	{
		api.POST("/hourglasses", s.createHandler)
		api.GET("/hourglasses", s.listHandler)
		api.GET("/hourglasses/:id", s.getHandler)
		api.POST("/hourglasses/:id/:action", s.actionHandler)
	}
	return router
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request served")
	}
}

// createHandler registers a new hourglass and queues its creation.
func (s *Server) createHandler(c *gin.Context) {
	var request struct {
		DurationMillis int64 `json:"duration_ms" binding:"required,gt=0,lte=9223372036854"`
		Autostart      bool  `json:"autostart"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	id := uuid.New()
	total := time.Duration(request.DurationMillis) * time.Millisecond

	// The status record exists before any worker can touch the hourglass.
	if err := s.status.Init(ctx, id.String(), total); err != nil {
		s.log.Error().Err(err).Str("hourglass_id", id.String()).Msg("failed to init status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record hourglass"})
		return
	}

	// Autostart travels with the create so both land on the same worker.
	create := task.NewCommand(id, task.ActionCreate)
	create.DurationMillis = request.DurationMillis
	create.Autostart = request.Autostart
	if _, err := s.publisher.Publish(ctx, create); err != nil {
		s.log.Error().Err(err).Str("hourglass_id", id.String()).Msg("failed to queue command")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue command"})
		return
	}

	s.log.Info().Str("hourglass_id", id.String()).Dur("duration", total).Bool("autostart", request.Autostart).Msg("hourglass queued")
	c.JSON(http.StatusAccepted, gin.H{
		"message":      "hourglass queued",
		"hourglass_id": id.String(),
	})
}

// actionHandler queues start, pause, resume or cancel for an existing hourglass.
func (s *Server) actionHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hourglass id"})
		return
	}
	action := task.Action(c.Param("action"))
	if !action.Valid() || action == task.ActionCreate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action: " + string(action)})
		return
	}

	ctx := c.Request.Context()
	info, err := s.status.Get(ctx, id.String())
	if errors.Is(err, status.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "hourglass not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read status"})
		return
	}
	// Until a worker has taken the create, nobody can act on the hourglass.
	if info.Owner == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "hourglass not yet picked up by a worker"})
		return
	}

	if _, err := s.publisher.PublishTo(ctx, info.Owner, task.NewCommand(id, action)); err != nil {
		s.log.Error().Err(err).Str("hourglass_id", id.String()).Msg("failed to queue command")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue command"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"message":      string(action) + " queued",
		"hourglass_id": id.String(),
	})
}

func (s *Server) getHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hourglass id"})
		return
	}
	info, err := s.status.Get(c.Request.Context(), id.String())
	if errors.Is(err, status.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "hourglass not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read status: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) listHandler(c *gin.Context) {
	infos, err := s.status.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list hourglasses: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, infos)
}
