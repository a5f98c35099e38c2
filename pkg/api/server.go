// Package api is the reference HTTP surface over a Composer/Writer pair
// (spec.md §4.7): a thin gin layer translating JSON requests into
// compose.Composer.Build and ingest.Writer calls. It is a reference
// implementation, not the only way to embed Engram — library callers can
// skip this package entirely and call pkg/compose / pkg/ingest directly.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/engramhq/engram/pkg/compose"
	"github.com/engramhq/engram/pkg/ingest"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/storage"
)

// Server wires the composer and writer behind gin handlers.
type Server struct {
	composer *compose.Composer
	writer   *ingest.Writer
	backend  storage.Backend
}

// NewServer constructs a Server over composer/writer/backend.
func NewServer(composer *compose.Composer, writer *ingest.Writer, backend storage.Backend) *Server {
	return &Server{composer: composer, writer: writer, backend: backend}
}

// Routes registers every handler on router.
func (s *Server) Routes(router gin.IRouter) {
	router.GET("/health", s.Health)
	router.POST("/v1/packets", s.BuildPacket)
	router.POST("/v1/events", s.AppendEvent)
	router.PUT("/v1/facts", s.UpsertFact)
	router.PATCH("/v1/working-state", s.PatchWorkingState)
}

// Health handles GET /health.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.backend.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// BuildPacket handles POST /v1/packets: the composer's sole entry point,
// exposed over HTTP.
func (s *Server) BuildPacket(c *gin.Context) {
	var req model.BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	packet, err := s.composer.Build(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, packet)
}

// AppendEvent handles POST /v1/events.
func (s *Server) AppendEvent(c *gin.Context) {
	var event model.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.writer.AppendEvent(c.Request.Context(), event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// UpsertFact handles PUT /v1/facts.
func (s *Server) UpsertFact(c *gin.Context) {
	var fact model.Fact
	if err := c.ShouldBindJSON(&fact); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	stored, err := s.writer.UpsertFact(c.Request.Context(), fact)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stored)
}

// patchWorkingStateRequest carries the scope/patch/version triple a PATCH
// body must supply since WorkingStatePatch alone doesn't identify a scope.
type patchWorkingStateRequest struct {
	Scope           model.Scope              `json:"scope"`
	Patch           model.WorkingStatePatch  `json:"patch"`
	ExpectedVersion int64                    `json:"expected_version"`
}

// PatchWorkingState handles PATCH /v1/working-state.
func (s *Server) PatchWorkingState(c *gin.Context) {
	var req patchWorkingStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := s.writer.PatchWorkingState(c.Request.Context(), req.Scope, req.Patch, req.ExpectedVersion)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ws)
}
