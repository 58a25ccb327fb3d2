package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/synergy/internal/core"
	"github.com/agenthands/synergy/internal/logger"
	"github.com/agenthands/synergy/internal/subject"
)

type Server struct {
	Synergy *core.Synergy
	Log     *logger.Logger
}

func NewServer(syn *core.Synergy, log *logger.Logger) *Server {
	return &Server{
		Synergy: syn,
		Log:     logger.OrNop(log).With("component", "server"),
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.Health)

	ch := r.Group("/channels/:id")
	ch.POST("/items", s.AddItem)
	ch.GET("/unprocessed", s.Unprocessed)
	ch.POST("/check", s.Check)
	ch.POST("/probe", s.Probe)
	ch.GET("/processing", s.InFlight)
	ch.GET("/conversations", s.Conversations)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type AddItemRequest struct {
	Type  string `json:"type"`
	Body  string `json:"body"`
	Title string `json:"title"`
	Name  string `json:"name"`
}

func (s *Server) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var entityType string
	props := map[string]string{}
	switch strings.ToLower(req.Type) {
	case "", "message":
		entityType = subject.TypeMessage
		props["body"] = req.Body
	case "post":
		entityType = subject.TypePost
		props["title"] = req.Title
		props["body"] = req.Body
	case "task":
		entityType = subject.TypeTask
		props["name"] = req.Name
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown item type"})
		return
	}

	e, err := s.Synergy.Repo.Create(c.Request.Context(), entityType, c.Param("id"), props)
	if err != nil {
		s.Log.Error("failed to add item", "channel", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add item"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": e.ID})
}

func (s *Server) Unprocessed(c *gin.Context) {
	coord, ok := s.coordinator(c)
	if !ok {
		return
	}
	queue, err := coord.Unprocessed(c.Request.Context())
	if err != nil {
		s.Log.Error("failed to list unprocessed items", "channel", coord.ChannelID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list items"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": queue})
}

func (s *Server) Check(c *gin.Context) {
	coord, ok := s.coordinator(c)
	if !ok {
		return
	}
	res, err := coord.RunProcessingCheck(c.Request.Context())
	if err != nil {
		s.Log.Error("processing check failed", "channel", coord.ChannelID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing check failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) Probe(c *gin.Context) {
	coord, ok := s.coordinator(c)
	if !ok {
		return
	}
	if err := coord.Probe(c.Request.Context()); err != nil {
		s.Log.Error("probe failed", "channel", coord.ChannelID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Probe failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "probing"})
}

func (s *Server) InFlight(c *gin.Context) {
	coord, ok := s.coordinator(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"processing": coord.Processing(),
		"in_flight":  coord.InFlight(),
	})
}

func (s *Server) Conversations(c *gin.Context) {
	views, err := s.Synergy.Conversations(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.Log.Error("failed to list conversations", "channel", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": views})
}

func (s *Server) coordinator(c *gin.Context) (*core.Coordinator, bool) {
	coord, err := s.Synergy.Coordinator(c.Param("id"))
	if errors.Is(err, core.ErrClosed) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Shutting down"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return coord, true
}
