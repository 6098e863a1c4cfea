package api

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"Minerva/internal/config"
	"Minerva/internal/ingestion"
	"Minerva/internal/objectstore"
	"Minerva/internal/retrieval"
	"Minerva/internal/source"
	"Minerva/internal/source/confluence"
	"Minerva/internal/source/document"
	"Minerva/internal/source/github"
	"Minerva/internal/source/schema"
	"Minerva/pkg/logger"
)

// HealthCheck probes one backing service.
type HealthCheck func(ctx context.Context) error

// Deps carries the server's collaborators. History, Objects and Checks are
// optional.
type Deps struct {
	Config   *config.AppConfig
	Registry *source.Registry
	Ingestor *ingestion.Pipeline
	Answerer *retrieval.Pipeline
	History  ingestion.History
	Objects  *objectstore.Store
	Checks   map[string]HealthCheck
	Log      *logger.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	deps Deps
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	return &Server{deps: deps}
}

type ingestRequest struct {
	SourceType string       `json:"source_type" binding:"required"`
	Input      schema.Input `json:"input"`
	MaxPages   int          `json:"max_pages"`
}

func (s *Server) handleIngest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	summary, err := s.deps.Ingestor.Ingest(c.Request.Context(), ingestion.Request{
		SourceType: req.SourceType,
		Input:      req.Input,
		Config:     s.sourceConfig(req.SourceType),
		MaxPages:   req.MaxPages,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "summary": summary})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field: " + err.Error()})
		return
	}

	path, err := s.saveUpload(c, file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storing upload: " + err.Error()})
		return
	}

	summary, err := s.deps.Ingestor.Ingest(c.Request.Context(), ingestion.Request{
		SourceType: document.SourceType,
		Input:      schema.Input{FilePath: path},
		Config:     s.sourceConfig(document.SourceType),
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "summary": summary})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// saveUpload writes the file into the upload directory under a unique name
// and mirrors the original bytes into the object store when one is wired.
func (s *Server) saveUpload(c *gin.Context, file *multipart.FileHeader) (string, error) {
	name := uuid.NewString() + "_" + filepath.Base(file.Filename)
	path := filepath.Join(s.deps.Config.Sources.Document.UploadDir, name)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := c.SaveUploadedFile(file, path); err != nil {
		return "", err
	}

	if s.deps.Objects != nil {
		src, err := file.Open()
		if err != nil {
			return "", err
		}
		defer src.Close()
		contentType := file.Header.Get("Content-Type")
		if err := s.deps.Objects.Put(c.Request.Context(), name, src, file.Size, contentType); err != nil {
			s.deps.Log.WithError(err).Warn("failed to mirror upload into object store")
		}
	}
	return path, nil
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.deps.History == nil {
		c.JSON(http.StatusOK, gin.H{"history": []interface{}{}})
		return
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	offset, _ := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)

	entries, err := s.deps.History.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []*ingestion.HistoryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func (s *Server) handleSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": s.deps.Registry.Capabilities()})
}

type searchRequest struct {
	Question   string `json:"question" binding:"required"`
	SourceType string `json:"source_type"`
	TopK       int    `json:"top_k"`
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	answer, err := s.deps.Answerer.Ask(c.Request.Context(), req.Question, req.SourceType, req.TopK)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (s *Server) handleChatReset(c *gin.Context) {
	s.deps.Answerer.Reset()
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (s *Server) handleHealth(c *gin.Context) {
	result := gin.H{}
	healthy := true
	for name, check := range s.deps.Checks {
		if err := check(c.Request.Context()); err != nil {
			healthy = false
			result[name] = err.Error()
		} else {
			result[name] = "ok"
		}
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{"status": overall, "services": result})
}

// sourceConfig maps a source type onto its configured adapter settings.
func (s *Server) sourceConfig(sourceType string) source.Config {
	cfg := s.deps.Config
	switch sourceType {
	case confluence.SourceType:
		return source.Config{
			BaseURL:  cfg.Sources.Confluence.BaseURL,
			Username: cfg.Sources.Confluence.Username,
			APIToken: cfg.Sources.Confluence.APIToken,
			Token:    cfg.Sources.Confluence.Token,
			MaxPages: cfg.Sources.Confluence.MaxPages,
		}
	case github.SourceType:
		return source.Config{
			Token:       cfg.Sources.GitHub.Token,
			MaxPages:    cfg.Sources.GitHub.MaxItems,
			MaxFileSize: cfg.Sources.GitHub.MaxFileSize,
			IgnoreGlobs: cfg.Sources.GitHub.IgnoreGlobs,
		}
	case document.SourceType:
		return source.Config{
			UploadDir: cfg.Sources.Document.UploadDir,
		}
	default:
		return source.Config{}
	}
}

// statusFor maps source errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, source.ErrInvalidInput), errors.Is(err, source.ErrUnknownSourceType):
		return http.StatusBadRequest
	case errors.Is(err, source.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, source.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, source.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, source.ErrConnectivity):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
