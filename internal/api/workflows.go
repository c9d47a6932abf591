// Package api contains the HTTP handlers for the workflow catalog
package api

import (
	"net/http"
	"path"

	"github.com/labstack/echo/v4"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/repository"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/services"
	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// MaxPageSize bounds the limit of list requests.
const MaxPageSize = 200

// Server holds the dependencies for the API server.
type Server struct {
	svc    *services.CatalogService
	logger Logger
}

// NewServer creates a new Server.
func NewServer(svc *services.CatalogService, logger Logger) *Server {
	return &Server{svc: svc, logger: logger}
}

// RegisterHandlers mounts the catalog routes on g, normally /api/v1.
func RegisterHandlers(g *echo.Group, s *Server) {
	g.GET("/workflows", s.ListWorkflows)
	g.GET("/workflows/:slug", s.GetWorkflow)
	g.GET("/workflows/:slug/download", s.DownloadWorkflow)
	g.GET("/search", s.Search)
	g.POST("/sync", s.Sync)
	g.POST("/enrich/:kind", s.Enrich)
}

// ListWorkflows returns a page of the catalog in creation order
// (GET /api/v1/workflows?offset=&limit=&category=)
func (s *Server) ListWorkflows(c echo.Context) error {
	opts := repository.ListOptions{Limit: 50}
	err := echo.QueryParamsBinder(c).
		Int("offset", &opts.Offset).
		Int("limit", &opts.Limit).
		String("category", &opts.Category).
		BindError()
	if err != nil {
		return writeError(c, http.StatusBadRequest, "Bad Request", err.Error())
	}
	if opts.Offset < 0 || opts.Limit <= 0 || opts.Limit > MaxPageSize {
		return writeError(c, http.StatusBadRequest, "Bad Request", "offset must be >= 0 and limit between 1 and 200")
	}

	workflows, err := s.svc.ListWorkflows(c.Request().Context(), opts)
	if err != nil {
		return s.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, workflows)
}

// GetWorkflow returns one entry with its artifacts
// (GET /api/v1/workflows/:slug)
func (s *Server) GetWorkflow(c echo.Context) error {
	detail, err := s.svc.GetWorkflow(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return s.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// DownloadWorkflow streams the raw definition file
// (GET /api/v1/workflows/:slug/download)
func (s *Server) DownloadWorkflow(c echo.Context) error {
	entry, data, err := s.svc.Download(c.Request().Context(), c.Param("slug"))
	if err != nil {
		if entry != nil {
			return writeError(c, http.StatusBadGateway, "Download Failed", err.Error())
		}
		return s.writeServiceError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+path.Base(entry.Path)+`"`)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

// Search ranks the catalog against a free-text query
// (GET /api/v1/search?q=&limit=)
func (s *Server) Search(c echo.Context) error {
	var query string
	var limit int
	err := echo.QueryParamsBinder(c).
		String("q", &query).
		Int("limit", &limit).
		BindError()
	if err != nil {
		return writeError(c, http.StatusBadRequest, "Bad Request", err.Error())
	}

	resp, err := s.svc.Search(c.Request().Context(), query, limit)
	if err != nil {
		return s.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Sync runs one catalog synchronization and returns its summary
// (POST /api/v1/sync)
func (s *Server) Sync(c echo.Context) error {
	result, err := s.svc.Sync(c.Request().Context())
	if err != nil {
		return s.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Enrich runs one window of an enrichment scheduler
// (POST /api/v1/enrich/:kind with body {"offset": 0, "limit": 10})
func (s *Server) Enrich(c echo.Context) error {
	kind, ok := models.ParseArtifactKind(c.Param("kind"))
	if !ok {
		return writeError(c, http.StatusBadRequest, "Bad Request", "kind must be description, seo or embedding")
	}

	var window models.EnrichWindow
	if err := c.Bind(&window); err != nil {
		return writeError(c, http.StatusBadRequest, "Bad Request", "Invalid request body: "+err.Error())
	}

	result, err := s.svc.Enrich(c.Request().Context(), kind, window)
	if err != nil {
		return s.writeServiceError(c, err)
	}
	s.logger.Info("enrichment invoked", "kind", kind, "offset", window.Offset, "processed", result.Processed)
	return c.JSON(http.StatusOK, result)
}
