package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/config"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/enrich"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/repository"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/search"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/services"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/source"
	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// HandleHealth reports database and cache health. It returns 503 when the
// database is unreachable.
func (s *Server) HandleHealth(c echo.Context) error {
	status, ok := s.svc.Health(c.Request().Context())
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// writeError writes an RFC 7807 Problem Details JSON error response
func writeError(c echo.Context, status int, title, detail string) error {
	problem := models.ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	c.Response().WriteHeader(status)
	return json.NewEncoder(c.Response()).Encode(problem)
}

// writeServiceError maps errors from the catalog service onto problem details.
func (s *Server) writeServiceError(c echo.Context, err error) error {
	var rateLimited *source.RateLimitError
	var listing *source.ListingError
	var truncated *source.TruncatedListingError

	switch {
	case errors.As(err, &rateLimited):
		if wait := rateLimited.RetryAfter(time.Now()); wait > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		}
		return writeError(c, http.StatusTooManyRequests, "Source Rate Limited", err.Error())
	case errors.As(err, &listing), errors.As(err, &truncated):
		return writeError(c, http.StatusBadGateway, "Source Listing Failed", err.Error())
	case errors.Is(err, enrich.ErrNotConfigured), errors.Is(err, config.ErrMissing), errors.Is(err, search.ErrNotConfigured):
		return writeError(c, http.StatusServiceUnavailable, "Not Configured", err.Error())
	case errors.Is(err, repository.ErrNotFound):
		return writeError(c, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, services.ErrUnknownKind), errors.Is(err, enrich.ErrInvalidWindow), errors.Is(err, search.ErrEmptyQuery):
		return writeError(c, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		s.logger.Error("request failed", "path", c.Request().URL.Path, "error", err)
		return writeError(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
}
