// Package enrich backfills derived artifacts (descriptions, SEO metadata and
// embeddings) for catalog entries that lack them.
//
// A Scheduler pages through the catalog from a caller-held offset, calls the
// external AI service once per candidate, and persists the result. It keeps
// no state between invocations: the returned NextOffset is the only cursor.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/metrics"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/repository"
	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

var tracer = otel.Tracer("github.com/1weso1/aw-nexus-folio-sub001/internal/enrich")

// ErrNotConfigured is returned before any record is touched when the
// external service of a scheduler has no usable configuration.
var ErrNotConfigured = errors.New("enrichment service not configured")

// ErrInvalidWindow is returned for a negative offset.
var ErrInvalidWindow = errors.New("offset must not be negative")

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Strategy selects how a scheduler assembles its page of candidates.
type Strategy int

const (
	// Filtered skips already-enriched entries while scanning forward from the
	// offset, reading as many catalog pages as needed to fill the limit.
	Filtered Strategy = iota
	// Window reads the single catalog page [offset, offset+limit) and drops
	// the entries that already have the artifact. HasMore reflects whether
	// the page was full, not whether work remains.
	Window
)

// ParseStrategy maps a configuration value to a Strategy. Unknown values
// select Filtered.
func ParseStrategy(s string) Strategy {
	if strings.EqualFold(strings.TrimSpace(s), "window") {
		return Window
	}
	return Filtered
}

func (s Strategy) String() string {
	if s == Window {
		return "window"
	}
	return "filtered"
}

// Catalog is the read side of the store used to find candidates.
type Catalog interface {
	ListWorkflows(ctx context.Context, opts repository.ListOptions) ([]models.CatalogEntry, error)
	ArtifactWorkflowIDs(ctx context.Context, kind models.ArtifactKind) (map[string]struct{}, error)
}

// Generator produces and stores one kind of artifact.
type Generator[A any] interface {
	Kind() models.ArtifactKind
	// Ready returns an error wrapping ErrNotConfigured when the generator
	// cannot call its external service.
	Ready() error
	// Generate calls the external service for one entry. The quality is
	// empty for artifacts that are not parsed from text.
	Generate(ctx context.Context, entry models.CatalogEntry) (A, models.Quality, error)
	Persist(ctx context.Context, artifact A) error
}

// Runner is the invocation surface shared by all schedulers.
type Runner interface {
	Kind() models.ArtifactKind
	DefaultLimit() int
	Run(ctx context.Context, w models.EnrichWindow) (*models.EnrichResult, error)
}

// Options tune a Scheduler.
type Options struct {
	Strategy     Strategy
	DefaultLimit int
	// PageSize is the catalog page size used by the Filtered strategy. It
	// defaults to the larger of the limit and 50.
	PageSize int
	// Limiter paces external calls. Nil means unlimited.
	Limiter *rate.Limiter
}

// Scheduler runs a Generator over a window of the catalog.
type Scheduler[A any] struct {
	gen     Generator[A]
	catalog Catalog
	opts    Options
	logger  Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler[A any](gen Generator[A], catalog Catalog, opts Options, logger Logger) *Scheduler[A] {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	return &Scheduler[A]{gen: gen, catalog: catalog, opts: opts, logger: logger}
}

// Kind returns the artifact kind this scheduler produces.
func (s *Scheduler[A]) Kind() models.ArtifactKind {
	return s.gen.Kind()
}

// DefaultLimit returns the limit used when a window has none.
func (s *Scheduler[A]) DefaultLimit() int {
	return s.opts.DefaultLimit
}

// Run processes one window. Records are handled sequentially; a failure on
// one record is counted and the loop continues. Only configuration errors
// and catalog read errors are returned.
func (s *Scheduler[A]) Run(ctx context.Context, w models.EnrichWindow) (*models.EnrichResult, error) {
	if w.Offset < 0 {
		return nil, ErrInvalidWindow
	}
	if w.Limit <= 0 {
		w.Limit = s.opts.DefaultLimit
	}
	kind := s.gen.Kind()
	if err := s.gen.Ready(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "enrich.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("enrich.kind", string(kind)),
		attribute.Int("enrich.offset", w.Offset),
		attribute.Int("enrich.limit", w.Limit),
	)

	p, err := s.candidates(ctx, w)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fetch %s candidates: %w", kind, err)
	}

	result := &models.EnrichResult{
		Kind:       kind,
		NextOffset: p.next,
		HasMore:    p.hasMore,
		Errors:     []string{},
	}
	for _, entry := range p.entries {
		result.Processed++
		if err := s.process(ctx, entry); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Slug, err))
			metrics.EnrichRecordsTotal.WithLabelValues(string(kind), "failed").Inc()
			s.logger.Warn("enrichment failed", "kind", kind, "slug", entry.Slug, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		result.Succeeded++
		metrics.EnrichRecordsTotal.WithLabelValues(string(kind), "succeeded").Inc()
	}

	result.State = models.EnrichDone
	if result.HasMore {
		result.State = models.EnrichPartial
	}
	s.logger.Info("enrichment batch complete",
		"kind", kind,
		"strategy", s.opts.Strategy,
		"offset", w.Offset,
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"next_offset", result.NextOffset,
		"has_more", result.HasMore,
	)
	return result, nil
}

func (s *Scheduler[A]) process(ctx context.Context, entry models.CatalogEntry) error {
	ctx, span := tracer.Start(ctx, "enrich.Record")
	defer span.End()
	span.SetAttributes(attribute.String("workflow.slug", entry.Slug))

	if s.opts.Limiter != nil {
		if err := s.opts.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	start := time.Now()
	artifact, quality, err := s.gen.Generate(ctx, entry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := s.gen.Persist(ctx, artifact); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("persist: %w", err)
	}
	if quality != "" {
		metrics.EnrichArtifactQuality.WithLabelValues(string(s.gen.Kind()), string(quality)).Inc()
	}
	s.logger.Debug("artifact stored", "kind", s.gen.Kind(), "slug", entry.Slug, "quality", quality, "took", time.Since(start))
	return nil
}

type page struct {
	entries []models.CatalogEntry
	next    int
	hasMore bool
}

func (s *Scheduler[A]) candidates(ctx context.Context, w models.EnrichWindow) (page, error) {
	enriched, err := s.catalog.ArtifactWorkflowIDs(ctx, s.gen.Kind())
	if err != nil {
		return page{}, err
	}
	if s.opts.Strategy == Window {
		return s.window(ctx, w, enriched)
	}
	return s.filtered(ctx, w, enriched)
}

func (s *Scheduler[A]) window(ctx context.Context, w models.EnrichWindow, enriched map[string]struct{}) (page, error) {
	rows, err := s.catalog.ListWorkflows(ctx, repository.ListOptions{Offset: w.Offset, Limit: w.Limit})
	if err != nil {
		return page{}, err
	}
	p := page{next: w.Offset + len(rows), hasMore: len(rows) == w.Limit}
	for _, e := range rows {
		if _, done := enriched[e.ID]; !done {
			p.entries = append(p.entries, e)
		}
	}
	return p, nil
}

// filtered scans forward from the offset until it has collected limit
// unenriched entries or reached the end of the catalog. The next offset is
// the position just after the last entry it consumed.
func (s *Scheduler[A]) filtered(ctx context.Context, w models.EnrichWindow, enriched map[string]struct{}) (page, error) {
	size := s.opts.PageSize
	if size <= 0 {
		size = max(w.Limit, 50)
	}

	p := page{next: w.Offset}
	for {
		rows, err := s.catalog.ListWorkflows(ctx, repository.ListOptions{Offset: p.next, Limit: size})
		if err != nil {
			return page{}, err
		}
		for i, e := range rows {
			if _, done := enriched[e.ID]; done {
				continue
			}
			p.entries = append(p.entries, e)
			if len(p.entries) == w.Limit {
				p.next += i + 1
				p.hasMore = i+1 < len(rows) || len(rows) == size
				return p, nil
			}
		}
		p.next += len(rows)
		if len(rows) < size {
			return p, nil
		}
	}
}
