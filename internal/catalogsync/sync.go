// Package catalogsync runs one synchronization of the catalog: list the
// source repository, download candidate files, classify them and upsert the
// resulting entries.
package catalogsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/classify"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/metrics"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/source"
	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

var tracer = otel.Tracer("github.com/1weso1/aw-nexus-folio-sub001/internal/catalogsync")

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Source lists and downloads workflow files.
type Source interface {
	Candidates(ctx context.Context) (all int, candidates []source.Blob, err error)
	Download(ctx context.Context, blobs []source.Blob, visit func(source.File) error) (source.DownloadStats, error)
}

// Store is the subset of the catalog store used by a sync run.
type Store interface {
	UpsertWorkflow(ctx context.Context, entry *models.CatalogEntry) error
	SourceSHAs(ctx context.Context) (map[string]string, error)
}

// Options tune a Syncer.
type Options struct {
	// Incremental skips files whose blob sha matches the stored source_sha.
	Incremental bool
}

// Syncer runs catalog synchronizations.
type Syncer struct {
	src        Source
	store      Store
	classifier *classify.Classifier
	logger     Logger
	opts       Options
}

// New creates a Syncer.
func New(src Source, store Store, classifier *classify.Classifier, logger Logger, opts Options) *Syncer {
	return &Syncer{
		src:        src,
		store:      store,
		classifier: classifier,
		logger:     logger,
		opts:       opts,
	}
}

// Run performs one sync. A listing failure is returned as an error before any
// write happens. Per-file download, parse and upsert failures are counted in
// the result and never stop the run.
func (s *Syncer) Run(ctx context.Context) (*models.SyncResult, error) {
	start := time.Now()
	result := &models.SyncResult{RunID: uuid.NewString(), Errors: []string{}}

	ctx, span := tracer.Start(ctx, "catalogsync.Run")
	defer span.End()
	span.SetAttributes(attribute.String("sync.run_id", result.RunID))

	err := s.run(ctx, result)
	result.DurationMs = time.Since(start).Milliseconds()
	metrics.SyncDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.SyncRunsTotal.WithLabelValues("error").Inc()
		s.logger.Error("sync run failed", "run_id", result.RunID, "error", err)
		return result, err
	}

	metrics.SyncRunsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("sync run complete",
		"run_id", result.RunID,
		"listed", result.Listed,
		"filtered", result.Filtered,
		"upserted", result.Upserted,
		"unchanged", result.Unchanged,
		"skipped", result.Skipped,
		"download_failed", result.DownloadFailed,
		"failed", result.Failed,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

func (s *Syncer) run(ctx context.Context, result *models.SyncResult) error {
	listed, candidates, err := s.src.Candidates(ctx)
	if err != nil {
		return fmt.Errorf("list source repository: %w", err)
	}
	result.Listed = listed
	result.Filtered = len(candidates)

	if s.opts.Incremental {
		candidates, err = s.changedOnly(ctx, candidates, result)
		if err != nil {
			return err
		}
	}

	stats, err := s.src.Download(ctx, candidates, func(f source.File) error {
		s.process(ctx, f, result)
		return ctx.Err()
	})
	result.Downloaded = stats.Downloaded
	result.DownloadFailed = stats.Failed
	result.Errors = append(result.Errors, stats.Errors...)
	metrics.SyncFilesTotal.WithLabelValues("download_failed").Add(float64(stats.Failed))
	if err != nil {
		return fmt.Errorf("download candidates: %w", err)
	}
	return nil
}

func (s *Syncer) changedOnly(ctx context.Context, candidates []source.Blob, result *models.SyncResult) ([]source.Blob, error) {
	shas, err := s.store.SourceSHAs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stored source hashes: %w", err)
	}
	changed := candidates[:0:0]
	for _, b := range candidates {
		if b.SHA != "" && shas[classify.Slug(b.Path)] == b.SHA {
			result.Unchanged++
			continue
		}
		changed = append(changed, b)
	}
	metrics.SyncFilesTotal.WithLabelValues("unchanged").Add(float64(result.Unchanged))
	s.logger.Debug("incremental sync", "unchanged", result.Unchanged, "changed", len(changed))
	return changed, nil
}

func (s *Syncer) process(ctx context.Context, f source.File, result *models.SyncResult) {
	def, err := classify.Parse(f.Content)
	if err != nil {
		result.Skipped++
		metrics.SyncFilesTotal.WithLabelValues("skipped").Inc()
		s.logger.Debug("skipping file", "path", f.Path, "reason", err)
		return
	}
	if dangling := classify.DanglingConnections(def); len(dangling) > 0 {
		s.logger.Warn("workflow has connections to unknown nodes", "path", f.Path, "nodes", dangling)
	}

	entry := s.classifier.Classify(classify.Source{
		Path:   f.Path,
		RawURL: f.RawURL,
		Size:   f.Size,
		SHA:    f.SHA,
	}, def)

	if err := s.store.UpsertWorkflow(ctx, &entry); err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f.Path, err))
		metrics.SyncFilesTotal.WithLabelValues("failed").Inc()
		s.logger.Error("failed to upsert workflow", "path", f.Path, "slug", entry.Slug, "error", err)
		return
	}
	result.Upserted++
	metrics.SyncFilesTotal.WithLabelValues("upserted").Inc()
}
