package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// PostgresCatalog is a PostgreSQL implementation of the Repository interface.
type PostgresCatalog struct {
	db *pgxpool.Pool
}

// NewPostgresCatalog creates a new PostgresCatalog.
func NewPostgresCatalog(db *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

const workflowColumns = `id::text, slug, name, path, raw_url, size_bytes, category, tags,
	node_count, has_credentials, complexity, source_sha, created_at, updated_at`

// raiseException is the SQLSTATE of RAISE EXCEPTION in upsert_workflow.
const raiseException = "P0001"

// Ping checks the database connection.
func (s *PostgresCatalog) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// UpsertWorkflow writes the entry through the upsert_workflow procedure. The
// statement is a single INSERT ... ON CONFLICT, so readers never see a
// partially updated row.
func (s *PostgresCatalog) UpsertWorkflow(ctx context.Context, entry *models.CatalogEntry) error {
	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	tags := entry.Tags
	if tags == nil {
		tags = []string{}
	}

	err := s.db.QueryRow(ctx,
		`SELECT out_id::text, out_created_at, out_updated_at
		 FROM upsert_workflow($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, entry.Slug, entry.Name, entry.Path, entry.RawURL, entry.SizeBytes, entry.Category, tags,
		entry.NodeCount, entry.HasCredentials, string(entry.Complexity), entry.SourceSHA,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == raiseException {
			return fmt.Errorf("upsert workflow %q: %w: %s", entry.Slug, ErrInvalidEntry, pgErr.Message)
		}
		return fmt.Errorf("upsert workflow %s: %w", entry.Slug, err)
	}
	return nil
}

// ListWorkflows returns a page of entries ordered by creation.
func (s *PostgresCatalog) ListWorkflows(ctx context.Context, opts ListOptions) ([]models.CatalogEntry, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows`
	args := []any{}
	if opts.Category != "" {
		args = append(args, opts.Category)
		query += fmt.Sprintf(` WHERE category = $%d`, len(args))
	}
	query += ` ORDER BY created_at, id`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectWorkflows(rows)
}

// GetWorkflowBySlug retrieves an entry by its slug.
func (s *PostgresCatalog) GetWorkflowBySlug(ctx context.Context, slug string) (*models.CatalogEntry, error) {
	rows, err := s.db.Query(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE slug = $1`, slug)
	if err != nil {
		return nil, err
	}
	entries, err := collectWorkflows(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return &entries[0], nil
}

// GetWorkflowsByIDs retrieves entries by ID.
func (s *PostgresCatalog) GetWorkflowsByIDs(ctx context.Context, ids []string) ([]models.CatalogEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = ANY($1::text[]::uuid[])`, ids)
	if err != nil {
		return nil, err
	}
	return collectWorkflows(rows)
}

// SourceSHAs maps every slug to the blob sha it was last synced from.
func (s *PostgresCatalog) SourceSHAs(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.Query(ctx, `SELECT slug, source_sha FROM workflows`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shas := make(map[string]string)
	for rows.Next() {
		var slug, sha string
		if err := rows.Scan(&slug, &sha); err != nil {
			return nil, err
		}
		shas[slug] = sha
	}
	return shas, rows.Err()
}

func collectWorkflows(rows pgx.Rows) ([]models.CatalogEntry, error) {
	defer rows.Close()

	var entries []models.CatalogEntry
	for rows.Next() {
		var e models.CatalogEntry
		var complexity string
		err := rows.Scan(&e.ID, &e.Slug, &e.Name, &e.Path, &e.RawURL, &e.SizeBytes, &e.Category, &e.Tags,
			&e.NodeCount, &e.HasCredentials, &complexity, &e.SourceSHA, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, err
		}
		e.Complexity = models.Complexity(complexity)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var artifactTables = map[models.ArtifactKind]string{
	models.ArtifactDescription: "workflow_descriptions",
	models.ArtifactSEO:         "workflow_seo_metadata",
	models.ArtifactEmbedding:   "workflow_vectors",
}

// ArtifactWorkflowIDs returns the IDs of all entries that have the artifact.
func (s *PostgresCatalog) ArtifactWorkflowIDs(ctx context.Context, kind models.ArtifactKind) (map[string]struct{}, error) {
	table, ok := artifactTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown artifact kind %q", kind)
	}
	rows, err := s.db.Query(ctx, `SELECT workflow_id::text FROM `+table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// UpsertDescription stores or overwrites the description of a workflow.
func (s *PostgresCatalog) UpsertDescription(ctx context.Context, a *models.DescriptionArtifact) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO workflow_descriptions (workflow_id, description, use_cases, setup_steps, quality, model, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (workflow_id) DO UPDATE SET
			description  = EXCLUDED.description,
			use_cases    = EXCLUDED.use_cases,
			setup_steps  = EXCLUDED.setup_steps,
			quality      = EXCLUDED.quality,
			model        = EXCLUDED.model,
			generated_at = EXCLUDED.generated_at`,
		a.WorkflowID, a.Description, nonNil(a.UseCases), nonNil(a.SetupSteps), string(a.Quality), a.Model, a.GeneratedAt)
	return err
}

// UpsertSEO stores or overwrites the SEO metadata of a workflow.
func (s *PostgresCatalog) UpsertSEO(ctx context.Context, a *models.SEOArtifact) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO workflow_seo_metadata (workflow_id, meta_title, meta_description, keywords, quality, model, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (workflow_id) DO UPDATE SET
			meta_title       = EXCLUDED.meta_title,
			meta_description = EXCLUDED.meta_description,
			keywords         = EXCLUDED.keywords,
			quality          = EXCLUDED.quality,
			model            = EXCLUDED.model,
			generated_at     = EXCLUDED.generated_at`,
		a.WorkflowID, a.MetaTitle, a.MetaDescription, nonNil(a.Keywords), string(a.Quality), a.Model, a.GeneratedAt)
	return err
}

// UpsertEmbedding stores or overwrites the embedding of a workflow.
func (s *PostgresCatalog) UpsertEmbedding(ctx context.Context, a *models.EmbeddingArtifact) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO workflow_vectors (workflow_id, embedding, model, generated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workflow_id) DO UPDATE SET
			embedding    = EXCLUDED.embedding,
			model        = EXCLUDED.model,
			generated_at = EXCLUDED.generated_at`,
		a.WorkflowID, pgvector.NewVector(a.Vector), a.Model, a.GeneratedAt)
	return err
}

// GetDescription retrieves the description of a workflow.
func (s *PostgresCatalog) GetDescription(ctx context.Context, workflowID string) (*models.DescriptionArtifact, error) {
	var a models.DescriptionArtifact
	var quality string
	err := s.db.QueryRow(ctx, `
		SELECT workflow_id::text, description, use_cases, setup_steps, quality, model, generated_at
		FROM workflow_descriptions WHERE workflow_id = $1`, workflowID).
		Scan(&a.WorkflowID, &a.Description, &a.UseCases, &a.SetupSteps, &quality, &a.Model, &a.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Quality = models.Quality(quality)
	return &a, nil
}

// GetSEO retrieves the SEO metadata of a workflow.
func (s *PostgresCatalog) GetSEO(ctx context.Context, workflowID string) (*models.SEOArtifact, error) {
	var a models.SEOArtifact
	var quality string
	err := s.db.QueryRow(ctx, `
		SELECT workflow_id::text, meta_title, meta_description, keywords, quality, model, generated_at
		FROM workflow_seo_metadata WHERE workflow_id = $1`, workflowID).
		Scan(&a.WorkflowID, &a.MetaTitle, &a.MetaDescription, &a.Keywords, &quality, &a.Model, &a.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Quality = models.Quality(quality)
	return &a, nil
}

// HasEmbedding reports whether a workflow has a stored embedding.
func (s *PostgresCatalog) HasEmbedding(ctx context.Context, workflowID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM workflow_vectors WHERE workflow_id = $1)`, workflowID).Scan(&exists)
	return exists, err
}

// MatchWorkflows ranks stored embeddings with the match_workflows function.
func (s *PostgresCatalog) MatchWorkflows(ctx context.Context, query []float32, threshold float64, limit int) ([]Match, error) {
	rows, err := s.db.Query(ctx,
		`SELECT workflow_id::text, similarity FROM match_workflows($1, $2, $3)`,
		pgvector.NewVector(query), threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.WorkflowID, &m.Similarity); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ListEmbeddings returns up to limit stored embeddings.
func (s *PostgresCatalog) ListEmbeddings(ctx context.Context, limit int) ([]models.EmbeddingArtifact, error) {
	rows, err := s.db.Query(ctx, `
		SELECT workflow_id::text, embedding, model, generated_at
		FROM workflow_vectors ORDER BY workflow_id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EmbeddingArtifact
	for rows.Next() {
		var a models.EmbeddingArtifact
		var vec pgvector.Vector
		if err := rows.Scan(&a.WorkflowID, &vec, &a.Model, &a.GeneratedAt); err != nil {
			return nil, err
		}
		a.Vector = vec.Slice()
		out = append(out, a)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
