package repository

import (
	"context"
	"errors"

	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidEntry is returned when the store rejects a catalog entry.
var ErrInvalidEntry = errors.New("invalid catalog entry")

// ListOptions pages through the catalog in stable creation order.
type ListOptions struct {
	Offset   int
	Limit    int
	Category string
}

// Match is one row ranked by the database-side similarity function.
type Match struct {
	WorkflowID string
	Similarity float64
}

// CatalogStore reads and writes catalog entries.
type CatalogStore interface {
	// UpsertWorkflow inserts the entry or overwrites the row with the same
	// slug. ID, CreatedAt and UpdatedAt are filled from the stored row.
	UpsertWorkflow(ctx context.Context, entry *models.CatalogEntry) error
	// ListWorkflows returns a page of entries ordered by creation.
	ListWorkflows(ctx context.Context, opts ListOptions) ([]models.CatalogEntry, error)
	// GetWorkflowBySlug retrieves an entry by its slug.
	GetWorkflowBySlug(ctx context.Context, slug string) (*models.CatalogEntry, error)
	// GetWorkflowsByIDs retrieves entries by ID, in no particular order.
	GetWorkflowsByIDs(ctx context.Context, ids []string) ([]models.CatalogEntry, error)
	// SourceSHAs maps every slug to the blob sha it was last synced from.
	SourceSHAs(ctx context.Context) (map[string]string, error)
}

// ArtifactStore reads and writes the derived artifacts.
type ArtifactStore interface {
	// ArtifactWorkflowIDs returns the IDs of all entries that have the artifact.
	ArtifactWorkflowIDs(ctx context.Context, kind models.ArtifactKind) (map[string]struct{}, error)
	UpsertDescription(ctx context.Context, a *models.DescriptionArtifact) error
	UpsertSEO(ctx context.Context, a *models.SEOArtifact) error
	UpsertEmbedding(ctx context.Context, a *models.EmbeddingArtifact) error
	GetDescription(ctx context.Context, workflowID string) (*models.DescriptionArtifact, error)
	GetSEO(ctx context.Context, workflowID string) (*models.SEOArtifact, error)
	HasEmbedding(ctx context.Context, workflowID string) (bool, error)
}

// VectorStore serves similarity search.
type VectorStore interface {
	// MatchWorkflows ranks stored embeddings inside the database.
	MatchWorkflows(ctx context.Context, query []float32, threshold float64, limit int) ([]Match, error)
	// ListEmbeddings returns up to limit stored embeddings.
	ListEmbeddings(ctx context.Context, limit int) ([]models.EmbeddingArtifact, error)
}

// Repository is the full persistence contract of the catalog.
type Repository interface {
	CatalogStore
	ArtifactStore
	VectorStore
	Ping(ctx context.Context) error
}
