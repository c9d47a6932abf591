package enrich

import (
	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// NewDescriptionScheduler returns the description scheduler.
func NewDescriptionScheduler(gen *DescriptionGenerator, catalog Catalog, opts Options, logger Logger) Runner {
	return NewScheduler[*models.DescriptionArtifact](gen, catalog, opts, logger)
}

// NewSEOScheduler returns the SEO scheduler.
func NewSEOScheduler(gen *SEOGenerator, catalog Catalog, opts Options, logger Logger) Runner {
	return NewScheduler[*models.SEOArtifact](gen, catalog, opts, logger)
}

// NewEmbeddingScheduler returns the embedding scheduler.
func NewEmbeddingScheduler(gen *EmbeddingGenerator, catalog Catalog, opts Options, logger Logger) Runner {
	return NewScheduler[*models.EmbeddingArtifact](gen, catalog, opts, logger)
}
