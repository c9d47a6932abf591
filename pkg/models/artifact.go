package models

import (
	"time"
)

// ArtifactKind names one of the derived artifacts attached 1:1 to a catalog entry.
type ArtifactKind string

const (
	ArtifactDescription ArtifactKind = "description"
	ArtifactSEO         ArtifactKind = "seo"
	ArtifactEmbedding   ArtifactKind = "embedding"
)

// ArtifactKinds lists every artifact kind in a stable order.
var ArtifactKinds = []ArtifactKind{ArtifactDescription, ArtifactSEO, ArtifactEmbedding}

// ParseArtifactKind maps a user supplied name to an ArtifactKind.
func ParseArtifactKind(s string) (ArtifactKind, bool) {
	for _, k := range ArtifactKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Quality records whether an AI artifact came from a strict JSON parse or
// from the heuristic text fallback.
type Quality string

const (
	QualityStructured Quality = "structured"
	QualityHeuristic  Quality = "heuristic"
)

// DescriptionArtifact is the natural-language description of a workflow.
type DescriptionArtifact struct {
	WorkflowID  string    `json:"workflow_id" db:"workflow_id"`
	Description string    `json:"description" db:"description"`
	UseCases    []string  `json:"use_cases" db:"use_cases"`
	SetupSteps  []string  `json:"setup_steps" db:"setup_steps"`
	Quality     Quality   `json:"quality" db:"quality"`
	Model       string    `json:"model" db:"model"`
	GeneratedAt time.Time `json:"generated_at" db:"generated_at"`
}

// SEOArtifact holds search-engine metadata for a workflow page.
type SEOArtifact struct {
	WorkflowID      string    `json:"workflow_id" db:"workflow_id"`
	MetaTitle       string    `json:"meta_title" db:"meta_title"`
	MetaDescription string    `json:"meta_description" db:"meta_description"`
	Keywords        []string  `json:"keywords" db:"keywords"`
	Quality         Quality   `json:"quality" db:"quality"`
	Model           string    `json:"model" db:"model"`
	GeneratedAt     time.Time `json:"generated_at" db:"generated_at"`
}

// EmbeddingArtifact is the vector representation of a workflow used for
// semantic search.
type EmbeddingArtifact struct {
	WorkflowID  string    `json:"workflow_id" db:"workflow_id"`
	Vector      []float32 `json:"-" db:"embedding"`
	Model       string    `json:"model" db:"model"`
	GeneratedAt time.Time `json:"generated_at" db:"generated_at"`
}
