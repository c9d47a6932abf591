package repotest

import (
	"math"
	"sort"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/repository"
	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// rank is a plain cosine ranking. It is kept separate from the search
// package so tests compare two independent implementations.
func rank(query []float32, rows []models.EmbeddingArtifact, threshold float64, limit int) []repository.Match {
	var out []repository.Match
	for _, r := range rows {
		if len(r.Vector) != len(query) {
			continue
		}
		var dot, nq, nr float64
		for i := range query {
			dot += float64(query[i]) * float64(r.Vector[i])
			nq += float64(query[i]) * float64(query[i])
			nr += float64(r.Vector[i]) * float64(r.Vector[i])
		}
		if nq == 0 || nr == 0 {
			continue
		}
		sim := dot / math.Sqrt(nq*nr)
		if sim >= threshold {
			out = append(out, repository.Match{WorkflowID: r.WorkflowID, Similarity: sim})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].WorkflowID < out[j].WorkflowID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
