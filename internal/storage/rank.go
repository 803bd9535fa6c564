package storage

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kyleking/schema-rag/internal/embedding"
)

type candidate struct {
	id       string
	document string
	metadata map[string]string
	vector   []float32
}

// ErrDimensionMismatch is returned by Query when stored vectors were produced
// by a different embedder than the query vector
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// rankCandidates scores candidates against the query vector and keeps the
// best k. Equal scores are ordered by ascending id.
func rankCandidates(query []float32, candidates []candidate, k int) ([]Match, error) {
	matches := make([]Match, 0, len(candidates))

	for _, c := range candidates {
		if len(c.vector) != len(query) {
			return nil, fmt.Errorf("%w: table %s has %d dimensions, query has %d",
				ErrDimensionMismatch, c.id, len(c.vector), len(query))
		}

		matches = append(matches, Match{
			ID:       c.id,
			Document: c.document,
			Metadata: c.metadata,
			Score:    embedding.CosineSimilarity(query, c.vector),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}

		return matches[i].ID < matches[j].ID
	})

	if k < len(matches) {
		matches = matches[:k]
	}

	return matches, nil
}

func copyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}
