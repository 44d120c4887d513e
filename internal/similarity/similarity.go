// Package similarity scores corpus sections against a query embedding.
//
// The corpus is small and bounded, so ranking is a full linear scan per query
// (O(corpus × dimension)); there is deliberately no index structure.
package similarity

import (
	"math"
	"sort"

	"github.com/chartalabs/chartad/internal/corpus"
)

// DefaultTopK is the number of sections retrieved when the caller does not
// override it.
const DefaultTopK = 3

// Scored is a corpus section paired with its cosine similarity to a query.
type Scored struct {
	corpus.Section
	Similarity float64
}

// Cosine returns the cosine similarity of a and b.
//
// Degenerate inputs (mismatched lengths, empty vectors, zero magnitude)
// return exactly 0 rather than NaN or an error.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores every embedded section against the query vector and returns the
// top k in descending similarity order. Ties keep their input order.
//
// Sections without an embedding are excluded. An empty query vector or an
// empty corpus yields an empty result; Rank never fails. There is no minimum
// similarity floor: when fewer than k well-matching sections exist, near-zero
// or negative scores are still returned.
func Rank(query []float32, sections []corpus.Section, k int) []Scored {
	if len(query) == 0 || len(sections) == 0 {
		return nil
	}
	if k <= 0 {
		k = DefaultTopK
	}

	scored := make([]Scored, 0, len(sections))
	for _, sec := range sections {
		if len(sec.Embedding) == 0 {
			continue
		}
		scored = append(scored, Scored{
			Section:    sec,
			Similarity: Cosine(query, sec.Embedding),
		})
	}
	if len(scored) == 0 {
		return nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}
