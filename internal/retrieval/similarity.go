// Package retrieval ranks stored chunks against a query vector.
package retrieval

import (
	"math"
	"sort"

	"github.com/hyperjump/taxqa/internal/models"
	"github.com/hyperjump/taxqa/pkg/utils"
)

// CosineSimilarity returns dot(a,b) / (|a| * |b|). It is NaN when either vector has zero
// magnitude or the lengths differ; use rankScore before comparing.
func CosineSimilarity(a, b []float32) float64 {
	return utils.CosineSimilarity(a, b)
}

// rankScore maps an undefined similarity to -Inf so it sorts last.
func rankScore(s float64) float64 {
	if math.IsNaN(s) {
		return math.Inf(-1)
	}
	return s
}

// rankTopK sorts results by descending similarity, keeping input order for ties, and
// truncates to k.
func rankTopK(results []models.RetrievedChunk, k int) []models.RetrievedChunk {
	for i := range results {
		results[i].Similarity = rankScore(results[i].Similarity)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if k < len(results) {
		results = results[:k]
	}
	return results
}
