// Package retrieval ranks indexed passages by cosine similarity to a query vector.
package retrieval

import (
	"math"
	"sort"

	"github.com/xxxsen/consultrag/internal/model"
)

// LowestScore is assigned to pairs whose similarity is undefined.
var LowestScore = math.Inf(-1)

type ScoredPassage struct {
	Passage model.IndexedPassage
	Score   float64
}

// CosineSimilarity returns dot(a,b)/(|a|*|b|). Empty, mismatched or
// zero-magnitude inputs yield LowestScore instead of NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return LowestScore
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return LowestScore
	}
	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return LowestScore
	}
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}

// Retrieve returns at most topK passages ordered by non-increasing score.
// Equal scores keep the input order.
func Retrieve(query []float32, passages []model.IndexedPassage, topK int) []ScoredPassage {
	if topK <= 0 || len(passages) == 0 {
		return nil
	}
	scored := make([]ScoredPassage, 0, len(passages))
	for _, p := range passages {
		scored = append(scored, ScoredPassage{Passage: p, Score: CosineSimilarity(query, p.Vector)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK]
}

// Compatible drops passages produced by a different embedding model or with a
// different dimension than the query vector.
func Compatible(passages []model.IndexedPassage, modelTag string, dimension int) (kept []model.IndexedPassage, dropped int) {
	kept = make([]model.IndexedPassage, 0, len(passages))
	for _, p := range passages {
		if p.ModelTag != modelTag || len(p.Vector) != dimension {
			dropped++
			continue
		}
		kept = append(kept, p)
	}
	return kept, dropped
}
