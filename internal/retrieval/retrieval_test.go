package retrieval

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/consultrag/internal/model"
)

func passage(id string, vec ...float32) model.IndexedPassage {
	return model.IndexedPassage{RecordID: id, Vector: vec, ModelTag: "fake/m1"}
}

func ids(res []ScoredPassage) []string {
	out := make([]string, 0, len(res))
	for _, r := range res {
		out = append(out, r.Passage.RecordID)
	}
	return out
}

func TestCosineSimilaritySymmetricAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		a := make([]float32, 8)
		b := make([]float32, 8)
		for j := range a {
			a[j] = float32(rng.NormFloat64())
			b[j] = float32(rng.NormFloat64())
		}
		ab := CosineSimilarity(a, b)
		ba := CosineSimilarity(b, a)
		require.Equal(t, ab, ba)
		require.GreaterOrEqual(t, ab, -1.0)
		require.LessOrEqual(t, ab, 1.0)
	}
	require.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	require.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-3, 0}), 1e-9)
}

func TestCosineSimilarityUndefined(t *testing.T) {
	require.Equal(t, LowestScore, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	require.Equal(t, LowestScore, CosineSimilarity([]float32{1, 1}, []float32{1}))
	require.Equal(t, LowestScore, CosineSimilarity(nil, nil))
}

func TestRetrieveOrdersDescending(t *testing.T) {
	query := []float32{1, 0}
	res := Retrieve(query, []model.IndexedPassage{
		passage("far", 0, 1),
		passage("near", 1, 0.1),
		passage("opposite", -1, 0),
		passage("mid", 1, 1),
	}, 3)
	require.Equal(t, []string{"near", "mid", "far"}, ids(res))
	for i := 1; i < len(res); i++ {
		require.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
	}
}

func TestRetrieveZeroVectorRanksLast(t *testing.T) {
	res := Retrieve([]float32{1, 0}, []model.IndexedPassage{
		passage("zero", 0, 0),
		passage("opposite", -1, 0),
		passage("same", 2, 0),
	}, 10)
	require.Equal(t, []string{"same", "opposite", "zero"}, ids(res))
	for _, r := range res {
		require.False(t, math.IsNaN(r.Score))
	}
}

func TestRetrieveTopKContract(t *testing.T) {
	store := []model.IndexedPassage{passage("a", 1, 0), passage("b", 0, 1)}
	require.Len(t, Retrieve([]float32{1, 1}, store, 1), 1)
	require.Len(t, Retrieve([]float32{1, 1}, store, 10), 2)
	require.Empty(t, Retrieve([]float32{1, 1}, nil, 5))
	require.Empty(t, Retrieve([]float32{1, 1}, store, 0))
}

func TestRetrieveStableTies(t *testing.T) {
	res := Retrieve([]float32{1, 0}, []model.IndexedPassage{
		passage("first", 1, 0),
		passage("second", 2, 0),
		passage("third", 3, 0),
	}, 3)
	require.Equal(t, []string{"first", "second", "third"}, ids(res))
}

func TestRetrieveZeroQuery(t *testing.T) {
	res := Retrieve([]float32{0, 0}, []model.IndexedPassage{passage("a", 1, 0), passage("b", 0, 1)}, 2)
	require.Equal(t, []string{"a", "b"}, ids(res))
}

func TestCompatible(t *testing.T) {
	in := []model.IndexedPassage{
		passage("ok", 1, 0),
		{RecordID: "old-model", Vector: []float32{1, 0}, ModelTag: "fake/m0"},
		{RecordID: "wrong-dim", Vector: []float32{1, 0, 0}, ModelTag: "fake/m1"},
	}
	kept, dropped := Compatible(in, "fake/m1", 2)
	require.Equal(t, 2, dropped)
	require.Len(t, kept, 1)
	require.Equal(t, "ok", kept[0].RecordID)
}
