package ai

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	appErr "github.com/xxxsen/consultrag/internal/pkg/errors"
)

// Vector carries the model tag of the embedder that produced it.
type Vector struct {
	Values   []float32
	ModelTag string
}

// Vectorizer turns passages and questions into vectors with the same model.
type Vectorizer struct {
	embedder IEmbedder
	timeout  time.Duration
}

func NewVectorizer(e IEmbedder, timeout time.Duration) *Vectorizer {
	return &Vectorizer{embedder: e, timeout: timeout}
}

func (v *Vectorizer) ModelTag() string {
	if v == nil || v.embedder == nil {
		return ""
	}
	return v.embedder.ModelName()
}

// Vectorize fails with *errors.RemoteServiceError on any embedding problem,
// including timeouts and malformed vectors.
func (v *Vectorizer) Vectorize(ctx context.Context, text string, taskType string) (Vector, error) {
	if v == nil || v.embedder == nil {
		return Vector{}, appErr.NewRemoteServiceError("embedding", errors.New("embedder not configured"))
	}
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	values, err := v.embedder.Embed(ctx, strings.TrimSpace(text), taskType)
	if err != nil {
		return Vector{}, appErr.NewRemoteServiceError("embedding", err)
	}
	if len(values) == 0 {
		return Vector{}, appErr.NewRemoteServiceError("embedding", errors.New("empty embedding"))
	}
	for _, x := range values {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Vector{}, appErr.NewRemoteServiceError("embedding", errors.New("malformed embedding"))
		}
	}
	return Vector{Values: values, ModelTag: v.embedder.ModelName()}, nil
}
