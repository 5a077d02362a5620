package ai

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logutil.GetLogger(context.Background()).Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// A caller walking away is not a provider failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrUnavailable)
		},
	})
}

type breakerGenerator struct {
	next IGenerator
	cb   *gobreaker.CircuitBreaker
}

// WrapBreakerGenerator fails fast while the provider keeps failing. It never retries.
func WrapBreakerGenerator(g IGenerator, cfg BreakerConfig) IGenerator {
	if g == nil {
		return nil
	}
	return &breakerGenerator{next: g, cb: newBreaker(cfg)}
}

func (b *breakerGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Generate(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

type breakerEmbedder struct {
	next IEmbedder
	cb   *gobreaker.CircuitBreaker
}

func WrapBreakerEmbedder(e IEmbedder, cfg BreakerConfig) IEmbedder {
	if e == nil {
		return nil
	}
	return &breakerEmbedder{next: e, cb: newBreaker(cfg)}
}

func (b *breakerEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Embed(ctx, text, taskType)
	})
	if err != nil {
		return nil, err
	}
	return res.([]float32), nil
}

func (b *breakerEmbedder) ModelName() string {
	return b.next.ModelName()
}
