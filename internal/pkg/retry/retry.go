// Package retry repete operações que falham de forma transitória,
// como conflitos de versão (OCC) na gravação do catálogo de variantes.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

const defaultDelay = 50 * time.Millisecond

// Backoff calcula a espera antes da próxima tentativa.
type Backoff func(attempt int) time.Duration

// ShouldRetry decide se o erro merece uma nova tentativa.
type ShouldRetry func(error) bool

// Policy configura as tentativas.
type Policy struct {
	MaxAttempts int
	Backoff     Backoff
	ShouldRetry ShouldRetry
}

func (p *Policy) normalize() {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Backoff == nil {
		p.Backoff = ExponentialBackoff(defaultDelay)
	}
	if p.ShouldRetry == nil {
		p.ShouldRetry = func(error) bool { return true }
	}
}

// ExponentialBackoff dobra a espera a cada tentativa, com jitter de até metade da base.
func ExponentialBackoff(delay time.Duration) Backoff {
	return func(attempt int) time.Duration {
		base := delay << (attempt - 1)
		if half := int64(base / 2); half > 0 {
			return base + time.Duration(rand.Int64N(half))
		}
		return base
	}
}

// ConstantBackoff espera sempre o mesmo intervalo.
func ConstantBackoff(delay time.Duration) Backoff {
	return func(int) time.Duration { return delay }
}

// Do executa fn até ter sucesso, até um erro não retentável ou até esgotar as tentativas.
func Do(ctx context.Context, p Policy, fn func() error) error {
	_, err := DoWithResult(ctx, p, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult é a versão de Do que devolve o resultado da operação.
// O último erro é sempre devolvido, inclusive quando não é retentável.
func DoWithResult[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	p.normalize()
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		var result T
		result, err = fn()
		if err == nil {
			return result, nil
		}
		if !p.ShouldRetry(err) || attempt == p.MaxAttempts {
			return zero, err
		}

		timer.Reset(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %w", ctx.Err(), err)
		case <-timer.C:
		}
	}
	return zero, err
}
