// Package jitter добавляет случайность в интервалы повторов,
// чтобы клиенты не повторяли запросы синхронно.
package jitter

import (
	"context"
	"math/rand/v2"
	"time"
)

// DefaultJitter: стандартный коэффициент джиттера (50%)
const DefaultJitter = 0.5

// Duration возвращает d с джиттером в диапазоне [d, d*(1+factor)].
func Duration(d time.Duration, factor float64) time.Duration {
	return DurationWithRand(d, factor, rand.Float64)
}

// DurationWithRand: Duration с заданным источником случайности в [0, 1).
func DurationWithRand(d time.Duration, factor float64, random func() float64) time.Duration {
	if d <= 0 || factor <= 0 {
		return d
	}
	return d + time.Duration(random()*factor*float64(d))
}

// Backoff: экспоненциальная задержка между повторами.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64

	random func() float64
}

func NewBackoff(base, max time.Duration, factor float64) *Backoff {
	return &Backoff{Base: base, Max: max, Factor: factor, random: rand.Float64}
}

// Next возвращает задержку перед повтором attempt (нумерация с нуля).
// Без джиттера задержка не превышает Max.
func (b *Backoff) Next(attempt int) time.Duration {
	delay := b.Base
	for i := 0; i < attempt && delay < b.Max; i++ {
		delay *= 2
	}
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}

	random := b.random
	if random == nil {
		random = rand.Float64
	}
	return DurationWithRand(delay, b.Factor, random)
}

// Wait ждёт задержку перед повтором attempt или отмену контекста.
func (b *Backoff) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(b.Next(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
