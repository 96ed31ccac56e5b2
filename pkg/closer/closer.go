package closer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const defaultForcedTimeout = 2 * time.Second

// Func: сигнатура функции закрытия ресурса.
type Func func(ctx context.Context) error

type entry struct {
	name string
	fn   Func
}

// Closer закрывает зарегистрированные ресурсы в обратном порядке (LIFO).
type Closer struct {
	mu            sync.Mutex
	entries       []entry
	once          sync.Once
	forcedTimeout time.Duration
}

// NewCloser создаёт Closer. forcedTimeout - время на принудительное закрытие,
// если контекст Close истёк раньше, чем закрылись все ресурсы.
func NewCloser(forcedTimeout time.Duration) *Closer {
	if forcedTimeout <= 0 {
		forcedTimeout = defaultForcedTimeout
	}

	return &Closer{forcedTimeout: forcedTimeout}
}

// Add регистрирует функцию закрытия. name попадает в текст ошибки.
func (c *Closer) Add(name string, f Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry{name: name, fn: f})
}

// AddFunc регистрирует функцию закрытия без контекста и ошибки (например, pool.Close).
func (c *Closer) AddFunc(name string, f func()) {
	c.Add(name, func(context.Context) error {
		f()
		return nil
	})
}

// Close выполняется один раз. Ресурсы закрываются последовательно, пока не истечёт ctx;
// оставшиеся закрываются параллельно с собственным таймаутом.
func (c *Closer) Close(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		entries := c.entries
		c.mu.Unlock()

		remaining, errs := c.gracefulClose(ctx, entries)
		if len(remaining) > 0 {
			errs = append(errs, fmt.Errorf("shutdown interrupted after %d/%d resources: %w",
				len(entries)-len(remaining), len(entries), ctx.Err()))
			errs = append(errs, c.forcedClose(remaining)...)
		}

		err = errors.Join(errs...)
	})

	return err
}

// gracefulClose возвращает ресурсы, до которых не дошла очередь из-за отмены контекста.
func (c *Closer) gracefulClose(ctx context.Context, entries []entry) ([]entry, []error) {
	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		en := entries[i]
		done := make(chan error, 1)

		go func() {
			done <- en.fn(ctx)
		}()

		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", en.name, err))
			}
		case <-ctx.Done():
			return entries[:i+1], errs
		}
	}

	return nil, errs
}

func (c *Closer) forcedClose(entries []entry) []error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	ctx, cancel := context.WithTimeout(context.Background(), c.forcedTimeout)
	defer cancel()

	for _, en := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := en.fn(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("forced close %s: %w", en.name, err))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return errs
}
