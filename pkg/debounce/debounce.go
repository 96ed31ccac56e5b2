// Package debounce схлопывает серию событий по одному ключу в один вызов.
// Вызов происходит после окна тишины quiet, но не позже maxWait с первого события серии.
package debounce

import (
	"context"
	"sync"
	"time"
)

// Func вызывается для ключа, когда серия событий завершилась.
type Func func(ctx context.Context, key int64)

type pending struct {
	timer *time.Timer
	first time.Time
}

// Debouncer: потокобезопасный дебаунсер по int64-ключам (id пользователя).
type Debouncer struct {
	quiet   time.Duration
	maxWait time.Duration
	fn      Func

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[int64]*pending
	closed  bool
	now     func() time.Time
}

// New создаёт дебаунсер. maxWait меньше quiet приравнивается к quiet.
func New(quiet, maxWait time.Duration, fn Func) *Debouncer {
	if maxWait < quiet {
		maxWait = quiet
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Debouncer{
		quiet:   quiet,
		maxWait: maxWait,
		fn:      fn,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[int64]*pending),
		now:     time.Now,
	}
}

// Trigger регистрирует событие для ключа. Возвращает false, если дебаунсер остановлен.
func (d *Debouncer) Trigger(key int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}

	now := d.now()
	p, ok := d.pending[key]
	if !ok {
		p = &pending{first: now}
		d.pending[key] = p
		p.timer = time.AfterFunc(d.quiet, func() { d.fire(key, p) })
		return true
	}

	delay := d.quiet
	if deadline := p.first.Add(d.maxWait); now.Add(delay).After(deadline) {
		delay = deadline.Sub(now)
		if delay < 0 {
			delay = 0
		}
	}
	p.timer.Reset(delay)

	return true
}

// Pending возвращает количество ключей, ожидающих вызова.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.pending)
}

// Flush немедленно вызывает fn для всех ожидающих ключей и ждёт завершения.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	keys := make([]int64, 0, len(d.pending))
	for key, p := range d.pending {
		if p.timer.Stop() {
			keys = append(keys, key)
			delete(d.pending, key)
		}
	}
	if !d.closed {
		d.wg.Add(len(keys))
	}
	closed := d.closed
	d.mu.Unlock()

	if closed {
		return
	}

	for _, key := range keys {
		go func() {
			defer d.wg.Done()
			d.fn(d.ctx, key)
		}()
	}

	d.wg.Wait()
}

// Stop останавливает таймеры без вызова fn, отменяет контекст запущенных вызовов
// и ждёт их завершения либо отмены ctx.
func (d *Debouncer) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
	d.mu.Unlock()

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Debouncer) fire(key int64, p *pending) {
	d.mu.Lock()
	// таймер мог быть перезапущен новой серией после удаления старой
	if cur, ok := d.pending[key]; !ok || cur != p || d.closed {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	d.fn(d.ctx, key)
}
