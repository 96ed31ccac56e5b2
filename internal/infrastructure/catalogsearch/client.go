// Package catalogsearch - клиент внешнего сервиса похожей музыки (формат TasteDive).
package catalogsearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/taste-backend/internal/cfg"
	"github.com/DRSN-tech/taste-backend/internal/metrics"
	"github.com/DRSN-tech/taste-backend/internal/usecase"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/jitter"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const breakerName = "similar-artists"

type similarResponse struct {
	Similar struct {
		Results []struct {
			Name string `json:"Name"`
			Type string `json:"Type"`
		} `json:"Results"`
	} `json:"Similar"`
}

// statusError: ответ сервиса с неуспешным HTTP-статусом
type statusError struct {
	code int
}

func (s *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", s.code)
}

// Client запрашивает похожих артистов. Все вызовы проходят через rate limiter и circuit breaker,
// временные ошибки повторяются с экспоненциальной задержкой.
type Client struct {
	http    *resty.Client
	cfg     *cfg.ExternalSearchCfg
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]usecase.SimilarItem]
	backoff *jitter.Backoff
	logger  logger.Logger
}

func NewClient(cfg *cfg.ExternalSearchCfg, logger logger.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetJSONUnmarshaler(json.Unmarshal)

	breaker := gobreaker.NewCircuitBreaker[[]usecase.SimilarItem](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerOpenDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= max(cfg.BreakerFailures, 1)
		},
		IsSuccessful: func(err error) bool {
			// отмена запроса вызывающей стороной не говорит о состоянии сервиса
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}

	return &Client{
		http:    httpClient,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, max(cfg.RateBurst, 1)),
		breaker: breaker,
		backoff: jitter.NewBackoff(cfg.RetryBaseDelay, cfg.RetryMaxDelay, jitter.DefaultJitter),
		logger:  logger,
	}
}

// Recommend по очереди спрашивает сервис о каждом артисте из seeds и возвращает первый непустой ответ.
// Ошибка возвращается, только если ни один запрос не удался.
func (c *Client) Recommend(ctx context.Context, seeds []string, limit int) ([]usecase.SimilarItem, error) {
	const op = "catalogsearch.Client.Recommend"

	if c.cfg.BaseURL == "" || len(seeds) == 0 || limit <= 0 {
		return nil, nil
	}

	var lastErr error
	succeeded := false
	for _, seed := range seeds {
		seed = strings.TrimSpace(seed)
		if seed == "" {
			continue
		}

		items, err := c.similar(ctx, seed, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, e.Wrap(op, ctx.Err())
			}
			lastErr = err
			c.logger.Warnf("similar artists lookup failed. seed: %q, error: %v", seed, err)
			continue
		}

		succeeded = true
		if len(items) > 0 {
			return items, nil
		}
		metrics.ExternalRequests.WithLabelValues("empty").Inc()
		c.logger.Debugf("similar artists service returned nothing for seed %q", seed)
	}

	if !succeeded && lastErr != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrExternalSearch, lastErr))
	}

	return nil, nil
}

// similar выполняет запрос по одному артисту с повторами.
func (c *Client) similar(ctx context.Context, seed string, limit int) ([]usecase.SimilarItem, error) {
	var err error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if werr := c.backoff.Wait(ctx, attempt-1); werr != nil {
				return nil, werr
			}
		}

		var items []usecase.SimilarItem
		items, err = c.breaker.Execute(func() ([]usecase.SimilarItem, error) {
			return c.fetch(ctx, seed, limit)
		})
		if err == nil {
			return items, nil
		}
		if !retryable(err) {
			return nil, err
		}
	}

	return nil, err
}

func (c *Client) fetch(ctx context.Context, seed string, limit int) ([]usecase.SimilarItem, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	started := time.Now()
	var body similarResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":     seed,
			"type":  "music",
			"limit": strconv.Itoa(limit),
			"k":     c.cfg.ApiKey,
			"info":  "1",
		}).
		SetResult(&body).
		ForceContentType("application/json").
		Get("")
	if err != nil {
		metrics.RecordExternalRequest("error", time.Since(started))
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		metrics.RecordExternalRequest("error", time.Since(started))
		return nil, &statusError{code: resp.StatusCode()}
	}
	metrics.RecordExternalRequest("ok", time.Since(started))

	items := make([]usecase.SimilarItem, 0, len(body.Similar.Results))
	seen := make(map[usecase.TrackKey]struct{}, len(body.Similar.Results))
	for _, r := range body.Similar.Results {
		item, ok := parseName(r.Name)
		if !ok {
			continue
		}
		key := usecase.NewTrackKey(item.Artist, item.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, item)
		if len(items) == limit {
			break
		}
	}

	return items, nil
}

// parseName разбирает "Артист - Трек". Имя без разделителя - только артист.
func parseName(name string) (usecase.SimilarItem, bool) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return usecase.SimilarItem{}, false
	}

	artist, title, found := strings.Cut(name, " - ")
	if !found {
		return usecase.SimilarItem{Artist: trimmed}, true
	}

	artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
	if artist == "" {
		return usecase.SimilarItem{}, false
	}
	return usecase.SimilarItem{Artist: artist, Title: title}, true
}

// retryable: сетевые ошибки, 429 и 5xx. Разомкнутый breaker не повторяется.
func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.ExternalRequests.WithLabelValues("rejected").Inc()
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= http.StatusInternalServerError
	}
	return true
}
