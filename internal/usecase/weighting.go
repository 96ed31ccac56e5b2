package usecase

import (
	"fmt"
	"math"
	"time"

	"github.com/DRSN-tech/taste-backend/internal/cfg"
	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/pkg/e"
)

// WeightPolicy считает вес элемента коллекции: recency(type, age) * prominence(popularity).
type WeightPolicy struct {
	tiers  map[domain.ItemType][]cfg.RecencyTier
	span   float64
	anthem float64
}

// NewWeightPolicy проверяет конфигурацию весов:
// ступени давности не возрастают с возрастом, гимн весит больше любого обычного элемента.
func NewWeightPolicy(c *cfg.EmbeddingCfg) (*WeightPolicy, error) {
	const op = "NewWeightPolicy"

	if c.ProminenceSpan < 0 || math.IsNaN(c.ProminenceSpan) || math.IsInf(c.ProminenceSpan, 0) {
		return nil, e.Wrap(op, fmt.Errorf("%w: prominence span %v", e.ErrInvalidConfig, c.ProminenceSpan))
	}

	tiers := map[domain.ItemType][]cfg.RecencyTier{
		domain.ItemTrack:  c.TrackTiers,
		domain.ItemArtist: c.ArtistTiers,
		domain.ItemAlbum:  c.AlbumTiers,
	}

	var maxOrdinary float64
	for itemType, list := range tiers {
		if err := validateTiers(list); err != nil {
			return nil, e.Wrap(fmt.Sprintf("%s: %s tiers", op, itemType), err)
		}
		if top := list[0].Weight * (1 + c.ProminenceSpan); top > maxOrdinary {
			maxOrdinary = top
		}
	}

	if !(c.AnthemWeight > maxOrdinary) {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v <= %v", e.ErrAnthemWeightTooLow, c.AnthemWeight, maxOrdinary))
	}

	return &WeightPolicy{
		tiers:  tiers,
		span:   c.ProminenceSpan,
		anthem: c.AnthemWeight,
	}, nil
}

func validateTiers(tiers []cfg.RecencyTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: no tiers", e.ErrInvalidConfig)
	}

	var prevAge time.Duration
	prevWeight := math.Inf(1)
	for i, tier := range tiers {
		if !(tier.Weight > 0) || math.IsInf(tier.Weight, 0) {
			return fmt.Errorf("%w: tier %d weight %v", e.ErrInvalidConfig, i, tier.Weight)
		}
		if tier.MaxAge == 0 && i != len(tiers)-1 {
			return fmt.Errorf("%w: open tier must be last", e.ErrInvalidConfig)
		}
		if tier.MaxAge != 0 && tier.MaxAge <= prevAge {
			return fmt.Errorf("%w: tier %d age %v", e.ErrNonMonotonicRecency, i, tier.MaxAge)
		}
		if tier.Weight > prevWeight {
			return fmt.Errorf("%w: tier %d weight %v", e.ErrNonMonotonicRecency, i, tier.Weight)
		}
		prevAge = tier.MaxAge
		prevWeight = tier.Weight
	}

	return nil
}

// Recency возвращает вес по давности владения. Возраст меньше нуля считается нулевым.
func (p *WeightPolicy) Recency(itemType domain.ItemType, age time.Duration) float64 {
	tiers := p.tiers[itemType]
	if len(tiers) == 0 {
		return 0
	}

	if age < 0 {
		age = 0
	}
	for _, tier := range tiers {
		if tier.MaxAge == 0 || age <= tier.MaxAge {
			return tier.Weight
		}
	}

	// ступени без открытой: всё старше последней получает её вес
	return tiers[len(tiers)-1].Weight
}

// Prominence возвращает множитель популярности в [1, 1+span]. Без популярности - 1.
func (p *WeightPolicy) Prominence(popularity *int) float64 {
	if popularity == nil {
		return 1
	}

	pop := math.Max(0, math.Min(100, float64(*popularity)))
	return 1 + pop/100*p.span
}

// Weight: итоговый вес элемента коллекции на момент now.
func (p *WeightPolicy) Weight(item domain.OwnedItem, popularity *int, now time.Time) float64 {
	return p.Recency(item.Item.Type, now.Sub(item.AcquiredAt)) * p.Prominence(popularity)
}

func (p *WeightPolicy) AnthemWeight() float64 {
	return p.anthem
}
