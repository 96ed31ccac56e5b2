package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/DRSN-tech/taste-backend/internal/cfg"
	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/internal/metrics"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
	"github.com/DRSN-tech/taste-backend/pkg/vecmath"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	compatibilityCacheName = "compatibility"
	genreReadConcurrency   = 8
)

// compatibilityStrategy возвращает ok == false, если не может посчитать оценку и нужно перейти к следующей.
type compatibilityStrategy func(ctx context.Context, pair *userPair) (*domain.Compatibility, bool)

// userPair: пара пользователей, упорядоченная по id, чтобы оценка была симметричной
type userPair struct {
	lo, hi *domain.User
}

// CompatibilityUseCase оценивает совместимость вкусов двух пользователей по шкале 0..100.
// Сначала по эмбеддингам, при их отсутствии у любой из сторон - целиком по пересечению коллекций.
type CompatibilityUseCase struct {
	userRepo      UserRepository
	ownershipRepo OwnershipRepository
	featureStore  FeatureStore
	embeddingUC   EmbeddingUC
	cacheRepo     CacheRepository
	cfg           *cfg.CompatibilityCfg
	cacheCfg      *cfg.CacheCfg
	logger        logger.Logger

	strategies []compatibilityStrategy
}

func NewCompatibilityUC(
	userRepo UserRepository,
	ownershipRepo OwnershipRepository,
	featureStore FeatureStore,
	embeddingUC EmbeddingUC,
	cacheRepo CacheRepository,
	cfg *cfg.CompatibilityCfg,
	cacheCfg *cfg.CacheCfg,
	logger logger.Logger,
) (*CompatibilityUseCase, error) {
	const op = "NewCompatibilityUC"

	if cfg.Exponent < 1 || cfg.Exponent > 2 || math.IsNaN(cfg.Exponent) {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrInvalidConvexity, cfg.Exponent))
	}

	weights := []float64{cfg.TrackWeight, cfg.ArtistWeight, cfg.AlbumWeight, cfg.GenreWeight}
	var total float64
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, e.Wrap(op, e.ErrInvalidOverlapWeights)
		}
		total += w
	}
	if total <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidOverlapWeights)
	}

	uc := &CompatibilityUseCase{
		userRepo:      userRepo,
		ownershipRepo: ownershipRepo,
		featureStore:  featureStore,
		embeddingUC:   embeddingUC,
		cacheRepo:     cacheRepo,
		cfg:           cfg,
		cacheCfg:      cacheCfg,
		logger:        logger,
	}
	uc.strategies = []compatibilityStrategy{uc.embeddingStrategy, uc.overlapStrategy}

	return uc, nil
}

// GetCompatibility возвращает оценку совместимости 0..100 с одним знаком после запятой.
func (c *CompatibilityUseCase) GetCompatibility(ctx context.Context, userA, userB int64) (float64, error) {
	res, err := c.Compatibility(ctx, userA, userB)
	if err != nil {
		return 0, err
	}

	return res.Score, nil
}

// Compatibility возвращает оценку вместе со способом, которым она получена.
func (c *CompatibilityUseCase) Compatibility(ctx context.Context, userA, userB int64) (*domain.Compatibility, error) {
	const op = "CompatibilityUseCase.Compatibility"

	if userA <= 0 || userB <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidUserID)
	}

	if c.cfg.ScoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ScoreTimeout)
		defer cancel()
	}

	lo, hi := min(userA, userB), max(userA, userB)

	pair, err := c.loadPair(ctx, lo, hi)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	for _, strategy := range c.strategies {
		if res, ok := strategy(ctx, pair); ok {
			metrics.CompatibilityScores.WithLabelValues(string(res.Method)).Inc()
			return res, nil
		}
	}

	// до сюда не доходит: пересечение считается всегда
	return &domain.Compatibility{UserA: lo, UserB: hi, Method: domain.MethodOverlap}, nil
}

func (c *CompatibilityUseCase) loadPair(ctx context.Context, lo, hi int64) (*userPair, error) {
	userLo, err := c.loadUser(ctx, lo)
	if err != nil {
		return nil, err
	}

	userHi := userLo
	if hi != lo {
		userHi, err = c.loadUser(ctx, hi)
		if err != nil {
			return nil, err
		}
	}

	return &userPair{lo: userLo, hi: userHi}, nil
}

// loadUser возвращает пользователя без эмбеддинга, если хранилище недоступно: дальше сработает fallback.
func (c *CompatibilityUseCase) loadUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := c.userRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrUserNotFound) {
			return nil, err
		}
		c.logger.Warnf("failed to load user for compatibility. user_id: %d, error: %v", id, err)
		return &domain.User{ID: id}, nil
	}

	return user, nil
}

// ensureEmbedding один раз пытается пересчитать отсутствующий или невалидный эмбеддинг.
func (c *CompatibilityUseCase) ensureEmbedding(ctx context.Context, user *domain.User) *domain.User {
	if vecmath.IsValidEmbedding(user.Embedding) {
		return user
	}

	vec, err := c.embeddingUC.AggregateEmbeddingFor(ctx, user.ID)
	if err != nil || vec == nil {
		if err != nil {
			c.logger.Warnf("embedding aggregation failed. user_id: %d, error: %v", user.ID, err)
		}
		return user
	}

	// updated_at изменился: перечитываем пользователя, чтобы ключ кэша был актуальным
	fresh, err := c.userRepo.Get(ctx, user.ID)
	if err != nil || !vecmath.IsValidEmbedding(fresh.Embedding) {
		return &domain.User{ID: user.ID, Embedding: vec, UpdatedAt: time.Now().UTC()}
	}

	return fresh
}

func (c *CompatibilityUseCase) embeddingStrategy(ctx context.Context, pair *userPair) (*domain.Compatibility, bool) {
	lo := c.ensureEmbedding(ctx, pair.lo)
	hi := lo
	if pair.hi.ID != pair.lo.ID {
		hi = c.ensureEmbedding(ctx, pair.hi)
	}

	if !vecmath.IsValidEmbedding(lo.Embedding) || !vecmath.IsValidEmbedding(hi.Embedding) {
		c.logger.Infof("embedding unavailable, falling back to overlap. users: %d, %d", lo.ID, hi.ID)
		return nil, false
	}
	if len(lo.Embedding) != len(hi.Embedding) {
		c.logger.Errorf(e.ErrDimensionMismatch, "data quality: user embeddings differ in dimension. users: %d (%d), %d (%d)",
			lo.ID, len(lo.Embedding), hi.ID, len(hi.Embedding))
		return nil, false
	}

	key := embeddingCompatibilityKey(lo, hi)
	if cached, ok := c.getCached(ctx, key); ok {
		return cached, true
	}

	res := &domain.Compatibility{
		UserA:  lo.ID,
		UserB:  hi.ID,
		Score:  CompatibilityScore(vecmath.CosineSimilarity(lo.Embedding, hi.Embedding), c.cfg.Exponent),
		Method: domain.MethodEmbedding,
	}
	c.setCached(ctx, key, res, c.cacheCfg.CompatibilityTTL)

	return res, true
}

func (c *CompatibilityUseCase) overlapStrategy(ctx context.Context, pair *userPair) (*domain.Compatibility, bool) {
	colLo := c.listOwned(ctx, pair.lo.ID)
	colHi := colLo
	if pair.hi.ID != pair.lo.ID {
		colHi = c.listOwned(ctx, pair.hi.ID)
	}

	key := overlapCompatibilityKey(pair.lo.ID, pair.hi.ID, colLo, colHi)
	if cached, ok := c.getCached(ctx, key); ok {
		return cached, true
	}

	var genresLo, genresHi map[string]struct{}
	if c.cfg.GenreWeight > 0 {
		genresLo = c.collectGenres(ctx, colLo)
		genresHi = genresLo
		if pair.hi.ID != pair.lo.ID {
			genresHi = c.collectGenres(ctx, colHi)
		}
	}

	score := c.overlapScore(colLo, colHi, genresLo, genresHi)

	res := &domain.Compatibility{
		UserA:  pair.lo.ID,
		UserB:  pair.hi.ID,
		Score:  roundScore(score * 100),
		Method: domain.MethodOverlap,
	}
	c.setCached(ctx, key, res, c.cacheCfg.FallbackTTL)

	return res, true
}

// overlapScore: взвешенная сумма коэффициентов Жаккара по трекам, артистам, альбомам и жанрам, в [0, 1].
func (c *CompatibilityUseCase) overlapScore(a, b *domain.Collection, genresA, genresB map[string]struct{}) float64 {
	parts := []struct {
		weight float64
		sim    float64
	}{
		{c.cfg.TrackWeight, jaccard(a.IDs(domain.ItemTrack), b.IDs(domain.ItemTrack))},
		{c.cfg.ArtistWeight, jaccard(a.IDs(domain.ItemArtist), b.IDs(domain.ItemArtist))},
		{c.cfg.AlbumWeight, jaccard(a.IDs(domain.ItemAlbum), b.IDs(domain.ItemAlbum))},
		{c.cfg.GenreWeight, jaccard(genresA, genresB)},
	}

	var sum, total float64
	for _, p := range parts {
		sum += p.weight * p.sim
		total += p.weight
	}
	if total == 0 {
		return 0
	}

	return vecmath.Clamp(sum/total, 0, 1)
}

func (c *CompatibilityUseCase) listOwned(ctx context.Context, userID int64) *domain.Collection {
	col, err := c.ownershipRepo.ListOwned(ctx, userID)
	if err != nil || col == nil {
		if err != nil {
			c.logger.Warnf("failed to list owned items for overlap. user_id: %d, error: %v", userID, err)
		}
		return &domain.Collection{}
	}

	return col
}

// collectGenres собирает жанровые теги из признаков элементов коллекции. Ошибки чтения пропускаются.
func (c *CompatibilityUseCase) collectGenres(ctx context.Context, col *domain.Collection) map[string]struct{} {
	owned := col.All()
	genres := make([][]string, len(owned))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(genreReadConcurrency)
	for i, item := range owned {
		g.Go(func() error {
			rec, err := c.featureStore.Get(gctx, item.Item)
			if err != nil || rec == nil {
				return nil
			}
			genres[i] = splitGenres(rec.Genre)
			return nil
		})
	}
	_ = g.Wait()

	set := make(map[string]struct{})
	for _, list := range genres {
		for _, genre := range list {
			set[genre] = struct{}{}
		}
	}

	return set
}

func (c *CompatibilityUseCase) getCached(ctx context.Context, key string) (*domain.Compatibility, bool) {
	cached, err := c.cacheRepo.GetCompatibility(ctx, key)
	if err != nil {
		if errors.Is(err, e.ErrCacheMiss) {
			metrics.RecordCacheLookup(compatibilityCacheName, false, nil)
		} else {
			metrics.RecordCacheLookup(compatibilityCacheName, false, err)
			c.logger.Warnf("compatibility cache read failed. key: %s, error: %v", key, err)
		}
		return nil, false
	}

	metrics.RecordCacheLookup(compatibilityCacheName, true, nil)
	return cached, true
}

func (c *CompatibilityUseCase) setCached(ctx context.Context, key string, res *domain.Compatibility, ttl time.Duration) {
	if err := c.cacheRepo.SetCompatibility(ctx, key, res, ttl); err != nil {
		c.logger.Warnf("compatibility cache write failed. key: %s, error: %v", key, err)
	}
}

// CompatibilityScore переводит косинусную близость в оценку 0..100: ((s+1)/2)^γ * 100.
func CompatibilityScore(similarity, exponent float64) float64 {
	s := vecmath.Clamp(similarity, -1, 1)
	return roundScore(math.Pow((s+1)/2, exponent) * 100)
}

// roundScore округляет до одного знака после запятой и ограничивает [0, 100].
func roundScore(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	rounded, _ := decimal.NewFromFloat(vecmath.Clamp(score, 0, 100)).Round(1).Float64()
	return rounded
}

func embeddingCompatibilityKey(lo, hi *domain.User) string {
	return fmt.Sprintf("compat:%d-%d:%d-%d", lo.ID, hi.ID, lo.UpdatedAt.UnixNano(), hi.UpdatedAt.UnixNano())
}

// overlapCompatibilityKey включает версии обеих коллекций: изменение коллекции делает запись недостижимой.
func overlapCompatibilityKey(lo, hi int64, colLo, colHi *domain.Collection) string {
	return fmt.Sprintf("overlap:compat:%d-%d:%s-%s", lo, hi, colLo.Version(), colHi.Version())
}

// jaccard: |A∩B| / |A∪B|; для двух пустых множеств 0.
func jaccard[K comparable](a, b map[K]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	var common int
	for k := range small {
		if _, ok := large[k]; ok {
			common++
		}
	}

	union := len(a) + len(b) - common
	return float64(common) / float64(union)
}

func splitGenres(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if genre := strings.ToLower(strings.TrimSpace(part)); genre != "" {
			out = append(out, genre)
		}
	}
	return out
}
