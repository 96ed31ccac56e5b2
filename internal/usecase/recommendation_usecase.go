package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/DRSN-tech/taste-backend/internal/cfg"
	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/internal/metrics"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
	"github.com/DRSN-tech/taste-backend/pkg/vecmath"
)

const recommendationsCacheName = "recommendations"

// recRequest: состояние одного запроса рекомендаций, общее для всех уровней
type recRequest struct {
	user  *domain.User
	owned map[domain.ItemType]map[int64]struct{}
	limit int
}

func (r *recRequest) isOwned(item domain.ItemRef) bool {
	if item.ID == 0 {
		return false
	}
	_, ok := r.owned[item.Type][item.ID]
	return ok
}

// recommendationTier: один уровень выдачи. Ошибка или пустой результат передают ход следующему уровню.
type recommendationTier struct {
	source domain.RecommendationSource
	run    func(ctx context.Context, req *recRequest) ([]domain.Recommendation, error)
}

// RecommendationUseCase подбирает новые для пользователя треки:
// по близости к эмбеддингу, затем через внешний сервис похожих артистов, затем популярное в каталоге.
type RecommendationUseCase struct {
	userRepo      UserRepository
	ownershipRepo OwnershipRepository
	catalogRepo   CatalogRepository
	similarClient SimilarArtistsClient
	embeddingUC   EmbeddingUC
	cacheRepo     CacheRepository
	cfg           *cfg.RecommendCfg
	cacheCfg      *cfg.CacheCfg
	logger        logger.Logger

	tiers []recommendationTier
}

func NewRecommendationUC(
	userRepo UserRepository,
	ownershipRepo OwnershipRepository,
	catalogRepo CatalogRepository,
	similarClient SimilarArtistsClient,
	embeddingUC EmbeddingUC,
	cacheRepo CacheRepository,
	cfg *cfg.RecommendCfg,
	cacheCfg *cfg.CacheCfg,
	logger logger.Logger,
) *RecommendationUseCase {
	uc := &RecommendationUseCase{
		userRepo:      userRepo,
		ownershipRepo: ownershipRepo,
		catalogRepo:   catalogRepo,
		similarClient: similarClient,
		embeddingUC:   embeddingUC,
		cacheRepo:     cacheRepo,
		cfg:           cfg,
		cacheCfg:      cacheCfg,
		logger:        logger,
	}
	uc.tiers = []recommendationTier{
		{source: domain.SourceEmbedding, run: uc.embeddingTier},
		{source: domain.SourceSimilarArtist, run: uc.similarArtistTier},
		{source: domain.SourcePopular, run: uc.popularTier},
	}

	return uc
}

// GetRecommendations возвращает не больше limit рекомендаций без уже имеющихся у пользователя элементов и без повторов.
// Отсутствие данных даёт более короткий или пустой список, но не ошибку.
func (r *RecommendationUseCase) GetRecommendations(ctx context.Context, userID int64, limit int) ([]domain.Recommendation, error) {
	const op = "RecommendationUseCase.GetRecommendations"

	if userID <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidUserID)
	}
	if limit <= 0 {
		return []domain.Recommendation{}, nil
	}
	if limit > r.cfg.MaxLimit {
		limit = r.cfg.MaxLimit
	}

	user, err := r.userRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, e.ErrUserNotFound) {
			return nil, e.Wrap(op, err)
		}
		r.logger.Warnf("failed to load user for recommendations. user_id: %d, error: %v", userID, err)
		user = &domain.User{ID: userID}
	}

	collection, err := r.ownershipRepo.ListOwned(ctx, userID)
	if err != nil || collection == nil {
		r.logger.Warnf("failed to list owned items, recommending without exclusions. user_id: %d, error: %v", userID, err)
		collection = &domain.Collection{}
	}

	req := &recRequest{
		user: user,
		owned: map[domain.ItemType]map[int64]struct{}{
			domain.ItemTrack:  collection.IDs(domain.ItemTrack),
			domain.ItemArtist: collection.IDs(domain.ItemArtist),
			domain.ItemAlbum:  collection.IDs(domain.ItemAlbum),
		},
		limit: limit,
	}

	// ключ включает версию коллекции; finalize страхует от записей, сделанных до изменения коллекции
	if cached, ok := r.getCached(ctx, recommendationsKey(user, collection, limit)); ok {
		return finalize(cached, req), nil
	}

	if !vecmath.IsValidEmbedding(user.Embedding) {
		user = r.ensureEmbedding(ctx, user)
		req.user = user
	}

	recs := []domain.Recommendation{}
	source := domain.SourcePopular
	for _, tier := range r.tiers {
		res, err := r.runTier(ctx, tier, req)
		if err != nil {
			r.logger.Warnf("recommendation tier failed, trying next. tier: %s, user_id: %d, error: %v", tier.source, userID, err)
			continue
		}
		if res = finalize(res, req); len(res) > 0 {
			recs, source = res, tier.source
			break
		}
	}
	metrics.RecommendationTiers.WithLabelValues(string(source)).Inc()

	ttl := r.cacheCfg.FallbackTTL
	if source == domain.SourceEmbedding {
		ttl = r.cacheCfg.RecommendationsTTL
	}
	if err := r.cacheRepo.SetRecommendations(ctx, recommendationsKey(user, collection, limit), recs, ttl); err != nil {
		r.logger.Warnf("recommendations cache write failed. user_id: %d, error: %v", userID, err)
	}

	return recs, nil
}

func (r *RecommendationUseCase) runTier(ctx context.Context, tier recommendationTier, req *recRequest) ([]domain.Recommendation, error) {
	if r.cfg.TierTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.TierTimeout)
		defer cancel()
	}

	return tier.run(ctx, req)
}

func (r *RecommendationUseCase) ensureEmbedding(ctx context.Context, user *domain.User) *domain.User {
	vec, err := r.embeddingUC.AggregateEmbeddingFor(ctx, user.ID)
	if err != nil || vec == nil {
		if err != nil {
			r.logger.Warnf("embedding aggregation failed. user_id: %d, error: %v", user.ID, err)
		}
		return user
	}

	fresh, err := r.userRepo.Get(ctx, user.ID)
	if err != nil || !vecmath.IsValidEmbedding(fresh.Embedding) {
		return &domain.User{ID: user.ID, Embedding: vec, Anthem: user.Anthem, UpdatedAt: time.Now().UTC()}
	}

	return fresh
}

// embeddingTier обходит каталог страницами и держит только top-limit кандидатов.
// Если треков не хватило, добирает треки самых близких артистов, которых нет в коллекции.
func (r *RecommendationUseCase) embeddingTier(ctx context.Context, req *recRequest) ([]domain.Recommendation, error) {
	if !vecmath.IsValidEmbedding(req.user.Embedding) {
		return nil, e.ErrNoEmbedding
	}

	tracks, err := r.scanNearest(ctx, domain.ItemTrack, req, req.limit)
	if err != nil {
		return nil, err
	}

	recs := make([]domain.Recommendation, 0, req.limit)
	for _, c := range tracks {
		recs = append(recs, domain.Recommendation{
			Item:       c.vec.Item,
			Title:      c.vec.Title,
			Artist:     c.vec.Artist,
			Similarity: c.similarity,
			Popularity: c.vec.Popularity,
			Source:     domain.SourceEmbedding,
		})
	}

	if len(recs) >= req.limit {
		return recs, nil
	}

	// представительные треки артистов могут уже быть в коллекции или в списке,
	// поэтому выборка артистов расширяется, пока не набран limit или не кончился каталог
	for k := 2 * (req.limit - len(recs)); ; k *= 2 {
		artists, err := r.scanNearest(ctx, domain.ItemArtist, req, k)
		if err != nil {
			r.logger.Warnf("artist pass failed, returning tracks only. user_id: %d, error: %v", req.user.ID, err)
			return recs, nil
		}
		if len(artists) == 0 {
			return recs, nil
		}

		supplement, err := r.artistTracks(ctx, artists)
		if err != nil {
			r.logger.Warnf("representative tracks lookup failed. user_id: %d, error: %v", req.user.ID, err)
			return recs, nil
		}

		out := append(slices.Clip(recs), supplement...)
		if len(artists) < k || len(finalize(out, req)) >= req.limit {
			return out, nil
		}
	}
}

// artistTracks раскладывает представительные треки в порядке близости артистов: сначала треки самого близкого.
func (r *RecommendationUseCase) artistTracks(ctx context.Context, artists []candidate) ([]domain.Recommendation, error) {
	artistIDs := make([]int64, 0, len(artists))
	similarity := make(map[int64]float64, len(artists))
	for _, c := range artists {
		artistIDs = append(artistIDs, c.vec.Item.ID)
		similarity[c.vec.Item.ID] = c.similarity
	}

	representative, err := r.catalogRepo.RepresentativeTracks(ctx, artistIDs, r.cfg.TracksPerArtist)
	if err != nil {
		return nil, err
	}

	byArtist := make(map[int64][]domain.Track, len(artistIDs))
	for _, track := range representative {
		if track.ArtistID != nil {
			byArtist[*track.ArtistID] = append(byArtist[*track.ArtistID], track)
		}
	}

	recs := make([]domain.Recommendation, 0, len(representative))
	for _, artistID := range artistIDs {
		for _, track := range byArtist[artistID] {
			recs = append(recs, trackRecommendation(track, similarity[artistID], domain.SourceEmbedding))
		}
	}

	return recs, nil
}

// scanNearest возвращает k ближайших к эмбеддингу пользователя элементов каталога, которых нет в коллекции.
func (r *RecommendationUseCase) scanNearest(ctx context.Context, itemType domain.ItemType, req *recRequest, k int) ([]candidate, error) {
	const op = "RecommendationUseCase.scanNearest"

	top := newTopK(k)
	var (
		afterID int64
		seq     int
		skipped int
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, e.Wrap(op, err)
		}

		page, err := r.catalogRepo.ScanEmbeddings(ctx, itemType, afterID, r.cfg.ScanBatchSize)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		for _, row := range page {
			afterID = row.Item.ID
			seq++

			if _, owned := req.owned[itemType][row.Item.ID]; owned {
				continue
			}
			if len(row.Embedding) != len(req.user.Embedding) || !vecmath.IsValidEmbedding(row.Embedding) {
				skipped++
				continue
			}

			top.Offer(candidate{
				vec:        row,
				similarity: vecmath.CosineSimilarity(req.user.Embedding, row.Embedding),
				seq:        seq,
			})
		}

		if len(page) < r.cfg.ScanBatchSize {
			break
		}
	}

	if skipped > 0 {
		r.logger.Warnf("data quality: catalog vectors skipped during scan. type: %s, skipped: %d", itemType, skipped)
	}

	return top.Sorted(), nil
}

// similarArtistTier спрашивает внешний сервис по артистам пользователя и сопоставляет ответы с каталогом.
func (r *RecommendationUseCase) similarArtistTier(ctx context.Context, req *recRequest) ([]domain.Recommendation, error) {
	seeds, err := r.ownershipRepo.OwnedArtistNames(ctx, req.user.ID, r.cfg.SeedArtists)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	items, err := r.similarClient.Recommend(ctx, seeds, req.limit)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	return r.resolveSimilar(ctx, req, items), nil
}

// resolveSimilar переводит внешние результаты в треки каталога, где это возможно.
// Не найденные в каталоге результаты остаются внешними (без id).
func (r *RecommendationUseCase) resolveSimilar(ctx context.Context, req *recRequest, items []SimilarItem) []domain.Recommendation {
	var (
		trackKeys   []TrackKey
		artistNames []string
	)
	for _, item := range items {
		if item.Title != "" {
			trackKeys = append(trackKeys, NewTrackKey(item.Artist, item.Title))
		} else {
			artistNames = append(artistNames, NewTrackKey(item.Artist, "").Artist)
		}
	}

	tracks := map[TrackKey]domain.Track{}
	if len(trackKeys) > 0 {
		resolved, err := r.catalogRepo.ResolveTracks(ctx, trackKeys)
		if err != nil {
			r.logger.Warnf("failed to resolve external tracks against catalog. error: %v", err)
		} else {
			tracks = resolved
		}
	}

	artists := map[string]domain.Artist{}
	byArtist := map[int64][]domain.Track{}
	if len(artistNames) > 0 {
		resolved, err := r.catalogRepo.ResolveArtists(ctx, artistNames)
		if err != nil {
			r.logger.Warnf("failed to resolve external artists against catalog. error: %v", err)
		} else {
			artists = resolved
		}

		ids := make([]int64, 0, len(artists))
		for _, artist := range artists {
			if _, owned := req.owned[domain.ItemArtist][artist.ID]; !owned {
				ids = append(ids, artist.ID)
			}
		}
		if len(ids) > 0 {
			representative, err := r.catalogRepo.RepresentativeTracks(ctx, ids, r.cfg.TracksPerArtist)
			if err != nil {
				r.logger.Warnf("representative tracks lookup failed. error: %v", err)
			}
			for _, track := range representative {
				if track.ArtistID != nil {
					byArtist[*track.ArtistID] = append(byArtist[*track.ArtistID], track)
				}
			}
		}
	}

	recs := make([]domain.Recommendation, 0, len(items))
	for _, item := range items {
		if item.Title != "" {
			if track, ok := tracks[NewTrackKey(item.Artist, item.Title)]; ok {
				recs = append(recs, trackRecommendation(track, 0, domain.SourceSimilarArtist))
				continue
			}
			recs = append(recs, domain.Recommendation{
				Item:   domain.ItemRef{Type: domain.ItemTrack},
				Title:  item.Title,
				Artist: item.Artist,
				Source: domain.SourceSimilarArtist,
			})
			continue
		}

		artist, ok := artists[NewTrackKey(item.Artist, "").Artist]
		if !ok {
			recs = append(recs, domain.Recommendation{
				Item:   domain.ItemRef{Type: domain.ItemArtist},
				Artist: item.Artist,
				Source: domain.SourceSimilarArtist,
			})
			continue
		}
		if _, owned := req.owned[domain.ItemArtist][artist.ID]; owned {
			continue
		}

		if list := byArtist[artist.ID]; len(list) > 0 {
			for _, track := range list {
				recs = append(recs, trackRecommendation(track, 0, domain.SourceSimilarArtist))
			}
			continue
		}
		recs = append(recs, domain.Recommendation{
			Item:       domain.NewItemRef(domain.ItemArtist, artist.ID),
			Artist:     artist.Name,
			Popularity: artist.Popularity,
			Source:     domain.SourceSimilarArtist,
		})
	}

	return recs
}

// popularTier: самые популярные треки каталога, которых нет у пользователя.
func (r *RecommendationUseCase) popularTier(ctx context.Context, req *recRequest) ([]domain.Recommendation, error) {
	tracks, err := r.catalogRepo.PopularTracks(ctx, req.user.ID, req.limit)
	if err != nil {
		return nil, err
	}

	recs := make([]domain.Recommendation, 0, len(tracks))
	for _, track := range tracks {
		recs = append(recs, trackRecommendation(track, 0, domain.SourcePopular))
	}

	return recs, nil
}

func (r *RecommendationUseCase) getCached(ctx context.Context, key string) ([]domain.Recommendation, bool) {
	cached, err := r.cacheRepo.GetRecommendations(ctx, key)
	if err != nil {
		if errors.Is(err, e.ErrCacheMiss) {
			metrics.RecordCacheLookup(recommendationsCacheName, false, nil)
		} else {
			metrics.RecordCacheLookup(recommendationsCacheName, false, err)
			r.logger.Warnf("recommendations cache read failed. key: %s, error: %v", key, err)
		}
		return nil, false
	}

	metrics.RecordCacheLookup(recommendationsCacheName, true, nil)
	return cached, true
}

// finalize убирает элементы коллекции и повторы и обрезает список до limit.
func finalize(recs []domain.Recommendation, req *recRequest) []domain.Recommendation {
	seen := make(map[string]struct{}, len(recs))
	out := make([]domain.Recommendation, 0, min(len(recs), req.limit))

	for _, rec := range recs {
		if len(out) == req.limit {
			break
		}
		if req.isOwned(rec.Item) {
			continue
		}
		key := rec.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}

	return out
}

func trackRecommendation(track domain.Track, similarity float64, source domain.RecommendationSource) domain.Recommendation {
	return domain.Recommendation{
		Item:       domain.NewItemRef(domain.ItemTrack, track.ID),
		Title:      track.Title,
		Artist:     track.ArtistName,
		Similarity: similarity,
		Popularity: track.Popularity,
		Source:     source,
	}
}

func recommendationsKey(user *domain.User, collection *domain.Collection, limit int) string {
	var updatedAt int64
	if !user.UpdatedAt.IsZero() {
		updatedAt = user.UpdatedAt.UnixNano()
	}
	return fmt.Sprintf("recs:%d:%d:%s:%d", user.ID, updatedAt, collection.Version(), limit)
}
