package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DRSN-tech/taste-backend/internal/cfg"
	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
)

var errUnavailable = errors.New("connection refused")

var testLogger = logger.NewNop()

func testEmbeddingCfg(dim int) *cfg.EmbeddingCfg {
	const d = 24 * time.Hour
	return &cfg.EmbeddingCfg{
		Dimension:          dim,
		FeatureReadTimeout: time.Second,
		ReadConcurrency:    4,
		ComputeTimeout:     5 * time.Second,
		TrackTiers:         []cfg.RecencyTier{{MaxAge: 7 * d, Weight: 3}, {MaxAge: 30 * d, Weight: 2}, {MaxAge: 90 * d, Weight: 1.5}, {Weight: 1}},
		ArtistTiers:        []cfg.RecencyTier{{MaxAge: 30 * d, Weight: 2.5}, {MaxAge: 90 * d, Weight: 2}, {Weight: 1.5}},
		AlbumTiers:         []cfg.RecencyTier{{MaxAge: 30 * d, Weight: 2}, {MaxAge: 90 * d, Weight: 1.5}, {Weight: 1}},
		ProminenceSpan:     0.5,
		AnthemWeight:       5,
	}
}

func testCompatibilityCfg() *cfg.CompatibilityCfg {
	return &cfg.CompatibilityCfg{
		Exponent:       1.5,
		TrackWeight:    0.35,
		ArtistWeight:   0.35,
		AlbumWeight:    0.1,
		GenreWeight:    0.2,
		ScoreTimeout:   5 * time.Second,
		SimilarUsersK:  10,
		SimilarMinSim:  0.8,
		MaxRefreshSize: 50,
	}
}

func testRecommendCfg() *cfg.RecommendCfg {
	return &cfg.RecommendCfg{
		DefaultLimit:    10,
		MaxLimit:        20,
		ScanBatchSize:   3,
		TracksPerArtist: 2,
		SeedArtists:     3,
		TierTimeout:     5 * time.Second,
	}
}

func testCacheCfg() *cfg.CacheCfg {
	return &cfg.CacheCfg{
		CompatibilityTTL:   24 * time.Hour,
		RecommendationsTTL: 24 * time.Hour,
		FallbackTTL:        10 * time.Minute,
	}
}

// USERS

type fakeUsers struct {
	mu       sync.Mutex
	users    map[int64]*domain.User
	getErr   map[int64]error
	updErr   error
	gets     int
	updates  int
	clock    time.Time
	ordering []int64
}

func newFakeUsers(users ...*domain.User) *fakeUsers {
	f := &fakeUsers{
		users:  make(map[int64]*domain.User),
		getErr: make(map[int64]error),
		clock:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, u := range users {
		f.users[u.ID] = u
		f.ordering = append(f.ordering, u.ID)
	}
	return f
}

func (f *fakeUsers) Get(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gets++
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, e.ErrUserNotFound
	}
	cp := *u
	cp.Embedding = append([]float32(nil), u.Embedding...)
	if len(u.Embedding) == 0 {
		cp.Embedding = nil
	}
	return &cp, nil
}

func (f *fakeUsers) UpdateEmbedding(_ context.Context, id int64, embedding []float32) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updErr != nil {
		return time.Time{}, f.updErr
	}
	u, ok := f.users[id]
	if !ok {
		return time.Time{}, e.ErrUserNotFound
	}
	f.updates++
	f.clock = f.clock.Add(time.Minute)
	u.Embedding = append([]float32(nil), embedding...)
	u.UpdatedAt = f.clock
	return f.clock, nil
}

func (f *fakeUsers) ListIDs(_ context.Context, afterID int64, limit int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []int64
	for _, id := range f.ordering {
		if id > afterID && len(out) < limit {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeUsers) touch(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(time.Minute)
	f.users[id].UpdatedAt = f.clock
}

func (f *fakeUsers) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

func (f *fakeUsers) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

// OWNERSHIP

type fakeOwnership struct {
	collections map[int64]*domain.Collection
	artistNames map[int64][]string
	err         error
}

func newFakeOwnership() *fakeOwnership {
	return &fakeOwnership{
		collections: make(map[int64]*domain.Collection),
		artistNames: make(map[int64][]string),
	}
}

func (f *fakeOwnership) own(userID int64, items ...domain.OwnedItem) {
	col, ok := f.collections[userID]
	if !ok {
		col = &domain.Collection{}
		f.collections[userID] = col
	}
	for _, item := range items {
		switch item.Item.Type {
		case domain.ItemTrack:
			col.Tracks = append(col.Tracks, item)
		case domain.ItemArtist:
			col.Artists = append(col.Artists, item)
		case domain.ItemAlbum:
			col.Albums = append(col.Albums, item)
		}
	}
}

func (f *fakeOwnership) ListOwned(_ context.Context, userID int64) (*domain.Collection, error) {
	if f.err != nil {
		return nil, f.err
	}
	if col, ok := f.collections[userID]; ok {
		return col, nil
	}
	return &domain.Collection{}, nil
}

func (f *fakeOwnership) OwnedArtistNames(_ context.Context, userID int64, limit int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	names := f.artistNames[userID]
	if len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

// FEATURES

type fakeFeatures struct {
	mu      sync.Mutex
	records map[domain.ItemRef]*domain.FeatureRecord
	errs    map[domain.ItemRef]error
	block   map[domain.ItemRef]bool // блокируется до отмены контекста
	entered chan domain.ItemRef
	release chan struct{}
	reads   int
}

func newFakeFeatures() *fakeFeatures {
	return &fakeFeatures{
		records: make(map[domain.ItemRef]*domain.FeatureRecord),
		errs:    make(map[domain.ItemRef]error),
		block:   make(map[domain.ItemRef]bool),
	}
}

func (f *fakeFeatures) set(item domain.ItemRef, genre string, pop *int, vec []float32) {
	f.records[item] = &domain.FeatureRecord{Item: item, Genre: genre, Popularity: pop, Embedding: vec}
}

func (f *fakeFeatures) Get(ctx context.Context, item domain.ItemRef) (*domain.FeatureRecord, error) {
	f.mu.Lock()
	f.reads++
	f.mu.Unlock()

	if f.entered != nil {
		select {
		case f.entered <- item:
		default:
		}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.block[item] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.errs[item]; err != nil {
		return nil, err
	}
	rec, ok := f.records[item]
	if !ok {
		return nil, e.ErrFeatureNotFound
	}
	return rec, nil
}

// INDEX / OUTBOX / TX

type fakeIndex struct {
	mu       sync.Mutex
	upserts  []domain.Embedding
	upsertEr error
	results  []domain.ScoredPoint
	searchEr error
	lastK    int
}

func (f *fakeIndex) Upsert(_ context.Context, vectors []domain.Embedding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertEr != nil {
		return f.upsertEr
	}
	f.upserts = append(f.upserts, vectors...)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, limit int, threshold float64) ([]domain.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastK = limit
	if f.searchEr != nil {
		return nil, f.searchEr
	}
	var out []domain.ScoredPoint
	for _, p := range f.results {
		if float64(p.Score) >= threshold {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []*OutboxEvent
	err    error
}

func (f *fakeOutbox) Create(_ context.Context, event *OutboxEvent) (*OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	event.ID = int64(len(f.events) + 1)
	f.events = append(f.events, event)
	return event, nil
}

func (f *fakeOutbox) GetAndMarkAsProcessing(context.Context, int) ([]*OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkAsProcessed(context.Context, int64) error {
	return nil
}

type fakeTx struct {
	calls int
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

// CACHE

type cacheEntry struct {
	value any
	ttl   time.Duration
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	getErr  error
	hits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]cacheEntry)}
}

func (f *fakeCache) GetCompatibility(_ context.Context, key string) (*domain.Compatibility, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	entry, ok := f.entries[key]
	if !ok {
		return nil, e.ErrCacheMiss
	}
	f.hits++
	c := entry.value.(domain.Compatibility)
	return &c, nil
}

func (f *fakeCache) SetCompatibility(_ context.Context, key string, c *domain.Compatibility, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = cacheEntry{value: *c, ttl: ttl}
	return nil
}

func (f *fakeCache) GetRecommendations(_ context.Context, key string) ([]domain.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	entry, ok := f.entries[key]
	if !ok {
		return nil, e.ErrCacheMiss
	}
	f.hits++
	return append([]domain.Recommendation(nil), entry.value.([]domain.Recommendation)...), nil
}

func (f *fakeCache) SetRecommendations(_ context.Context, key string, recs []domain.Recommendation, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = cacheEntry{value: append([]domain.Recommendation(nil), recs...), ttl: ttl}
	return nil
}

func (f *fakeCache) ttlFor(prefix string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, entry := range f.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			return entry.ttl, true
		}
	}
	return 0, false
}

// CATALOG / EXTERNAL

type fakeCatalog struct {
	vectors        map[domain.ItemType][]CatalogVector
	representative map[int64][]domain.Track
	tracksByKey    map[TrackKey]domain.Track
	artistsByName  map[string]domain.Artist
	popular        []domain.Track
	ownership      *fakeOwnership // если задан, популярное исключает треки коллекции, как запрос к БД
	scanErr        error
	scans          int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		vectors:        make(map[domain.ItemType][]CatalogVector),
		representative: make(map[int64][]domain.Track),
		tracksByKey:    make(map[TrackKey]domain.Track),
		artistsByName:  make(map[string]domain.Artist),
	}
}

func (f *fakeCatalog) ScanEmbeddings(_ context.Context, itemType domain.ItemType, afterID int64, limit int) ([]CatalogVector, error) {
	f.scans++
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	var out []CatalogVector
	for _, v := range f.vectors[itemType] {
		if v.Item.ID > afterID && len(out) < limit {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeCatalog) RepresentativeTracks(_ context.Context, artistIDs []int64, perArtist int) ([]domain.Track, error) {
	var out []domain.Track
	for _, id := range artistIDs {
		tracks := f.representative[id]
		if len(tracks) > perArtist {
			tracks = tracks[:perArtist]
		}
		out = append(out, tracks...)
	}
	return out, nil
}

func (f *fakeCatalog) ResolveTracks(_ context.Context, keys []TrackKey) (map[TrackKey]domain.Track, error) {
	out := make(map[TrackKey]domain.Track)
	for _, k := range keys {
		if t, ok := f.tracksByKey[k]; ok {
			out[k] = t
		}
	}
	return out, nil
}

func (f *fakeCatalog) ResolveArtists(_ context.Context, names []string) (map[string]domain.Artist, error) {
	out := make(map[string]domain.Artist)
	for _, n := range names {
		if a, ok := f.artistsByName[n]; ok {
			out[n] = a
		}
	}
	return out, nil
}

func (f *fakeCatalog) PopularTracks(ctx context.Context, userID int64, limit int) ([]domain.Track, error) {
	var owned map[int64]struct{}
	if f.ownership != nil {
		col, err := f.ownership.ListOwned(ctx, userID)
		if err != nil {
			return nil, err
		}
		owned = col.IDs(domain.ItemTrack)
	}

	out := make([]domain.Track, 0, limit)
	for _, track := range f.popular {
		if len(out) == limit {
			break
		}
		if _, ok := owned[track.ID]; !ok {
			out = append(out, track)
		}
	}
	return out, nil
}

type fakeSimilar struct {
	items []SimilarItem
	err   error
	seeds []string
	calls int
}

func (f *fakeSimilar) Recommend(_ context.Context, seeds []string, _ int) ([]SimilarItem, error) {
	f.calls++
	f.seeds = seeds
	return f.items, f.err
}

// EMBEDDING UC

type fakeEmbeddingUC struct {
	mu      sync.Mutex
	calls   map[int64]int
	compute func(userID int64) ([]float32, error)
}

func newFakeEmbeddingUC(compute func(userID int64) ([]float32, error)) *fakeEmbeddingUC {
	return &fakeEmbeddingUC{calls: make(map[int64]int), compute: compute}
}

func (f *fakeEmbeddingUC) AggregateEmbeddingFor(_ context.Context, userID int64) ([]float32, error) {
	f.mu.Lock()
	f.calls[userID]++
	f.mu.Unlock()
	if f.compute == nil {
		return nil, nil
	}
	return f.compute(userID)
}

func (f *fakeEmbeddingUC) callsFor(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[userID]
}

type fakeReportStore struct {
	reports []*domain.RefreshReport
	err     error
}

func (f *fakeReportStore) Upload(_ context.Context, report *domain.RefreshReport) (*domain.ReportObject, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.reports = append(f.reports, report)
	return domain.NewReportObject("reports", "embedding-refresh/"+report.ID+".json", 1, "application/json"), nil
}

// HELPERS

func track(id int64) domain.ItemRef  { return domain.NewItemRef(domain.ItemTrack, id) }
func artist(id int64) domain.ItemRef { return domain.NewItemRef(domain.ItemArtist, id) }
func album(id int64) domain.ItemRef  { return domain.NewItemRef(domain.ItemAlbum, id) }

func ownedAt(item domain.ItemRef, at time.Time) domain.OwnedItem {
	return domain.NewOwnedItem(item, at)
}
