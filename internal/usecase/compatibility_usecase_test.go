package usecase

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/DRSN-tech/taste-backend/internal/cfg"
	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/vecmath"
)

type compatibilityFixture struct {
	users       *fakeUsers
	ownership   *fakeOwnership
	features    *fakeFeatures
	embeddingUC *fakeEmbeddingUC
	cache       *fakeCache
	uc          *CompatibilityUseCase
}

func newCompatibilityFixture(t *testing.T, users ...*domain.User) *compatibilityFixture {
	t.Helper()

	f := &compatibilityFixture{
		users:       newFakeUsers(users...),
		ownership:   newFakeOwnership(),
		features:    newFakeFeatures(),
		embeddingUC: newFakeEmbeddingUC(nil),
		cache:       newFakeCache(),
	}

	var err error
	f.uc, err = NewCompatibilityUC(f.users, f.ownership, f.features, f.embeddingUC, f.cache,
		testCompatibilityCfg(), testCacheCfg(), testLogger)
	if err != nil {
		t.Fatalf("NewCompatibilityUC() error = %v", err)
	}

	return f
}

func embedded(id int64, vec ...float32) *domain.User {
	return &domain.User{ID: id, Embedding: vecmath.Normalize(vec), UpdatedAt: testNow}
}

func TestCompatibilityScore(t *testing.T) {
	tests := []struct {
		name       string
		similarity float64
		exponent   float64
		want       float64
	}{
		{name: "identical", similarity: 1, exponent: 1.5, want: 100},
		{name: "orthogonal", similarity: 0, exponent: 1.5, want: 35.4},
		{name: "orthogonal linear", similarity: 0, exponent: 1, want: 50},
		{name: "opposite", similarity: -1, exponent: 1.5, want: 0},
		{name: "close", similarity: math.Sqrt2 / 2, exponent: 1.5, want: 78.9},
		{name: "above range", similarity: 1.2, exponent: 1.5, want: 100},
		{name: "below range", similarity: -3, exponent: 2, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompatibilityScore(tt.similarity, tt.exponent); got != tt.want {
				t.Errorf("CompatibilityScore(%v, %v) = %v, want %v", tt.similarity, tt.exponent, got, tt.want)
			}
		})
	}
}

func TestNewCompatibilityUC_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *cfg.CompatibilityCfg)
		wantErr error
	}{
		{name: "exponent below 1", mutate: func(c *cfg.CompatibilityCfg) { c.Exponent = 0.5 }, wantErr: e.ErrInvalidConvexity},
		{name: "exponent above 2", mutate: func(c *cfg.CompatibilityCfg) { c.Exponent = 2.5 }, wantErr: e.ErrInvalidConvexity},
		{name: "negative weight", mutate: func(c *cfg.CompatibilityCfg) { c.GenreWeight = -0.1 }, wantErr: e.ErrInvalidOverlapWeights},
		{
			name: "zero weights",
			mutate: func(c *cfg.CompatibilityCfg) {
				c.TrackWeight, c.ArtistWeight, c.AlbumWeight, c.GenreWeight = 0, 0, 0, 0
			},
			wantErr: e.ErrInvalidOverlapWeights,
		},
		{name: "valid", mutate: func(*cfg.CompatibilityCfg) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCompatibilityCfg()
			tt.mutate(c)

			_, err := NewCompatibilityUC(nil, nil, nil, nil, nil, c, testCacheCfg(), testLogger)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewCompatibilityUC() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompatibility_Embedding(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 0, 0, 0}, b: []float32{2, 0, 0, 0}, want: 100},
		{name: "orthogonal", a: []float32{1, 0, 0, 0}, b: []float32{0, 1, 0, 0}, want: 35.4},
		{name: "opposite", a: []float32{1, 0, 0, 0}, b: []float32{-1, 0, 0, 0}, want: 0},
		{name: "close", a: []float32{1, 1, 0, 0}, b: []float32{1, 0, 0, 0}, want: 78.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCompatibilityFixture(t, embedded(1, tt.a...), embedded(2, tt.b...))

			res, err := f.uc.Compatibility(context.Background(), 1, 2)
			if err != nil {
				t.Fatalf("Compatibility() error = %v", err)
			}
			if res.Score != tt.want || res.Method != domain.MethodEmbedding {
				t.Errorf("Compatibility() = %+v, want score %v by embedding", res, tt.want)
			}
		})
	}
}

func TestCompatibility_SymmetricAndBounded(t *testing.T) {
	f := newCompatibilityFixture(t,
		embedded(1, 0.3, -0.2, 0.9, 0.1),
		embedded(2, -0.5, 0.4, 0.2, 0.7),
	)

	ab, err := f.uc.GetCompatibility(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("GetCompatibility(1, 2) error = %v", err)
	}
	ba, err := f.uc.GetCompatibility(context.Background(), 2, 1)
	if err != nil {
		t.Fatalf("GetCompatibility(2, 1) error = %v", err)
	}

	if ab != ba {
		t.Errorf("GetCompatibility is not symmetric: %v != %v", ab, ba)
	}
	if ab < 0 || ab > 100 {
		t.Errorf("GetCompatibility() = %v, want within [0, 100]", ab)
	}
	if f.cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1 (reversed pair shares the key)", f.cache.hits)
	}
}

func TestCompatibility_Self(t *testing.T) {
	f := newCompatibilityFixture(t, embedded(5, 0.1, 0.2, 0.3, 0.4))

	got, err := f.uc.GetCompatibility(context.Background(), 5, 5)
	if err != nil {
		t.Fatalf("GetCompatibility() error = %v", err)
	}
	if got != 100 {
		t.Errorf("GetCompatibility(self) = %v, want 100", got)
	}
}

func TestCompatibility_OverlapFallback(t *testing.T) {
	f := newCompatibilityFixture(t, &domain.User{ID: 1}, embedded(2, 1, 0, 0, 0))
	f.ownership.own(1, ownedAt(track(1), testNow), ownedAt(track(2), testNow))
	f.ownership.own(2, ownedAt(track(2), testNow), ownedAt(track(3), testNow))
	f.features.set(track(1), "rock", nil, nil)
	f.features.set(track(2), "Rock, Indie", nil, nil)
	f.features.set(track(3), "indie", nil, nil)

	res, err := f.uc.Compatibility(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Compatibility() error = %v", err)
	}

	// треки 1/3 * 0.35, жанры 1 * 0.2
	if res.Method != domain.MethodOverlap || res.Score != 31.7 {
		t.Errorf("Compatibility() = %+v, want 31.7 by overlap", res)
	}
	if f.embeddingUC.callsFor(1) != 1 {
		t.Errorf("aggregation attempts for user 1 = %d, want 1", f.embeddingUC.callsFor(1))
	}
	key := overlapCompatibilityKey(1, 2, f.ownership.collections[1], f.ownership.collections[2])
	if ttl, ok := f.cache.ttlFor(key); !ok || ttl != testCacheCfg().FallbackTTL {
		t.Errorf("overlap cache ttl = %v (stored: %v), want %v", ttl, ok, testCacheCfg().FallbackTTL)
	}
}

func TestCompatibility_OverlapEmpty(t *testing.T) {
	f := newCompatibilityFixture(t, &domain.User{ID: 1}, &domain.User{ID: 2})

	got, err := f.uc.GetCompatibility(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("GetCompatibility() error = %v", err)
	}
	if got != 0 {
		t.Errorf("GetCompatibility() = %v, want 0", got)
	}
}

func TestCompatibility_AggregatesMissingEmbedding(t *testing.T) {
	f := newCompatibilityFixture(t, embedded(1, 1, 0, 0, 0), &domain.User{ID: 2})
	f.embeddingUC.compute = func(userID int64) ([]float32, error) {
		vec := []float32{1, 0, 0, 0}
		if _, err := f.users.UpdateEmbedding(context.Background(), userID, vec); err != nil {
			return nil, err
		}
		return vec, nil
	}

	res, err := f.uc.Compatibility(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Compatibility() error = %v", err)
	}
	if res.Method != domain.MethodEmbedding || res.Score != 100 {
		t.Errorf("Compatibility() = %+v, want 100 by embedding", res)
	}
	if f.embeddingUC.callsFor(1) != 0 || f.embeddingUC.callsFor(2) != 1 {
		t.Errorf("aggregation calls = %v", f.embeddingUC.calls)
	}
}

func TestCompatibility_CacheFollowsEmbeddingVersion(t *testing.T) {
	f := newCompatibilityFixture(t, embedded(1, 1, 0, 0, 0), embedded(2, 0, 1, 0, 0))
	ctx := context.Background()

	if _, err := f.uc.GetCompatibility(ctx, 1, 2); err != nil {
		t.Fatalf("GetCompatibility() error = %v", err)
	}
	if _, err := f.uc.GetCompatibility(ctx, 1, 2); err != nil {
		t.Fatalf("GetCompatibility() error = %v", err)
	}
	if f.cache.hits != 1 {
		t.Fatalf("cache hits = %d, want 1", f.cache.hits)
	}

	if _, err := f.users.UpdateEmbedding(ctx, 2, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("UpdateEmbedding() error = %v", err)
	}

	got, err := f.uc.GetCompatibility(ctx, 1, 2)
	if err != nil {
		t.Fatalf("GetCompatibility() error = %v", err)
	}
	if got != 100 {
		t.Errorf("GetCompatibility() after update = %v, want 100 (stale cache served)", got)
	}
	if f.cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1", f.cache.hits)
	}
}

func TestCompatibility_OverlapCacheFollowsCollections(t *testing.T) {
	f := newCompatibilityFixture(t, &domain.User{ID: 1}, &domain.User{ID: 2})
	f.ownership.own(1, ownedAt(track(1), testNow))
	f.ownership.own(2, ownedAt(track(2), testNow))
	ctx := context.Background()

	got, err := f.uc.GetCompatibility(ctx, 1, 2)
	if err != nil {
		t.Fatalf("GetCompatibility() error = %v", err)
	}
	if got != 0 {
		t.Fatalf("GetCompatibility() = %v, want 0 for disjoint collections", got)
	}

	f.ownership.own(2, ownedAt(track(1), testNow))

	got, err = f.uc.GetCompatibility(ctx, 1, 2)
	if err != nil {
		t.Fatalf("GetCompatibility() error = %v", err)
	}
	// треки 1/2 * 0.35
	if got != 17.5 {
		t.Errorf("GetCompatibility() after collection change = %v, want 17.5", got)
	}
	if f.cache.hits != 0 {
		t.Errorf("cache hits = %d, want 0", f.cache.hits)
	}

	if _, err := f.uc.GetCompatibility(ctx, 2, 1); err != nil {
		t.Fatalf("GetCompatibility() error = %v", err)
	}
	if f.cache.hits != 1 {
		t.Errorf("cache hits for unchanged collections = %d, want 1", f.cache.hits)
	}
}

func TestCompatibility_Errors(t *testing.T) {
	tests := []struct {
		name    string
		a, b    int64
		wantErr error
	}{
		{name: "zero id", a: 0, b: 1, wantErr: e.ErrInvalidUserID},
		{name: "negative id", a: 1, b: -2, wantErr: e.ErrInvalidUserID},
		{name: "unknown user", a: 1, b: 42, wantErr: e.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCompatibilityFixture(t, embedded(1, 1, 0, 0, 0))

			_, err := f.uc.GetCompatibility(context.Background(), tt.a, tt.b)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GetCompatibility() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompatibility_UserStoreUnavailable(t *testing.T) {
	f := newCompatibilityFixture(t, embedded(1, 1, 0, 0, 0), embedded(2, 1, 0, 0, 0))
	f.users.getErr[2] = errUnavailable

	res, err := f.uc.Compatibility(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Compatibility() error = %v", err)
	}
	if res.Method != domain.MethodOverlap {
		t.Errorf("Compatibility() method = %v, want overlap", res.Method)
	}
}

func TestJaccard(t *testing.T) {
	set := func(ids ...int64) map[int64]struct{} {
		m := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			m[id] = struct{}{}
		}
		return m
	}

	tests := []struct {
		name string
		a, b map[int64]struct{}
		want float64
	}{
		{name: "both empty", a: set(), b: set(), want: 0},
		{name: "one empty", a: set(1), b: set(), want: 0},
		{name: "equal", a: set(1, 2), b: set(2, 1), want: 1},
		{name: "partial", a: set(1, 2, 3), b: set(3, 4), want: 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jaccard(tt.a, tt.b); got != tt.want {
				t.Errorf("jaccard() = %v, want %v", got, tt.want)
			}
		})
	}
}
