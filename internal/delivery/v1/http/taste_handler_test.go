package http

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

type fakeCompatibility struct {
	res *domain.Compatibility
	err error
}

func (f *fakeCompatibility) GetCompatibility(ctx context.Context, a, b int64) (float64, error) {
	c, err := f.Compatibility(ctx, a, b)
	if err != nil {
		return 0, err
	}
	return c.Score, nil
}

func (f *fakeCompatibility) Compatibility(_ context.Context, a, b int64) (*domain.Compatibility, error) {
	if f.err != nil {
		return nil, f.err
	}
	res := *f.res
	res.UserA, res.UserB = a, b
	return &res, nil
}

type fakeRecommendations struct {
	recs      []domain.Recommendation
	err       error
	lastLimit int
}

func (f *fakeRecommendations) GetRecommendations(_ context.Context, _ int64, limit int) ([]domain.Recommendation, error) {
	f.lastLimit = limit
	return f.recs, f.err
}

type fakeEmbedding struct {
	vec []float32
	err error
}

func (f *fakeEmbedding) AggregateEmbeddingFor(context.Context, int64) ([]float32, error) {
	return f.vec, f.err
}

type fakeSimilar struct {
	users         []domain.SimilarUser
	err           error
	lastLimit     int
	lastThreshold float64
}

func (f *fakeSimilar) FindSimilarUsers(_ context.Context, _ int64, limit int, threshold float64) ([]domain.SimilarUser, error) {
	f.lastLimit, f.lastThreshold = limit, threshold
	return f.users, f.err
}

type fakeRefresh struct {
	ids []int64
	err error
}

func (f *fakeRefresh) RefreshUsers(_ context.Context, ids []int64) (*domain.RefreshReport, error) {
	f.ids = ids
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RefreshReport{ID: "r1", Total: len(ids), Processed: len(ids)}, nil
}

func (f *fakeRefresh) RefreshAll(context.Context) (*domain.RefreshReport, error) {
	return &domain.RefreshReport{ID: "all"}, nil
}

type handlerFixture struct {
	compat  *fakeCompatibility
	recs    *fakeRecommendations
	emb     *fakeEmbedding
	similar *fakeSimilar
	refresh *fakeRefresh
}

func newHandlerFixture() *handlerFixture {
	return &handlerFixture{
		compat:  &fakeCompatibility{res: &domain.Compatibility{Score: 78.9, Method: domain.MethodEmbedding}},
		recs:    &fakeRecommendations{},
		emb:     &fakeEmbedding{},
		similar: &fakeSimilar{},
		refresh: &fakeRefresh{},
	}
}

func (f *handlerFixture) router() http.Handler {
	mux := chi.NewRouter()
	h := NewTasteHandler(f.compat, f.recs, f.emb, f.similar, f.refresh, 10, logger.NewNop())
	NewRouter(mux, logger.NewNop()).Init(h)
	return mux
}

func (f *handlerFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("response is not JSON: %v, body: %s", err, rec.Body.String())
	}
	return v
}

func TestGetCompatibility(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		err        error
		wantStatus int
	}{
		{name: "ok", target: "/api/v1/users/1/compatibility/2", wantStatus: http.StatusOK},
		{name: "bad id", target: "/api/v1/users/abc/compatibility/2", wantStatus: http.StatusBadRequest},
		{name: "zero other id", target: "/api/v1/users/1/compatibility/0", wantStatus: http.StatusBadRequest},
		{name: "user not found", target: "/api/v1/users/1/compatibility/2", err: e.Wrap("op", e.ErrUserNotFound), wantStatus: http.StatusNotFound},
		{name: "internal", target: "/api/v1/users/1/compatibility/2", err: context.Canceled, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture()
			f.compat.err = tt.err

			rec := f.do(t, http.MethodGet, tt.target, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				if got := decode[ErrorResponse](t, rec); got.Code != tt.wantStatus {
					t.Errorf("error code = %d, want %d", got.Code, tt.wantStatus)
				}
				return
			}

			got := decode[CompatibilityResponse](t, rec)
			want := CompatibilityResponse{UserID: 1, OtherUserID: 2, Score: 78.9, Method: "embedding"}
			if got != want {
				t.Errorf("response = %+v, want %+v", got, want)
			}
		})
	}
}

func TestGetRecommendations(t *testing.T) {
	pop := 80
	f := newHandlerFixture()
	f.recs.recs = []domain.Recommendation{
		{Item: domain.NewItemRef(domain.ItemTrack, 5), Title: "Roads", Artist: "Portishead", Similarity: 0.92, Popularity: &pop, Source: domain.SourceEmbedding},
		{Item: domain.NewItemRef(domain.ItemTrack, 0), Title: "Angel", Artist: "Massive Attack", Source: domain.SourceSimilarArtist},
	}

	rec := f.do(t, http.MethodGet, "/api/v1/users/3/recommendations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if f.recs.lastLimit != 10 {
		t.Errorf("default limit = %d, want 10", f.recs.lastLimit)
	}

	got := decode[RecommendationsResponse](t, rec)
	if got.UserID != 3 || len(got.Recommendations) != 2 {
		t.Fatalf("response = %+v", got)
	}
	if r := got.Recommendations[1]; r.ItemID != 0 || r.Source != "similar_artist" || r.Popularity != nil {
		t.Errorf("external recommendation = %+v", r)
	}

	f.do(t, http.MethodGet, "/api/v1/users/3/recommendations?limit=4", "")
	if f.recs.lastLimit != 4 {
		t.Errorf("limit = %d, want 4", f.recs.lastLimit)
	}

	for _, bad := range []string{"0", "-1", "ten"} {
		rec := f.do(t, http.MethodGet, "/api/v1/users/3/recommendations?limit="+bad, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", bad, rec.Code)
		}
	}
}

func TestGetRecommendations_EmptyListIsArray(t *testing.T) {
	f := newHandlerFixture()
	f.recs.recs = []domain.Recommendation{}

	rec := f.do(t, http.MethodGet, "/api/v1/users/3/recommendations", "")
	if !strings.Contains(rec.Body.String(), `"recommendations":[]`) {
		t.Errorf("body = %s, want an empty array", rec.Body.String())
	}
}

func TestAggregateEmbedding(t *testing.T) {
	tests := []struct {
		name        string
		vec         []float32
		err         error
		wantStatus  int
		wantUpdated bool
	}{
		{name: "computed", vec: []float32{0.6, 0.8}, wantStatus: http.StatusOK, wantUpdated: true},
		{name: "no items", wantStatus: http.StatusOK},
		{name: "unknown user", err: e.ErrUserNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture()
			f.emb.vec, f.emb.err = tt.vec, tt.err

			rec := f.do(t, http.MethodPost, "/api/v1/users/8/embedding", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			got := decode[EmbeddingResponse](t, rec)
			if got.Updated != tt.wantUpdated || got.Dimension != len(tt.vec) {
				t.Errorf("response = %+v", got)
			}
		})
	}
}

func TestGetSimilarUsers(t *testing.T) {
	f := newHandlerFixture()
	f.similar.users = []domain.SimilarUser{{UserID: 4, Similarity: 0.9, Score: 85.7}}

	rec := f.do(t, http.MethodGet, "/api/v1/users/2/similar", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !math.IsNaN(f.similar.lastThreshold) || f.similar.lastLimit != 0 {
		t.Errorf("defaults = limit %d, threshold %v, want 0 and NaN", f.similar.lastLimit, f.similar.lastThreshold)
	}
	if got := decode[SimilarUsersResponse](t, rec); len(got.Users) != 1 || got.Users[0].UserID != 4 {
		t.Errorf("response = %+v", got)
	}

	f.do(t, http.MethodGet, "/api/v1/users/2/similar?limit=3&threshold=0.5", "")
	if f.similar.lastLimit != 3 || f.similar.lastThreshold != 0.5 {
		t.Errorf("params = limit %d, threshold %v, want 3 and 0.5", f.similar.lastLimit, f.similar.lastThreshold)
	}

	for _, bad := range []string{"1.5", "-2", "NaN", "x"} {
		if rec := f.do(t, http.MethodGet, "/api/v1/users/2/similar?threshold="+bad, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("threshold=%s: status = %d, want 400", bad, rec.Code)
		}
	}
}

func TestRefreshEmbeddings(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "ok", body: `{"user_ids":[1,2,3]}`, wantStatus: http.StatusOK},
		{name: "malformed", body: `{"user_ids":`, wantStatus: http.StatusBadRequest},
		{name: "too many", body: `{"user_ids":[1]}`, err: e.Wrap("op", e.ErrTooManyUsers), wantStatus: http.StatusBadRequest},
		{name: "empty", body: `{"user_ids":[]}`, err: e.Wrap("op", e.ErrStatusBadRequest), wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture()
			f.refresh.err = tt.err

			rec := f.do(t, http.MethodPost, "/api/v1/embeddings/refresh", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				got := decode[RefreshResponse](t, rec)
				if got.ReportID != "r1" || got.Total != 3 {
					t.Errorf("response = %+v", got)
				}
			}
		})
	}
}

func TestMetricsAndSwaggerRoutes(t *testing.T) {
	f := newHandlerFixture()

	f.do(t, http.MethodGet, "/api/v1/users/1/compatibility/2", "")
	rec := f.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `endpoint="/api/v1/users/{id}/compatibility/{otherID}"`) {
		t.Error("/metrics does not report the route pattern")
	}

	if rec := f.do(t, http.MethodGet, "/swagger/doc.json", ""); rec.Code != http.StatusOK {
		t.Errorf("/swagger/doc.json status = %d", rec.Code)
	}
}
