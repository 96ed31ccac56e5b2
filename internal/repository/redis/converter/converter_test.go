package converter

import (
	"testing"

	"github.com/DRSN-tech/taste-backend/internal/domain"
)

func TestCacheConverter_RecommendationsKeepKeys(t *testing.T) {
	pop := 64
	recs := []domain.Recommendation{
		{
			Item:       domain.NewItemRef(domain.ItemTrack, 12),
			Title:      "Teardrop",
			Artist:     "Massive Attack",
			Similarity: 0.91,
			Popularity: &pop,
			Source:     domain.SourceEmbedding,
		},
		{
			Item:   domain.NewItemRef(domain.ItemTrack, 0),
			Title:  "Glory Box",
			Artist: "Portishead",
			Source: domain.SourceSimilarArtist,
		},
	}

	conv := CacheConverterImpl{}
	got := conv.ToArrRecommendation(conv.ToArrRecommendationModel(recs))

	if len(got) != len(recs) {
		t.Fatalf("got %d recommendations, want %d", len(got), len(recs))
	}
	for i := range recs {
		if got[i].Key() != recs[i].Key() {
			t.Errorf("recommendation %d key = %q, want %q", i, got[i].Key(), recs[i].Key())
		}
		if got[i].Source != recs[i].Source {
			t.Errorf("recommendation %d source = %q, want %q", i, got[i].Source, recs[i].Source)
		}
	}
	if got[0].Popularity == nil || *got[0].Popularity != pop {
		t.Errorf("popularity = %v, want %d", got[0].Popularity, pop)
	}
	if got[1].Popularity != nil {
		t.Errorf("external popularity = %v, want nil", *got[1].Popularity)
	}
}

func TestCacheConverter_CompatibilityMethod(t *testing.T) {
	conv := CacheConverterImpl{}
	in := &domain.Compatibility{UserA: 3, UserB: 9, Score: 31.7, Method: domain.MethodOverlap}

	model := conv.ToCompatibilityModel(in)
	if model.Method != "overlap" {
		t.Errorf("model method = %q, want overlap", model.Method)
	}

	if got := conv.ToCompatibility(model); *got != *in {
		t.Errorf("ToCompatibility() = %+v, want %+v", *got, *in)
	}
}
