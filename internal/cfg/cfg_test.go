package cfg

import (
	"errors"
	"testing"
	"time"

	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
)

func TestParseTiers(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []RecencyTier
		wantErr bool
	}{
		{
			name: "default track tiers",
			raw:  "168h:3.0,720h:2.0,2160h:1.5,*:1.0",
			want: []RecencyTier{
				{MaxAge: 168 * time.Hour, Weight: 3},
				{MaxAge: 720 * time.Hour, Weight: 2},
				{MaxAge: 2160 * time.Hour, Weight: 1.5},
				{MaxAge: 0, Weight: 1},
			},
		},
		{
			name: "spaces and trailing comma",
			raw:  " 24h : 2 , *:1 ,",
			want: []RecencyTier{
				{MaxAge: 24 * time.Hour, Weight: 2},
				{MaxAge: 0, Weight: 1},
			},
		},
		{name: "missing separator", raw: "24h=2", wantErr: true},
		{name: "bad weight", raw: "24h:heavy", wantErr: true},
		{name: "bad age", raw: "week:2", wantErr: true},
		{name: "negative age", raw: "-1h:2", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTiers(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, e.ErrIncorrectEnvVariable) {
					t.Fatalf("ParseTiers(%q) error = %v, want ErrIncorrectEnvVariable", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTiers(%q) error = %v", tt.raw, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len(ParseTiers()) = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseTiers()[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", "")
	t.Setenv("POSTGRES_USER", "taste")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "taste")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load(logger.NewNop())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Embedding.Dimension != 1536 {
		t.Errorf("Embedding.Dimension = %d, want 1536", cfg.Embedding.Dimension)
	}
	if cfg.Qdrant.VectorSize != 1536 {
		t.Errorf("Qdrant.VectorSize = %d, want 1536", cfg.Qdrant.VectorSize)
	}
	if cfg.Embedding.AnthemWeight != 5 {
		t.Errorf("Embedding.AnthemWeight = %v, want 5", cfg.Embedding.AnthemWeight)
	}
	if len(cfg.Embedding.TrackTiers) != 4 {
		t.Errorf("len(Embedding.TrackTiers) = %d, want 4", len(cfg.Embedding.TrackTiers))
	}
	if cfg.Compatibility.Exponent != 1.5 {
		t.Errorf("Compatibility.Exponent = %v, want 1.5", cfg.Compatibility.Exponent)
	}
	if cfg.Compatibility.SimilarMinSim != 0.8 {
		t.Errorf("Compatibility.SimilarMinSim = %v, want 0.8", cfg.Compatibility.SimilarMinSim)
	}
	if cfg.Cache.CompatibilityTTL != 24*time.Hour {
		t.Errorf("Cache.CompatibilityTTL = %v, want 24h", cfg.Cache.CompatibilityTTL)
	}
	if cfg.Cache.FallbackTTL >= cfg.Cache.RecommendationsTTL {
		t.Errorf("Cache.FallbackTTL = %v, want shorter than %v", cfg.Cache.FallbackTTL, cfg.Cache.RecommendationsTTL)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Kafka.Brokers = %v, want two brokers", cfg.Kafka.Brokers)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "missing postgres user", key: "POSTGRES_USER", val: ""},
		{name: "missing kafka brokers", key: "KAFKA_BROKERS", val: ""},
		{name: "zero dimension", key: "EMBEDDING_DIMENSION", val: "0"},
		{name: "bad duration", key: "FEATURE_READ_TIMEOUT", val: "soon"},
		{name: "bad tiers", key: "RECENCY_TRACK_TIERS", val: "7d:3"},
		{name: "bad exponent", key: "COMPATIBILITY_EXPONENT", val: "x"},
		{name: "non-positive limit", key: "RECOMMEND_MAX_LIMIT", val: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.val)

			if _, err := Load(logger.NewNop()); err == nil {
				t.Errorf("Load() with %s=%q error = nil, want error", tt.key, tt.val)
			}
		})
	}
}
