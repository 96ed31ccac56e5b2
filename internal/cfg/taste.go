package cfg

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
)

// RecencyTier: ступень веса по давности владения. MaxAge == 0 означает «старше всех остальных ступеней».
type RecencyTier struct {
	MaxAge time.Duration
	Weight float64
}

// EmbeddingCfg: параметры агрегации пользовательского эмбеддинга.
type EmbeddingCfg struct {
	Dimension          int
	FeatureReadTimeout time.Duration // таймаут на чтение одной записи признаков
	ReadConcurrency    int           // сколько записей признаков читается параллельно
	ComputeTimeout     time.Duration // общий таймаут пересчёта для одного пользователя
	TrackTiers         []RecencyTier
	ArtistTiers        []RecencyTier
	AlbumTiers         []RecencyTier
	ProminenceSpan     float64 // popularity 100 даёт множитель 1 + span
	AnthemWeight       float64
}

// CompatibilityCfg: параметры оценки совместимости.
type CompatibilityCfg struct {
	Exponent       float64 // показатель выпуклости γ, [1, 2]
	TrackWeight    float64
	ArtistWeight   float64
	AlbumWeight    float64
	GenreWeight    float64
	ScoreTimeout   time.Duration
	SimilarUsersK  int
	SimilarMinSim  float64 // порог близости для поиска похожих пользователей
	MaxRefreshSize int
}

// RecommendCfg: параметры рекомендаций.
type RecommendCfg struct {
	DefaultLimit    int
	MaxLimit        int
	ScanBatchSize   int // размер страницы при потоковом обходе каталога
	TracksPerArtist int
	SeedArtists     int // сколько артистов пользователя отправлять во внешний поиск
	TierTimeout     time.Duration
}

// ExternalSearchCfg: внешний сервис похожих артистов.
type ExternalSearchCfg struct {
	BaseURL          string
	ApiKey           string
	Timeout          time.Duration
	MaxRetries       int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	RateLimit        float64 // запросов в секунду
	RateBurst        int
	BreakerFailures  uint32 // подряд идущих ошибок до размыкания
	BreakerOpenDelay time.Duration
}

// RefreshCfg: периодический и событийный пересчёт эмбеддингов.
type RefreshCfg struct {
	Schedule        string // cron-выражение, пустое - отключено
	BatchSize       int
	DebounceQuiet   time.Duration
	DebounceMaxWait time.Duration
}

// CacheCfg: время жизни закэшированных результатов.
type CacheCfg struct {
	CompatibilityTTL   time.Duration
	RecommendationsTTL time.Duration
	FallbackTTL        time.Duration
}

func loadEmbeddingCfg(log logger.Logger) (*EmbeddingCfg, error) {
	const (
		defaultDimension          = 1536
		defaultFeatureReadTimeout = 2 * time.Second
		defaultReadConcurrency    = 8
		defaultComputeTimeout     = 30 * time.Second
		defaultTrackTiers         = "168h:3.0,720h:2.0,2160h:1.5,*:1.0"
		defaultArtistTiers        = "720h:2.5,2160h:2.0,*:1.5"
		defaultAlbumTiers         = "720h:2.0,2160h:1.5,*:1.0"
		defaultProminenceSpan     = 0.5
		defaultAnthemWeight       = 5.0
	)

	dimension, err := parseIntEnv("EMBEDDING_DIMENSION", defaultDimension)
	if err != nil {
		log.Errorf(err, "invalid EMBEDDING_DIMENSION")
		return nil, err
	}
	if dimension <= 0 {
		log.Errorf(e.ErrInvalidDimension, "invalid EMBEDDING_DIMENSION")
		return nil, e.ErrInvalidDimension
	}

	readTimeout, err := parseDurationEnv("FEATURE_READ_TIMEOUT", defaultFeatureReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid FEATURE_READ_TIMEOUT")
		return nil, err
	}

	concurrency, err := parseIntEnv("FEATURE_READ_CONCURRENCY", defaultReadConcurrency)
	if err != nil {
		log.Errorf(err, "invalid FEATURE_READ_CONCURRENCY")
		return nil, err
	}

	computeTimeout, err := parseDurationEnv("EMBEDDING_COMPUTE_TIMEOUT", defaultComputeTimeout)
	if err != nil {
		log.Errorf(err, "invalid EMBEDDING_COMPUTE_TIMEOUT")
		return nil, err
	}

	trackTiers, err := ParseTiers(getEnvOrDefault("RECENCY_TRACK_TIERS", defaultTrackTiers))
	if err != nil {
		log.Errorf(err, "invalid RECENCY_TRACK_TIERS")
		return nil, err
	}

	artistTiers, err := ParseTiers(getEnvOrDefault("RECENCY_ARTIST_TIERS", defaultArtistTiers))
	if err != nil {
		log.Errorf(err, "invalid RECENCY_ARTIST_TIERS")
		return nil, err
	}

	albumTiers, err := ParseTiers(getEnvOrDefault("RECENCY_ALBUM_TIERS", defaultAlbumTiers))
	if err != nil {
		log.Errorf(err, "invalid RECENCY_ALBUM_TIERS")
		return nil, err
	}

	span, err := parseFloatEnv("PROMINENCE_SPAN", defaultProminenceSpan)
	if err != nil {
		log.Errorf(err, "invalid PROMINENCE_SPAN")
		return nil, err
	}

	anthem, err := parseFloatEnv("ANTHEM_WEIGHT", defaultAnthemWeight)
	if err != nil {
		log.Errorf(err, "invalid ANTHEM_WEIGHT")
		return nil, err
	}

	return &EmbeddingCfg{
		Dimension:          dimension,
		FeatureReadTimeout: readTimeout,
		ReadConcurrency:    concurrency,
		ComputeTimeout:     computeTimeout,
		TrackTiers:         trackTiers,
		ArtistTiers:        artistTiers,
		AlbumTiers:         albumTiers,
		ProminenceSpan:     span,
		AnthemWeight:       anthem,
	}, nil
}

func loadCompatibilityCfg(log logger.Logger) (*CompatibilityCfg, error) {
	const (
		defaultExponent       = 1.5
		defaultTrackWeight    = 0.35
		defaultArtistWeight   = 0.35
		defaultAlbumWeight    = 0.1
		defaultGenreWeight    = 0.2
		defaultScoreTimeout   = 10 * time.Second
		defaultSimilarUsersK  = 10
		defaultSimilarMinSim  = 0.8
		defaultMaxRefreshSize = 500
	)

	floats := []struct {
		key string
		def float64
		dst *float64
	}{
		{"COMPATIBILITY_EXPONENT", defaultExponent, new(float64)},
		{"OVERLAP_TRACK_WEIGHT", defaultTrackWeight, new(float64)},
		{"OVERLAP_ARTIST_WEIGHT", defaultArtistWeight, new(float64)},
		{"OVERLAP_ALBUM_WEIGHT", defaultAlbumWeight, new(float64)},
		{"OVERLAP_GENRE_WEIGHT", defaultGenreWeight, new(float64)},
		{"SIMILAR_USERS_THRESHOLD", defaultSimilarMinSim, new(float64)},
	}
	for _, f := range floats {
		v, err := parseFloatEnv(f.key, f.def)
		if err != nil {
			log.Errorf(err, "invalid %s", f.key)
			return nil, err
		}
		*f.dst = v
	}

	scoreTimeout, err := parseDurationEnv("COMPATIBILITY_TIMEOUT", defaultScoreTimeout)
	if err != nil {
		log.Errorf(err, "invalid COMPATIBILITY_TIMEOUT")
		return nil, err
	}

	similarK, err := parseIntEnv("SIMILAR_USERS_LIMIT", defaultSimilarUsersK)
	if err != nil {
		log.Errorf(err, "invalid SIMILAR_USERS_LIMIT")
		return nil, err
	}

	maxRefresh, err := parseIntEnv("MAX_REFRESH_USERS", defaultMaxRefreshSize)
	if err != nil {
		log.Errorf(err, "invalid MAX_REFRESH_USERS")
		return nil, err
	}

	return &CompatibilityCfg{
		Exponent:       *floats[0].dst,
		TrackWeight:    *floats[1].dst,
		ArtistWeight:   *floats[2].dst,
		AlbumWeight:    *floats[3].dst,
		GenreWeight:    *floats[4].dst,
		SimilarMinSim:  *floats[5].dst,
		ScoreTimeout:   scoreTimeout,
		SimilarUsersK:  similarK,
		MaxRefreshSize: maxRefresh,
	}, nil
}

func loadRecommendCfg(log logger.Logger) (*RecommendCfg, error) {
	const (
		defaultLimit           = 10
		defaultMaxLimit        = 100
		defaultScanBatchSize   = 500
		defaultTracksPerArtist = 2
		defaultSeedArtists     = 5
		defaultTierTimeout     = 5 * time.Second
	)

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"RECOMMEND_DEFAULT_LIMIT", defaultLimit, new(int)},
		{"RECOMMEND_MAX_LIMIT", defaultMaxLimit, new(int)},
		{"CATALOG_SCAN_BATCH_SIZE", defaultScanBatchSize, new(int)},
		{"TRACKS_PER_ARTIST", defaultTracksPerArtist, new(int)},
		{"SEED_ARTISTS", defaultSeedArtists, new(int)},
	}
	for _, i := range ints {
		v, err := parseIntEnv(i.key, i.def)
		if err != nil {
			log.Errorf(err, "invalid %s", i.key)
			return nil, err
		}
		if v <= 0 {
			err := e.Wrap(i.key, e.ErrInvalidConfig)
			log.Errorf(err, "%s must be positive", i.key)
			return nil, err
		}
		*i.dst = v
	}

	tierTimeout, err := parseDurationEnv("RECOMMEND_TIER_TIMEOUT", defaultTierTimeout)
	if err != nil {
		log.Errorf(err, "invalid RECOMMEND_TIER_TIMEOUT")
		return nil, err
	}

	return &RecommendCfg{
		DefaultLimit:    *ints[0].dst,
		MaxLimit:        *ints[1].dst,
		ScanBatchSize:   *ints[2].dst,
		TracksPerArtist: *ints[3].dst,
		SeedArtists:     *ints[4].dst,
		TierTimeout:     tierTimeout,
	}, nil
}

func loadExternalSearchCfg(log logger.Logger) (*ExternalSearchCfg, error) {
	const (
		defaultTimeout          = 5 * time.Second
		defaultMaxRetries       = 2
		defaultRetryBaseDelay   = 200 * time.Millisecond
		defaultRetryMaxDelay    = 2 * time.Second
		defaultRateLimit        = 5.0
		defaultRateBurst        = 5
		defaultBreakerFailures  = 5
		defaultBreakerOpenDelay = 30 * time.Second
	)

	timeout, err := parseDurationEnv("SIMILAR_ARTISTS_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid SIMILAR_ARTISTS_TIMEOUT")
		return nil, err
	}

	retries, err := parseIntEnv("SIMILAR_ARTISTS_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid SIMILAR_ARTISTS_RETRIES")
		return nil, err
	}

	baseDelay, err := parseDurationEnv("SIMILAR_ARTISTS_RETRY_BASE", defaultRetryBaseDelay)
	if err != nil {
		log.Errorf(err, "invalid SIMILAR_ARTISTS_RETRY_BASE")
		return nil, err
	}

	maxDelay, err := parseDurationEnv("SIMILAR_ARTISTS_RETRY_MAX", defaultRetryMaxDelay)
	if err != nil {
		log.Errorf(err, "invalid SIMILAR_ARTISTS_RETRY_MAX")
		return nil, err
	}

	rateLimit, err := parseFloatEnv("SIMILAR_ARTISTS_RPS", defaultRateLimit)
	if err != nil {
		log.Errorf(err, "invalid SIMILAR_ARTISTS_RPS")
		return nil, err
	}

	burst, err := parseIntEnv("SIMILAR_ARTISTS_BURST", defaultRateBurst)
	if err != nil {
		log.Errorf(err, "invalid SIMILAR_ARTISTS_BURST")
		return nil, err
	}

	failures, err := parseIntEnv("SIMILAR_ARTISTS_BREAKER_FAILURES", defaultBreakerFailures)
	if err != nil {
		log.Errorf(err, "invalid SIMILAR_ARTISTS_BREAKER_FAILURES")
		return nil, err
	}

	openDelay, err := parseDurationEnv("SIMILAR_ARTISTS_BREAKER_OPEN", defaultBreakerOpenDelay)
	if err != nil {
		log.Errorf(err, "invalid SIMILAR_ARTISTS_BREAKER_OPEN")
		return nil, err
	}

	return &ExternalSearchCfg{
		BaseURL:          getEnv("SIMILAR_ARTISTS_URL"),
		ApiKey:           getEnv("SIMILAR_ARTISTS_API_KEY"),
		Timeout:          timeout,
		MaxRetries:       retries,
		RetryBaseDelay:   baseDelay,
		RetryMaxDelay:    maxDelay,
		RateLimit:        rateLimit,
		RateBurst:        burst,
		BreakerFailures:  uint32(failures),
		BreakerOpenDelay: openDelay,
	}, nil
}

func loadRefreshCfg(log logger.Logger) (*RefreshCfg, error) {
	const (
		defaultSchedule        = "0 3 * * *"
		defaultBatchSize       = 100
		defaultDebounceQuiet   = 5 * time.Second
		defaultDebounceMaxWait = time.Minute
	)

	batchSize, err := parseIntEnv("REFRESH_BATCH_SIZE", defaultBatchSize)
	if err != nil {
		log.Errorf(err, "invalid REFRESH_BATCH_SIZE")
		return nil, err
	}

	quiet, err := parseDurationEnv("DEBOUNCE_QUIET", defaultDebounceQuiet)
	if err != nil {
		log.Errorf(err, "invalid DEBOUNCE_QUIET")
		return nil, err
	}

	maxWait, err := parseDurationEnv("DEBOUNCE_MAX_WAIT", defaultDebounceMaxWait)
	if err != nil {
		log.Errorf(err, "invalid DEBOUNCE_MAX_WAIT")
		return nil, err
	}

	return &RefreshCfg{
		Schedule:        getEnvOrDefault("REFRESH_SCHEDULE", defaultSchedule),
		BatchSize:       batchSize,
		DebounceQuiet:   quiet,
		DebounceMaxWait: maxWait,
	}, nil
}

func loadCacheCfg(log logger.Logger) (*CacheCfg, error) {
	const (
		defaultCompatibilityTTL   = 24 * time.Hour
		defaultRecommendationsTTL = 24 * time.Hour
		defaultFallbackTTL        = 10 * time.Minute
	)

	compatibilityTTL, err := parseDurationEnv("COMPATIBILITY_TTL", defaultCompatibilityTTL)
	if err != nil {
		log.Errorf(err, "invalid COMPATIBILITY_TTL")
		return nil, err
	}

	recommendationsTTL, err := parseDurationEnv("RECOMMENDATIONS_TTL", defaultRecommendationsTTL)
	if err != nil {
		log.Errorf(err, "invalid RECOMMENDATIONS_TTL")
		return nil, err
	}

	fallbackTTL, err := parseDurationEnv("FALLBACK_TTL", defaultFallbackTTL)
	if err != nil {
		log.Errorf(err, "invalid FALLBACK_TTL")
		return nil, err
	}

	return &CacheCfg{
		CompatibilityTTL:   compatibilityTTL,
		RecommendationsTTL: recommendationsTTL,
		FallbackTTL:        fallbackTTL,
	}, nil
}

// ParseTiers разбирает ступени давности вида "168h:3.0,720h:2.0,*:1.0".
// "*" задаёт вес для всего, что старше последней ступени.
func ParseTiers(raw string) ([]RecencyTier, error) {
	parts := strings.Split(raw, ",")
	tiers := make([]RecencyTier, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		age, weight, ok := strings.Cut(part, ":")
		if !ok {
			return nil, e.Wrap(fmt.Sprintf("tier %q", part), e.ErrIncorrectEnvVariable)
		}

		w, err := strconv.ParseFloat(strings.TrimSpace(weight), 64)
		if err != nil {
			return nil, e.Wrap(fmt.Sprintf("tier %q", part), e.ErrIncorrectEnvVariable)
		}

		var maxAge time.Duration
		if age = strings.TrimSpace(age); age != "*" {
			maxAge, err = time.ParseDuration(age)
			if err != nil || maxAge <= 0 {
				return nil, e.Wrap(fmt.Sprintf("tier %q", part), e.ErrIncorrectEnvVariable)
			}
		}

		tiers = append(tiers, RecencyTier{MaxAge: maxAge, Weight: w})
	}

	if len(tiers) == 0 {
		return nil, e.Wrap("empty tier list", e.ErrIncorrectEnvVariable)
	}

	return tiers, nil
}
