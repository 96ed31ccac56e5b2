package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Ошибки конфигурации (нарушение контракта, поднимаются наверх)
	ErrInvalidConfig          = fmt.Errorf("invalid configuration")
	ErrIncorrectEnvVariable   = fmt.Errorf("incorrect environment variable")
	ErrInvalidDimension       = fmt.Errorf("embedding dimension must be positive")
	ErrNonMonotonicRecency    = fmt.Errorf("recency tiers must be non-increasing with age")
	ErrAnthemWeightTooLow     = fmt.Errorf("anthem weight must exceed any ordinary item weight")
	ErrInvalidConvexity       = fmt.Errorf("convexity exponent must be within [1, 2]")
	ErrInvalidOverlapWeights  = fmt.Errorf("overlap weights must be non-negative and sum to a positive value")
	ErrUnsupportedCatalogType = fmt.Errorf("unsupported item type")

	// Внутренние ошибки с векторами
	ErrInvalidVector     = fmt.Errorf("invalid vector")
	ErrDimensionMismatch = fmt.Errorf("vector dimension mismatch")
	ErrNoEmbedding       = fmt.Errorf("embedding is not available")

	// Ошибки внешних источников данных
	ErrFeatureNotFound = fmt.Errorf("feature record not found")
	ErrExternalSearch  = fmt.Errorf("external catalog search failed")
	ErrCacheMiss       = fmt.Errorf("cache miss")
	ErrOutboxDuplicate = fmt.Errorf("outbox event already exists")
	ErrEventPayload    = fmt.Errorf("malformed event payload")

	// 400 Bad Request
	ErrStatusBadRequest = fmt.Errorf("bad request")
	ErrInvalidUserID    = fmt.Errorf("invalid user id")
	ErrInvalidLimit     = fmt.Errorf("invalid limit")
	ErrInvalidThreshold = fmt.Errorf("invalid threshold")
	ErrTooManyUsers     = fmt.Errorf("too many users in refresh request")

	// 404 Not Found
	ErrUserNotFound = fmt.Errorf("user not found")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
