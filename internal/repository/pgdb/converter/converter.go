package converter

import (
	"time"

	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/internal/usecase"
	"github.com/DRSN-tech/taste-backend/pkg/vecmath"
)

// UserConverter преобразует строку users в domain.User.
type UserConverter interface {
	ToEntity(model *UserModel) *domain.User
}

// OwnershipConverter собирает коллекцию пользователя из строк владения.
type OwnershipConverter interface {
	ToCollection(models []OwnedItemModel) *domain.Collection
}

// FeatureConverter преобразует строку *_features в domain.FeatureRecord.
type FeatureConverter interface {
	ToEntity(model *FeatureModel) (*domain.FeatureRecord, error)
}

// CatalogConverter преобразует строки каталога в сущности usecase/domain.
type CatalogConverter interface {
	ToCatalogVector(model *CatalogVectorModel) usecase.CatalogVector
	ToTrack(model *TrackModel) domain.Track
	ToArtist(model *ArtistModel) domain.Artist
}

// OutboxEventConverter преобразует сущности OutboxEvent между usecase и моделью PostgreSQL.
type OutboxEventConverter interface {
	ToModel(entity *usecase.OutboxEvent) *OutboxEventModel
	ToEntity(model *OutboxEventModel) *usecase.OutboxEvent
	ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent
}

// ParseEmbedding разбирает текстовый pgvector. Повреждённый вектор считается отсутствующим.
func ParseEmbedding(raw *string) []float32 {
	if raw == nil {
		return nil
	}
	vec, err := vecmath.Parse(*raw)
	if err != nil || len(vec) == 0 {
		return nil
	}
	return vec
}

// EncodeEmbedding готовит вектор к записи через приведение $n::vector.
func EncodeEmbedding(vec []float32) (string, error) {
	return vecmath.EncodeText(vec)
}

func ConvertPopularity(p *int32) *int {
	if p == nil {
		return nil
	}
	v := int(*p)
	return &v
}

func ConvertString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ConvertTime(t time.Time) time.Time {
	return t.UTC()
}

func ConvertPointerTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
