package converter

import (
	"fmt"

	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/internal/usecase"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/vecmath"
)

type UserConverterImpl struct{}

func (UserConverterImpl) ToEntity(model *UserModel) *domain.User {
	if model == nil {
		return nil
	}

	user := &domain.User{
		ID:        model.ID,
		Name:      model.Name,
		Embedding: ParseEmbedding(model.Embedding),
		UpdatedAt: ConvertTime(model.UpdatedAt),
	}
	if model.AnthemType != nil && model.AnthemID != nil {
		if t := domain.ItemType(*model.AnthemType); t.Valid() {
			anthem := domain.NewItemRef(t, *model.AnthemID)
			user.Anthem = &anthem
		}
	}

	return user
}

type OwnershipConverterImpl struct{}

func (OwnershipConverterImpl) ToCollection(models []OwnedItemModel) *domain.Collection {
	col := &domain.Collection{}
	for _, m := range models {
		item := domain.NewOwnedItem(domain.NewItemRef(domain.ItemType(m.ItemType), m.ItemID), ConvertTime(m.CreatedAt))
		switch item.Item.Type {
		case domain.ItemTrack:
			col.Tracks = append(col.Tracks, item)
		case domain.ItemArtist:
			col.Artists = append(col.Artists, item)
		case domain.ItemAlbum:
			col.Albums = append(col.Albums, item)
		}
	}

	return col
}

type FeatureConverterImpl struct{}

// ToEntity возвращает e.ErrInvalidVector, если вектор в хранилище не разбирается.
func (FeatureConverterImpl) ToEntity(model *FeatureModel) (*domain.FeatureRecord, error) {
	rec := &domain.FeatureRecord{
		Item:       domain.NewItemRef(domain.ItemType(model.ItemType), model.ItemID),
		Genre:      ConvertString(model.Genre),
		Mood:       ConvertString(model.Mood),
		Popularity: ConvertPopularity(model.Popularity),
	}

	if model.Embedding != nil {
		vec, err := vecmath.Parse(*model.Embedding)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", e.ErrInvalidVector, rec.Item, err)
		}
		rec.Embedding = vec
	}

	return rec, nil
}

type CatalogConverterImpl struct{}

func (CatalogConverterImpl) ToCatalogVector(model *CatalogVectorModel) usecase.CatalogVector {
	return usecase.CatalogVector{
		Item:       domain.NewItemRef(domain.ItemType(model.ItemType), model.ID),
		Title:      model.Title,
		Artist:     model.Artist,
		ArtistID:   model.ArtistID,
		Popularity: ConvertPopularity(model.Popularity),
		Embedding:  ParseEmbedding(model.Embedding),
	}
}

func (CatalogConverterImpl) ToTrack(model *TrackModel) domain.Track {
	return domain.Track{
		ID:         model.ID,
		Title:      model.Title,
		ArtistID:   model.ArtistID,
		ArtistName: model.ArtistName,
		Popularity: ConvertPopularity(model.Popularity),
	}
}

func (CatalogConverterImpl) ToArtist(model *ArtistModel) domain.Artist {
	return domain.Artist{
		ID:         model.ID,
		Name:       model.Name,
		Popularity: ConvertPopularity(model.Popularity),
	}
}

type OutboxEventConverterImpl struct{}

func (OutboxEventConverterImpl) ToModel(entity *usecase.OutboxEvent) *OutboxEventModel {
	if entity == nil {
		return nil
	}

	return &OutboxEventModel{
		ID:          entity.ID,
		EventID:     entity.EventID,
		EventType:   string(entity.EventType),
		UserID:      entity.UserID,
		Payload:     entity.Payload,
		Status:      string(entity.Status),
		CreatedAt:   ConvertTime(entity.CreatedAt),
		ProcessedAt: ConvertPointerTime(entity.ProcessedAt),
	}
}

func (OutboxEventConverterImpl) ToEntity(model *OutboxEventModel) *usecase.OutboxEvent {
	if model == nil {
		return nil
	}

	return &usecase.OutboxEvent{
		ID:          model.ID,
		EventID:     model.EventID,
		EventType:   usecase.OutboxEventType(model.EventType),
		UserID:      model.UserID,
		Payload:     model.Payload,
		Status:      usecase.OutboxStatus(model.Status),
		CreatedAt:   ConvertTime(model.CreatedAt),
		ProcessedAt: ConvertPointerTime(model.ProcessedAt),
	}
}

func (c OutboxEventConverterImpl) ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent {
	out := make([]*usecase.OutboxEvent, 0, len(models))
	for _, m := range models {
		out = append(out, c.ToEntity(m))
	}
	return out
}
