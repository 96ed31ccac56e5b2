package domain

import (
	"fmt"
	"hash/fnv"
	"time"
)

// ItemType: тип музыкальной сущности в коллекции
type ItemType string

const (
	ItemTrack  ItemType = "track"
	ItemArtist ItemType = "artist"
	ItemAlbum  ItemType = "album"
)

// ItemTypes перечисляет все типы в порядке обхода коллекции
var ItemTypes = []ItemType{ItemTrack, ItemArtist, ItemAlbum}

func (t ItemType) Valid() bool {
	switch t {
	case ItemTrack, ItemArtist, ItemAlbum:
		return true
	default:
		return false
	}
}

// ItemRef ссылается на трек, артиста или альбом каталога
type ItemRef struct {
	Type ItemType
	ID   int64
}

func NewItemRef(t ItemType, id int64) ItemRef {
	return ItemRef{Type: t, ID: id}
}

func (r ItemRef) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}

// FeatureRecord описывает признаки сущности каталога. Embedding == nil - признаки ещё не посчитаны.
type FeatureRecord struct {
	Item       ItemRef
	Genre      string
	Mood       string
	Popularity *int // 0..100
	Embedding  []float32
}

// OwnedItem: элемент коллекции пользователя. AcquiredAt - момент добавления в коллекцию.
type OwnedItem struct {
	Item       ItemRef
	AcquiredAt time.Time
}

func NewOwnedItem(item ItemRef, acquiredAt time.Time) OwnedItem {
	return OwnedItem{Item: item, AcquiredAt: acquiredAt}
}

// Collection: коллекция пользователя, разложенная по типам.
type Collection struct {
	Tracks  []OwnedItem
	Artists []OwnedItem
	Albums  []OwnedItem
}

// Len возвращает общее число элементов коллекции
func (c *Collection) Len() int {
	return len(c.Tracks) + len(c.Artists) + len(c.Albums)
}

// All возвращает все элементы коллекции: сначала треки, затем артисты и альбомы
func (c *Collection) All() []OwnedItem {
	all := make([]OwnedItem, 0, c.Len())
	all = append(all, c.Tracks...)
	all = append(all, c.Artists...)
	all = append(all, c.Albums...)
	return all
}

// Version возвращает отпечаток состава коллекции для ключей кэша.
// Не зависит от порядка элементов и меняется при любом добавлении или удалении.
func (c *Collection) Version() string {
	var sum uint64
	for _, item := range c.All() {
		h := fnv.New64a()
		fmt.Fprintf(h, "%s:%d:%d", item.Item.Type, item.Item.ID, item.AcquiredAt.UnixNano())
		sum += h.Sum64()
	}
	return fmt.Sprintf("%d.%x", c.Len(), sum)
}

// IDs возвращает множество идентификаторов заданного типа
func (c *Collection) IDs(t ItemType) map[int64]struct{} {
	var items []OwnedItem
	switch t {
	case ItemTrack:
		items = c.Tracks
	case ItemArtist:
		items = c.Artists
	case ItemAlbum:
		items = c.Albums
	}

	ids := make(map[int64]struct{}, len(items))
	for _, item := range items {
		ids[item.Item.ID] = struct{}{}
	}
	return ids
}

// Track: трек каталога с признаками, нужными для рекомендаций
type Track struct {
	ID         int64
	Title      string
	ArtistID   *int64
	ArtistName string
	Popularity *int
}

// Artist: артист каталога
type Artist struct {
	ID         int64
	Name       string
	Popularity *int
}
