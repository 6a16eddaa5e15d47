package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keepwaifu/backend/internal/models"
)

var (
	itemArrayFields = []string{"characters", "waifu", "husband", "char"}
	itemIDFields    = []string{"id", "_id", "character_id", "char_id"}
	itemNameFields  = []string{"name", "character", "title"}
	itemAnimeFields = []string{"anime", "series", "source"}
	itemImageFields = []string{"img_url", "image_url", "image", "img", "photo", "picture", "file_url", "url"}
)

// CollectionService lists the characters a user owns in a per-game store.
type CollectionService struct {
	stores   map[string]CollectionStore
	fallback string
	timeout  time.Duration
}

// NewCollectionService uses fallback for requests naming an unknown category.
func NewCollectionService(stores map[string]CollectionStore, fallback string, timeout time.Duration) *CollectionService {
	return &CollectionService{stores: stores, fallback: fallback, timeout: timeout}
}

// Collection returns the user's items that carry an image. Items without any
// recognized image field are filtered out. Repeated characters are folded
// into one item with a count.
func (s *CollectionService) Collection(ctx context.Context, userID, category string) ([]models.CollectionItem, Outcome) {
	store := s.storeFor(category)
	if store == nil {
		return []models.CollectionItem{}, OutcomeUnavailable
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := store.FindUserDocument(ctx, userID)
	if err != nil {
		outcome := classify(err)
		if outcome == OutcomeUnavailable {
			log.Warn().Err(err).Str("source", store.Name()).Str("user_id", userID).Msg("collection read failed")
		}
		return []models.CollectionItem{}, outcome
	}
	return collectItems(doc), OutcomeFound
}

func (s *CollectionService) storeFor(category string) CollectionStore {
	c := strings.ToLower(strings.TrimSpace(category))
	if st, ok := s.stores[c]; ok {
		return st
	}
	return s.stores[s.fallback]
}

func collectItems(doc map[string]interface{}) []models.CollectionItem {
	var raw []interface{}
	for _, f := range itemArrayFields {
		if list, ok := toList(doc[f]); ok {
			raw = list
			break
		}
	}

	out := make([]models.CollectionItem, 0, len(raw))
	seen := make(map[string]int, len(raw))
	for _, el := range raw {
		item, ok := normalizeItem(el)
		if !ok {
			continue
		}
		key := item.ID
		if key == "" {
			key = item.Name + "\x00" + item.ImgURL
		}
		if i, dup := seen[key]; dup {
			out[i].Count += item.Count
			continue
		}
		seen[key] = len(out)
		out = append(out, item)
	}
	return out
}

func normalizeItem(v interface{}) (models.CollectionItem, bool) {
	doc, ok := toDoc(v)
	if !ok {
		return models.CollectionItem{}, false
	}
	img := firstString(doc, itemImageFields)
	if img == "" {
		return models.CollectionItem{}, false
	}
	count := 1
	if n, ok := toInt64(doc["count"]); ok && n > 1 {
		count = int(n)
	}
	return models.CollectionItem{
		ID:     firstString(doc, itemIDFields),
		Name:   firstString(doc, itemNameFields),
		Rarity: stringify(doc["rarity"]),
		Anime:  firstString(doc, itemAnimeFields),
		ImgURL: img,
		Count:  count,
	}, true
}
