package models

// CollectionItem is an owned character with a resolvable image.
type CollectionItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rarity string `json:"rarity,omitempty"`
	Anime  string `json:"anime,omitempty"`
	ImgURL string `json:"img_url"`
	Count  int    `json:"count"`
}
