package models

// LeaderboardEntry is one computed row of a top list. Rank is 1-based.
type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Username    *string `json:"username"`
	AvatarURL   *string `json:"avatar_url"`
	Score       int64   `json:"score"`
}

// ScoredUser is a raw (user, score) pair before profile enrichment.
type ScoredUser struct {
	UserID string `json:"user_id"`
	Score  int64  `json:"score"`
}

// SnapshotEntry is a document in the precomputed top_global collection.
type SnapshotEntry struct {
	UserID      string  `bson:"user_id"`
	Score       int64   `bson:"score"`
	DisplayName string  `bson:"display_name,omitempty"`
	Username    *string `bson:"username,omitempty"`
	AvatarURL   *string `bson:"avatar_url,omitempty"`
}

// RebuildResult summarizes a sorted-set rebuild.
type RebuildResult struct {
	Key    string       `json:"key"`
	Count  int          `json:"count"`
	DryRun bool         `json:"dry_run"`
	Sample []ScoredUser `json:"sample,omitempty"`
}
