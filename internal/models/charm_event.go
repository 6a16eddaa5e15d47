package models

// BalanceChange is published on every successful balance update.
type BalanceChange struct {
	UserID   string `json:"user_id"`
	Charms   int64  `json:"charms"`
	Category string `json:"type,omitempty"`
}
