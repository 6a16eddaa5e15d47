package models

import "time"

// Profile is the canonical identity record for a mini-app user, keyed by the
// upstream user id. Stored in registered_users with the legacy field names.
type Profile struct {
	UserID      string     `json:"user_id" bson:"user_id"`
	DisplayName string     `json:"display_name" bson:"firstname,omitempty"`
	Username    *string    `json:"username" bson:"username,omitempty"`
	AvatarURL   *string    `json:"avatar_url" bson:"photo_url,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// ProfileHints are caller-supplied values (identity token claims or request
// parameters). A non-nil hint always wins over stored data.
type ProfileHints struct {
	DisplayName *string `json:"firstname"`
	Username    *string `json:"username"`
	AvatarURL   *string `json:"avatar"`
}

// Empty reports whether no hint carries a value.
func (h ProfileHints) Empty() bool {
	return h.DisplayName == nil && h.Username == nil && h.AvatarURL == nil
}

// Clone returns a deep copy so callers can mutate pointers safely.
func (p Profile) Clone() Profile {
	out := p
	if p.Username != nil {
		u := *p.Username
		out.Username = &u
	}
	if p.AvatarURL != nil {
		a := *p.AvatarURL
		out.AvatarURL = &a
	}
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

// StrPtr returns nil for an empty string.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StrVal dereferences p, treating nil as "".
func StrVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
