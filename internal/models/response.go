package models

// APIResponse is the envelope the mini-app front-end expects: "ok" plus either
// an error message or "items".
type APIResponse struct {
	OK    bool        `json:"ok"`
	Items interface{} `json:"items,omitempty"`
	Error string      `json:"error,omitempty"`
}

// NewItemsResponse creates a success response carrying a list. A nil list is
// sent as [] so the client never has to special-case null.
func NewItemsResponse(items interface{}) APIResponse {
	if items == nil {
		items = []struct{}{}
	}
	return APIResponse{OK: true, Items: items}
}

// NewSuccessResponse creates a bare success response
func NewSuccessResponse() APIResponse {
	return APIResponse{OK: true}
}

// NewErrorResponse creates an error response
func NewErrorResponse(message string) APIResponse {
	return APIResponse{OK: false, Error: message}
}

// UserInfoResponse is returned by /api/user_info.
type UserInfoResponse struct {
	OK       bool    `json:"ok"`
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Username *string `json:"username"`
	Avatar   *string `json:"avatar"`
	Balance  int64   `json:"balance"`
}

// TopItem is one leaderboard row in the shape the front-end renders. Score is
// repeated under charms and count for older clients.
type TopItem struct {
	Rank     int     `json:"rank"`
	UserID   string  `json:"user_id"`
	Name     string  `json:"name"`
	Username *string `json:"username"`
	Avatar   *string `json:"avatar"`
	Charms   int64   `json:"charms"`
	Score    int64   `json:"score"`
	Count    int64   `json:"count"`
}

// BalanceResponse is returned after a charm update.
type BalanceResponse struct {
	OK      bool  `json:"ok"`
	Balance int64 `json:"balance"`
}

// UpdateCharmsRequest is the body of POST /api/charms.
type UpdateCharmsRequest struct {
	UserID   FlexID `json:"user_id"`
	Delta    int64  `json:"delta"`
	Category string `json:"type"`
}

// Validate returns field errors, empty when the request is usable.
func (r *UpdateCharmsRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.UserID == "" {
		errors["user_id"] = "user_id is required"
	}
	if r.Delta == 0 {
		errors["delta"] = "delta must be non-zero"
	}
	return errors
}

// UserInfoRequest is the JSON body accepted by POST /api/user_info.
type UserInfoRequest struct {
	UserID    FlexID  `json:"user_id"`
	FirstName *string `json:"firstname"`
	Username  *string `json:"username"`
	Avatar    *string `json:"avatar"`
}

// InspectResponse lists the raw document each source holds for a user.
type InspectResponse struct {
	OK      bool                              `json:"ok"`
	UserID  string                            `json:"user_id"`
	Sources map[string]map[string]interface{} `json:"sources"`
}

// RebuildResponse wraps a leaderboard rebuild summary.
type RebuildResponse struct {
	OK     bool          `json:"ok"`
	Result RebuildResult `json:"result"`
}
