package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/keepwaifu/backend/internal/middleware"
	"github.com/keepwaifu/backend/internal/models"
	"github.com/keepwaifu/backend/internal/services"
)

type UserHandler struct {
	resolver    *services.ProfileResolver
	ledger      *services.CharmLedger
	collections *services.CollectionService
}

func NewUserHandler(core *services.Core) *UserHandler {
	return &UserHandler{
		resolver:    core.Resolver,
		ledger:      core.Ledger,
		collections: core.Collections,
	}
}

// UserInfo resolves the caller's profile and balance. Explicit request values
// take precedence over token claims; the token supplies what is missing.
func (h *UserHandler) UserInfo(w http.ResponseWriter, r *http.Request) {
	req := models.UserInfoRequest{
		UserID:    models.FlexID(strings.TrimSpace(r.URL.Query().Get("user_id"))),
		FirstName: queryPtr(r, "firstname"),
		Username:  queryPtr(r, "username"),
		Avatar:    queryPtr(r, "avatar"),
	}
	if r.Method == http.MethodPost {
		var body models.UserInfoRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
			return
		}
		mergeUserInfo(&req, body)
	}

	hints := models.ProfileHints{
		DisplayName: req.FirstName,
		Username:    req.Username,
		AvatarURL:   req.Avatar,
	}
	if id, ok := middleware.GetIdentity(r.Context()); ok {
		if req.UserID == "" {
			req.UserID = models.FlexID(id.UserID)
		}
		hints = withTokenHints(hints, id.Hints())
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("user_id is required"))
		return
	}

	userID := req.UserID.String()
	prof, outcome := h.resolver.Resolve(r.Context(), userID, hints)
	balance, balanceOutcome := h.ledger.Balance(r.Context(), userID)
	log.Debug().
		Str("user_id", userID).
		Stringer("profile", outcome).
		Stringer("balance", balanceOutcome).
		Msg("user info")

	writeJSON(w, http.StatusOK, models.UserInfoResponse{
		OK:       true,
		ID:       prof.UserID,
		Name:     prof.DisplayName,
		Username: prof.Username,
		Avatar:   prof.AvatarURL,
		Balance:  balance,
	})
}

func mergeUserInfo(dst *models.UserInfoRequest, body models.UserInfoRequest) {
	if body.UserID != "" {
		dst.UserID = body.UserID
	}
	if body.FirstName != nil {
		dst.FirstName = body.FirstName
	}
	if body.Username != nil {
		dst.Username = body.Username
	}
	if body.Avatar != nil {
		dst.Avatar = body.Avatar
	}
}

func withTokenHints(h, token models.ProfileHints) models.ProfileHints {
	if h.DisplayName == nil {
		h.DisplayName = token.DisplayName
	}
	if h.Username == nil {
		h.Username = token.Username
	}
	if h.AvatarURL == nil {
		h.AvatarURL = token.AvatarURL
	}
	return h
}

// MyCollection lists the characters the user owns in the requested game.
func (h *UserHandler) MyCollection(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = middleware.GetUserID(r.Context())
	}
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("user_id is required"))
		return
	}

	items, outcome := h.collections.Collection(r.Context(), userID, r.URL.Query().Get("type"))
	log.Debug().Str("user_id", userID).Stringer("outcome", outcome).Int("items", len(items)).Msg("collection")
	writeJSON(w, http.StatusOK, models.NewItemsResponse(items))
}
