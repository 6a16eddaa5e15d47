package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/keepwaifu/backend/internal/models"
	"github.com/keepwaifu/backend/internal/services"
)

// AdminHandler serves the token-guarded maintenance routes.
type AdminHandler struct {
	ledger    *services.CharmLedger
	inspector *services.Inspector
}

func NewAdminHandler(core *services.Core) *AdminHandler {
	return &AdminHandler{ledger: core.Ledger, inspector: core.Inspector}
}

func (h *AdminHandler) UpdateCharms(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateCharmsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, m := range errs {
			msgs = append(msgs, m)
		}
		sort.Strings(msgs)
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(strings.Join(msgs, "; ")))
		return
	}

	total, ok := h.ledger.Update(r.Context(), req.UserID.String(), req.Delta, req.Category)
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, models.NewErrorResponse("Charm update was not applied"))
		return
	}
	log.Info().Str("user_id", req.UserID.String()).Int64("delta", req.Delta).Int64("balance", total).Msg("charms updated")
	writeJSON(w, http.StatusOK, models.BalanceResponse{OK: true, Balance: total})
}

func (h *AdminHandler) InspectUser(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("user_id is required"))
		return
	}
	writeJSON(w, http.StatusOK, models.InspectResponse{
		OK:      true,
		UserID:  userID,
		Sources: h.inspector.Inspect(r.Context(), userID),
	})
}
