package handlers

import (
	"encoding/json"
	"net/http"

	"diamonds/internal/middleware"
)

func (h *Handler) ClaimDailyLogin(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	wallet, err := h.walletSvc.ClaimDailyLogin(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wallet)
}

type gameplayRewardRequest struct {
	GameID string `json:"game_id"`
}

func (h *Handler) ClaimGameplay(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	var req gameplayRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.GameID == "" {
		respondError(w, http.StatusBadRequest, "game_id is required")
		return
	}
	amount, err := h.walletSvc.RewardGameplay(r.Context(), req.GameID, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"rewarded": amount})
}
