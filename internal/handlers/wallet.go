package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"diamonds/internal/auth"
	"diamonds/internal/middleware"
	"diamonds/internal/policy"
	"diamonds/internal/websocket"
)

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	wallet, err := h.wallets.GetByUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "wallet not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load wallet")
		return
	}
	origins, err := h.wallets.GetOrigins(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load wallet")
		return
	}
	limits := policy.ForTier(wallet.Tier)
	respondJSON(w, http.StatusOK, map[string]any{
		"wallet":              wallet,
		"diamonds_by_origin":  origins,
		"limits":              limits,
		"transfer_remaining":  policy.Remaining(wallet.DailyTransferred, limits.DailyTransferLimit),
		"earning_remaining":   policy.Remaining(wallet.DailyEarned, limits.DailyEarningCap),
		"receiving_remaining": policy.Remaining(wallet.DailyReceived, limits.DailyReceiveLimit),
	})
}

func (h *Handler) ListMyLedger(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	limit, offset := parsePagination(r)
	entries, err := h.ledger.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load ledger")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) EarningCapCheck(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil || amount <= 0 {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	allowed, err := h.walletSvc.CheckEarningCap(r.Context(), userID, amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"allowed": allowed})
}

func (h *Handler) UpgradeTier(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	wallet, err := h.walletSvc.UpgradeToVerified(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wallet)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	limit, offset := parsePagination(r)
	rows, err := h.transactions.ListByUser(r.Context(), userID, r.URL.Query().Get("type"), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"transactions": rows})
}

// WSBalances authenticates via query token because browsers cannot set
// headers on websocket dials.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}
