package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"diamonds/internal/middleware"

	"github.com/go-chi/chi/v5"
)

type initiateTransferRequest struct {
	ToUserID string `json:"to_user_id"`
	Amount   int64  `json:"amount"`
}

func (h *Handler) InitiateTransfer(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	var req initiateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.ToUserID == "" {
		respondError(w, http.StatusBadRequest, "to_user_id is required")
		return
	}
	transfer, err := h.transferSvc.Initiate(r.Context(), userID, req.ToUserID, req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, transfer)
}

func (h *Handler) ConfirmTransfer(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	transferID := chi.URLParam(r, "id")
	transfer, err := h.transferSvc.Confirm(r.Context(), transferID, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transfer)
}

func (h *Handler) CancelTransfer(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	transferID := chi.URLParam(r, "id")
	applied, err := h.transferSvc.Cancel(r.Context(), transferID, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"cancelled": applied})
}

func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	transfer, err := h.transfers.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "transfer not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load transfer")
		return
	}
	if transfer.FromUserID != userID && transfer.ToUserID != userID {
		respondError(w, http.StatusForbidden, "not a party to this transfer")
		return
	}
	respondJSON(w, http.StatusOK, transfer)
}

func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	limit, offset := parsePagination(r)
	transfers, err := h.transfers.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load transfers")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"transfers": transfers})
}
