package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"diamonds/internal/middleware"
	"diamonds/internal/models"
	"diamonds/internal/store"
	"diamonds/internal/validator"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
)

type createGrantRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

func (h *Handler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	var req createGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := validator.ValidateReason(req.Reason); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	grant, err := h.grantSvc.Create(r.Context(), adminID, req.UserID, req.Amount, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, grant)
}

func (h *Handler) ListGrants(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.GrantPendingApproval
	}
	grants, err := h.grants.ListByStatus(r.Context(), status, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load grants")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"grants": grants})
}

func (h *Handler) GetGrant(w http.ResponseWriter, r *http.Request) {
	grant, err := h.grants.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "grant not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load grant")
		return
	}
	respondJSON(w, http.StatusOK, grant)
}

func (h *Handler) ApproveGrant(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	grant, err := h.grantSvc.Approve(r.Context(), chi.URLParam(r, "id"), adminID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, grant)
}

func (h *Handler) RejectGrant(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	if err := h.grantSvc.Reject(r.Context(), chi.URLParam(r, "id"), adminID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": models.GrantRejected})
}

type adminCreditRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
	Origin string `json:"origin"`
	Reason string `json:"reason"`
}

// AdminCredit issues a direct earning credit on behalf of a user, for
// origins the platform triggers itself (achievements, referrals, community
// events). Admin grants proper go through the grant workflow instead.
func (h *Handler) AdminCredit(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	var req adminCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Origin == models.OriginAdminGrant {
		respondError(w, http.StatusBadRequest, "admin grants must use the grant workflow")
		return
	}
	if err := validator.ValidateReason(req.Reason); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	wallet, err := h.walletSvc.CreditOrigin(r.Context(), req.UserID, req.Amount, req.Origin, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	data, _ := json.Marshal(req)
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		return h.audit.Log(r.Context(), tx, adminID, "admin_credit", "wallet", req.UserID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "credit applied but audit log failed")
		return
	}
	respondJSON(w, http.StatusOK, wallet)
}

func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	entries, err := h.ledger.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load ledger")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) RunSupplyAudit(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconcile.SupplyAudit(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "supply audit failed")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) AdminListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	transactions, err := h.transactions.ListAll(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	logs, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

type grantRoleRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var req grantRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Role != store.RoleManageGrants && req.Role != store.RoleViewLedger {
		respondError(w, http.StatusBadRequest, "unknown role")
		return
	}
	isAdmin, _, err := h.admin.IsAdmin(r.Context(), req.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to verify admin")
		return
	}
	if !isAdmin {
		respondError(w, http.StatusNotFound, "user is not an admin")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admin.GrantRole(r.Context(), tx, req.UserID, req.Role); err != nil {
			return err
		}
		data, _ := json.Marshal(req)
		return h.audit.Log(r.Context(), tx, actorID, "grant_role", "admin", req.UserID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to grant role")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"user_id": req.UserID, "role": req.Role})
}

type promoteAdminRequest struct {
	UserID  string `json:"user_id"`
	IsSuper bool   `json:"is_super"`
}

func (h *Handler) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var req promoteAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if _, err := h.users.GetByID(r.Context(), req.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admin.CreateAdmin(r.Context(), tx, req.UserID, req.IsSuper, &actorID); err != nil {
			return err
		}
		data, _ := json.Marshal(req)
		return h.audit.Log(r.Context(), tx, actorID, "promote_admin", "admin", req.UserID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to promote admin")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user_id": req.UserID, "is_super": req.IsSuper})
}

// MarkPhoneVerified records a completed phone verification for a user.
// The actual verification flow runs in an external identity service; this
// endpoint is its write-back hook.
func (h *Handler) MarkPhoneVerified(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	targetID := chi.URLParam(r, "id")
	var applied bool
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		var err error
		applied, err = h.users.SetPhoneVerified(r.Context(), tx, targetID)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		return h.audit.Log(r.Context(), tx, actorID, "phone_verified", "user", targetID, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to record phone verification")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user_id": targetID, "applied": applied})
}

// EraseWallet burns a departing user's remaining balance so total supply
// stays reconcilable after account erasure.
func (h *Handler) EraseWallet(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	targetID := chi.URLParam(r, "id")
	if err := h.walletSvc.SoftZero(r.Context(), targetID); err != nil {
		respondServiceError(w, err)
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		return h.audit.Log(r.Context(), tx, actorID, "erase_wallet", "wallet", targetID, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "wallet erased but audit log failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "erased"})
}
