package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"diamonds/internal/config"
	"diamonds/internal/db"
	"diamonds/internal/services"
	"diamonds/internal/websocket"
)

type Handler struct {
	txRunner     db.TxRunner
	cfg          config.Config
	users        UserStore
	wallets      WalletStore
	ledger       LedgerStore
	transfers    TransferStore
	grants       GrantStore
	transactions TransactionStore
	admin        AdminStore
	audit        AuditStore
	walletSvc    WalletService
	transferSvc  TransferService
	grantSvc     GrantService
	reconcile    ReconcileService
	hub          *websocket.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, users UserStore, wallets WalletStore, ledger LedgerStore, transfers TransferStore, grants GrantStore, transactions TransactionStore, admin AdminStore, audit AuditStore, walletSvc WalletService, transferSvc TransferService, grantSvc GrantService, reconcile ReconcileService, hub *websocket.Hub) *Handler {
	return &Handler{
		txRunner:     txRunner,
		cfg:          cfg,
		users:        users,
		wallets:      wallets,
		ledger:       ledger,
		transfers:    transfers,
		grants:       grants,
		transactions: transactions,
		admin:        admin,
		audit:        audit,
		walletSvc:    walletSvc,
		transferSvc:  transferSvc,
		grantSvc:     grantSvc,
		reconcile:    reconcile,
		hub:          hub,
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	var policyErr *services.PolicyError
	switch {
	case errors.As(err, &policyErr):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     policyErr.Error(),
			"rule":      policyErr.Rule,
			"limit":     policyErr.Limit,
			"remaining": policyErr.Remaining,
		})
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidOrigin),
		errors.Is(err, services.ErrSelfTransfer):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrWalletNotFound),
		errors.Is(err, services.ErrTransferNotFound),
		errors.Is(err, services.ErrGrantNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrNotParticipant),
		errors.Is(err, services.ErrNotVerified),
		errors.Is(err, services.ErrPrerequisiteFailed):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrAlreadyClaimed),
		errors.Is(err, services.ErrDuplicateApproval),
		errors.Is(err, services.ErrGrantNotPending),
		errors.Is(err, services.ErrAlreadyVerified),
		errors.Is(err, services.ErrEscrowOutstanding),
		errors.Is(err, services.ErrGrantNotDue):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrConcurrencyExhausted):
		respondError(w, http.StatusConflict, "temporary contention, retry")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
