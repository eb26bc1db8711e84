package handlers

import (
	"net/http"

	"diamonds/internal/middleware"
	"diamonds/internal/store"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Get("/wallet", h.GetWallet)
		r.Get("/wallet/ledger", h.ListMyLedger)
		r.Get("/wallet/earning-cap", h.EarningCapCheck)
		r.Post("/wallet/upgrade", h.UpgradeTier)
		r.Post("/rewards/daily-login", h.ClaimDailyLogin)
		r.Post("/rewards/gameplay", h.ClaimGameplay)
		r.Post("/transfers", h.InitiateTransfer)
		r.Get("/transfers", h.ListTransfers)
		r.Get("/transfers/{id}", h.GetTransfer)
		r.Post("/transfers/{id}/confirm", h.ConfirmTransfer)
		r.Post("/transfers/{id}/cancel", h.CancelTransfer)
		r.Get("/transactions", h.ListTransactions)
	})

	router.Get("/ws/balances", h.WSBalances)

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.With(middleware.RequireAdmin(h.admin, store.RoleManageGrants)).Post("/grants", h.CreateGrant)
		r.With(middleware.RequireAdmin(h.admin, store.RoleManageGrants)).Get("/grants", h.ListGrants)
		r.With(middleware.RequireAdmin(h.admin, store.RoleManageGrants)).Get("/grants/{id}", h.GetGrant)
		r.With(middleware.RequireAdmin(h.admin, store.RoleManageGrants)).Post("/grants/{id}/approve", h.ApproveGrant)
		r.With(middleware.RequireAdmin(h.admin, store.RoleManageGrants)).Post("/grants/{id}/reject", h.RejectGrant)
		r.With(middleware.RequireAdmin(h.admin, store.RoleManageGrants)).Post("/credits", h.AdminCredit)
		r.With(middleware.RequireAdmin(h.admin, store.RoleViewLedger)).Get("/ledger", h.ListLedger)
		r.With(middleware.RequireAdmin(h.admin, store.RoleViewLedger)).Get("/supply-audit", h.RunSupplyAudit)
		r.With(middleware.RequireAdmin(h.admin, store.RoleViewLedger)).Get("/transactions", h.AdminListTransactions)
		r.With(middleware.RequireAdmin(h.admin, store.RoleViewLedger)).Get("/audit", h.ListAuditLogs)
		r.With(middleware.RequireAdmin(h.admin, "")).Post("/users/{id}/phone-verified", h.MarkPhoneVerified)
		r.With(middleware.RequireAdmin(h.admin, "")).Post("/roles/grant", h.GrantRole)
		r.With(middleware.RequireAdmin(h.admin, "")).Post("/promote", h.PromoteAdmin)
		r.With(middleware.RequireAdmin(h.admin, "")).Post("/wallets/{id}/erase", h.EraseWallet)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
