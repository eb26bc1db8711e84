package services

import (
	"context"
	"log"

	"diamonds/internal/alert"
	"diamonds/internal/db"
	"diamonds/internal/policy"

	"github.com/jmoiron/sqlx"
)

// ReconcileService owns the scheduled housekeeping: daily limit reset, the
// supply audit, and the verified -> trusted auto-upgrade.
type ReconcileService struct {
	txRunner db.TxRunner
	wallets  WalletStore
	ledger   LedgerStore
	audit    AuditStore
	activity ActivityChecker
	alerts   alert.Sink
}

func NewReconcileService(txRunner db.TxRunner, wallets WalletStore, ledger LedgerStore, audit AuditStore, activity ActivityChecker, alerts alert.Sink) *ReconcileService {
	return &ReconcileService{
		txRunner: txRunner,
		wallets:  wallets,
		ledger:   ledger,
		audit:    audit,
		activity: activity,
		alerts:   alerts,
	}
}

// ResetDailyCounters zeroes every wallet's daily counters. Idempotent.
func (s *ReconcileService) ResetDailyCounters(ctx context.Context) (int64, error) {
	var reset int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		reset, err = s.wallets.ResetDailyCounters(ctx, tx)
		return err
	})
	if err != nil {
		return 0, mapTxErr(err)
	}
	log.Printf("daily reset: cleared counters on %d wallets", reset)
	return reset, nil
}

type SupplyAuditReport struct {
	WalletTotal int64 `json:"wallet_total"`
	LedgerTotal int64 `json:"ledger_total"`
	Difference  int64 `json:"difference"`
	ChainIntact bool  `json:"chain_intact"`
}

// SupplyAudit compares the summed wallet balances (spendable + escrow)
// against the supply the ledger chain implies, and verifies chain integrity.
// Mismatches alert only; the ledger stays ground truth for the investigation.
func (s *ReconcileService) SupplyAudit(ctx context.Context) (SupplyAuditReport, error) {
	walletTotal, err := s.wallets.TotalSupply(ctx)
	if err != nil {
		return SupplyAuditReport{}, err
	}
	ledgerTotal, err := s.ledger.SupplyDelta(ctx)
	if err != nil {
		return SupplyAuditReport{}, err
	}
	report := SupplyAuditReport{
		WalletTotal: walletTotal,
		LedgerTotal: ledgerTotal,
		Difference:  walletTotal - ledgerTotal,
		ChainIntact: true,
	}
	if chainErr := s.ledger.VerifyChain(ctx); chainErr != nil {
		report.ChainIntact = false
		if err := s.alerts.SendAlert(ctx, "ledger_chain_broken", chainErr.Error(), nil); err != nil {
			log.Printf("supply audit: alert delivery failed: %v", err)
		}
	}
	if report.Difference != 0 {
		err := s.alerts.SendAlert(ctx, "supply_mismatch", "wallet totals diverge from ledger-implied supply", map[string]any{
			"wallet_total": walletTotal,
			"ledger_total": ledgerTotal,
			"difference":   report.Difference,
		})
		if err != nil {
			log.Printf("supply audit: alert delivery failed: %v", err)
		}
	}
	return report, nil
}

// AutoUpgradeTiers promotes verified wallets that the activity collaborator
// deems eligible. One transaction per wallet, log-and-continue.
func (s *ReconcileService) AutoUpgradeTiers(ctx context.Context) (upgraded, failed int) {
	wallets, err := s.wallets.ListByTier(ctx, policy.TierVerified)
	if err != nil {
		log.Printf("tier upgrade: listing verified wallets failed: %v", err)
		return 0, 0
	}
	for _, wallet := range wallets {
		eligible, err := s.activity.IsEligibleForTrusted(ctx, wallet)
		if err != nil {
			failed++
			log.Printf("tier upgrade: eligibility check for %s failed: %v", wallet.UserID, err)
			continue
		}
		if !eligible {
			continue
		}
		err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			if err := s.wallets.SetTier(ctx, tx, wallet.UserID, policy.TierTrusted); err != nil {
				return err
			}
			return s.audit.Log(ctx, tx, "system", "tier_auto_upgrade", "wallet", wallet.UserID, `{"to":"trusted"}`)
		})
		if err != nil {
			failed++
			log.Printf("tier upgrade: promoting %s failed: %v", wallet.UserID, err)
			continue
		}
		upgraded++
	}
	if upgraded > 0 || failed > 0 {
		log.Printf("tier upgrade: promoted %d wallets (%d failures)", upgraded, failed)
	}
	return upgraded, failed
}
