package models

import (
	"time"

	"diamonds/internal/policy"
)

type User struct {
	ID            string    `db:"id" json:"id"`
	Username      string    `db:"username" json:"username"`
	Email         string    `db:"email" json:"email"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	PhoneVerified bool      `db:"phone_verified" json:"phone_verified"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Ledger entry types.
const (
	EntryEarn        = "earn"
	EntryTransferOut = "transfer_out"
	EntryTransferIn  = "transfer_in"
	EntryBurn        = "burn"
	EntryGrant       = "grant"
)

// Diamond origins, the governance-weight basis tracked per wallet.
const (
	OriginPurchase    = "purchase"
	OriginGameplayWin = "gameplay_win"
	OriginDailyLogin  = "daily_login"
	OriginAchievement = "achievement"
	OriginReferral    = "referral"
	OriginP2PTransfer = "p2p_transfer"
	OriginCommunity   = "community"
	OriginAdminGrant  = "admin_grant"
	OriginSignupBonus = "signup_bonus"
)

var validOrigins = map[string]struct{}{
	OriginPurchase:    {},
	OriginGameplayWin: {},
	OriginDailyLogin:  {},
	OriginAchievement: {},
	OriginReferral:    {},
	OriginP2PTransfer: {},
	OriginCommunity:   {},
	OriginAdminGrant:  {},
	OriginSignupBonus: {},
}

func IsValidOrigin(origin string) bool {
	_, ok := validOrigins[origin]
	return ok
}

type Wallet struct {
	UserID           string      `db:"user_id" json:"user_id"`
	Balance          int64       `db:"balance" json:"balance"`
	EscrowedBalance  int64       `db:"escrowed_balance" json:"escrowed_balance"`
	DailyEarned      int64       `db:"daily_earned" json:"daily_earned"`
	DailyTransferred int64       `db:"daily_transferred" json:"daily_transferred"`
	DailyReceived    int64       `db:"daily_received" json:"daily_received"`
	Tier             policy.Tier `db:"tier" json:"tier"`
	LastDailyLogin   *time.Time  `db:"last_daily_login" json:"last_daily_login,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

type LedgerEntry struct {
	ID             string    `db:"id" json:"id"`
	SequenceNumber int64     `db:"sequence_number" json:"sequence_number"`
	Type           string    `db:"type" json:"type"`
	FromUserID     *string   `db:"from_user_id" json:"from_user_id,omitempty"`
	ToUserID       *string   `db:"to_user_id" json:"to_user_id,omitempty"`
	Amount         int64     `db:"amount" json:"amount"`
	Origin         string    `db:"origin" json:"origin"`
	Reason         string    `db:"reason" json:"reason"`
	PreviousHash   string    `db:"previous_hash" json:"previous_hash"`
	AuditHash      string    `db:"audit_hash" json:"audit_hash"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Grant request statuses.
const (
	GrantPendingApproval = "pending_approval"
	GrantApproved        = "approved"
	GrantCoolingPeriod   = "cooling_period"
	GrantExecuted        = "executed"
	GrantRejected        = "rejected"
)

type GrantRequest struct {
	ID                string     `db:"id" json:"id"`
	TargetUserID      string     `db:"target_user_id" json:"target_user_id"`
	Amount            int64      `db:"amount" json:"amount"`
	Reason            string     `db:"reason" json:"reason"`
	Status            string     `db:"status" json:"status"`
	Approvals         []string   `db:"-" json:"approvals"`
	CoolingPeriodEnds *time.Time `db:"cooling_period_ends" json:"cooling_period_ends,omitempty"`
	CreatedBy         string     `db:"created_by" json:"created_by"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	ExecutedAt        *time.Time `db:"executed_at" json:"executed_at,omitempty"`
}

// Transfer statuses.
const (
	TransferPending   = "pending"
	TransferCompleted = "completed"
	TransferExpired   = "expired"
	TransferCancelled = "cancelled"
)

type Transfer struct {
	ID                string     `db:"id" json:"id"`
	FromUserID        string     `db:"from_user_id" json:"from_user_id"`
	ToUserID          string     `db:"to_user_id" json:"to_user_id"`
	Amount            int64      `db:"amount" json:"amount"`
	FeeBurned         int64      `db:"fee_burned" json:"fee_burned"`
	Status            string     `db:"status" json:"status"`
	SenderConfirmed   bool       `db:"sender_confirmed" json:"sender_confirmed"`
	ReceiverConfirmed bool       `db:"receiver_confirmed" json:"receiver_confirmed"`
	ExpiresAt         time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	CompletedAt       *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
