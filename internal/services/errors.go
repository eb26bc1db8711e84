package services

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidOrigin        = errors.New("invalid origin")
	ErrSelfTransfer         = errors.New("cannot transfer to self")
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrTransferNotFound     = errors.New("transfer not found")
	ErrGrantNotFound        = errors.New("grant request not found")
	ErrNotParticipant       = errors.New("actor is not a party to this transfer")
	ErrDuplicateApproval    = errors.New("admin already approved this grant")
	ErrGrantNotPending      = errors.New("grant request is not awaiting approval")
	ErrNotVerified          = errors.New("game result not verified")
	ErrAlreadyClaimed       = errors.New("reward already claimed")
	ErrAlreadyVerified      = errors.New("wallet is already verified or above")
	ErrEscrowOutstanding    = errors.New("wallet has diamonds escrowed in pending transfers")
	ErrPrerequisiteFailed   = errors.New("verification prerequisite not met")
	ErrConcurrencyExhausted = errors.New("transaction conflicts exhausted retries")
)

// Policy rules surfaced to callers together with the limit that was hit and
// how much headroom was left.
const (
	RuleEarningCap          = "daily_earning_cap"
	RuleTransferLimit       = "daily_transfer_limit"
	RuleReceiveLimit        = "daily_receive_limit"
	RuleTransferNotAllowed  = "transfer_not_permitted"
	RuleInsufficientBalance = "insufficient_balance"
)

// PolicyError reports which tier rule rejected the operation.
type PolicyError struct {
	Rule      string
	Limit     int64
	Remaining int64
}

func (e *PolicyError) Error() string {
	switch e.Rule {
	case RuleTransferNotAllowed:
		return "transfers are not permitted for this tier"
	case RuleInsufficientBalance:
		return fmt.Sprintf("insufficient balance: %d available", e.Remaining)
	default:
		return fmt.Sprintf("%s exceeded: limit %d, remaining %d", e.Rule, e.Limit, e.Remaining)
	}
}

// IsPolicyViolation reports whether err is a tier policy rejection.
func IsPolicyViolation(err error) bool {
	var policyErr *PolicyError
	return errors.As(err, &policyErr)
}
