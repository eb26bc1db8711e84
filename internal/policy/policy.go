package policy

// Tier identifies a user's trust level. Limits grow monotonically from
// basic to ambassador.
type Tier string

const (
	TierBasic      Tier = "basic"
	TierVerified   Tier = "verified"
	TierTrusted    Tier = "trusted"
	TierLeader     Tier = "leader"
	TierAmbassador Tier = "ambassador"
)

// Unlimited is the sentinel for cap/limit fields that are not enforced.
const Unlimited int64 = -1

// VerificationFee is the one-time burn charged for the basic -> verified
// upgrade.
const VerificationFee int64 = 100

type Limits struct {
	DailyEarningCap    int64
	DailyTransferLimit int64
	DailyReceiveLimit  int64
	CanTransfer        bool
}

var limitsByTier = map[Tier]Limits{
	TierBasic:      {DailyEarningCap: 100, DailyTransferLimit: 0, DailyReceiveLimit: 200, CanTransfer: false},
	TierVerified:   {DailyEarningCap: 500, DailyTransferLimit: 1000, DailyReceiveLimit: 2000, CanTransfer: true},
	TierTrusted:    {DailyEarningCap: 2000, DailyTransferLimit: 5000, DailyReceiveLimit: 10000, CanTransfer: true},
	TierLeader:     {DailyEarningCap: 10000, DailyTransferLimit: 20000, DailyReceiveLimit: 50000, CanTransfer: true},
	TierAmbassador: {DailyEarningCap: Unlimited, DailyTransferLimit: Unlimited, DailyReceiveLimit: Unlimited, CanTransfer: true},
}

// ForTier returns the limits for a tier. Unknown tiers fall back to basic so
// a corrupt wallet row never gains privileges.
func ForTier(tier Tier) Limits {
	limits, ok := limitsByTier[tier]
	if !ok {
		return limitsByTier[TierBasic]
	}
	return limits
}

func IsValid(tier Tier) bool {
	_, ok := limitsByTier[tier]
	return ok
}

// WithinCap reports whether adding amount to used stays within limit,
// honoring the Unlimited sentinel.
func WithinCap(used, amount, limit int64) bool {
	if limit == Unlimited {
		return true
	}
	return used+amount <= limit
}

// Remaining returns how much of limit is left given used; Unlimited limits
// return Unlimited.
func Remaining(used, limit int64) int64 {
	if limit == Unlimited {
		return Unlimited
	}
	remaining := limit - used
	if remaining < 0 {
		return 0
	}
	return remaining
}
