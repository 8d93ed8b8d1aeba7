package model

import "github.com/stakesuite/nft-stakepool-server/constdef"

// StakeConfig carries the reward defaults the server was started with.
// Per-pool configuration submitted through batchupdateasset overrides these
// for the pools it names.
type StakeConfig struct {
	// DefaultRewardRate is used for status reporting only; every pool
	// carries its own rate.
	DefaultRewardRate int64

	// TierDurations are the durations applied by batchupdateasset, which
	// only submits per-tier bonus rates.
	TierDurations [constdef.TierNum]int64
}

// DefaultTierDurations returns the standard 30-day/60-day/yearly lockup
// tiers.
func DefaultTierDurations() [constdef.TierNum]int64 {
	return [constdef.TierNum]int64{
		constdef.ThirtyDayDuration,
		constdef.SixtyDayDuration,
		constdef.YearlyDuration,
	}
}
