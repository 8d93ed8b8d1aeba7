package constdef

const (
	MinUserRefLength  = 1
	MaxUserRefLength  = 100
	MaxAssetRefLength = 100
)

// Tier table shape.  Every pool carries exactly TierNum lockup tiers with
// strictly increasing durations.
const (
	TierNum = 3

	// Default tier durations used by batchupdateasset, in seconds.
	ThirtyDayDuration = 30 * 24 * 60 * 60
	SixtyDayDuration  = 60 * 24 * 60 * 60
	YearlyDuration    = 365 * 24 * 60 * 60
)

const (
	// MaxBatchPoolNum bounds one batchupdateasset call.
	MaxBatchPoolNum = 100

	// MaxStakeItemNum bounds the number of items in one stake call.
	MaxStakeItemNum = 500
)
