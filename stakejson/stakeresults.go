package stakejson

// VersionResult models a version description returned by the version command.
type VersionResult struct {
	VersionString string `json:"version_string"`
}

// TierResult models one lockup tier of a pool.
type TierResult struct {
	Duration int64 `json:"duration"`
	Bonus    int64 `json:"bonus"`
}

// AssetDataResult models the data returned by the getassetdata command.
type AssetDataResult struct {
	PoolID     uint64       `json:"pool_id"`
	AssetRef   string       `json:"asset_ref"`
	RewardRate int64        `json:"reward_rate"`
	Tiers      []TierResult `json:"tiers"`
	Liquidated bool         `json:"liquidated"`
}

// BatchUpdateAssetResult models the data returned by the batchupdateasset
// command.  Pool IDs are reported in submission order.
type BatchUpdateAssetResult struct {
	PoolIDs []uint64 `json:"pool_ids"`
}

// UserInfoResult models the data returned by the getuserinfo command.
// RewardSoFar includes both the settled pending balance and the accrual
// since the last settlement checkpoint.
type UserInfoResult struct {
	ItemIDs     []uint64 `json:"item_ids"`
	RewardSoFar int64    `json:"reward_so_far"`
	Checkpoint  int64    `json:"checkpoint"`
}

// CalculateRewardResult models the data returned by the calculatereward
// command.
type CalculateRewardResult struct {
	Reward int64 `json:"reward"`
	At     int64 `json:"at"`
}

// WithdrawRewardResult models the data returned by the withdrawreward
// command.
type WithdrawRewardResult struct {
	Settled   int64 `json:"settled"`
	Withdrawn int64 `json:"withdrawn"`
	Remainder int64 `json:"remainder"`
}

// LiquidateAssetResult models the data returned by the liquidateasset
// command.
type LiquidateAssetResult struct {
	Success bool `json:"success"`
}

// StakeResult models the data returned by the stake command.
type StakeResult struct {
	Success bool `json:"success"`
}

// UnstakeResult models the data returned by the unstake command.
type UnstakeResult struct {
	Success bool `json:"success"`
}

// GetPoolNumResult models the data returned by the getpoolnum command.
type GetPoolNumResult struct {
	PoolNum int `json:"pool_num"`
}

// GetStatusResult models the data returned by the getstatus command.
type GetStatusResult struct {
	PoolNum         int   `json:"pool_num"`
	LiquidatedNum   int   `json:"liquidated_num"`
	StakedItemNum   int   `json:"staked_item_num"`
	ActiveRecordNum int   `json:"active_record_num"`
	ServerTime      int64 `json:"server_time"`
}
