package stakejson

// VersionCmd defines the version JSON-RPC command.
type VersionCmd struct{}

// NewVersionCmd returns a new instance which can be used to issue a JSON-RPC
// version command.
func NewVersionCmd() *VersionCmd { return new(VersionCmd) }

// BatchUpdateAssetCmd defines the batchupdateasset JSON-RPC command.  All
// slices must have equal length; entry i configures the pool for asset_refs[i].
type BatchUpdateAssetCmd struct {
	AssetRefs     []string `json:"asset_refs"`
	RewardRates   []int64  `json:"reward_rates"`
	ThirtyBonuses []int64  `json:"thirty_bonuses"`
	SixtyBonuses  []int64  `json:"sixty_bonuses"`
	YearlyBonuses []int64  `json:"yearly_bonuses"`
}

// NewBatchUpdateAssetCmd returns a new instance which can be used to issue a
// batchupdateasset JSON-RPC command.
func NewBatchUpdateAssetCmd(assetRefs []string, rewardRates, thirty, sixty, yearly []int64) *BatchUpdateAssetCmd {
	return &BatchUpdateAssetCmd{
		AssetRefs:     assetRefs,
		RewardRates:   rewardRates,
		ThirtyBonuses: thirty,
		SixtyBonuses:  sixty,
		YearlyBonuses: yearly,
	}
}

// LiquidateAssetCmd defines the liquidateasset JSON-RPC command.
type LiquidateAssetCmd struct {
	AssetRef string `json:"asset_ref"`
	Flag     bool   `json:"flag"`
}

func NewLiquidateAssetCmd(assetRef string, flag bool) *LiquidateAssetCmd {
	return &LiquidateAssetCmd{
		AssetRef: assetRef,
		Flag:     flag,
	}
}

// StakeCmd defines the stake JSON-RPC command.
type StakeCmd struct {
	AssetRef string   `json:"asset_ref"`
	UserRef  string   `json:"user_ref"`
	ItemIDs  []uint64 `json:"item_ids"`
}

func NewStakeCmd(assetRef string, userRef string, itemIDs []uint64) *StakeCmd {
	return &StakeCmd{
		AssetRef: assetRef,
		UserRef:  userRef,
		ItemIDs:  itemIDs,
	}
}

// UnstakeCmd defines the unstake JSON-RPC command.
type UnstakeCmd struct {
	AssetRef string `json:"asset_ref"`
	UserRef  string `json:"user_ref"`
	ItemID   uint64 `json:"item_id"`
}

func NewUnstakeCmd(assetRef string, userRef string, itemID uint64) *UnstakeCmd {
	return &UnstakeCmd{
		AssetRef: assetRef,
		UserRef:  userRef,
		ItemID:   itemID,
	}
}

// WithdrawRewardCmd defines the withdrawreward JSON-RPC command.
type WithdrawRewardCmd struct {
	AssetRef string `json:"asset_ref"`
	UserRef  string `json:"user_ref"`
	Amount   int64  `json:"amount"`
}

func NewWithdrawRewardCmd(assetRef string, userRef string, amount int64) *WithdrawRewardCmd {
	return &WithdrawRewardCmd{
		AssetRef: assetRef,
		UserRef:  userRef,
		Amount:   amount,
	}
}

// GetAssetDataCmd defines the getassetdata JSON-RPC command.
type GetAssetDataCmd struct {
	AssetRef string `json:"asset_ref"`
}

func NewGetAssetDataCmd(assetRef string) *GetAssetDataCmd {
	return &GetAssetDataCmd{
		AssetRef: assetRef,
	}
}

// GetUserInfoCmd defines the getuserinfo JSON-RPC command.
type GetUserInfoCmd struct {
	AssetRef string `json:"asset_ref"`
	UserRef  string `json:"user_ref"`
}

func NewGetUserInfoCmd(assetRef string, userRef string) *GetUserInfoCmd {
	return &GetUserInfoCmd{
		AssetRef: assetRef,
		UserRef:  userRef,
	}
}

// CalculateRewardCmd defines the calculatereward JSON-RPC command.
type CalculateRewardCmd struct {
	AssetRef string `json:"asset_ref"`
	UserRef  string `json:"user_ref"`
}

func NewCalculateRewardCmd(assetRef string, userRef string) *CalculateRewardCmd {
	return &CalculateRewardCmd{
		AssetRef: assetRef,
		UserRef:  userRef,
	}
}

// GetPoolNumCmd defines the getpoolnum JSON-RPC command.
type GetPoolNumCmd struct{}

func NewGetPoolNumCmd() *GetPoolNumCmd {
	return &GetPoolNumCmd{}
}

// GetStatusCmd defines the getstatus JSON-RPC command.
type GetStatusCmd struct{}

func NewGetStatusCmd() *GetStatusCmd {
	return &GetStatusCmd{}
}

// AuthenticateCmd defines the authenticate JSON-RPC command.  It is the
// first message of an unauthenticated websocket client.
type AuthenticateCmd struct {
	Username   string `json:"username"`
	Passphrase string `json:"passphrase"`
}

func NewAuthenticateCmd(username string, passphrase string) *AuthenticateCmd {
	return &AuthenticateCmd{
		Username:   username,
		Passphrase: passphrase,
	}
}

func init() {
	MustRegisterCmd("version", (*VersionCmd)(nil))
	MustRegisterCmd("authenticate", (*AuthenticateCmd)(nil))

	MustRegisterCmd("batchupdateasset", (*BatchUpdateAssetCmd)(nil))
	MustRegisterCmd("liquidateasset", (*LiquidateAssetCmd)(nil))

	MustRegisterCmd("stake", (*StakeCmd)(nil))
	MustRegisterCmd("unstake", (*UnstakeCmd)(nil))
	MustRegisterCmd("withdrawreward", (*WithdrawRewardCmd)(nil))

	MustRegisterCmd("getassetdata", (*GetAssetDataCmd)(nil))
	MustRegisterCmd("getuserinfo", (*GetUserInfoCmd)(nil))
	MustRegisterCmd("calculatereward", (*CalculateRewardCmd)(nil))
	MustRegisterCmd("getpoolnum", (*GetPoolNumCmd)(nil))
	MustRegisterCmd("getstatus", (*GetStatusCmd)(nil))
}
