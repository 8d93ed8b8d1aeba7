package stakejson

// Websocket notification method names.
const (
	// PoolConfiguredNtfnMethod is the method used for notifications about
	// a batch pool configuration having been applied.
	PoolConfiguredNtfnMethod = "pool_configured"

	// PoolLiquidatedNtfnMethod is the method used for notifications about
	// the liquidation flag of a pool having been toggled.
	PoolLiquidatedNtfnMethod = "pool_liquidated"
)

// PoolConfiguredNtfn defines the pool_configured JSON-RPC notification.
type PoolConfiguredNtfn struct {
	AssetRefs []string `json:"asset_refs"`
	PoolIDs   []uint64 `json:"pool_ids"`
}

// NewPoolConfiguredNtfn returns a new instance which can be used to issue a
// pool_configured JSON-RPC notification.
func NewPoolConfiguredNtfn(assetRefs []string, poolIDs []uint64) *PoolConfiguredNtfn {
	return &PoolConfiguredNtfn{
		AssetRefs: assetRefs,
		PoolIDs:   poolIDs,
	}
}

// PoolLiquidatedNtfn defines the pool_liquidated JSON-RPC notification.
type PoolLiquidatedNtfn struct {
	AssetRef string `json:"asset_ref"`
	Flag     bool   `json:"flag"`
}

// NewPoolLiquidatedNtfn returns a new instance which can be used to issue a
// pool_liquidated JSON-RPC notification.
func NewPoolLiquidatedNtfn(assetRef string, flag bool) *PoolLiquidatedNtfn {
	return &PoolLiquidatedNtfn{
		AssetRef: assetRef,
		Flag:     flag,
	}
}

func init() {
	MustRegisterCmd(PoolConfiguredNtfnMethod, (*PoolConfiguredNtfn)(nil))
	MustRegisterCmd(PoolLiquidatedNtfnMethod, (*PoolLiquidatedNtfn)(nil))
}
