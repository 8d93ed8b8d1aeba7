package model

import (
	"github.com/stakesuite/nft-stakepool-server/constdef"
)

// Tier is one lockup tier of a pool: an item continuously staked for at
// least Duration seconds earns Bonus reward units per second on top of the
// pool's base rate, for the portion of elapsed time at or beyond Duration.
type Tier struct {
	Duration int64
	Bonus    int64
}

// Pool holds the staking configuration for one collateral asset.  Pools are
// never deleted; liquidation is the terminal soft delete.
type Pool struct {
	// ID is assigned in submission order on first configuration and is
	// stable across re-configurations.
	ID uint64

	// AssetRef is the opaque reference of the underlying collateral type.
	// It doubles as the pool key.
	AssetRef string

	// RewardRate is the base reward in units per staked item per second.
	RewardRate int64

	Tiers [constdef.TierNum]Tier

	Liquidated bool
}

// Clone returns a deep copy so callers never hold a pointer into registry
// state.
func (p *Pool) Clone() *Pool {
	cp := *p
	return &cp
}

// PoolConfig is one entry of a batch pool configuration.
type PoolConfig struct {
	AssetRef      string
	RewardRate    int64
	TierDurations [constdef.TierNum]int64
	TierBonuses   [constdef.TierNum]int64
}

// Validate reports whether the config satisfies the pool invariants: tier
// durations strictly increase and every numeric field is non-negative.
func (c *PoolConfig) Validate() bool {
	if c.AssetRef == "" || len(c.AssetRef) > constdef.MaxAssetRefLength {
		return false
	}
	if c.RewardRate < 0 {
		return false
	}
	var prev int64 = -1
	for i := 0; i < constdef.TierNum; i++ {
		if c.TierDurations[i] < 0 || c.TierBonuses[i] < 0 {
			return false
		}
		if c.TierDurations[i] <= prev {
			return false
		}
		prev = c.TierDurations[i]
	}
	return true
}
