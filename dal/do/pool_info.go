package do

import "time"

// PoolInfo is the durable record of one pool configuration.  The in-memory
// registry is authoritative at run time; these rows are write-through
// bookkeeping and warm-start state.
type PoolInfo struct {
	// ID is the pool id assigned by the registry in submission order, not
	// a database auto-increment.
	ID            uint64 `gorm:"primaryKey;autoIncrement:false"`
	AssetRef      string `gorm:"uniqueIndex:unique_idx_asset_ref;type:varchar(100);not null"`
	RewardRate    int64  `gorm:"not null;default:0"`
	TierDuration1 int64  `gorm:"not null;default:0"`
	TierDuration2 int64  `gorm:"not null;default:0"`
	TierDuration3 int64  `gorm:"not null;default:0"`
	TierBonus1    int64  `gorm:"not null;default:0"`
	TierBonus2    int64  `gorm:"not null;default:0"`
	TierBonus3    int64  `gorm:"not null;default:0"`
	Liquidated    bool   `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
