package do

import "time"

// StakedItemInfo is the durable record of one currently staked collateral
// item.  The row is deleted when the item is withdrawn; the settlement
// history keeps the long-term trace.
type StakedItemInfo struct {
	ID       uint64 `gorm:"primaryKey"`
	AssetRef string `gorm:"index:idx_asset_user;uniqueIndex:unique_idx_asset_item;type:varchar(100);not null"`
	UserRef  string `gorm:"index:idx_asset_user;type:varchar(100);not null"`
	ItemID   uint64 `gorm:"uniqueIndex:unique_idx_asset_item;not null"`
	// StakeTime is the unix time the item entered the pool; never reset.
	StakeTime int64 `gorm:"not null;default:0"`
	// Checkpoint is the unix time of the last settlement covering the item.
	Checkpoint int64 `gorm:"not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
