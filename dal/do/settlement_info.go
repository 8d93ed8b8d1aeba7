package do

import "time"

// SettlementInfo is one settlement audit row: the reward amount realized
// for a (pool, user) pair at SettledAt, together with a fingerprint of the
// item set the settlement covered.
type SettlementInfo struct {
	ID       uint64 `gorm:"primaryKey"`
	AssetRef string `gorm:"index:idx_settle_asset_user;type:varchar(100);not null"`
	UserRef  string `gorm:"index:idx_settle_asset_user;type:varchar(100);not null"`
	// Amount is the total settled balance after this settlement.
	Amount int64 `gorm:"not null;default:0"`
	// Withdrawn is the portion of Amount paid out through the value
	// transfer collaborator in the same operation, zero for settlements
	// triggered by unstaking.
	Withdrawn   int64  `gorm:"not null;default:0"`
	SettledAt   int64  `gorm:"not null;default:0"`
	Fingerprint string `gorm:"type:varchar(64);not null"`
	CreatedAt   time.Time
}
