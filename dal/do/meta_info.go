package do

import "time"

// MetaInfo is a single-row table of server-wide counters.
type MetaInfo struct {
	ID uint64 `gorm:"primaryKey"`
	// TotalSettled is the cumulative settled reward across all pools.
	TotalSettled int64 `gorm:"not null;default:0"`
	// TotalWithdrawn is the cumulative reward paid out through the value
	// transfer collaborator.
	TotalWithdrawn int64 `gorm:"not null;default:0"`
	LastSettledAt  int64 `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
