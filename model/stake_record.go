package model

// StakedItem is one collateral item inside a stake record.  StakeTime is the
// moment the item entered the pool and is never reset; tier age is always
// measured from it.  Checkpoint is the last settlement time for the item and
// advances monotonically.
type StakedItem struct {
	ItemID     uint64
	StakeTime  int64
	Checkpoint int64
}

// StakeRecord is the per (pool, user) ledger entry: the insertion-ordered
// set of currently staked item ids plus the settled-but-unwithdrawn reward
// balance.  Records are emptied when the last item leaves, never deleted,
// so settlement state survives a full unstake.
type StakeRecord struct {
	AssetRef string
	UserRef  string
	Items    []*StakedItem

	// Pending is reward that has been settled but not withdrawn yet.
	Pending int64

	// LastSettled is the most recent settlement checkpoint applied to the
	// record as a whole, zero before the first settlement.
	LastSettled int64
}

// HasItem reports whether itemID is currently staked in the record.
func (r *StakeRecord) HasItem(itemID uint64) bool {
	for _, it := range r.Items {
		if it.ItemID == itemID {
			return true
		}
	}
	return false
}

// ItemIDs returns the staked item ids in insertion order.
func (r *StakeRecord) ItemIDs() []uint64 {
	ids := make([]uint64, 0, len(r.Items))
	for _, it := range r.Items {
		ids = append(ids, it.ItemID)
	}
	return ids
}

// Clone returns a deep copy of the record.
func (r *StakeRecord) Clone() *StakeRecord {
	cp := *r
	cp.Items = make([]*StakedItem, len(r.Items))
	for i, it := range r.Items {
		itCopy := *it
		cp.Items[i] = &itCopy
	}
	return &cp
}

// UserStakeInfo is the read-only snapshot returned to callers of
// getuserinfo.  RewardSoFar is the pending balance plus the accrual since
// each item's checkpoint.
type UserStakeInfo struct {
	AssetRef    string
	UserRef     string
	ItemIDs     []uint64
	RewardSoFar int64
	Checkpoint  int64
}
