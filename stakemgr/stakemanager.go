package stakemgr

import (
	"sync"

	"github.com/stakesuite/nft-stakepool-server/constdef"
	"github.com/stakesuite/nft-stakepool-server/model"
	"github.com/stakesuite/nft-stakepool-server/poolmgr"
	"github.com/stakesuite/nft-stakepool-server/stakejson"
)

// StakeManager is the authoritative in-memory ledger of which items each
// holder has staked into each pool, plus the per-holder pending reward
// balance.  It validates deposits and withdrawals against the pool registry
// but performs no custody calls itself.
type StakeManager struct {
	mtx      sync.RWMutex
	registry *poolmgr.PoolManager

	// records[assetRef][userRef]
	records map[string]map[string]*model.StakeRecord

	// known marks every (asset, user) pair that has ever held a record, so
	// reward queries can distinguish an emptied record from one that never
	// existed.
	known map[string]map[string]struct{}

	stakedItemNum int
}

func NewStakeManager(registry *poolmgr.PoolManager) *StakeManager {
	return &StakeManager{
		registry: registry,
		records:  make(map[string]map[string]*model.StakeRecord),
		known:    make(map[string]map[string]struct{}),
	}
}

// CheckDeposit validates a deposit batch without recording anything.  It is
// used by the service layer to reject a request before the custody transfer
// is attempted.
func (m *StakeManager) CheckDeposit(assetRef, userRef string, itemIDs []uint64) error {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.checkDeposit(assetRef, userRef, itemIDs)
}

func (m *StakeManager) checkDeposit(assetRef, userRef string, itemIDs []uint64) error {
	if len(itemIDs) == 0 || len(itemIDs) > constdef.MaxStakeItemNum {
		return stakejson.ErrInvalidRequestParams
	}

	liquidated, err := m.registry.IsLiquidated(assetRef)
	if err != nil {
		return err
	}
	if liquidated {
		return stakejson.ErrPoolLiquidated
	}

	seen := make(map[uint64]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, ok := seen[id]; ok {
			return stakejson.ErrDuplicateItem
		}
		seen[id] = struct{}{}
	}

	// An item already staked by anyone in this pool cannot be deposited
	// again.
	for _, record := range m.records[assetRef] {
		for _, id := range itemIDs {
			if record.HasItem(id) {
				return stakejson.ErrDuplicateItem
			}
		}
	}
	return nil
}

// RecordDeposit appends the given items to the holder's record in arrival
// order, stamping each with the deposit time.  The whole batch is validated
// again under the write lock so either every item is recorded or none is.
func (m *StakeManager) RecordDeposit(assetRef, userRef string, itemIDs []uint64, timestamp int64) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if err := m.checkDeposit(assetRef, userRef, itemIDs); err != nil {
		return err
	}

	users, ok := m.records[assetRef]
	if !ok {
		users = make(map[string]*model.StakeRecord)
		m.records[assetRef] = users
	}
	record, ok := users[userRef]
	if !ok {
		record = &model.StakeRecord{
			AssetRef: assetRef,
			UserRef:  userRef,
		}
		users[userRef] = record
	}

	for _, id := range itemIDs {
		record.Items = append(record.Items, &model.StakedItem{
			ItemID:     id,
			StakeTime:  timestamp,
			Checkpoint: timestamp,
		})
	}
	m.stakedItemNum += len(itemIDs)
	m.markKnown(assetRef, userRef)

	log.Debugf("Recorded deposit of %v item(s) into pool %v for user %v", len(itemIDs), assetRef, userRef)
	return nil
}

// CheckWithdrawal validates a single-item withdrawal without recording it.
func (m *StakeManager) CheckWithdrawal(assetRef, userRef string, itemID uint64) error {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.checkWithdrawal(assetRef, userRef, itemID)
}

func (m *StakeManager) checkWithdrawal(assetRef, userRef string, itemID uint64) error {
	liquidated, err := m.registry.IsLiquidated(assetRef)
	if err != nil {
		return err
	}
	if liquidated {
		return stakejson.ErrPoolLiquidated
	}

	record, ok := m.records[assetRef][userRef]
	if !ok || !record.HasItem(itemID) {
		return stakejson.ErrItemNotStaked
	}
	return nil
}

// RecordWithdrawal removes one item from the holder's record.  The relative
// order of the remaining items is preserved.
func (m *StakeManager) RecordWithdrawal(assetRef, userRef string, itemID uint64) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if err := m.checkWithdrawal(assetRef, userRef, itemID); err != nil {
		return err
	}

	record := m.records[assetRef][userRef]
	for i, item := range record.Items {
		if item.ItemID == itemID {
			record.Items = append(record.Items[:i], record.Items[i+1:]...)
			break
		}
	}
	m.stakedItemNum--

	log.Debugf("Recorded withdrawal of item %v from pool %v for user %v", itemID, assetRef, userRef)
	return nil
}

// Record returns a copy of the holder's record and whether the pair has
// ever held one.  An emptied record is still reported as known.
func (m *StakeManager) Record(assetRef, userRef string) (*model.StakeRecord, bool) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	if record, ok := m.records[assetRef][userRef]; ok {
		return record.Clone(), true
	}
	if _, ok := m.known[assetRef][userRef]; ok {
		return &model.StakeRecord{AssetRef: assetRef, UserRef: userRef}, true
	}
	return nil, false
}

// GetUserInfo returns a read-only summary of the holder's stake in one
// pool.  It never fails: an unknown pair yields an empty summary.
func (m *StakeManager) GetUserInfo(assetRef, userRef string) *model.UserStakeInfo {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	info := &model.UserStakeInfo{
		AssetRef: assetRef,
		UserRef:  userRef,
		ItemIDs:  []uint64{},
	}
	record, ok := m.records[assetRef][userRef]
	if !ok {
		return info
	}
	info.ItemIDs = record.ItemIDs()
	info.RewardSoFar = record.Pending
	info.Checkpoint = record.LastSettled
	return info
}

// ApplySettlement folds an accrual computed by the reward engine into the
// holder's record: every item checkpoint is advanced to upTo and the total
// is credited to the pending balance.  Item stake times are never touched.
func (m *StakeManager) ApplySettlement(assetRef, userRef string, upTo int64, total int64) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	record, ok := m.records[assetRef][userRef]
	if !ok {
		if _, known := m.known[assetRef][userRef]; !known {
			return stakejson.ErrUnknownUser
		}
		users, ok := m.records[assetRef]
		if !ok {
			users = make(map[string]*model.StakeRecord)
			m.records[assetRef] = users
		}
		record = &model.StakeRecord{AssetRef: assetRef, UserRef: userRef}
		users[userRef] = record
	}

	for _, item := range record.Items {
		if item.Checkpoint < upTo {
			item.Checkpoint = upTo
		}
	}
	record.Pending += total
	if record.LastSettled < upTo {
		record.LastSettled = upTo
	}
	return nil
}

// DebitPending deducts amount from the holder's pending reward balance.
func (m *StakeManager) DebitPending(assetRef, userRef string, amount int64) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	record, ok := m.records[assetRef][userRef]
	if !ok || record.Pending < amount {
		return stakejson.ErrInsufficientReward
	}
	record.Pending -= amount
	return nil
}

// StakedItemNum returns the number of items currently staked across all
// pools.
func (m *StakeManager) StakedItemNum() int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.stakedItemNum
}

// ActiveRecordNum returns the number of (pool, holder) records that
// currently hold at least one item or a positive pending balance.
func (m *StakeManager) ActiveRecordNum() int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	cnt := 0
	for _, users := range m.records {
		for _, record := range users {
			if len(record.Items) > 0 || record.Pending > 0 {
				cnt++
			}
		}
	}
	return cnt
}

// Load seeds the ledger from persisted records during warm start.
func (m *StakeManager) Load(records []*model.StakeRecord) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	for _, record := range records {
		if record == nil {
			continue
		}
		users, ok := m.records[record.AssetRef]
		if !ok {
			users = make(map[string]*model.StakeRecord)
			m.records[record.AssetRef] = users
		}
		if old, ok := users[record.UserRef]; ok {
			m.stakedItemNum -= len(old.Items)
		}
		users[record.UserRef] = record.Clone()
		m.stakedItemNum += len(record.Items)
		m.markKnown(record.AssetRef, record.UserRef)
	}
}

func (m *StakeManager) markKnown(assetRef, userRef string) {
	users, ok := m.known[assetRef]
	if !ok {
		users = make(map[string]struct{})
		m.known[assetRef] = users
	}
	users[userRef] = struct{}{}
}
