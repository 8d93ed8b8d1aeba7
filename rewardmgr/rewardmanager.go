package rewardmgr

import (
	"github.com/stakesuite/nft-stakepool-server/constdef"
	"github.com/stakesuite/nft-stakepool-server/model"
	"github.com/stakesuite/nft-stakepool-server/poolmgr"
	"github.com/stakesuite/nft-stakepool-server/stakejson"
)

// RewardManager computes time-tiered reward accrual over the stake ledger.
// Accrual is deterministic in (pool config, record, timestamp); the manager
// holds no state of its own.
type RewardManager struct {
	registry *poolmgr.PoolManager
	ledger   Ledger
}

// Ledger is the slice of the stake ledger the reward engine needs.
type Ledger interface {
	Record(assetRef, userRef string) (*model.StakeRecord, bool)
	ApplySettlement(assetRef, userRef string, upTo int64, total int64) error
}

func NewRewardManager(registry *poolmgr.PoolManager, ledger Ledger) *RewardManager {
	return &RewardManager{
		registry: registry,
		ledger:   ledger,
	}
}

// CalculateReward returns the holder's total claimable reward at the given
// timestamp: the already-settled pending balance plus the unsettled accrual
// of every staked item from its checkpoint up to at.  The calculation is
// pure and leaves the ledger untouched.
func (m *RewardManager) CalculateReward(assetRef, userRef string, at int64) (int64, error) {
	pool, err := m.registry.GetPool(assetRef)
	if err != nil {
		return 0, err
	}
	record, known := m.ledger.Record(assetRef, userRef)
	if !known {
		return 0, stakejson.ErrUnknownUser
	}
	return record.Pending + accrueRecord(pool, record, at), nil
}

// Settle folds the unsettled accrual up to the given timestamp into the
// holder's pending balance, advancing every item checkpoint to upTo.  It
// returns the amount newly settled.  Settling twice at the same timestamp
// adds nothing the second time.
func (m *RewardManager) Settle(assetRef, userRef string, upTo int64) (int64, error) {
	pool, err := m.registry.GetPool(assetRef)
	if err != nil {
		return 0, err
	}
	record, known := m.ledger.Record(assetRef, userRef)
	if !known {
		return 0, stakejson.ErrUnknownUser
	}

	total := accrueRecord(pool, record, upTo)
	if err := m.ledger.ApplySettlement(assetRef, userRef, upTo, total); err != nil {
		return 0, err
	}
	if total > 0 {
		log.Debugf("Settled %v reward unit(s) for user %v in pool %v up to %v", total, userRef, assetRef, upTo)
	}
	return total, nil
}

func accrueRecord(pool *model.Pool, record *model.StakeRecord, at int64) int64 {
	var total int64
	for _, item := range record.Items {
		total += itemAccrual(pool, item, at)
	}
	return total
}

// itemAccrual integrates the item's reward rate from its checkpoint to at.
// The rate is piecewise constant: the base rate always applies, and from
// each tier threshold onward the corresponding bonus is added on top.  Tier
// thresholds are measured from the item's original stake time, which never
// moves, so partially settled items keep climbing tiers.
func itemAccrual(pool *model.Pool, item *model.StakedItem, at int64) int64 {
	from := item.Checkpoint
	if from < item.StakeTime {
		from = item.StakeTime
	}
	if at <= from {
		return 0
	}

	total := pool.RewardRate * (at - from)

	segStart := from
	for segStart < at {
		bonus := int64(0)
		segEnd := at
		for i := 0; i < constdef.TierNum; i++ {
			threshold := item.StakeTime + pool.Tiers[i].Duration
			if threshold <= segStart {
				bonus = pool.Tiers[i].Bonus
			} else if threshold < segEnd {
				segEnd = threshold
			}
		}
		total += bonus * (segEnd - segStart)
		segStart = segEnd
	}
	return total
}
