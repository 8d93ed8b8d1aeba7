package stakemgr

import (
	"context"
	"testing"

	"github.com/stakesuite/nft-stakepool-server/constdef"
	"github.com/stakesuite/nft-stakepool-server/model"
	"github.com/stakesuite/nft-stakepool-server/poolmgr"
	"github.com/stakesuite/nft-stakepool-server/stakejson"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T, assetRefs ...string) (*poolmgr.PoolManager, *StakeManager) {
	t.Helper()
	registry := poolmgr.NewPoolManager()
	configs := make([]*model.PoolConfig, 0, len(assetRefs))
	for _, ref := range assetRefs {
		configs = append(configs, &model.PoolConfig{
			AssetRef:      ref,
			RewardRate:    2,
			TierDurations: [constdef.TierNum]int64{100, 200, 1000},
			TierBonuses:   [constdef.TierNum]int64{3, 5, 11},
		})
	}
	_, err := registry.ConfigurePools(context.Background(), configs, nil)
	require.NoError(t, err)
	return registry, NewStakeManager(registry)
}

func TestCheckDeposit(t *testing.T) {
	registry, m := newTestLedger(t, "nft:apes")

	t.Run("empty_batch", func(t *testing.T) {
		err := m.CheckDeposit("nft:apes", "alice", nil)
		assert.Equal(t, stakejson.ErrInvalidRequestParams, err)
	})

	t.Run("oversize_batch", func(t *testing.T) {
		ids := make([]uint64, constdef.MaxStakeItemNum+1)
		for i := range ids {
			ids[i] = uint64(i)
		}
		err := m.CheckDeposit("nft:apes", "alice", ids)
		assert.Equal(t, stakejson.ErrInvalidRequestParams, err)
	})

	t.Run("unknown_pool", func(t *testing.T) {
		err := m.CheckDeposit("nft:rocks", "alice", []uint64{1})
		assert.Equal(t, stakejson.ErrPoolNotFound, err)
	})

	t.Run("duplicate_in_batch", func(t *testing.T) {
		err := m.CheckDeposit("nft:apes", "alice", []uint64{1, 2, 1})
		assert.Equal(t, stakejson.ErrDuplicateItem, err)
	})

	t.Run("already_staked_by_other_user", func(t *testing.T) {
		require.NoError(t, m.RecordDeposit("nft:apes", "bob", []uint64{7}, 1000))
		err := m.CheckDeposit("nft:apes", "alice", []uint64{7})
		assert.Equal(t, stakejson.ErrDuplicateItem, err)
	})

	t.Run("liquidated_pool", func(t *testing.T) {
		require.NoError(t, registry.SetLiquidated("nft:apes", true))
		err := m.CheckDeposit("nft:apes", "alice", []uint64{1})
		assert.Equal(t, stakejson.ErrPoolLiquidated, err)
		assert.EqualError(t, err, "liquidate")
		require.NoError(t, registry.SetLiquidated("nft:apes", false))
	})
}

func TestRecordDepositAndWithdrawal(t *testing.T) {
	_, m := newTestLedger(t, "nft:apes")

	require.NoError(t, m.RecordDeposit("nft:apes", "alice", []uint64{3, 1, 2}, 1000))
	assert.Equal(t, 3, m.StakedItemNum())

	info := m.GetUserInfo("nft:apes", "alice")
	assert.Equal(t, []uint64{3, 1, 2}, info.ItemIDs)

	// Withdrawing the middle item preserves the order of the rest.
	require.NoError(t, m.RecordWithdrawal("nft:apes", "alice", 1))
	info = m.GetUserInfo("nft:apes", "alice")
	assert.Equal(t, []uint64{3, 2}, info.ItemIDs)
	assert.Equal(t, 2, m.StakedItemNum())

	err := m.CheckWithdrawal("nft:apes", "alice", 1)
	assert.Equal(t, stakejson.ErrItemNotStaked, err)
	err = m.CheckWithdrawal("nft:apes", "bob", 3)
	assert.Equal(t, stakejson.ErrItemNotStaked, err)
}

func TestCheckWithdrawalLiquidatedWins(t *testing.T) {
	registry, m := newTestLedger(t, "nft:apes")
	require.NoError(t, m.RecordDeposit("nft:apes", "alice", []uint64{1}, 1000))
	require.NoError(t, registry.SetLiquidated("nft:apes", true))

	// A liquidated pool rejects the withdrawal before the item is even
	// looked up, for staked and unstaked items alike.
	err := m.CheckWithdrawal("nft:apes", "alice", 1)
	assert.Equal(t, stakejson.ErrPoolLiquidated, err)
	err = m.CheckWithdrawal("nft:apes", "alice", 99)
	assert.Equal(t, stakejson.ErrPoolLiquidated, err)
}

func TestApplySettlement(t *testing.T) {
	_, m := newTestLedger(t, "nft:apes")
	require.NoError(t, m.RecordDeposit("nft:apes", "alice", []uint64{1, 2}, 1000))

	require.NoError(t, m.ApplySettlement("nft:apes", "alice", 1500, 700))

	record, known := m.Record("nft:apes", "alice")
	require.True(t, known)
	assert.Equal(t, int64(700), record.Pending)
	assert.Equal(t, int64(1500), record.LastSettled)
	for _, item := range record.Items {
		assert.Equal(t, int64(1500), item.Checkpoint)
		// Stake times are never touched by settlement.
		assert.Equal(t, int64(1000), item.StakeTime)
	}

	t.Run("unknown_user", func(t *testing.T) {
		err := m.ApplySettlement("nft:apes", "bob", 1500, 1)
		assert.Equal(t, stakejson.ErrUnknownUser, err)
	})

	t.Run("known_user_with_emptied_record", func(t *testing.T) {
		require.NoError(t, m.RecordDeposit("nft:apes", "carol", []uint64{9}, 1000))
		require.NoError(t, m.RecordWithdrawal("nft:apes", "carol", 9))
		require.NoError(t, m.ApplySettlement("nft:apes", "carol", 2000, 50))

		record, known := m.Record("nft:apes", "carol")
		require.True(t, known)
		assert.Empty(t, record.Items)
		assert.Equal(t, int64(50), record.Pending)
	})
}

func TestDebitPending(t *testing.T) {
	_, m := newTestLedger(t, "nft:apes")
	require.NoError(t, m.RecordDeposit("nft:apes", "alice", []uint64{1}, 1000))
	require.NoError(t, m.ApplySettlement("nft:apes", "alice", 1500, 100))

	err := m.DebitPending("nft:apes", "alice", 101)
	assert.Equal(t, stakejson.ErrInsufficientReward, err)
	err = m.DebitPending("nft:apes", "bob", 1)
	assert.Equal(t, stakejson.ErrInsufficientReward, err)

	require.NoError(t, m.DebitPending("nft:apes", "alice", 60))
	record, _ := m.Record("nft:apes", "alice")
	assert.Equal(t, int64(40), record.Pending)
}

func TestActiveRecordNum(t *testing.T) {
	_, m := newTestLedger(t, "nft:apes")
	assert.Equal(t, 0, m.ActiveRecordNum())

	require.NoError(t, m.RecordDeposit("nft:apes", "alice", []uint64{1}, 1000))
	require.NoError(t, m.RecordDeposit("nft:apes", "bob", []uint64{2}, 1000))
	assert.Equal(t, 2, m.ActiveRecordNum())

	// An emptied record without pending balance is not active.
	require.NoError(t, m.RecordWithdrawal("nft:apes", "bob", 2))
	assert.Equal(t, 1, m.ActiveRecordNum())

	// A pending balance alone keeps the record active.
	require.NoError(t, m.ApplySettlement("nft:apes", "bob", 2000, 10))
	assert.Equal(t, 2, m.ActiveRecordNum())
}

func TestLoad(t *testing.T) {
	_, m := newTestLedger(t, "nft:apes")
	m.Load([]*model.StakeRecord{
		{
			AssetRef: "nft:apes",
			UserRef:  "alice",
			Items: []*model.StakedItem{
				{ItemID: 1, StakeTime: 1000, Checkpoint: 1200},
				{ItemID: 2, StakeTime: 1100, Checkpoint: 1200},
			},
			Pending:     30,
			LastSettled: 1200,
		},
		{AssetRef: "nft:apes", UserRef: "bob", Pending: 5},
	})

	assert.Equal(t, 2, m.StakedItemNum())
	assert.Equal(t, 2, m.ActiveRecordNum())

	record, known := m.Record("nft:apes", "bob")
	require.True(t, known)
	assert.Equal(t, int64(5), record.Pending)

	err := m.CheckDeposit("nft:apes", "carol", []uint64{2})
	assert.Equal(t, stakejson.ErrDuplicateItem, err)
}
