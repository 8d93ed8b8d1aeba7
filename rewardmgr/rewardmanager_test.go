package rewardmgr

import (
	"context"
	"testing"

	"github.com/stakesuite/nft-stakepool-server/constdef"
	"github.com/stakesuite/nft-stakepool-server/model"
	"github.com/stakesuite/nft-stakepool-server/poolmgr"
	"github.com/stakesuite/nft-stakepool-server/stakejson"
	"github.com/stakesuite/nft-stakepool-server/stakemgr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test pool: base rate 2 units/item/second, tier bonuses +3 from t+100,
// +5 from t+200, +11 from t+1000.
func newTestEngine(t *testing.T) (*stakemgr.StakeManager, *RewardManager) {
	t.Helper()
	registry := poolmgr.NewPoolManager()
	_, err := registry.ConfigurePools(context.Background(), []*model.PoolConfig{
		{
			AssetRef:      "nft:apes",
			RewardRate:    2,
			TierDurations: [constdef.TierNum]int64{100, 200, 1000},
			TierBonuses:   [constdef.TierNum]int64{3, 5, 11},
		},
	}, nil)
	require.NoError(t, err)

	ledger := stakemgr.NewStakeManager(registry)
	return ledger, NewRewardManager(registry, ledger)
}

func TestCalculateRewardBaseRate(t *testing.T) {
	ledger, rewards := newTestEngine(t)
	require.NoError(t, ledger.RecordDeposit("nft:apes", "alice", []uint64{1}, 1000))

	reward, err := rewards.CalculateReward("nft:apes", "alice", 1050)
	require.NoError(t, err)
	assert.Equal(t, int64(2*50), reward)

	// Nothing accrues at or before the stake time.
	reward, err = rewards.CalculateReward("nft:apes", "alice", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), reward)
	reward, err = rewards.CalculateReward("nft:apes", "alice", 900)
	require.NoError(t, err)
	assert.Equal(t, int64(0), reward)
}

func TestCalculateRewardAtExactTierThreshold(t *testing.T) {
	ledger, rewards := newTestEngine(t)
	require.NoError(t, ledger.RecordDeposit("nft:apes", "alice", []uint64{1}, 1000))

	// At exactly the first threshold the bonus has applied for zero
	// seconds, so the reward is still pure base rate.
	reward, err := rewards.CalculateReward("nft:apes", "alice", 1100)
	require.NoError(t, err)
	assert.Equal(t, int64(2*100), reward)

	// One second past the threshold earns exactly one second of bonus.
	reward, err = rewards.CalculateReward("nft:apes", "alice", 1101)
	require.NoError(t, err)
	assert.Equal(t, int64(2*101+3*1), reward)
}

func TestCalculateRewardTiersAdd(t *testing.T) {
	ledger, rewards := newTestEngine(t)
	require.NoError(t, ledger.RecordDeposit("nft:apes", "alice", []uint64{1}, 1000))

	cases := []struct {
		at   int64
		want int64
	}{
		// Inside the first tier: base plus 50s of the 30-day bonus.
		{1150, 2*150 + 3*50},
		// Into the second tier: the first tier's bonus covers [100,200),
		// the second's covers [200,250).
		{1250, 2*250 + 3*100 + 5*50},
		// Past the last tier.
		{2200, 2*1200 + 3*100 + 5*800 + 11*200},
	}
	for _, c := range cases {
		reward, err := rewards.CalculateReward("nft:apes", "alice", c.at)
		require.NoError(t, err)
		assert.Equal(t, c.want, reward, "at=%v", c.at)
	}
}

func TestCalculateRewardMultipleItems(t *testing.T) {
	ledger, rewards := newTestEngine(t)
	require.NoError(t, ledger.RecordDeposit("nft:apes", "alice", []uint64{1}, 1000))
	require.NoError(t, ledger.RecordDeposit("nft:apes", "alice", []uint64{2}, 1100))

	// Item 1 is 150s old (50s into its first tier), item 2 only 50s old.
	reward, err := rewards.CalculateReward("nft:apes", "alice", 1150)
	require.NoError(t, err)
	assert.Equal(t, int64((2*150+3*50)+2*50), reward)
}

func TestSettle(t *testing.T) {
	ledger, rewards := newTestEngine(t)
	require.NoError(t, ledger.RecordDeposit("nft:apes", "alice", []uint64{1}, 1000))

	settled, err := rewards.Settle("nft:apes", "alice", 1150)
	require.NoError(t, err)
	assert.Equal(t, int64(2*150+3*50), settled)

	// After a settlement the same total is claimable, now as pending.
	reward, err := rewards.CalculateReward("nft:apes", "alice", 1150)
	require.NoError(t, err)
	assert.Equal(t, settled, reward)

	// Settling twice at the same timestamp adds nothing.
	again, err := rewards.Settle("nft:apes", "alice", 1150)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again)
}

func TestTiersClimbAcrossSettlements(t *testing.T) {
	ledger, rewards := newTestEngine(t)
	require.NoError(t, ledger.RecordDeposit("nft:apes", "alice", []uint64{1}, 1000))

	// Settling does not reset the stake time, so the reward at any later
	// timestamp matches what an unsettled item would have earned.
	_, err := rewards.Settle("nft:apes", "alice", 1150)
	require.NoError(t, err)

	reward, err := rewards.CalculateReward("nft:apes", "alice", 1250)
	require.NoError(t, err)
	assert.Equal(t, int64(2*250+3*100+5*50), reward)

	settled, err := rewards.Settle("nft:apes", "alice", 1250)
	require.NoError(t, err)
	assert.Equal(t, int64(2*100+3*50+5*50), settled)
}

func TestRewardErrors(t *testing.T) {
	ledger, rewards := newTestEngine(t)

	_, err := rewards.CalculateReward("nft:unknown", "alice", 1000)
	assert.Equal(t, stakejson.ErrPoolNotFound, err)

	_, err = rewards.CalculateReward("nft:apes", "alice", 1000)
	assert.Equal(t, stakejson.ErrUnknownUser, err)

	_, err = rewards.Settle("nft:apes", "alice", 1000)
	assert.Equal(t, stakejson.ErrUnknownUser, err)

	// A fully unstaked holder is still known and keeps the pending balance.
	require.NoError(t, ledger.RecordDeposit("nft:apes", "bob", []uint64{1}, 1000))
	_, err = rewards.Settle("nft:apes", "bob", 1100)
	require.NoError(t, err)
	require.NoError(t, ledger.RecordWithdrawal("nft:apes", "bob", 1))

	reward, err := rewards.CalculateReward("nft:apes", "bob", 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(2*100), reward)
}
