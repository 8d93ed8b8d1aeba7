package service

import (
	"context"
	"testing"

	"github.com/stakesuite/nft-stakepool-server/constdef"
	"github.com/stakesuite/nft-stakepool-server/custodyclient"
	"github.com/stakesuite/nft-stakepool-server/stakejson"
	"github.com/stakesuite/nft-stakepool-server/utils"
	"github.com/stakesuite/nft-stakepool-server/walletclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHarness struct {
	svc       *StakingServiceImpl
	custodian *custodyclient.MockCustodian
	wallet    *walletclient.MockTransferor
	clock     *utils.ManualClock
}

// newTestHarness builds a service against in-process collaborators with a
// manual clock positioned at t=1000 and one pool for nft:apes (base rate 2,
// tier bonuses +3/+5/+11 at 100/200/1000 seconds).
func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	custodian := custodyclient.NewMockCustodian("nft:apes")
	custodian.Mint("nft:apes", "alice", 1, 2, 3)
	wallet := walletclient.NewMockTransferor()
	clock := utils.NewManualClock(1000)

	svc := NewStakingService(&StakingServiceConfig{
		Custodian:     custodian,
		Wallet:        wallet,
		Clock:         clock,
		TierDurations: [constdef.TierNum]int64{100, 200, 1000},
	})

	_, err := svc.BatchUpdateAsset(context.Background(),
		[]string{"nft:apes"}, []int64{2}, []int64{3}, []int64{5}, []int64{11})
	require.NoError(t, err)

	return &testHarness{svc: svc, custodian: custodian, wallet: wallet, clock: clock}
}

func TestBatchUpdateAsset(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)

	t.Run("length_mismatch", func(t *testing.T) {
		_, err := h.svc.BatchUpdateAsset(ctx, []string{"nft:apes"}, []int64{2}, []int64{3}, []int64{5}, nil)
		assert.Equal(t, stakejson.ErrLengthMismatch, err)
	})

	t.Run("malformed_asset_ref", func(t *testing.T) {
		_, err := h.svc.BatchUpdateAsset(ctx, []string{"nft apes"}, []int64{2}, []int64{3}, []int64{5}, []int64{11})
		assert.Equal(t, stakejson.ErrInvalidConfig, err)
	})

	t.Run("unresolvable_asset", func(t *testing.T) {
		_, err := h.svc.BatchUpdateAsset(ctx, []string{"nft:unknown"}, []int64{2}, []int64{3}, []int64{5}, []int64{11})
		assert.Equal(t, stakejson.ErrUnknownAsset, err)
	})

	t.Run("new_pool_and_notification", func(t *testing.T) {
		var got *Notification
		h.svc.Subscribe(func(n *Notification) { got = n })

		h.custodian.AddAsset("nft:rocks")
		ids, err := h.svc.BatchUpdateAsset(ctx, []string{"nft:rocks"}, []int64{4}, []int64{1}, []int64{2}, []int64{3})
		require.NoError(t, err)
		assert.Equal(t, []uint64{2}, ids)

		require.NotNil(t, got)
		assert.Equal(t, NTPoolsConfigured, got.Type)
		data, ok := got.Data.(*PoolsConfiguredData)
		require.True(t, ok)
		assert.Equal(t, []string{"nft:rocks"}, data.AssetRefs)
		assert.Equal(t, []uint64{2}, data.PoolIDs)
	})
}

func TestStakeAndUnstake(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)

	require.NoError(t, h.svc.Stake(ctx, "nft:apes", "alice", []uint64{1, 2}))

	// Custody now parks both items under the pool account.
	owner, err := h.custodian.OwnerOf(ctx, "nft:apes", 1)
	require.NoError(t, err)
	assert.Equal(t, custodyclient.PoolAccount, owner)

	info, err := h.svc.GetUserInfo(ctx, "nft:apes", "alice")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, info.ItemIDs)

	require.NoError(t, h.svc.Unstake(ctx, "nft:apes", "alice", 1))
	owner, err = h.custodian.OwnerOf(ctx, "nft:apes", 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	info, err = h.svc.GetUserInfo(ctx, "nft:apes", "alice")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, info.ItemIDs)

	// Unstaking the same item again fails.
	err = h.svc.Unstake(ctx, "nft:apes", "alice", 1)
	assert.Equal(t, stakejson.ErrItemNotStaked, err)
}

func TestStakeValidation(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)

	err := h.svc.Stake(ctx, "nft:apes", "bad user!", []uint64{1})
	assert.Equal(t, stakejson.ErrInvalidRequestParams, err)

	err = h.svc.Stake(ctx, "nft:apes", "alice", nil)
	assert.Equal(t, stakejson.ErrInvalidRequestParams, err)

	err = h.svc.Stake(ctx, "nft:unknown", "alice", []uint64{1})
	assert.Equal(t, stakejson.ErrPoolNotFound, err)

	require.NoError(t, h.svc.Stake(ctx, "nft:apes", "alice", []uint64{1}))
	err = h.svc.Stake(ctx, "nft:apes", "alice", []uint64{1})
	assert.Equal(t, stakejson.ErrDuplicateItem, err)
}

func TestStakeReversesCustodyOnFailure(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)

	// Item 9 was never minted, so its custody transfer fails after items
	// 1 and 2 have already been parked.
	err := h.svc.Stake(ctx, "nft:apes", "alice", []uint64{1, 2, 9})
	require.Error(t, err)

	// The completed transfers were reversed and nothing was recorded.
	for _, itemID := range []uint64{1, 2} {
		owner, err := h.custodian.OwnerOf(ctx, "nft:apes", itemID)
		require.NoError(t, err)
		assert.Equal(t, "alice", owner)
	}
	info, err := h.svc.GetUserInfo(ctx, "nft:apes", "alice")
	require.NoError(t, err)
	assert.Empty(t, info.ItemIDs)

	status, err := h.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.StakedItemNum)
}

func TestLiquidationBlocksStakeAndUnstake(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)

	require.NoError(t, h.svc.Stake(ctx, "nft:apes", "alice", []uint64{1}))

	var got *Notification
	h.svc.Subscribe(func(n *Notification) { got = n })
	require.NoError(t, h.svc.LiquidateAsset(ctx, "nft:apes", true))

	require.NotNil(t, got)
	assert.Equal(t, NTPoolLiquidated, got.Type)

	err := h.svc.Unstake(ctx, "nft:apes", "alice", 1)
	require.Error(t, err)
	assert.EqualError(t, err, "liquidate")

	err = h.svc.Stake(ctx, "nft:apes", "alice", []uint64{2})
	assert.EqualError(t, err, "liquidate")

	// Reward keeps accruing and stays claimable while liquidated.
	h.clock.Advance(50)
	reward, _, err := h.svc.CalculateReward(ctx, "nft:apes", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2*50), reward)

	// Clearing the flag unblocks the ledger.
	require.NoError(t, h.svc.LiquidateAsset(ctx, "nft:apes", false))
	require.NoError(t, h.svc.Unstake(ctx, "nft:apes", "alice", 1))
}

func TestWithdrawReward(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)

	require.NoError(t, h.svc.Stake(ctx, "nft:apes", "alice", []uint64{1}))
	h.clock.Advance(50)

	// 50 seconds at base rate 2 accrued 100 units.
	t.Run("insufficient", func(t *testing.T) {
		_, _, err := h.svc.WithdrawReward(ctx, "nft:apes", "alice", 101)
		assert.Equal(t, stakejson.ErrInsufficientReward, err)

		balance, err := h.wallet.BalanceOf(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance)
	})

	t.Run("invalid_amount", func(t *testing.T) {
		_, _, err := h.svc.WithdrawReward(ctx, "nft:apes", "alice", 0)
		assert.Equal(t, stakejson.ErrInvalidRequestParams, err)
	})

	t.Run("partial_withdrawal", func(t *testing.T) {
		settled, remainder, err := h.svc.WithdrawReward(ctx, "nft:apes", "alice", 60)
		require.NoError(t, err)
		assert.Equal(t, int64(100), settled)
		assert.Equal(t, int64(40), remainder)

		balance, err := h.wallet.BalanceOf(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(60), balance)

		reward, _, err := h.svc.CalculateReward(ctx, "nft:apes", "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(40), reward)
	})

	t.Run("credit_failure_settles_nothing", func(t *testing.T) {
		h.clock.Advance(10)
		h.wallet.FailNextCredits = 1
		_, _, err := h.svc.WithdrawReward(ctx, "nft:apes", "alice", 10)
		require.Error(t, err)

		// 40 pending plus 10s of fresh accrual, none of it debited.
		reward, _, err := h.svc.CalculateReward(ctx, "nft:apes", "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(40+2*10), reward)
		balance, err := h.wallet.BalanceOf(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(60), balance)
	})
}

func TestUnstakeSettlesAccrual(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)

	require.NoError(t, h.svc.Stake(ctx, "nft:apes", "alice", []uint64{1}))
	h.clock.Advance(150)
	require.NoError(t, h.svc.Unstake(ctx, "nft:apes", "alice", 1))

	// The accrual up to the withdrawal moment survives as pending even
	// though no item remains staked: 150s of base rate plus 50s in the
	// first tier.
	reward, _, err := h.svc.CalculateReward(ctx, "nft:apes", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2*150+3*50), reward)

	// And it can still be withdrawn.
	_, remainder, err := h.svc.WithdrawReward(ctx, "nft:apes", "alice", reward)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remainder)
	balance, err := h.wallet.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, reward, balance)
}

func TestCalculateRewardUsesServerClock(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)

	require.NoError(t, h.svc.Stake(ctx, "nft:apes", "alice", []uint64{1}))
	h.clock.Advance(100)

	// At exactly the first tier threshold the bonus contributes nothing
	// yet.
	reward, at, err := h.svc.CalculateReward(ctx, "nft:apes", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1100), at)
	assert.Equal(t, int64(2*100), reward)

	_, _, err = h.svc.CalculateReward(ctx, "nft:apes", "nobody")
	assert.Equal(t, stakejson.ErrUnknownUser, err)
}

func TestGetAssetDataAndStatus(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)

	pool, err := h.svc.GetAssetData(ctx, "nft:apes")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pool.ID)
	assert.Equal(t, int64(2), pool.RewardRate)
	assert.Equal(t, int64(100), pool.Tiers[0].Duration)
	assert.Equal(t, int64(3), pool.Tiers[0].Bonus)

	_, err = h.svc.GetAssetData(ctx, "nft:unknown")
	assert.Equal(t, stakejson.ErrPoolNotFound, err)

	require.NoError(t, h.svc.Stake(ctx, "nft:apes", "alice", []uint64{1, 2}))
	require.NoError(t, h.svc.LiquidateAsset(ctx, "nft:apes", true))

	status, err := h.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.PoolNum)
	assert.Equal(t, 1, status.LiquidatedNum)
	assert.Equal(t, 2, status.StakedItemNum)
	assert.Equal(t, 1, status.ActiveRecordNum)
	assert.Equal(t, int64(1000), status.ServerTime)
}

func TestGetUserInfoUnknownPair(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)

	info, err := h.svc.GetUserInfo(ctx, "nft:apes", "nobody")
	require.NoError(t, err)
	assert.Empty(t, info.ItemIDs)
	assert.Equal(t, int64(0), info.RewardSoFar)
}
