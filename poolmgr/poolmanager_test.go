package poolmgr

import (
	"context"
	"testing"

	"github.com/stakesuite/nft-stakepool-server/constdef"
	"github.com/stakesuite/nft-stakepool-server/custodyclient"
	"github.com/stakesuite/nft-stakepool-server/model"
	"github.com/stakesuite/nft-stakepool-server/stakejson"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(assetRef string) *model.PoolConfig {
	return &model.PoolConfig{
		AssetRef:      assetRef,
		RewardRate:    2,
		TierDurations: [constdef.TierNum]int64{100, 200, 1000},
		TierBonuses:   [constdef.TierNum]int64{3, 5, 11},
	}
}

func TestConfigurePools(t *testing.T) {
	ctx := context.Background()
	m := NewPoolManager()

	t.Run("ids_in_submission_order", func(t *testing.T) {
		ids, err := m.ConfigurePools(ctx, []*model.PoolConfig{
			testConfig("nft:apes"), testConfig("nft:rocks"),
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2}, ids)
		assert.Equal(t, 2, m.PoolNum())
	})

	t.Run("existing_pool_keeps_id", func(t *testing.T) {
		cfg := testConfig("nft:rocks")
		cfg.RewardRate = 7
		ids, err := m.ConfigurePools(ctx, []*model.PoolConfig{cfg, testConfig("nft:birds")}, nil)
		require.NoError(t, err)
		assert.Equal(t, []uint64{2, 3}, ids)

		pool, err := m.GetPool("nft:rocks")
		require.NoError(t, err)
		assert.Equal(t, int64(7), pool.RewardRate)
		assert.Equal(t, 3, m.PoolNum())
	})

	t.Run("reconfigure_preserves_liquidated_flag", func(t *testing.T) {
		require.NoError(t, m.SetLiquidated("nft:birds", true))
		_, err := m.ConfigurePools(ctx, []*model.PoolConfig{testConfig("nft:birds")}, nil)
		require.NoError(t, err)

		liquidated, err := m.IsLiquidated("nft:birds")
		require.NoError(t, err)
		assert.True(t, liquidated)
	})
}

func TestConfigurePoolsValidation(t *testing.T) {
	ctx := context.Background()

	badConfigs := map[string]*model.PoolConfig{
		"empty_asset_ref": func() *model.PoolConfig {
			c := testConfig("")
			return c
		}(),
		"negative_rate": func() *model.PoolConfig {
			c := testConfig("nft:apes")
			c.RewardRate = -1
			return c
		}(),
		"negative_bonus": func() *model.PoolConfig {
			c := testConfig("nft:apes")
			c.TierBonuses[1] = -5
			return c
		}(),
		"non_increasing_durations": func() *model.PoolConfig {
			c := testConfig("nft:apes")
			c.TierDurations = [constdef.TierNum]int64{100, 100, 1000}
			return c
		}(),
	}
	for name, cfg := range badConfigs {
		t.Run(name, func(t *testing.T) {
			m := NewPoolManager()
			_, err := m.ConfigurePools(ctx, []*model.PoolConfig{cfg}, nil)
			assert.Equal(t, stakejson.ErrInvalidConfig, err)
			assert.Equal(t, 0, m.PoolNum())
		})
	}

	t.Run("empty_batch", func(t *testing.T) {
		m := NewPoolManager()
		_, err := m.ConfigurePools(ctx, nil, nil)
		assert.Equal(t, stakejson.ErrInvalidConfig, err)
	})

	t.Run("oversize_batch", func(t *testing.T) {
		m := NewPoolManager()
		configs := make([]*model.PoolConfig, constdef.MaxBatchPoolNum+1)
		for i := range configs {
			configs[i] = testConfig("nft:apes")
		}
		_, err := m.ConfigurePools(ctx, configs, nil)
		assert.Equal(t, stakejson.ErrInvalidConfig, err)
	})

	t.Run("duplicate_asset_in_batch", func(t *testing.T) {
		m := NewPoolManager()
		_, err := m.ConfigurePools(ctx, []*model.PoolConfig{
			testConfig("nft:apes"), testConfig("nft:apes"),
		}, nil)
		assert.Equal(t, stakejson.ErrInvalidConfig, err)
		assert.Equal(t, 0, m.PoolNum())
	})

	t.Run("batch_is_atomic", func(t *testing.T) {
		m := NewPoolManager()
		bad := testConfig("nft:rocks")
		bad.RewardRate = -1
		_, err := m.ConfigurePools(ctx, []*model.PoolConfig{testConfig("nft:apes"), bad}, nil)
		assert.Equal(t, stakejson.ErrInvalidConfig, err)
		assert.Equal(t, 0, m.PoolNum())
	})
}

func TestConfigurePoolsUnknownAsset(t *testing.T) {
	ctx := context.Background()
	m := NewPoolManager()
	custodian := custodyclient.NewMockCustodian("nft:apes")

	_, err := m.ConfigurePools(ctx, []*model.PoolConfig{
		testConfig("nft:apes"), testConfig("nft:rocks"),
	}, custodian)
	assert.Equal(t, stakejson.ErrUnknownAsset, err)
	assert.Equal(t, 0, m.PoolNum())

	ids, err := m.ConfigurePools(ctx, []*model.PoolConfig{testConfig("nft:apes")}, custodian)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids)
}

func TestSetLiquidated(t *testing.T) {
	ctx := context.Background()
	m := NewPoolManager()
	_, err := m.ConfigurePools(ctx, []*model.PoolConfig{testConfig("nft:apes")}, nil)
	require.NoError(t, err)

	assert.Equal(t, stakejson.ErrPoolNotFound, m.SetLiquidated("nft:rocks", true))

	require.NoError(t, m.SetLiquidated("nft:apes", true))
	// Idempotent.
	require.NoError(t, m.SetLiquidated("nft:apes", true))
	liquidated, err := m.IsLiquidated("nft:apes")
	require.NoError(t, err)
	assert.True(t, liquidated)
	assert.Equal(t, 1, m.LiquidatedNum())

	require.NoError(t, m.SetLiquidated("nft:apes", false))
	liquidated, err = m.IsLiquidated("nft:apes")
	require.NoError(t, err)
	assert.False(t, liquidated)
	assert.Equal(t, 0, m.LiquidatedNum())
}

func TestGetPoolReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewPoolManager()
	_, err := m.ConfigurePools(ctx, []*model.PoolConfig{testConfig("nft:apes")}, nil)
	require.NoError(t, err)

	pool, err := m.GetPool("nft:apes")
	require.NoError(t, err)
	pool.RewardRate = 999

	again, err := m.GetPool("nft:apes")
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.RewardRate)

	_, err = m.GetPool("nft:unknown")
	assert.Equal(t, stakejson.ErrPoolNotFound, err)
}

func TestLoadBumpsNextID(t *testing.T) {
	ctx := context.Background()
	m := NewPoolManager()
	m.Load([]*model.Pool{
		{ID: 5, AssetRef: "nft:apes", RewardRate: 2},
		{ID: 9, AssetRef: "nft:rocks", RewardRate: 3, Liquidated: true},
	})
	assert.Equal(t, 2, m.PoolNum())
	assert.Equal(t, 1, m.LiquidatedNum())

	ids, err := m.ConfigurePools(ctx, []*model.PoolConfig{testConfig("nft:birds")}, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10}, ids)
}
