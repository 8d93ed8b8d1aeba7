package poolmgr

import (
	"context"
	"sync"

	"github.com/stakesuite/nft-stakepool-server/constdef"
	"github.com/stakesuite/nft-stakepool-server/model"
	"github.com/stakesuite/nft-stakepool-server/stakejson"
)

// AssetResolver answers whether a collateral-type reference is known to the
// item custody collaborator.  The registry never stores ownership, it only
// refuses to configure pools for assets custody cannot resolve.
type AssetResolver interface {
	ResolveAsset(ctx context.Context, assetRef string) (bool, error)
}

// PoolManager is the registry of pool configurations.  All state lives in
// memory behind one lock; persistence is the caller's concern.
type PoolManager struct {
	mtx    sync.RWMutex
	pools  map[string]*model.Pool
	nextID uint64
}

func NewPoolManager() *PoolManager {
	return &PoolManager{
		pools:  make(map[string]*model.Pool),
		nextID: 1,
	}
}

// ConfigurePools upserts the configuration of every referenced pool in one
// atomic batch: the whole submission is validated and resolved before any
// pool is touched.  New pools are assigned fresh ids in submission order;
// existing pools keep their id and liquidation flag.  The ids of all
// affected pools are returned in submission order.
func (m *PoolManager) ConfigurePools(ctx context.Context, configs []*model.PoolConfig, resolver AssetResolver) ([]uint64, error) {
	if len(configs) == 0 || len(configs) > constdef.MaxBatchPoolNum {
		return nil, stakejson.ErrInvalidConfig
	}

	seen := make(map[string]struct{}, len(configs))
	for _, cfg := range configs {
		if cfg == nil || !cfg.Validate() {
			return nil, stakejson.ErrInvalidConfig
		}
		// The same asset twice in one batch would make the upsert order
		// ambiguous.
		if _, ok := seen[cfg.AssetRef]; ok {
			return nil, stakejson.ErrInvalidConfig
		}
		seen[cfg.AssetRef] = struct{}{}

		if resolver != nil {
			known, err := resolver.ResolveAsset(ctx, cfg.AssetRef)
			if err != nil {
				return nil, err
			}
			if !known {
				log.Debugf("Rejecting pool config: custody cannot resolve asset %v", cfg.AssetRef)
				return nil, stakejson.ErrUnknownAsset
			}
		}
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	ids := make([]uint64, 0, len(configs))
	for _, cfg := range configs {
		pool, ok := m.pools[cfg.AssetRef]
		if !ok {
			pool = &model.Pool{
				ID:       m.nextID,
				AssetRef: cfg.AssetRef,
			}
			m.nextID++
			m.pools[cfg.AssetRef] = pool
			log.Infof("Creating pool %v for asset %v", pool.ID, cfg.AssetRef)
		} else {
			log.Infof("Overwriting config of pool %v (asset %v)", pool.ID, cfg.AssetRef)
		}
		pool.RewardRate = cfg.RewardRate
		for i := 0; i < constdef.TierNum; i++ {
			pool.Tiers[i] = model.Tier{
				Duration: cfg.TierDurations[i],
				Bonus:    cfg.TierBonuses[i],
			}
		}
		ids = append(ids, pool.ID)
	}
	return ids, nil
}

// GetPool returns a copy of the pool configured for assetRef.
func (m *PoolManager) GetPool(assetRef string) (*model.Pool, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	pool, ok := m.pools[assetRef]
	if !ok {
		return nil, stakejson.ErrPoolNotFound
	}
	return pool.Clone(), nil
}

// SetLiquidated toggles the liquidation flag.  The toggle is idempotent and
// never touches ledger contents.
func (m *PoolManager) SetLiquidated(assetRef string, flag bool) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	pool, ok := m.pools[assetRef]
	if !ok {
		return stakejson.ErrPoolNotFound
	}
	if pool.Liquidated != flag {
		log.Warnf("Pool %v (asset %v) liquidated flag: %v -> %v", pool.ID, assetRef, pool.Liquidated, flag)
	}
	pool.Liquidated = flag
	return nil
}

// IsLiquidated reports the liquidation flag of the pool for assetRef.
func (m *PoolManager) IsLiquidated(assetRef string) (bool, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	pool, ok := m.pools[assetRef]
	if !ok {
		return false, stakejson.ErrPoolNotFound
	}
	return pool.Liquidated, nil
}

// PoolNum returns the number of configured pools.
func (m *PoolManager) PoolNum() int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return len(m.pools)
}

// LiquidatedNum returns the number of pools currently flagged liquidated.
func (m *PoolManager) LiquidatedNum() int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	cnt := 0
	for _, pool := range m.pools {
		if pool.Liquidated {
			cnt++
		}
	}
	return cnt
}

// All returns copies of every configured pool.
func (m *PoolManager) All() []*model.Pool {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	pools := make([]*model.Pool, 0, len(m.pools))
	for _, pool := range m.pools {
		pools = append(pools, pool.Clone())
	}
	return pools
}

// Load seeds the registry from persisted pool state.  Intended for warm
// start before the server begins serving; it overwrites any pool already
// present for the same asset.
func (m *PoolManager) Load(pools []*model.Pool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	for _, pool := range pools {
		if pool == nil {
			continue
		}
		m.pools[pool.AssetRef] = pool.Clone()
		if pool.ID >= m.nextID {
			m.nextID = pool.ID + 1
		}
	}
}
