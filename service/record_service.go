package service

import (
	"context"

	"github.com/stakesuite/nft-stakepool-server/dal/dao"
	"github.com/stakesuite/nft-stakepool-server/dal/do"
	"github.com/stakesuite/nft-stakepool-server/model"
	"github.com/stakesuite/nft-stakepool-server/utils"

	"gorm.io/gorm"
)

// RecordService is the write-through persistence layer of the staking
// engine.  The in-memory managers stay authoritative; these methods mirror
// their state into the database so a restarted server can warm start.
type RecordService interface {
	LoadPools(ctx context.Context, tx *gorm.DB) ([]*model.Pool, error)
	LoadRecords(ctx context.Context, tx *gorm.DB) ([]*model.StakeRecord, error)
	SavePool(ctx context.Context, tx *gorm.DB, pool *model.Pool) error
	SetPoolLiquidated(ctx context.Context, tx *gorm.DB, assetRef string, flag bool) error
	SaveDeposit(ctx context.Context, tx *gorm.DB, assetRef string, userRef string, items []*model.StakedItem) error
	SaveWithdrawal(ctx context.Context, tx *gorm.DB, assetRef string, userRef string, itemID uint64) error
	SaveSettlement(ctx context.Context, tx *gorm.DB, record *model.StakeRecord, settledAt int64, settled int64, withdrawn int64) error
}

type RecordServiceImpl struct{}

var recordService RecordService = &RecordServiceImpl{}

func GetRecordServiceImpl() RecordService {
	return recordService
}

func (r *RecordServiceImpl) LoadPools(ctx context.Context, tx *gorm.DB) ([]*model.Pool, error) {
	rows, err := dao.GetPoolInfoDAOImpl().GetAll(ctx, tx)
	if err != nil {
		return nil, err
	}

	pools := make([]*model.Pool, 0, len(rows))
	for _, row := range rows {
		pool := &model.Pool{
			ID:         row.ID,
			AssetRef:   row.AssetRef,
			RewardRate: row.RewardRate,
			Liquidated: row.Liquidated,
		}
		pool.Tiers[0] = model.Tier{Duration: row.TierDuration1, Bonus: row.TierBonus1}
		pool.Tiers[1] = model.Tier{Duration: row.TierDuration2, Bonus: row.TierBonus2}
		pool.Tiers[2] = model.Tier{Duration: row.TierDuration3, Bonus: row.TierBonus3}
		pools = append(pools, pool)
	}
	return pools, nil
}

// LoadRecords rebuilds stake records from the staked item rows plus the
// latest settlement row of every (asset, user) pair.  The latest settlement
// carries the pending balance as Amount minus Withdrawn.
func (r *RecordServiceImpl) LoadRecords(ctx context.Context, tx *gorm.DB) ([]*model.StakeRecord, error) {
	itemRows, err := dao.GetStakedItemInfoDAOImpl().GetAll(ctx, tx)
	if err != nil {
		return nil, err
	}
	settleRows, err := dao.GetSettlementInfoDAOImpl().GetLatestPerUser(ctx, tx)
	if err != nil {
		return nil, err
	}

	type key struct{ asset, user string }
	records := make(map[key]*model.StakeRecord)
	order := make([]key, 0)

	fetch := func(assetRef, userRef string) *model.StakeRecord {
		k := key{assetRef, userRef}
		record, ok := records[k]
		if !ok {
			record = &model.StakeRecord{AssetRef: assetRef, UserRef: userRef}
			records[k] = record
			order = append(order, k)
		}
		return record
	}

	for _, row := range itemRows {
		record := fetch(row.AssetRef, row.UserRef)
		record.Items = append(record.Items, &model.StakedItem{
			ItemID:     row.ItemID,
			StakeTime:  row.StakeTime,
			Checkpoint: row.Checkpoint,
		})
		utils.RowCache.Set(utils.ItemRowDesc{
			AssetRef: row.AssetRef,
			UserRef:  row.UserRef,
			ItemID:   row.ItemID,
		}, row.ID)
	}
	for _, row := range settleRows {
		record := fetch(row.AssetRef, row.UserRef)
		record.Pending = row.Amount - row.Withdrawn
		record.LastSettled = row.SettledAt
	}

	res := make([]*model.StakeRecord, 0, len(order))
	for _, k := range order {
		res = append(res, records[k])
	}
	return res, nil
}

func (r *RecordServiceImpl) SavePool(ctx context.Context, tx *gorm.DB, pool *model.Pool) error {
	info := &do.PoolInfo{
		ID:         pool.ID,
		AssetRef:   pool.AssetRef,
		RewardRate: pool.RewardRate,
		Liquidated: pool.Liquidated,
	}
	info.TierDuration1 = pool.Tiers[0].Duration
	info.TierDuration2 = pool.Tiers[1].Duration
	info.TierDuration3 = pool.Tiers[2].Duration
	info.TierBonus1 = pool.Tiers[0].Bonus
	info.TierBonus2 = pool.Tiers[1].Bonus
	info.TierBonus3 = pool.Tiers[2].Bonus
	_, err := dao.GetPoolInfoDAOImpl().Upsert(ctx, tx, info)
	return err
}

func (r *RecordServiceImpl) SetPoolLiquidated(ctx context.Context, tx *gorm.DB, assetRef string, flag bool) error {
	_, err := dao.GetPoolInfoDAOImpl().SetLiquidated(ctx, tx, assetRef, flag)
	return err
}

func (r *RecordServiceImpl) SaveDeposit(ctx context.Context, tx *gorm.DB, assetRef string, userRef string, items []*model.StakedItem) error {
	itemDAO := dao.GetStakedItemInfoDAOImpl()
	for _, item := range items {
		info := &do.StakedItemInfo{
			AssetRef:   assetRef,
			UserRef:    userRef,
			ItemID:     item.ItemID,
			StakeTime:  item.StakeTime,
			Checkpoint: item.Checkpoint,
		}
		created, err := itemDAO.Create(ctx, tx, info)
		if err != nil {
			return err
		}
		utils.RowCache.Set(utils.ItemRowDesc{
			AssetRef: assetRef,
			UserRef:  userRef,
			ItemID:   item.ItemID,
		}, created.ID)
	}
	return nil
}

func (r *RecordServiceImpl) SaveWithdrawal(ctx context.Context, tx *gorm.DB, assetRef string, userRef string, itemID uint64) error {
	itemDAO := dao.GetStakedItemInfoDAOImpl()
	desc := utils.ItemRowDesc{AssetRef: assetRef, UserRef: userRef, ItemID: itemID}
	if id, ok := utils.RowCache.Get(desc); ok {
		utils.RowCache.Remove(desc)
		if _, err := itemDAO.DeleteByID(ctx, tx, id); err != nil {
			return err
		}
		return nil
	}
	_, err := itemDAO.DeleteByAssetAndItem(ctx, tx, assetRef, itemID)
	return err
}

// SaveSettlement appends one settlement audit row, advances the persisted
// item checkpoints, and bumps the server-wide counters.  The record passed
// in reflects the state after the settlement (and any debit).
func (r *RecordServiceImpl) SaveSettlement(ctx context.Context, tx *gorm.DB, record *model.StakeRecord, settledAt int64, settled int64, withdrawn int64) error {
	itemIDs := record.ItemIDs()
	info := &do.SettlementInfo{
		AssetRef:    record.AssetRef,
		UserRef:     record.UserRef,
		Amount:      record.Pending + withdrawn,
		Withdrawn:   withdrawn,
		SettledAt:   settledAt,
		Fingerprint: utils.ItemSetFingerprint(record.AssetRef, record.UserRef, itemIDs),
	}
	if _, err := dao.GetSettlementInfoDAOImpl().Create(ctx, tx, info); err != nil {
		return err
	}
	if _, err := dao.GetStakedItemInfoDAOImpl().UpdateCheckpointByAssetAndUser(ctx, tx, record.AssetRef, record.UserRef, settledAt); err != nil {
		return err
	}

	metaDAO := dao.GetMetaInfoDAOImpl()
	if err := metaDAO.AddSettled(ctx, tx, settled, settledAt); err != nil {
		return err
	}
	if withdrawn > 0 {
		if err := metaDAO.AddWithdrawn(ctx, tx, withdrawn); err != nil {
			return err
		}
	}
	return nil
}
