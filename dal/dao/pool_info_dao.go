package dao

import (
	"context"
	"errors"

	"github.com/stakesuite/nft-stakepool-server/dal/do"
	"github.com/stakesuite/nft-stakepool-server/errcode"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PoolInfoDAO interface {
	Upsert(ctx context.Context, tx *gorm.DB, info *do.PoolInfo) (*do.PoolInfo, error)
	GetByAssetRef(ctx context.Context, tx *gorm.DB, assetRef string) (*do.PoolInfo, error)
	GetAll(ctx context.Context, tx *gorm.DB) ([]*do.PoolInfo, error)
	GetNum(ctx context.Context, tx *gorm.DB) (int64, error)
	SetLiquidated(ctx context.Context, tx *gorm.DB, assetRef string, flag bool) (int64, error)
}

type PoolInfoDAOImpl struct{}

var poolInfoDAO PoolInfoDAO = &PoolInfoDAOImpl{}

func GetPoolInfoDAOImpl() PoolInfoDAO {
	return poolInfoDAO
}

func (p *PoolInfoDAOImpl) Upsert(ctx context.Context, tx *gorm.DB, info *do.PoolInfo) (*do.PoolInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	if info == nil {
		return nil, errors.New("nil pool info when upserting")
	}

	query := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "asset_ref"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"reward_rate",
			"tier_duration1", "tier_duration2", "tier_duration3",
			"tier_bonus1", "tier_bonus2", "tier_bonus3",
			"updated_at",
		}),
	}).Create(info)
	return info, query.Error
}

func (p *PoolInfoDAOImpl) GetByAssetRef(ctx context.Context, tx *gorm.DB, assetRef string) (*do.PoolInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := do.PoolInfo{}
	query := tx.Model(&do.PoolInfo{}).Where("asset_ref = ?", assetRef).Take(&res)
	return &res, query.Error
}

func (p *PoolInfoDAOImpl) GetAll(ctx context.Context, tx *gorm.DB) ([]*do.PoolInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	poolInfos := make([]*do.PoolInfo, 0)
	query := tx.Model(&do.PoolInfo{}).Order("id").Find(&poolInfos)
	return poolInfos, query.Error
}

func (p *PoolInfoDAOImpl) GetNum(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, errcode.ErrNilGormDB
	}

	var cnt int64
	query := tx.Model(&do.PoolInfo{}).Count(&cnt)
	return cnt, query.Error
}

func (p *PoolInfoDAOImpl) SetLiquidated(ctx context.Context, tx *gorm.DB, assetRef string, flag bool) (int64, error) {
	if tx == nil {
		return 0, errcode.ErrNilGormDB
	}

	query := tx.Model(&do.PoolInfo{}).Where("asset_ref = ?", assetRef).Update("liquidated", flag)
	return query.RowsAffected, query.Error
}
