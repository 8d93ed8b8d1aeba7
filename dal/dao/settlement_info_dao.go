package dao

import (
	"context"
	"errors"

	"github.com/stakesuite/nft-stakepool-server/dal/do"
	"github.com/stakesuite/nft-stakepool-server/errcode"

	"gorm.io/gorm"
)

type SettlementInfoDAO interface {
	Create(ctx context.Context, tx *gorm.DB, info *do.SettlementInfo) (*do.SettlementInfo, error)
	GetByAssetAndUser(ctx context.Context, tx *gorm.DB, assetRef string, userRef string, page int, num int, positiveOrder bool) ([]*do.SettlementInfo, error)
	GetNum(ctx context.Context, tx *gorm.DB) (int64, error)
	GetNumByAssetAndUser(ctx context.Context, tx *gorm.DB, assetRef string, userRef string) (int64, error)
	GetLatestPerUser(ctx context.Context, tx *gorm.DB) ([]*do.SettlementInfo, error)
}

type SettlementInfoDAOImpl struct{}

var settlementInfoDAO SettlementInfoDAO = &SettlementInfoDAOImpl{}

func GetSettlementInfoDAOImpl() SettlementInfoDAO {
	return settlementInfoDAO
}

func (s *SettlementInfoDAOImpl) Create(ctx context.Context, tx *gorm.DB, info *do.SettlementInfo) (*do.SettlementInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	if info == nil {
		return nil, errors.New("nil settlement info when creating")
	}

	query := tx.Create(info)
	return info, query.Error
}

func (s *SettlementInfoDAOImpl) GetByAssetAndUser(ctx context.Context, tx *gorm.DB, assetRef string, userRef string, page int, num int, positiveOrder bool) ([]*do.SettlementInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.SettlementInfo, 0)
	if page <= 0 || num <= 0 {
		return res, nil
	}
	query := tx.Model(&do.SettlementInfo{}).Where("asset_ref = ? and user_ref = ?", assetRef, userRef).
		Offset((page - 1) * num).Limit(num)
	if !positiveOrder {
		query = query.Order("id desc")
	}
	query = query.Find(&res)
	return res, query.Error
}

func (s *SettlementInfoDAOImpl) GetNum(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, errcode.ErrNilGormDB
	}

	var cnt int64
	query := tx.Model(&do.SettlementInfo{}).Count(&cnt)
	return cnt, query.Error
}

func (s *SettlementInfoDAOImpl) GetNumByAssetAndUser(ctx context.Context, tx *gorm.DB, assetRef string, userRef string) (int64, error) {
	if tx == nil {
		return 0, errcode.ErrNilGormDB
	}

	var cnt int64
	query := tx.Model(&do.SettlementInfo{}).Where("asset_ref = ? and user_ref = ?", assetRef, userRef).Count(&cnt)
	return cnt, query.Error
}

// GetLatestPerUser returns the most recent settlement row of every
// (asset, user) pair.  Used to restore pending balances on warm start.
func (s *SettlementInfoDAOImpl) GetLatestPerUser(ctx context.Context, tx *gorm.DB) ([]*do.SettlementInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	var res []*do.SettlementInfo
	sub := tx.Model(&do.SettlementInfo{}).Select("MAX(id)").Group("asset_ref, user_ref")
	query := tx.Model(&do.SettlementInfo{}).Where("id IN (?)", sub).Find(&res)
	if query.Error != nil {
		return nil, query.Error
	}
	return res, nil
}
