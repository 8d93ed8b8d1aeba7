package dao

import (
	"context"
	"errors"

	"github.com/stakesuite/nft-stakepool-server/dal/do"
	"github.com/stakesuite/nft-stakepool-server/errcode"

	"gorm.io/gorm"
)

type StakedItemInfoDAO interface {
	Create(ctx context.Context, tx *gorm.DB, info *do.StakedItemInfo) (*do.StakedItemInfo, error)
	GetByAssetAndUser(ctx context.Context, tx *gorm.DB, assetRef string, userRef string) ([]*do.StakedItemInfo, error)
	GetByAssetAndItem(ctx context.Context, tx *gorm.DB, assetRef string, itemID uint64) (*do.StakedItemInfo, error)
	DeleteByID(ctx context.Context, tx *gorm.DB, id uint64) (int64, error)
	DeleteByAssetAndItem(ctx context.Context, tx *gorm.DB, assetRef string, itemID uint64) (int64, error)
	UpdateCheckpointByAssetAndUser(ctx context.Context, tx *gorm.DB, assetRef string, userRef string, checkpoint int64) (int64, error)
	GetNum(ctx context.Context, tx *gorm.DB) (int64, error)
	GetAll(ctx context.Context, tx *gorm.DB) ([]*do.StakedItemInfo, error)
}

type StakedItemInfoDAOImpl struct{}

var stakedItemInfoDAO StakedItemInfoDAO = &StakedItemInfoDAOImpl{}

func GetStakedItemInfoDAOImpl() StakedItemInfoDAO {
	return stakedItemInfoDAO
}

func (s *StakedItemInfoDAOImpl) Create(ctx context.Context, tx *gorm.DB, info *do.StakedItemInfo) (*do.StakedItemInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	if info == nil {
		return nil, errors.New("nil staked item info when creating")
	}

	query := tx.Create(info)
	return info, query.Error
}

func (s *StakedItemInfoDAOImpl) GetByAssetAndUser(ctx context.Context, tx *gorm.DB, assetRef string, userRef string) ([]*do.StakedItemInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.StakedItemInfo, 0)
	query := tx.Model(&do.StakedItemInfo{}).Where("asset_ref = ? and user_ref = ?", assetRef, userRef).
		Order("id").Find(&res)
	return res, query.Error
}

func (s *StakedItemInfoDAOImpl) GetByAssetAndItem(ctx context.Context, tx *gorm.DB, assetRef string, itemID uint64) (*do.StakedItemInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := do.StakedItemInfo{}
	query := tx.Model(&do.StakedItemInfo{}).Where("asset_ref = ? and item_id = ?", assetRef, itemID).Take(&res)
	return &res, query.Error
}

func (s *StakedItemInfoDAOImpl) DeleteByID(ctx context.Context, tx *gorm.DB, id uint64) (int64, error) {
	if tx == nil {
		return 0, errcode.ErrNilGormDB
	}

	query := tx.Delete(&do.StakedItemInfo{}, id)
	return query.RowsAffected, query.Error
}

func (s *StakedItemInfoDAOImpl) DeleteByAssetAndItem(ctx context.Context, tx *gorm.DB, assetRef string, itemID uint64) (int64, error) {
	if tx == nil {
		return 0, errcode.ErrNilGormDB
	}

	query := tx.Where("asset_ref = ? and item_id = ?", assetRef, itemID).Delete(&do.StakedItemInfo{})
	return query.RowsAffected, query.Error
}

func (s *StakedItemInfoDAOImpl) UpdateCheckpointByAssetAndUser(ctx context.Context, tx *gorm.DB, assetRef string, userRef string, checkpoint int64) (int64, error) {
	if tx == nil {
		return 0, errcode.ErrNilGormDB
	}

	query := tx.Model(&do.StakedItemInfo{}).Where("asset_ref = ? and user_ref = ?", assetRef, userRef).
		Update("checkpoint", checkpoint)
	return query.RowsAffected, query.Error
}

func (s *StakedItemInfoDAOImpl) GetNum(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, errcode.ErrNilGormDB
	}

	var cnt int64
	query := tx.Model(&do.StakedItemInfo{}).Count(&cnt)
	return cnt, query.Error
}

// GetAll returns every staked item row, ordered by row id.  Used to rebuild
// the in-memory ledger on warm start.
func (s *StakedItemInfoDAOImpl) GetAll(ctx context.Context, tx *gorm.DB) ([]*do.StakedItemInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	var res []*do.StakedItemInfo
	query := tx.Model(&do.StakedItemInfo{}).Order("id").Find(&res)
	if query.Error != nil {
		return nil, query.Error
	}
	return res, nil
}
