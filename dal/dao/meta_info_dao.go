package dao

import (
	"context"
	"errors"

	"github.com/stakesuite/nft-stakepool-server/dal/do"
	"github.com/stakesuite/nft-stakepool-server/errcode"

	"gorm.io/gorm"
)

type MetaInfoDAO interface {
	Get(ctx context.Context, tx *gorm.DB) (*do.MetaInfo, error)
	AddSettled(ctx context.Context, tx *gorm.DB, amount int64, settledAt int64) error
	AddWithdrawn(ctx context.Context, tx *gorm.DB, amount int64) error
}

type MetaInfoDAOImpl struct{}

var metaInfoDAO MetaInfoDAO = &MetaInfoDAOImpl{}

func GetMetaInfoDAOImpl() MetaInfoDAO {
	return metaInfoDAO
}

// Get returns the single meta row, creating it if the table is empty.
func (m *MetaInfoDAOImpl) Get(ctx context.Context, tx *gorm.DB) (*do.MetaInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := do.MetaInfo{}
	query := tx.Model(&do.MetaInfo{}).First(&res)
	if query.Error != nil {
		if !errors.Is(query.Error, gorm.ErrRecordNotFound) {
			return nil, query.Error
		}
		res = do.MetaInfo{}
		if err := tx.Create(&res).Error; err != nil {
			return nil, err
		}
	}
	return &res, nil
}

func (m *MetaInfoDAOImpl) AddSettled(ctx context.Context, tx *gorm.DB, amount int64, settledAt int64) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	info, err := m.Get(ctx, tx)
	if err != nil {
		return err
	}
	query := tx.Model(&do.MetaInfo{}).Where("id = ?", info.ID).
		Updates(map[string]interface{}{
			"total_settled":   gorm.Expr("total_settled + ?", amount),
			"last_settled_at": settledAt,
		})
	return query.Error
}

func (m *MetaInfoDAOImpl) AddWithdrawn(ctx context.Context, tx *gorm.DB, amount int64) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	info, err := m.Get(ctx, tx)
	if err != nil {
		return err
	}
	query := tx.Model(&do.MetaInfo{}).Where("id = ?", info.ID).
		Update("total_withdrawn", gorm.Expr("total_withdrawn + ?", amount))
	return query.Error
}
