package dao

import (
	"context"
	"errors"

	"github.com/dosacha/simvex-api/internal/domain"
	"github.com/dosacha/simvex-api/internal/model"

	"github.com/jinzhu/copier"
	"gorm.io/gorm"
)

// memoRepository 实现 domain.MemoRepository 接口
type memoRepository struct {
	dao *Dao
}

// NewMemoRepository 创建 MemoRepository 实例
func NewMemoRepository(dao *Dao) domain.MemoRepository {
	return &memoRepository{dao: dao}
}

var _ domain.MemoRepository = (*memoRepository)(nil)

// toDomain 将数据库模型转换为领域模型
func (r *memoRepository) toDomain(m *model.Memo) *domain.Memo {
	if m == nil {
		return nil
	}
	out := &domain.Memo{}
	_ = copier.Copy(out, m)
	return out
}

// ListByModel 按 id 顺序获取备忘录
func (r *memoRepository) ListByModel(ctx context.Context, tenantID string, modelID int64) ([]*domain.Memo, error) {
	db, err := r.dao.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []*model.Memo
	if err := db.Where("tenant_id = ? AND model_id = ?", tenantID, modelID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Memo, 0, len(rows))
	for _, m := range rows {
		out = append(out, r.toDomain(m))
	}
	return out, nil
}

// Create 创建备忘录
func (r *memoRepository) Create(ctx context.Context, tenantID string, modelID int64, in domain.MemoInput) (*domain.Memo, error) {
	row := &model.Memo{
		TenantID: tenantID,
		ModelID:  modelID,
		Title:    in.Title,
		Content:  in.Content,
	}
	err := r.dao.ExecuteWrite(ctx, tenantID, func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, err
	}
	return r.toDomain(row), nil
}

// Update 更新备忘录，仅在租户自己的备忘录中查找
func (r *memoRepository) Update(ctx context.Context, tenantID string, memoID int64, in domain.MemoInput) (*domain.Memo, error) {
	var result *model.Memo
	err := r.dao.ExecuteWrite(ctx, tenantID, func(tx *gorm.DB) error {
		row := &model.Memo{}
		err := tx.Where("id = ? AND tenant_id = ?", memoID, tenantID).First(row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		err = tx.Model(row).Updates(map[string]any{
			"title":   in.Title,
			"content": in.Content,
		}).Error
		if err != nil {
			return err
		}
		row.Title = in.Title
		row.Content = in.Content
		result = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.toDomain(result), nil
}

// Delete 删除备忘录
func (r *memoRepository) Delete(ctx context.Context, tenantID string, memoID int64) (bool, error) {
	var affected int64
	err := r.dao.ExecuteWrite(ctx, tenantID, func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND tenant_id = ?", memoID, tenantID).Delete(&model.Memo{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
