package dao

import (
	"context"
	"time"

	"github.com/dosacha/simvex-api/internal/domain"
	"github.com/dosacha/simvex-api/internal/model"

	"gorm.io/gorm"
)

// aiHistoryRepository 实现 domain.AiHistoryRepository 接口
type aiHistoryRepository struct {
	dao *Dao
	now func() time.Time
}

// NewAiHistoryRepository 创建 AiHistoryRepository 实例
func NewAiHistoryRepository(dao *Dao) domain.AiHistoryRepository {
	return &aiHistoryRepository{dao: dao, now: time.Now}
}

var _ domain.AiHistoryRepository = (*aiHistoryRepository)(nil)

func (r *aiHistoryRepository) toDomain(m *model.AiHistory) *domain.AiHistoryItem {
	return &domain.AiHistoryItem{
		Question:  m.Question,
		Answer:    m.Answer,
		Timestamp: domain.FormatTimestamp(m.CreatedAt),
	}
}

// ListByModel 按时间顺序获取问答记录
func (r *aiHistoryRepository) ListByModel(ctx context.Context, tenantID string, modelID int64) ([]*domain.AiHistoryItem, error) {
	db, err := r.dao.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []*model.AiHistory
	if err := db.Where("tenant_id = ? AND model_id = ?", tenantID, modelID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.AiHistoryItem, 0, len(rows))
	for _, m := range rows {
		out = append(out, r.toDomain(m))
	}
	return out, nil
}

// Append 追加问答记录
func (r *aiHistoryRepository) Append(ctx context.Context, tenantID string, modelID int64, in domain.AiHistoryInput) (*domain.AiHistoryItem, error) {
	row := &model.AiHistory{
		TenantID:  tenantID,
		ModelID:   modelID,
		Question:  in.Question,
		Answer:    in.Answer,
		CreatedAt: r.now().UTC().Truncate(time.Millisecond),
	}
	err := r.dao.ExecuteWrite(ctx, tenantID, func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, err
	}
	return r.toDomain(row), nil
}
