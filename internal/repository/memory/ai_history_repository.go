package memory

import (
	"context"

	"github.com/dosacha/simvex-api/internal/domain"
)

// aiHistoryRepository 实现 domain.AiHistoryRepository 接口
type aiHistoryRepository struct {
	store *Store
}

// NewAiHistoryRepository 创建 AiHistoryRepository 实例
func NewAiHistoryRepository(store *Store) domain.AiHistoryRepository {
	return &aiHistoryRepository{store: store}
}

var _ domain.AiHistoryRepository = (*aiHistoryRepository)(nil)

func (r *aiHistoryRepository) ListByModel(ctx context.Context, tenantID string, modelID int64) ([]*domain.AiHistoryItem, error) {
	out := []*domain.AiHistoryItem{}
	r.store.view(func(st *State) {
		for _, h := range st.Histories[tenantID][modelID] {
			out = append(out, h.Clone())
		}
	})
	return out, nil
}

func (r *aiHistoryRepository) Append(ctx context.Context, tenantID string, modelID int64, in domain.AiHistoryInput) (*domain.AiHistoryItem, error) {
	var item *domain.AiHistoryItem
	err := r.store.update(func(st *State, seq *Sequences) bool {
		byModel, ok := st.Histories[tenantID]
		if !ok {
			byModel = map[int64][]*domain.AiHistoryItem{}
			st.Histories[tenantID] = byModel
		}
		h := &domain.AiHistoryItem{
			Question:  in.Question,
			Answer:    in.Answer,
			Timestamp: domain.FormatTimestamp(r.store.now()),
		}
		byModel[modelID] = append(byModel[modelID], h)
		item = h.Clone()
		return true
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}
