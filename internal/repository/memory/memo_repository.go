package memory

import (
	"context"

	"github.com/dosacha/simvex-api/internal/domain"
)

// memoRepository 实现 domain.MemoRepository 接口
type memoRepository struct {
	store *Store
}

// NewMemoRepository 创建 MemoRepository 实例
func NewMemoRepository(store *Store) domain.MemoRepository {
	return &memoRepository{store: store}
}

var _ domain.MemoRepository = (*memoRepository)(nil)

func (r *memoRepository) ListByModel(ctx context.Context, tenantID string, modelID int64) ([]*domain.Memo, error) {
	out := []*domain.Memo{}
	r.store.view(func(st *State) {
		for _, m := range st.Memos[tenantID][modelID] {
			out = append(out, m.Clone())
		}
	})
	return out, nil
}

func (r *memoRepository) Create(ctx context.Context, tenantID string, modelID int64, in domain.MemoInput) (*domain.Memo, error) {
	var created *domain.Memo
	err := r.store.update(func(st *State, seq *Sequences) bool {
		byModel, ok := st.Memos[tenantID]
		if !ok {
			byModel = map[int64][]*domain.Memo{}
			st.Memos[tenantID] = byModel
		}
		m := &domain.Memo{ID: next(&seq.Memo), Title: in.Title, Content: in.Content}
		byModel[modelID] = append(byModel[modelID], m)
		created = m.Clone()
		return true
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *memoRepository) Update(ctx context.Context, tenantID string, memoID int64, in domain.MemoInput) (*domain.Memo, error) {
	var updated *domain.Memo
	err := r.store.update(func(st *State, seq *Sequences) bool {
		m := findMemo(st, tenantID, memoID)
		if m == nil {
			return false
		}
		m.Title = in.Title
		m.Content = in.Content
		updated = m.Clone()
		return true
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *memoRepository) Delete(ctx context.Context, tenantID string, memoID int64) (bool, error) {
	removed := false
	err := r.store.update(func(st *State, seq *Sequences) bool {
		for modelID, memos := range st.Memos[tenantID] {
			for i, m := range memos {
				if m.ID != memoID {
					continue
				}
				st.Memos[tenantID][modelID] = append(memos[:i:i], memos[i+1:]...)
				removed = true
				return true
			}
		}
		return false
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// findMemo searches only the tenant's own memos
func findMemo(st *State, tenantID string, memoID int64) *domain.Memo {
	for _, memos := range st.Memos[tenantID] {
		for _, m := range memos {
			if m.ID == memoID {
				return m
			}
		}
	}
	return nil
}
