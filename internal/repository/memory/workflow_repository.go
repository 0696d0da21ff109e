package memory

import (
	"context"

	"github.com/dosacha/simvex-api/internal/domain"
	"github.com/dosacha/simvex-api/pkg/logger"

	"go.uber.org/zap"
)

// workflowRepository 实现 domain.WorkflowRepository 接口
type workflowRepository struct {
	store *Store
}

// NewWorkflowRepository 创建 WorkflowRepository 实例
func NewWorkflowRepository(store *Store) domain.WorkflowRepository {
	return &workflowRepository{store: store}
}

var _ domain.WorkflowRepository = (*workflowRepository)(nil)

func (r *workflowRepository) List(ctx context.Context, tenantID string) (*domain.WorkflowState, error) {
	var out *domain.WorkflowState
	r.store.view(func(st *State) {
		out = st.Workflows[tenantID].Clone()
	})
	return out, nil
}

func (r *workflowRepository) CreateNode(ctx context.Context, tenantID string, in domain.NodeInput) (*domain.WorkflowNode, error) {
	var created *domain.WorkflowNode
	err := r.store.update(func(st *State, seq *Sequences) bool {
		wf := r.store.workflow(st, tenantID, true)
		n := &domain.WorkflowNode{
			ID:      next(&seq.Node),
			Title:   in.Title,
			Content: in.Content,
			X:       in.X,
			Y:       in.Y,
			Files:   []*domain.WorkflowFile{},
		}
		wf.Nodes = append(wf.Nodes, n)
		created = n.Clone()
		return true
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *workflowRepository) UpdateNode(ctx context.Context, tenantID string, nodeID int64, patch domain.NodePatch) (*domain.WorkflowNode, error) {
	var updated *domain.WorkflowNode
	err := r.store.update(func(st *State, seq *Sequences) bool {
		n := findNode(r.store.workflow(st, tenantID, false), nodeID)
		if n == nil {
			return false
		}
		updated = n.Clone()
		if patch.IsEmpty() {
			return false
		}
		patch.Apply(n)
		updated = n.Clone()
		return true
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *workflowRepository) DeleteNode(ctx context.Context, tenantID string, nodeID int64) (bool, error) {
	removed := false
	err := r.store.update(func(st *State, seq *Sequences) bool {
		wf := r.store.workflow(st, tenantID, false)
		if wf == nil {
			return false
		}
		nodes := make([]*domain.WorkflowNode, 0, len(wf.Nodes))
		for _, n := range wf.Nodes {
			if n.ID == nodeID {
				removed = true
				continue
			}
			nodes = append(nodes, n)
		}
		if !removed {
			return false
		}
		conns := make([]*domain.WorkflowConnection, 0, len(wf.Connections))
		for _, c := range wf.Connections {
			if c.From == nodeID || c.To == nodeID {
				continue
			}
			conns = append(conns, c)
		}
		// files are owned by the node and go with it
		wf.Nodes = nodes
		wf.Connections = conns
		return true
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (r *workflowRepository) CreateConnection(ctx context.Context, tenantID string, in domain.ConnectionInput) (*domain.WorkflowConnection, error) {
	if in.IsSelfLoop() {
		return nil, nil
	}

	var result *domain.WorkflowConnection
	err := r.store.update(func(st *State, seq *Sequences) bool {
		wf := r.store.workflow(st, tenantID, false)
		if findNode(wf, in.From) == nil || findNode(wf, in.To) == nil {
			r.store.logger.Debug("connection rejected, endpoint not found",
				zap.String(logger.FieldTenant, tenantID),
				zap.Int64("from", in.From),
				zap.Int64("to", in.To))
			return false
		}
		for _, c := range wf.Connections {
			if c.Matches(in) {
				result = c.Clone()
				return false
			}
		}
		c := &domain.WorkflowConnection{
			ID:         next(&seq.Connection),
			From:       in.From,
			To:         in.To,
			FromAnchor: in.FromAnchor,
			ToAnchor:   in.ToAnchor,
		}
		wf.Connections = append(wf.Connections, c)
		result = c.Clone()
		return true
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *workflowRepository) DeleteConnection(ctx context.Context, tenantID string, connectionID int64) (bool, error) {
	removed := false
	err := r.store.update(func(st *State, seq *Sequences) bool {
		wf := r.store.workflow(st, tenantID, false)
		if wf == nil {
			return false
		}
		for i, c := range wf.Connections {
			if c.ID == connectionID {
				wf.Connections = append(wf.Connections[:i:i], wf.Connections[i+1:]...)
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

func (r *workflowRepository) FindConnectionIDByPair(ctx context.Context, tenantID string, from, to int64) (int64, bool, error) {
	var id int64
	found := false
	r.store.view(func(st *State) {
		wf := r.store.workflow(st, tenantID, false)
		if wf == nil {
			return
		}
		for _, c := range wf.Connections {
			if c.From == from && c.To == to {
				id, found = c.ID, true
				return
			}
		}
	})
	return id, found, nil
}

func (r *workflowRepository) AddFileToNode(ctx context.Context, tenantID string, nodeID int64, in domain.FileInput) (*domain.WorkflowFile, error) {
	var created *domain.WorkflowFile
	err := r.store.update(func(st *State, seq *Sequences) bool {
		n := findNode(r.store.workflow(st, tenantID, false), nodeID)
		if n == nil {
			r.store.logger.Debug("file rejected, node not found",
				zap.String(logger.FieldTenant, tenantID),
				zap.Int64(logger.FieldNodeID, nodeID))
			return false
		}
		f := &domain.WorkflowFile{
			ID:          next(&seq.File),
			FileName:    in.FileName,
			ContentType: in.ContentType,
			Buffer:      append([]byte(nil), in.Buffer...),
		}
		n.Files = append(n.Files, f)
		created = f.Clone()
		return true
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *workflowRepository) FindFile(ctx context.Context, tenantID string, fileID int64) (*domain.WorkflowFile, error) {
	var found *domain.WorkflowFile
	r.store.view(func(st *State) {
		wf := r.store.workflow(st, tenantID, false)
		if wf == nil {
			return
		}
		for _, n := range wf.Nodes {
			for _, f := range n.Files {
				if f.ID == fileID {
					found = f.Clone()
					return
				}
			}
		}
	})
	return found, nil
}

func (r *workflowRepository) DeleteFile(ctx context.Context, tenantID string, fileID int64) (bool, error) {
	removed := false
	err := r.store.update(func(st *State, seq *Sequences) bool {
		wf := r.store.workflow(st, tenantID, false)
		if wf == nil {
			return false
		}
		for _, n := range wf.Nodes {
			for i, f := range n.Files {
				if f.ID == fileID {
					n.Files = append(n.Files[:i:i], n.Files[i+1:]...)
					removed = true
					return true
				}
			}
		}
		return false
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func findNode(wf *domain.WorkflowState, nodeID int64) *domain.WorkflowNode {
	if wf == nil {
		return nil
	}
	for _, n := range wf.Nodes {
		if n.ID == nodeID {
			return n
		}
	}
	return nil
}
