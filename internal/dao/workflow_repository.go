package dao

import (
	"context"
	"errors"

	"github.com/dosacha/simvex-api/internal/domain"
	"github.com/dosacha/simvex-api/internal/model"
	"github.com/dosacha/simvex-api/pkg/logger"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// workflowRepository 实现 domain.WorkflowRepository 接口
type workflowRepository struct {
	dao *Dao
}

// NewWorkflowRepository 创建 WorkflowRepository 实例
func NewWorkflowRepository(dao *Dao) domain.WorkflowRepository {
	return &workflowRepository{dao: dao}
}

var _ domain.WorkflowRepository = (*workflowRepository)(nil)

func (r *workflowRepository) nodeToDomain(m *model.WorkflowNode) *domain.WorkflowNode {
	out := &domain.WorkflowNode{}
	_ = copier.Copy(out, m)
	out.Files = []*domain.WorkflowFile{}
	return out
}

func (r *workflowRepository) connectionToDomain(m *model.WorkflowConnection) *domain.WorkflowConnection {
	return &domain.WorkflowConnection{
		ID:         m.ID,
		From:       m.FromNodeID,
		To:         m.ToNodeID,
		FromAnchor: m.FromAnchor,
		ToAnchor:   m.ToAnchor,
	}
}

func (r *workflowRepository) fileToDomain(m *model.WorkflowFile) *domain.WorkflowFile {
	return &domain.WorkflowFile{
		ID:          m.ID,
		FileName:    m.FileName,
		ContentType: m.ContentType,
		Buffer:      m.Data,
	}
}

// List loads nodes, connections and files concurrently and stitches files onto their nodes
// List 并发查询节点、连线与附件并组装
func (r *workflowRepository) List(ctx context.Context, tenantID string) (*domain.WorkflowState, error) {
	if _, err := r.dao.conn(ctx); err != nil {
		return nil, err
	}

	var (
		nodes []*model.WorkflowNode
		conns []*model.WorkflowConnection
		files []*model.WorkflowFile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.dao.db.WithContext(gctx).Where("tenant_id = ?", tenantID).Order("id ASC").Find(&nodes).Error
	})
	g.Go(func() error {
		return r.dao.db.WithContext(gctx).Where("tenant_id = ?", tenantID).Order("id ASC").Find(&conns).Error
	})
	g.Go(func() error {
		return r.dao.db.WithContext(gctx).Where("tenant_id = ?", tenantID).Order("id ASC").Find(&files).Error
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	state := domain.NewWorkflowState()
	byID := make(map[int64]*domain.WorkflowNode, len(nodes))
	for _, n := range nodes {
		dn := r.nodeToDomain(n)
		byID[dn.ID] = dn
		state.Nodes = append(state.Nodes, dn)
	}
	for _, c := range conns {
		state.Connections = append(state.Connections, r.connectionToDomain(c))
	}
	for _, f := range files {
		if n, ok := byID[f.NodeID]; ok {
			n.Files = append(n.Files, r.fileToDomain(f))
		}
	}
	return state, nil
}

// CreateNode 创建节点
func (r *workflowRepository) CreateNode(ctx context.Context, tenantID string, in domain.NodeInput) (*domain.WorkflowNode, error) {
	row := &model.WorkflowNode{
		TenantID: tenantID,
		Title:    in.Title,
		Content:  in.Content,
		X:        in.X,
		Y:        in.Y,
	}
	err := r.dao.ExecuteWrite(ctx, tenantID, func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, err
	}
	return r.nodeToDomain(row), nil
}

// UpdateNode applies only the supplied fields, an empty patch returns the node unchanged
// UpdateNode 仅更新提供的字段
func (r *workflowRepository) UpdateNode(ctx context.Context, tenantID string, nodeID int64, patch domain.NodePatch) (*domain.WorkflowNode, error) {
	var result *domain.WorkflowNode
	err := r.dao.ExecuteWrite(ctx, tenantID, func(tx *gorm.DB) error {
		row := &model.WorkflowNode{}
		err := tx.Where("id = ? AND tenant_id = ?", nodeID, tenantID).First(row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if !patch.IsEmpty() {
			updates := map[string]any{}
			if patch.Title != nil {
				updates["title"] = *patch.Title
			}
			if patch.Content != nil {
				updates["content"] = *patch.Content
			}
			if patch.X != nil {
				updates["x"] = *patch.X
			}
			if patch.Y != nil {
				updates["y"] = *patch.Y
			}
			if err := tx.Model(row).Updates(updates).Error; err != nil {
				return err
			}
		}

		node := r.nodeToDomain(row)
		patch.Apply(node)

		var files []*model.WorkflowFile
		if err := tx.Where("tenant_id = ? AND node_id = ?", tenantID, nodeID).Order("id ASC").Find(&files).Error; err != nil {
			return err
		}
		for _, f := range files {
			node.Files = append(node.Files, r.fileToDomain(f))
		}
		result = node
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteNode removes the node's files and connections, then the node itself
// DeleteNode 级联删除附件与连线后删除节点
func (r *workflowRepository) DeleteNode(ctx context.Context, tenantID string, nodeID int64) (bool, error) {
	var affected int64
	err := r.dao.ExecuteWrite(ctx, tenantID, func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ? AND node_id = ?", tenantID, nodeID).Delete(&model.WorkflowFile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ? AND (from_node_id = ? OR to_node_id = ?)", tenantID, nodeID, nodeID).Delete(&model.WorkflowConnection{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND tenant_id = ?", nodeID, tenantID).Delete(&model.WorkflowNode{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CreateConnection 创建连线，自环与端点缺失返回 nil，重复时返回已有连线
func (r *workflowRepository) CreateConnection(ctx context.Context, tenantID string, in domain.ConnectionInput) (*domain.WorkflowConnection, error) {
	if in.IsSelfLoop() {
		return nil, nil
	}

	var result *model.WorkflowConnection
	err := r.dao.ExecuteWrite(ctx, tenantID, func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&model.WorkflowNode{}).
			Where("tenant_id = ? AND id IN ?", tenantID, []int64{in.From, in.To}).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count != 2 {
			r.dao.Logger().Debug("connection rejected, endpoint not found",
				zap.String(logger.FieldTenant, tenantID),
				zap.Int64("from", in.From),
				zap.Int64("to", in.To))
			return nil
		}

		var existing []*model.WorkflowConnection
		err = tx.Where("tenant_id = ? AND from_node_id = ? AND to_node_id = ? AND from_anchor = ? AND to_anchor = ?",
			tenantID, in.From, in.To, in.FromAnchor, in.ToAnchor).
			Order("id ASC").Limit(1).Find(&existing).Error
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			result = existing[0]
			return nil
		}

		row := &model.WorkflowConnection{
			TenantID:   tenantID,
			FromNodeID: in.From,
			ToNodeID:   in.To,
			FromAnchor: in.FromAnchor,
			ToAnchor:   in.ToAnchor,
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		result = row
		return nil
	})
	if err != nil || result == nil {
		return nil, err
	}
	return r.connectionToDomain(result), nil
}

// DeleteConnection 删除连线
func (r *workflowRepository) DeleteConnection(ctx context.Context, tenantID string, connectionID int64) (bool, error) {
	var affected int64
	err := r.dao.ExecuteWrite(ctx, tenantID, func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND tenant_id = ?", connectionID, tenantID).Delete(&model.WorkflowConnection{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// FindConnectionIDByPair 按方向查找 id 最小的连线
func (r *workflowRepository) FindConnectionIDByPair(ctx context.Context, tenantID string, from, to int64) (int64, bool, error) {
	db, err := r.dao.conn(ctx)
	if err != nil {
		return 0, false, err
	}
	var rows []*model.WorkflowConnection
	err = db.Where("tenant_id = ? AND from_node_id = ? AND to_node_id = ?", tenantID, from, to).
		Order("id ASC").Limit(1).Find(&rows).Error
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].ID, true, nil
}

// AddFileToNode 为租户自己的节点添加附件
func (r *workflowRepository) AddFileToNode(ctx context.Context, tenantID string, nodeID int64, in domain.FileInput) (*domain.WorkflowFile, error) {
	var result *model.WorkflowFile
	err := r.dao.ExecuteWrite(ctx, tenantID, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.WorkflowNode{}).Where("id = ? AND tenant_id = ?", nodeID, tenantID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			r.dao.Logger().Debug("file rejected, node not found",
				zap.String(logger.FieldTenant, tenantID),
				zap.Int64(logger.FieldNodeID, nodeID))
			return nil
		}

		data := make([]byte, len(in.Buffer))
		copy(data, in.Buffer)
		row := &model.WorkflowFile{
			TenantID:    tenantID,
			NodeID:      nodeID,
			FileName:    in.FileName,
			ContentType: in.ContentType,
			Data:        data,
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		result = row
		return nil
	})
	if err != nil || result == nil {
		return nil, err
	}
	return r.fileToDomain(result), nil
}

// FindFile 查找租户的附件
func (r *workflowRepository) FindFile(ctx context.Context, tenantID string, fileID int64) (*domain.WorkflowFile, error) {
	db, err := r.dao.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []*model.WorkflowFile
	if err := db.Where("id = ? AND tenant_id = ?", fileID, tenantID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return r.fileToDomain(rows[0]), nil
}

// DeleteFile 删除附件
func (r *workflowRepository) DeleteFile(ctx context.Context, tenantID string, fileID int64) (bool, error) {
	var affected int64
	err := r.dao.ExecuteWrite(ctx, tenantID, func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND tenant_id = ?", fileID, tenantID).Delete(&model.WorkflowFile{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
