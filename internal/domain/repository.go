// Package domain 定义领域模型和接口
package domain

import (
	"context"
	"errors"
)

// Not-found and rejected operations return a nil entity (or false) with a nil error.
// A non-nil error always means the backing storage failed.
// 未找到或被拒绝的操作返回 nil（或 false）且 error 为 nil，error 仅表示存储失败。

// MemoRepository 备忘录仓储接口
type MemoRepository interface {
	// ListByModel 获取租户在某个模型下的全部备忘录（按创建顺序）
	ListByModel(ctx context.Context, tenantID string, modelID int64) ([]*Memo, error)

	// Create 创建备忘录
	Create(ctx context.Context, tenantID string, modelID int64, in MemoInput) (*Memo, error)

	// Update 替换备忘录标题和内容，其他租户的备忘录视为不存在
	Update(ctx context.Context, tenantID string, memoID int64, in MemoInput) (*Memo, error)

	// Delete 删除备忘录，返回是否确实删除
	Delete(ctx context.Context, tenantID string, memoID int64) (bool, error)
}

// AiHistoryRepository AI 问答历史仓储接口
type AiHistoryRepository interface {
	// ListByModel 按时间顺序获取问答记录
	ListByModel(ctx context.Context, tenantID string, modelID int64) ([]*AiHistoryItem, error)

	// Append 追加问答记录，时间戳由存储层生成
	Append(ctx context.Context, tenantID string, modelID int64, in AiHistoryInput) (*AiHistoryItem, error)
}

// WorkflowRepository 工作流仓储接口
type WorkflowRepository interface {
	// List 获取租户的完整工作流状态
	List(ctx context.Context, tenantID string) (*WorkflowState, error)

	// CreateNode 创建节点
	CreateNode(ctx context.Context, tenantID string, in NodeInput) (*WorkflowNode, error)

	// UpdateNode 部分更新节点
	UpdateNode(ctx context.Context, tenantID string, nodeID int64, patch NodePatch) (*WorkflowNode, error)

	// DeleteNode 删除节点并级联删除其连线和附件
	DeleteNode(ctx context.Context, tenantID string, nodeID int64) (bool, error)

	// CreateConnection 创建连线，自环或端点不存在时返回 nil，重复时返回已有连线
	CreateConnection(ctx context.Context, tenantID string, in ConnectionInput) (*WorkflowConnection, error)

	// DeleteConnection 删除连线
	DeleteConnection(ctx context.Context, tenantID string, connectionID int64) (bool, error)

	// FindConnectionIDByPair 按方向查找第一条匹配的连线
	FindConnectionIDByPair(ctx context.Context, tenantID string, from, to int64) (int64, bool, error)

	// AddFileToNode 为节点添加附件
	AddFileToNode(ctx context.Context, tenantID string, nodeID int64, in FileInput) (*WorkflowFile, error)

	// FindFile 在租户全部节点中查找附件
	FindFile(ctx context.Context, tenantID string, fileID int64) (*WorkflowFile, error)

	// DeleteFile 删除附件
	DeleteFile(ctx context.Context, tenantID string, fileID int64) (bool, error)
}

// Repositories bundles one backend's repositories
// Repositories 同一后端的仓储集合
type Repositories struct {
	Memo      MemoRepository
	AiHistory AiHistoryRepository
	Workflow  WorkflowRepository

	closers []func() error
}

// NewRepositories 创建仓储集合，closers 在 Close 时按逆序执行
func NewRepositories(memo MemoRepository, history AiHistoryRepository, workflow WorkflowRepository, closers ...func() error) *Repositories {
	return &Repositories{
		Memo:      memo,
		AiHistory: history,
		Workflow:  workflow,
		closers:   closers,
	}
}

// Close releases backend resources
// Close 释放后端资源
func (r *Repositories) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
