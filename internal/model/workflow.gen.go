package model

import "time"

const TableNameWorkflowNode = "workflow_nodes"

// WorkflowNode mapped from table <workflow_nodes>
type WorkflowNode struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TenantID  string    `gorm:"column:tenant_id;type:varchar(191);not null;index:idx_workflow_nodes_tenant" json:"tenantId"`
	Title     string    `gorm:"column:title;type:text;not null" json:"title"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	X         float64   `gorm:"column:x;type:double precision;not null;default:0" json:"x"`
	Y         float64   `gorm:"column:y;type:double precision;not null;default:0" json:"y"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName WorkflowNode's table name
func (*WorkflowNode) TableName() string {
	return TableNameWorkflowNode
}

const TableNameWorkflowConnection = "workflow_connections"

// WorkflowConnection mapped from table <workflow_connections>
type WorkflowConnection struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TenantID   string    `gorm:"column:tenant_id;type:varchar(191);not null;index:idx_workflow_connections_pair,priority:1" json:"tenantId"`
	FromNodeID int64     `gorm:"column:from_node_id;not null;index:idx_workflow_connections_pair,priority:2" json:"fromNodeId"`
	ToNodeID   int64     `gorm:"column:to_node_id;not null;index:idx_workflow_connections_pair,priority:3" json:"toNodeId"`
	FromAnchor string    `gorm:"column:from_anchor;type:varchar(255);not null;default:''" json:"fromAnchor"`
	ToAnchor   string    `gorm:"column:to_anchor;type:varchar(255);not null;default:''" json:"toAnchor"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName WorkflowConnection's table name
func (*WorkflowConnection) TableName() string {
	return TableNameWorkflowConnection
}

const TableNameWorkflowFile = "workflow_files"

// WorkflowFile mapped from table <workflow_files>
type WorkflowFile struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TenantID    string    `gorm:"column:tenant_id;type:varchar(191);not null;index:idx_workflow_files_tenant_node,priority:1" json:"tenantId"`
	NodeID      int64     `gorm:"column:node_id;not null;index:idx_workflow_files_tenant_node,priority:2" json:"nodeId"`
	FileName    string    `gorm:"column:file_name;type:varchar(255);not null" json:"fileName"`
	ContentType string    `gorm:"column:content_type;type:varchar(255);not null;default:''" json:"contentType"`
	Data        []byte    `gorm:"column:data;not null" json:"-"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName WorkflowFile's table name
func (*WorkflowFile) TableName() string {
	return TableNameWorkflowFile
}
