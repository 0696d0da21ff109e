// Package domain 定义领域模型和接口
package domain

// WorkflowFile binary attachment owned by a single node
// WorkflowFile 节点附件
type WorkflowFile struct {
	ID          int64  `json:"id"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Buffer      []byte `json:"buffer"`
}

// Clone returns a copy with its own buffer
// Clone 返回带独立缓冲区的副本
func (f *WorkflowFile) Clone() *WorkflowFile {
	if f == nil {
		return nil
	}
	c := *f
	c.Buffer = append([]byte(nil), f.Buffer...)
	return &c
}

// WorkflowNode node on a tenant's workflow canvas
// WorkflowNode 工作流画布上的节点
type WorkflowNode struct {
	ID      int64           `json:"id"`
	Title   string          `json:"title"`
	Content string          `json:"content"`
	X       float64         `json:"x"`
	Y       float64         `json:"y"`
	Files   []*WorkflowFile `json:"files"`
}

// Clone deep copies the node including its files
// Clone 深拷贝节点及其附件
func (n *WorkflowNode) Clone() *WorkflowNode {
	if n == nil {
		return nil
	}
	c := *n
	c.Files = make([]*WorkflowFile, 0, len(n.Files))
	for _, f := range n.Files {
		c.Files = append(c.Files, f.Clone())
	}
	return &c
}

// WorkflowConnection directed edge between two nodes of the same tenant
// WorkflowConnection 同一租户两个节点之间的有向连线
type WorkflowConnection struct {
	ID         int64  `json:"id"`
	From       int64  `json:"from"`
	To         int64  `json:"to"`
	FromAnchor string `json:"fromAnchor"`
	ToAnchor   string `json:"toAnchor"`
}

// Clone 返回连线的副本
func (c *WorkflowConnection) Clone() *WorkflowConnection {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// Matches reports whether the connection carries exactly the given endpoints and anchors
// Matches 判断连线是否与给定端点及锚点完全一致
func (c *WorkflowConnection) Matches(in ConnectionInput) bool {
	return c.From == in.From && c.To == in.To && c.FromAnchor == in.FromAnchor && c.ToAnchor == in.ToAnchor
}

// WorkflowState 租户的工作流快照
type WorkflowState struct {
	Nodes       []*WorkflowNode       `json:"nodes"`
	Connections []*WorkflowConnection `json:"connections"`
}

// NewWorkflowState returns an empty state with non-nil slices
// NewWorkflowState 返回空的工作流状态
func NewWorkflowState() *WorkflowState {
	return &WorkflowState{
		Nodes:       []*WorkflowNode{},
		Connections: []*WorkflowConnection{},
	}
}

// Clone 深拷贝工作流状态
func (s *WorkflowState) Clone() *WorkflowState {
	out := NewWorkflowState()
	if s == nil {
		return out
	}
	for _, n := range s.Nodes {
		out.Nodes = append(out.Nodes, n.Clone())
	}
	for _, c := range s.Connections {
		out.Connections = append(out.Connections, c.Clone())
	}
	return out
}

// NodeInput 创建节点的参数
type NodeInput struct {
	Title   string
	Content string
	X       float64
	Y       float64
}

// NodePatch sparse node update, nil fields are left unchanged
// NodePatch 节点的部分更新，nil 字段保持不变
type NodePatch struct {
	Title   *string
	Content *string
	X       *float64
	Y       *float64
}

// IsEmpty 判断补丁是否没有任何字段
func (p NodePatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.X == nil && p.Y == nil
}

// Apply 将补丁应用到节点
func (p NodePatch) Apply(n *WorkflowNode) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.X != nil {
		n.X = *p.X
	}
	if p.Y != nil {
		n.Y = *p.Y
	}
}

// ConnectionInput 创建连线的参数
type ConnectionInput struct {
	From       int64
	To         int64
	FromAnchor string
	ToAnchor   string
}

// IsSelfLoop 判断连线起点与终点是否相同
func (in ConnectionInput) IsSelfLoop() bool {
	return in.From == in.To
}

// FileInput 添加附件的参数
type FileInput struct {
	FileName    string
	ContentType string
	Buffer      []byte
}
