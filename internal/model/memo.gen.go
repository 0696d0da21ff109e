package model

import "time"

const TableNameMemo = "memos"

// Memo mapped from table <memos>
type Memo struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TenantID  string    `gorm:"column:tenant_id;type:varchar(191);not null;index:idx_memos_tenant_model,priority:1" json:"tenantId"`
	ModelID   int64     `gorm:"column:model_id;not null;index:idx_memos_tenant_model,priority:2" json:"modelId"`
	Title     string    `gorm:"column:title;type:text;not null" json:"title"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName Memo's table name
func (*Memo) TableName() string {
	return TableNameMemo
}

const TableNameAiHistory = "ai_histories"

// AiHistory mapped from table <ai_histories>
type AiHistory struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TenantID  string    `gorm:"column:tenant_id;type:varchar(191);not null;index:idx_ai_histories_tenant_model,priority:1" json:"tenantId"`
	ModelID   int64     `gorm:"column:model_id;not null;index:idx_ai_histories_tenant_model,priority:2" json:"modelId"`
	Question  string    `gorm:"column:question;type:text;not null" json:"question"`
	Answer    string    `gorm:"column:answer;type:text;not null" json:"answer"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime:false" json:"createdAt"`
}

// TableName AiHistory's table name
func (*AiHistory) TableName() string {
	return TableNameAiHistory
}
