// Package model 定义数据模型
package model

import (
	"gorm.io/gorm"
)

// Models lists every repository table in creation order
func Models() []any {
	return []any{
		&Memo{},
		&AiHistory{},
		&WorkflowNode{},
		&WorkflowConnection{},
		&WorkflowFile{},
	}
}

// AutoMigrateAll 创建全部仓储表，可重复执行
func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
