package logger

// 统一的日志字段命名常量
// 用于确保整个项目中日志字段命名的一致性，便于日志查询和分析
const (
	// FieldTenant 租户 ID 字段
	FieldTenant = "tenantId"

	// FieldNodeID 节点 ID 字段
	FieldNodeID = "nodeId"

	// FieldMethod 方法名称字段
	FieldMethod = "method"

	// FieldDriver 存储驱动字段
	FieldDriver = "driver"

	// FieldPath 文件路径字段
	FieldPath = "path"

	// FieldVersion 迁移版本字段
	FieldVersion = "version"

	// FieldDuration 耗时字段
	FieldDuration = "duration"

	// FieldSize 数据大小字段
	FieldSize = "size"
)
