// Package domain 定义领域模型和接口
package domain

import "time"

// TimestampLayout ISO-8601 UTC instant with millisecond precision
// TimestampLayout 毫秒精度的 ISO-8601 UTC 时间格式
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp 将时间格式化为 UTC 毫秒精度字符串
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Millisecond).Format(TimestampLayout)
}

// Memo 学习备忘录领域模型
type Memo struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// MemoInput 创建或更新备忘录的参数
type MemoInput struct {
	Title   string
	Content string
}

// Clone 返回备忘录的副本
func (m *Memo) Clone() *Memo {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// AiHistoryItem AI 问答记录
type AiHistoryItem struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp"`
}

// AiHistoryInput 追加 AI 问答记录的参数
type AiHistoryInput struct {
	Question string
	Answer   string
}

// Clone 返回问答记录的副本
func (h *AiHistoryItem) Clone() *AiHistoryItem {
	if h == nil {
		return nil
	}
	c := *h
	return &c
}
