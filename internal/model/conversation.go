// Package model 包含了应用的数据模型定义。
package model

import "time"

// Conversation 代表一个 AI 对话线程（ai_conversations 表）。
// SubjectID 为 NULL 时表示通用对话，否则绑定到单个学科；
// 作用域在创建后不可变更。Title/Preview 由消息内容截断派生。
type Conversation struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	SubjectID *uint     `gorm:"index" json:"subjectId"`
	Title     string    `gorm:"type:varchar(100)" json:"title"`
	Preview   string    `gorm:"type:varchar(100)" json:"preview"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Conversation) TableName() string {
	return "ai_conversations"
}

// 消息角色常量。系统提示不落库，历史中只存在这两种角色。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 代表对话中的单条消息（ai_chat_history 表）。
// 同一对话内的消息以 CreatedAt 全序排列，历史重建只依赖该顺序。
type Message struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint      `gorm:"index;not null" json:"conversationId"`
	UserID         uint      `gorm:"not null" json:"userId"`
	Role           string    `gorm:"type:varchar(10);not null" json:"role"` // "user" 或 "assistant"
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Message) TableName() string {
	return "ai_chat_history"
}
