// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"time"

	"examforge-go/internal/model"

	"gorm.io/gorm"
)

// ConversationRepository 定义了 AI 对话线程的持久化操作。
// 所有按 ID 的读写都要求归属校验：conversation.user_id 必须与调用方一致。
type ConversationRepository interface {
	Create(ctx context.Context, conv *model.Conversation) error
	FindByIDAndOwner(ctx context.Context, conversationID, ownerID uint) (*model.Conversation, error)
	// ListByOwner 按最近更新排序返回某用户的对话。subjectID 为 nil 时
	// 只返回通用对话（subject_id IS NULL）。
	ListByOwner(ctx context.Context, ownerID uint, subjectID *uint, limit int) ([]model.Conversation, error)
	// UpdateSummary 刷新 preview/title（nil 表示不变）并更新时间戳。
	UpdateSummary(ctx context.Context, conversationID uint, preview, title *string) error
	// Delete 在单个事务内删除消息与对话行，两步都校验归属。
	Delete(ctx context.Context, conversationID, ownerID uint) error
}

// MessageRepository 定义了对话消息的持久化操作。
type MessageRepository interface {
	Append(ctx context.Context, msg *model.Message) error
	// FindRecent 返回最近 limit 条消息，按创建时间从新到旧。
	FindRecent(ctx context.Context, conversationID uint, limit int) ([]model.Message, error)
	// FindByConversation 返回对话的全部消息，按创建时间从旧到新。
	FindByConversation(ctx context.Context, conversationID uint) ([]model.Message, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// Create 插入一条新的对话记录。
func (r *conversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

// FindByIDAndOwner 查找对话并校验归属。
func (r *conversationRepository) FindByIDAndOwner(ctx context.Context, conversationID, ownerID uint) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", conversationID, ownerID).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListByOwner 按最近更新排序返回某用户的对话列表。
func (r *conversationRepository) ListByOwner(ctx context.Context, ownerID uint, subjectID *uint, limit int) ([]model.Conversation, error) {
	var conversations []model.Conversation
	query := r.db.WithContext(ctx).Where("user_id = ?", ownerID)
	if subjectID != nil {
		query = query.Where("subject_id = ?", *subjectID)
	} else {
		query = query.Where("subject_id IS NULL")
	}
	err := query.Order("updated_at DESC").Limit(limit).Find(&conversations).Error
	return conversations, err
}

// UpdateSummary 刷新对话的摘要字段与更新时间。
func (r *conversationRepository) UpdateSummary(ctx context.Context, conversationID uint, preview, title *string) error {
	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if preview != nil {
		updates["preview"] = *preview
	}
	if title != nil {
		updates["title"] = *title
	}
	return r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Updates(updates).Error
}

// Delete 删除对话及其全部消息。
// 先删消息再删对话行，放在同一事务里避免留下孤儿消息；
// 两步都带 user_id 条件，归属校验不再只覆盖对话行。
func (r *conversationRepository) Delete(ctx context.Context, conversationID, ownerID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv model.Conversation
		if err := tx.Where("id = ? AND user_id = ?", conversationID, ownerID).First(&conv).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ? AND user_id = ?", conversationID, ownerID).
			Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&conv).Error
	})
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Append 追加一条消息。
func (r *messageRepository) Append(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// FindRecent 返回最近 limit 条消息（从新到旧）。
// 存储层对"最近 N 条"的自然查询顺序是倒序，调用方在入 prompt 前负责反转。
func (r *messageRepository) FindRecent(ctx context.Context, conversationID uint, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// FindByConversation 返回对话的全部消息（从旧到新）。
func (r *messageRepository) FindByConversation(ctx context.Context, conversationID uint) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}
