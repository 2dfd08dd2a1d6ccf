// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"

	"examforge-go/internal/model"
	"examforge-go/internal/repository"

	"gorm.io/gorm"
)

// ErrConversationNotFound 表示对话不存在或不属于当前用户。
// 两种情况对外不做区分，避免泄露他人对话的存在性。
var ErrConversationNotFound = errors.New("conversation not found")

// 对话列表的数量上限。
const (
	generalConversationLimit = 50 // 通用对话列表
	subjectConversationLimit = 30 // 学科作用域列表
)

// ConversationDTO 是对话列表项的响应结构。
type ConversationDTO struct {
	ID        uint            `json:"id"`
	Title     string          `json:"title"`
	Preview   string          `json:"preview"`
	CreatedAt model.LocalTime `json:"createdAt"`
}

// MessageDTO 是对话消息的响应结构。
type MessageDTO struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	CreatedAt model.LocalTime `json:"createdAt"`
}

// ConversationService 定义了对话线程管理的业务接口。
// 所有操作都以当前用户为归属边界。
type ConversationService interface {
	// List 返回用户的对话列表，按最近更新排序。
	// subjectID 为 nil 时返回通用对话（上限 50），否则返回该学科的对话（上限 30）。
	List(ctx context.Context, ownerID uint, subjectID *uint) ([]ConversationDTO, error)
	// GetMessages 返回对话的全部消息，按时间正序。
	GetMessages(ctx context.Context, ownerID, conversationID uint) ([]MessageDTO, error)
	// Delete 删除对话及其全部消息。
	Delete(ctx context.Context, ownerID, conversationID uint) error
}

type conversationService struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(convRepo repository.ConversationRepository, msgRepo repository.MessageRepository) ConversationService {
	return &conversationService{convRepo: convRepo, msgRepo: msgRepo}
}

// List 返回用户的对话列表。
func (s *conversationService) List(ctx context.Context, ownerID uint, subjectID *uint) ([]ConversationDTO, error) {
	limit := generalConversationLimit
	if subjectID != nil {
		limit = subjectConversationLimit
	}
	conversations, err := s.convRepo.ListByOwner(ctx, ownerID, subjectID, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]ConversationDTO, 0, len(conversations))
	for _, c := range conversations {
		dtos = append(dtos, ConversationDTO{
			ID:        c.ID,
			Title:     c.Title,
			Preview:   c.Preview,
			CreatedAt: model.LocalTime(c.CreatedAt),
		})
	}
	return dtos, nil
}

// GetMessages 校验归属后返回对话消息。
func (s *conversationService) GetMessages(ctx context.Context, ownerID, conversationID uint) ([]MessageDTO, error) {
	if _, err := s.convRepo.FindByIDAndOwner(ctx, conversationID, ownerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	messages, err := s.msgRepo.FindByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	dtos := make([]MessageDTO, 0, len(messages))
	for _, m := range messages {
		dtos = append(dtos, MessageDTO{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: model.LocalTime(m.CreatedAt),
		})
	}
	return dtos, nil
}

// Delete 删除对话，归属校验由仓储层在事务内完成。
func (s *conversationService) Delete(ctx context.Context, ownerID, conversationID uint) error {
	err := s.convRepo.Delete(ctx, conversationID, ownerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrConversationNotFound
	}
	return err
}
