package service

import (
	"context"
	"testing"

	"examforge-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationList_ScopeSeparation(t *testing.T) {
	convRepo := newFakeConversationRepo()
	msgRepo := newFakeMessageRepo()
	svc := NewConversationService(convRepo, msgRepo)
	ctx := context.Background()

	subjectID := uint(7)
	require.NoError(t, convRepo.Create(ctx, &model.Conversation{UserID: 1, Title: "general one"}))
	require.NoError(t, convRepo.Create(ctx, &model.Conversation{UserID: 1, SubjectID: &subjectID, Title: "subject one"}))
	require.NoError(t, convRepo.Create(ctx, &model.Conversation{UserID: 2, Title: "other user"}))

	general, err := svc.List(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, general, 1)
	assert.Equal(t, "general one", general[0].Title)

	scoped, err := svc.List(ctx, 1, &subjectID)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "subject one", scoped[0].Title)
}

func TestConversationGetMessages_OwnershipAndOrder(t *testing.T) {
	convRepo := newFakeConversationRepo()
	msgRepo := newFakeMessageRepo()
	svc := NewConversationService(convRepo, msgRepo)
	ctx := context.Background()

	conv := &model.Conversation{UserID: 1}
	require.NoError(t, convRepo.Create(ctx, conv))
	require.NoError(t, msgRepo.Append(ctx, &model.Message{ConversationID: conv.ID, UserID: 1, Role: model.RoleUser, Content: "first"}))
	require.NoError(t, msgRepo.Append(ctx, &model.Message{ConversationID: conv.ID, UserID: 1, Role: model.RoleAssistant, Content: "second"}))

	messages, err := svc.GetMessages(ctx, 1, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)

	// 非归属用户读不到，也探测不到存在性
	_, err = svc.GetMessages(ctx, 2, conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationDelete(t *testing.T) {
	convRepo := newFakeConversationRepo()
	msgRepo := newFakeMessageRepo()
	svc := NewConversationService(convRepo, msgRepo)
	ctx := context.Background()

	conv := &model.Conversation{UserID: 1}
	require.NoError(t, convRepo.Create(ctx, conv))

	// 他人删除被拒
	assert.ErrorIs(t, svc.Delete(ctx, 2, conv.ID), ErrConversationNotFound)

	require.NoError(t, svc.Delete(ctx, 1, conv.ID))
	assert.Empty(t, convRepo.conversations)

	// 重复删除等价于不存在
	assert.ErrorIs(t, svc.Delete(ctx, 1, conv.ID), ErrConversationNotFound)
}
