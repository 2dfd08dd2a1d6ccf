package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"examforge-go/internal/config"
	"examforge-go/internal/model"
	"examforge-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatFixture struct {
	convRepo    *fakeConversationRepo
	msgRepo     *fakeMessageRepo
	subjectRepo *fakeSubjectRepo
	llmClient   *fakeLLM
	attachments *fakeAttachments
	svc         ChatService
	user        *model.User
}

func newChatFixture(contextBlock string) *chatFixture {
	f := &chatFixture{
		convRepo:    newFakeConversationRepo(),
		msgRepo:     newFakeMessageRepo(),
		subjectRepo: newFakeSubjectRepo(&model.Subject{ID: 7, Name: "Operating Systems", Code: "CS301"}),
		llmClient:   &fakeLLM{},
		attachments: &fakeAttachments{},
		user:        &model.User{ID: 42, Email: "stu@example.com", Role: model.RoleStudent},
	}
	f.svc = NewChatService(
		f.convRepo, f.msgRepo, f.subjectRepo,
		&fakeContext{block: contextBlock}, f.attachments, f.llmClient,
		config.AIConfig{Name: "ExamForge", Creator: "Danish"},
	)
	return f
}

func TestSubmitTurn_FirstTurnCreatesConversation(t *testing.T) {
	f := newChatFixture("")
	f.llmClient.completeFn = func(_ []llm.Message, _ *llm.GenerationParams) (string, error) {
		return "Paging separates logical and physical memory.", nil
	}

	longMsg := strings.Repeat("x", 80)
	result, err := f.svc.SubmitTurn(context.Background(), f.user, TurnRequest{Message: longMsg})
	require.NoError(t, err)
	require.NotNil(t, result.ConversationID)
	assert.Equal(t, "Paging separates logical and physical memory.", result.Reply)

	conv := f.convRepo.conversations[*result.ConversationID]
	require.NotNil(t, conv)
	// 标题与预览由首条消息截断派生
	assert.Equal(t, strings.Repeat("x", 30)+"...", conv.Title)

	// 用户与助手消息先后落库
	messages, _ := f.msgRepo.FindByConversation(context.Background(), conv.ID)
	require.Len(t, messages, 2)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Equal(t, longMsg, messages[0].Content)
	assert.Equal(t, model.RoleAssistant, messages[1].Role)

	// 预览随回复刷新，标题保持不变
	require.Len(t, f.convRepo.summaryCalls, 1)
	require.NotNil(t, f.convRepo.summaryCalls[0].preview)
	assert.Equal(t, "Paging separates logical and physical memory....", *f.convRepo.summaryCalls[0].preview)
	assert.Nil(t, f.convRepo.summaryCalls[0].title)
}

func TestSubmitTurn_EmptyTurnRejectedWithoutSideEffects(t *testing.T) {
	f := newChatFixture("")

	_, err := f.svc.SubmitTurn(context.Background(), f.user, TurnRequest{})

	assert.ErrorIs(t, err, ErrEmptyTurn)
	assert.Empty(t, f.convRepo.conversations)
	assert.Empty(t, f.msgRepo.messages)
	assert.Empty(t, f.llmClient.calls)
}

func TestSubmitTurn_CannedIdentitySkipsBackend(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{
			name:    "creator question",
			message: "Hey, WHO BUILT YOU exactly?",
			want:    "I'm built for a specific Exam purpose and the Name is ExamForge, built truly by Danish. 🦊",
		},
		{
			name:    "about product",
			message: "tell me about examforge please",
			want:    "ExamForge is an AI-powered exam preparation platform built by Danish. I help students prepare using PYQs, study materials, and AI tutoring. 🦊📚",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChatFixture("")

			result, err := f.svc.SubmitTurn(context.Background(), f.user, TurnRequest{Message: tt.message})
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Reply)

			// 后端不被调用，但消息照常落库
			assert.Empty(t, f.llmClient.calls)
			require.NotNil(t, result.ConversationID)
			messages, _ := f.msgRepo.FindByConversation(context.Background(), *result.ConversationID)
			require.Len(t, messages, 2)
			assert.Equal(t, tt.message, messages[0].Content)
			assert.Equal(t, tt.want, messages[1].Content)
		})
	}
}

func TestSubmitTurn_ForeignConversationRejected(t *testing.T) {
	f := newChatFixture("")
	other := &model.Conversation{UserID: 99, Title: "someone else"}
	require.NoError(t, f.convRepo.Create(context.Background(), other))

	_, err := f.svc.SubmitTurn(context.Background(), f.user, TurnRequest{
		Message:        "hello",
		ConversationID: &other.ID,
	})

	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.Empty(t, f.llmClient.calls)
	assert.Empty(t, f.msgRepo.messages)
}

func TestSubmitTurn_HistoryIsChronological(t *testing.T) {
	f := newChatFixture("")
	conv := &model.Conversation{UserID: f.user.ID}
	require.NoError(t, f.convRepo.Create(context.Background(), conv))

	// 12 条历史，只有最近 10 条进入提示词
	for i := 0; i < 6; i++ {
		require.NoError(t, f.msgRepo.Append(context.Background(), &model.Message{
			ConversationID: conv.ID, UserID: f.user.ID, Role: model.RoleUser, Content: "q" + string(rune('0'+i)),
		}))
		require.NoError(t, f.msgRepo.Append(context.Background(), &model.Message{
			ConversationID: conv.ID, UserID: f.user.ID, Role: model.RoleAssistant, Content: "a" + string(rune('0'+i)),
		}))
	}

	_, err := f.svc.SubmitTurn(context.Background(), f.user, TurnRequest{
		Message:        "next question",
		ConversationID: &conv.ID,
	})
	require.NoError(t, err)

	require.Len(t, f.llmClient.calls, 1)
	sent := f.llmClient.calls[0]
	// system + 10 条历史 + 当前用户消息
	require.Len(t, sent, 12)
	assert.Equal(t, "system", sent[0].Role)
	// 历史按时间正序：最早进入窗口的是 q1（q0/a0 被挤出）
	assert.Equal(t, "q1", sent[1].Content)
	assert.Equal(t, "a1", sent[2].Content)
	assert.Equal(t, "a5", sent[10].Content)
	assert.Equal(t, "next question", sent[11].Content)
}

func TestSubmitTurn_SystemPromptScopes(t *testing.T) {
	subjectID := uint(7)

	tests := []struct {
		name      string
		subjectID *uint
		block     string
		wantParts []string
		skipParts []string
	}{
		{
			name:      "subject scope with materials",
			subjectID: &subjectID,
			block:     "[MATERIAL: OS Notes (book)]\npaging basics",
			wantParts: []string{"Subject Context: Operating Systems", "LIBRARY MATERIALS:", "[MATERIAL: OS Notes (book)]"},
		},
		{
			name:      "general scope without materials",
			subjectID: nil,
			block:     "",
			wantParts: []string{"Subject Context: General"},
			skipParts: []string{"LIBRARY MATERIALS:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChatFixture(tt.block)

			_, err := f.svc.SubmitTurn(context.Background(), f.user, TurnRequest{
				Message:   "explain deadlocks",
				SubjectID: tt.subjectID,
			})
			require.NoError(t, err)

			require.Len(t, f.llmClient.calls, 1)
			systemPrompt := f.llmClient.calls[0][0].Content.(string)
			for _, part := range tt.wantParts {
				assert.Contains(t, systemPrompt, part)
			}
			for _, part := range tt.skipParts {
				assert.NotContains(t, systemPrompt, part)
			}
		})
	}
}

func TestSubmitTurn_BackendFailureKeepsUserTurn(t *testing.T) {
	f := newChatFixture("")
	f.llmClient.completeFn = func(_ []llm.Message, _ *llm.GenerationParams) (string, error) {
		return "", errors.New("upstream exploded")
	}

	result, err := f.svc.SubmitTurn(context.Background(), f.user, TurnRequest{Message: "help me"})
	require.NoError(t, err)
	assert.Equal(t, "I'm having trouble. Please try again.", result.Reply)

	// 用户消息保留，但没有幻影助手消息，预览不刷新
	require.NotNil(t, result.ConversationID)
	messages, _ := f.msgRepo.FindByConversation(context.Background(), *result.ConversationID)
	require.Len(t, messages, 1)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Empty(t, f.convRepo.summaryCalls)
}

func TestSubmitTurn_NotConfigured(t *testing.T) {
	f := newChatFixture("")
	f.llmClient.completeFn = func(_ []llm.Message, _ *llm.GenerationParams) (string, error) {
		return "", llm.ErrNotConfigured
	}

	result, err := f.svc.SubmitTurn(context.Background(), f.user, TurnRequest{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "AI service is not configured.", result.Reply)
	assert.Empty(t, f.msgRepo.messages)
}

func TestSubmitTurn_EmptyReplyFallback(t *testing.T) {
	f := newChatFixture("")
	f.llmClient.completeFn = func(_ []llm.Message, _ *llm.GenerationParams) (string, error) {
		return "", nil
	}

	result, err := f.svc.SubmitTurn(context.Background(), f.user, TurnRequest{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "I couldn't generate a response.", result.Reply)

	messages, _ := f.msgRepo.FindByConversation(context.Background(), *result.ConversationID)
	require.Len(t, messages, 2)
	assert.Equal(t, "I couldn't generate a response.", messages[1].Content)
}

func TestSubmitTurn_FileOnlyTurn(t *testing.T) {
	f := newChatFixture("")
	f.attachments.result = ProcessedFile{
		SystemContext: "\n\n[USER ATTACHED PDF: notes.pdf]\nCONTENT START:\nhello\nCONTENT END\n",
		TextSuffix:    "\n(I have attached a PDF file: notes.pdf. Please analyze its content provided in the system context.)",
	}

	result, err := f.svc.SubmitTurn(context.Background(), f.user, TurnRequest{
		File: &TurnFile{Name: "notes.pdf", MediaType: "application/pdf", Data: "aGVsbG8="},
	})
	require.NoError(t, err)
	require.NotNil(t, result.ConversationID)

	conv := f.convRepo.conversations[*result.ConversationID]
	assert.Equal(t, "File Upload Analysis", conv.Title)
	assert.Equal(t, "Sent a file", conv.Preview)

	// 落库的用户消息带附件标注，不带文件字节
	messages, _ := f.msgRepo.FindByConversation(context.Background(), *result.ConversationID)
	require.Len(t, messages, 2)
	assert.True(t, strings.HasPrefix(messages[0].Content, "[Attached PDF: notes.pdf]\n"))
	assert.NotContains(t, messages[0].Content, "aGVsbG8=")

	// 提取文本进入系统提示词，用户可见文本里是占位语加说明
	sent := f.llmClient.calls[0]
	assert.Contains(t, sent[0].Content.(string), "[USER ATTACHED PDF: notes.pdf]")
	assert.Contains(t, sent[len(sent)-1].Content.(string), "Analyze this file.")
}

func TestSubmitTurn_ImageBecomesMultimodal(t *testing.T) {
	f := newChatFixture("")
	f.attachments.result = ProcessedFile{ImageDataURI: "data:image/png;base64,AAAA"}

	_, err := f.svc.SubmitTurn(context.Background(), f.user, TurnRequest{
		Message: "what's on this diagram?",
		File:    &TurnFile{Name: "diagram.png", MediaType: "image/png", Data: "AAAA"},
	})
	require.NoError(t, err)

	sent := f.llmClient.calls[0]
	parts, ok := sent[len(sent)-1].Content.([]llm.ContentPart)
	require.True(t, ok, "user message should be multimodal")
	require.Len(t, parts, 2)
	assert.Equal(t, "what's on this diagram?", parts[0].Text)
	require.NotNil(t, parts[1].ImageURL)
	assert.Equal(t, "data:image/png;base64,AAAA", parts[1].ImageURL.URL)
}

func TestSubmitTurn_DefaultGenerationParams(t *testing.T) {
	f := newChatFixture("")

	_, err := f.svc.SubmitTurn(context.Background(), f.user, TurnRequest{Message: "hi there friend"})
	require.NoError(t, err)

	require.NotNil(t, f.llmClient.lastGen)
	require.NotNil(t, f.llmClient.lastGen.Temperature)
	assert.Equal(t, 0.7, *f.llmClient.lastGen.Temperature)
	require.NotNil(t, f.llmClient.lastGen.MaxTokens)
	assert.Equal(t, 1000, *f.llmClient.lastGen.MaxTokens)
}
