package service

import (
	"context"
	"sort"
	"time"

	"examforge-go/internal/model"
	"examforge-go/pkg/llm"

	"gorm.io/gorm"
)

// 内存版仓储实现，行为对齐 GORM 实现的契约（含 ErrRecordNotFound 语义）。

type fakeConversationRepo struct {
	conversations map[uint]*model.Conversation
	nextID        uint
	createErr     error
	summaryCalls  []summaryCall
}

type summaryCall struct {
	conversationID uint
	preview        *string
	title          *string
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[uint]*model.Conversation), nextID: 1}
}

func (f *fakeConversationRepo) Create(_ context.Context, conv *model.Conversation) error {
	if f.createErr != nil {
		return f.createErr
	}
	conv.ID = f.nextID
	f.nextID++
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	stored := *conv
	f.conversations[conv.ID] = &stored
	return nil
}

func (f *fakeConversationRepo) FindByIDAndOwner(_ context.Context, conversationID, ownerID uint) (*model.Conversation, error) {
	conv, ok := f.conversations[conversationID]
	if !ok || conv.UserID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	found := *conv
	return &found, nil
}

func (f *fakeConversationRepo) ListByOwner(_ context.Context, ownerID uint, subjectID *uint, limit int) ([]model.Conversation, error) {
	var result []model.Conversation
	for _, conv := range f.conversations {
		if conv.UserID != ownerID {
			continue
		}
		if subjectID == nil {
			if conv.SubjectID != nil {
				continue
			}
		} else if conv.SubjectID == nil || *conv.SubjectID != *subjectID {
			continue
		}
		result = append(result, *conv)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeConversationRepo) UpdateSummary(_ context.Context, conversationID uint, preview, title *string) error {
	f.summaryCalls = append(f.summaryCalls, summaryCall{conversationID: conversationID, preview: preview, title: title})
	conv, ok := f.conversations[conversationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if preview != nil {
		conv.Preview = *preview
	}
	if title != nil {
		conv.Title = *title
	}
	conv.UpdatedAt = time.Now()
	return nil
}

func (f *fakeConversationRepo) Delete(_ context.Context, conversationID, ownerID uint) error {
	conv, ok := f.conversations[conversationID]
	if !ok || conv.UserID != ownerID {
		return gorm.ErrRecordNotFound
	}
	delete(f.conversations, conversationID)
	return nil
}

type fakeMessageRepo struct {
	messages  []model.Message
	nextID    uint
	appendErr error
	recentErr error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{nextID: 1}
}

func (f *fakeMessageRepo) Append(_ context.Context, msg *model.Message) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	msg.ID = f.nextID
	f.nextID++
	if msg.CreatedAt.IsZero() {
		// 保证同一对话内的消息有稳定的时间全序
		msg.CreatedAt = time.Now().Add(time.Duration(msg.ID) * time.Millisecond)
	}
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeMessageRepo) FindRecent(_ context.Context, conversationID uint, limit int) ([]model.Message, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	asc := f.byConversation(conversationID)
	// 从新到旧
	desc := make([]model.Message, 0, len(asc))
	for i := len(asc) - 1; i >= 0; i-- {
		desc = append(desc, asc[i])
	}
	if limit > 0 && len(desc) > limit {
		desc = desc[:limit]
	}
	return desc, nil
}

func (f *fakeMessageRepo) FindByConversation(_ context.Context, conversationID uint) ([]model.Message, error) {
	return f.byConversation(conversationID), nil
}

func (f *fakeMessageRepo) byConversation(conversationID uint) []model.Message {
	var result []model.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

type fakeSubjectRepo struct {
	subjects map[uint]*model.Subject
}

func newFakeSubjectRepo(subjects ...*model.Subject) *fakeSubjectRepo {
	f := &fakeSubjectRepo{subjects: make(map[uint]*model.Subject)}
	for _, s := range subjects {
		f.subjects[s.ID] = s
	}
	return f
}

func (f *fakeSubjectRepo) Create(subject *model.Subject) error {
	subject.ID = uint(len(f.subjects) + 1)
	f.subjects[subject.ID] = subject
	return nil
}

func (f *fakeSubjectRepo) FindByID(subjectID uint) (*model.Subject, error) {
	subject, ok := f.subjects[subjectID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return subject, nil
}

func (f *fakeSubjectRepo) FindAll() ([]model.Subject, error) {
	var result []model.Subject
	for _, s := range f.subjects {
		result = append(result, *s)
	}
	return result, nil
}

type fakeMaterialRepo struct {
	materials []model.Material
	listErr   error
}

func (f *fakeMaterialRepo) Create(_ context.Context, material *model.Material) error {
	material.ID = uint(len(f.materials) + 1)
	f.materials = append(f.materials, *material)
	return nil
}

func (f *fakeMaterialRepo) FindByID(_ context.Context, materialID uint) (*model.Material, error) {
	for i := range f.materials {
		if f.materials[i].ID == materialID {
			return &f.materials[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMaterialRepo) UpdateTextContent(_ context.Context, materialID uint, text string) error {
	for i := range f.materials {
		if f.materials[i].ID == materialID {
			f.materials[i].TextContent = &text
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeMaterialRepo) ListActiveWithText(_ context.Context, subjectID *uint, limit int) ([]model.Material, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var result []model.Material
	for _, m := range f.materials {
		if !m.IsActive || m.TextContent == nil {
			continue
		}
		if subjectID != nil && (m.SubjectID == nil || *m.SubjectID != *subjectID) {
			continue
		}
		result = append(result, m)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (f *fakeMaterialRepo) ListActiveBySubject(_ context.Context, subjectID uint) ([]model.Material, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var result []model.Material
	for _, m := range f.materials {
		if m.IsActive && m.SubjectID != nil && *m.SubjectID == subjectID {
			result = append(result, m)
		}
	}
	return result, nil
}

// fakeLLM 按配置的函数响应补全请求，同时记录每次收到的消息。
type fakeLLM struct {
	completeFn func(messages []llm.Message, gen *llm.GenerationParams) (string, error)
	calls      [][]llm.Message
	lastGen    *llm.GenerationParams
}

func (f *fakeLLM) Complete(_ context.Context, messages []llm.Message, gen *llm.GenerationParams) (string, error) {
	f.calls = append(f.calls, messages)
	f.lastGen = gen
	if f.completeFn != nil {
		return f.completeFn(messages, gen)
	}
	return "stub reply", nil
}

// fakeAttachments 返回预设的处理结果。
type fakeAttachments struct {
	result ProcessedFile
}

func (f *fakeAttachments) Process(_ context.Context, _ *TurnFile) ProcessedFile {
	return f.result
}

// fakeContext 返回固定的上下文块。
type fakeContext struct {
	block string
}

func (f *fakeContext) AssembleChatContext(_ context.Context, _ *uint) string {
	return f.block
}
