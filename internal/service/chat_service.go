// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"examforge-go/internal/config"
	"examforge-go/internal/model"
	"examforge-go/internal/repository"
	"examforge-go/pkg/llm"
	"examforge-go/pkg/log"

	"gorm.io/gorm"
)

// ErrEmptyTurn 表示请求既没有文本也没有附件，在产生任何副作用前拒绝。
var ErrEmptyTurn = errors.New("message or file is required")

const (
	historyLimit  = 10   // 注入提示词的最近消息条数
	chatMaxTokens = 1000 // 聊天回复的输出上限

	defaultTemperature = 0.7

	titleLimit   = 30 // 对话标题取首条用户消息的字符数
	previewLimit = 50 // 预览取最新回复的字符数

	notConfiguredReply = "AI service is not configured."
	troubleReply       = "I'm having trouble. Please try again."
	emptyReply         = "I couldn't generate a response."
)

// TurnRequest 是一次对话轮次的入参。
type TurnRequest struct {
	Message        string
	ConversationID *uint
	SubjectID      *uint
	File           *TurnFile
}

// TurnResult 是一次对话轮次的结果。
type TurnResult struct {
	Reply          string
	ConversationID *uint
}

// ChatService 是对话轮次的编排器：解析会话、拦截固定回复、
// 拼装提示词、调用 LLM 后端并持久化双方消息。
type ChatService interface {
	SubmitTurn(ctx context.Context, user *model.User, req TurnRequest) (*TurnResult, error)
}

// cannedRule 是一条固定回复规则：命中任一触发短语（小写子串匹配）
// 即跳过 LLM 调用返回固定文案。
type cannedRule struct {
	phrases []string
	reply   string
}

type chatService struct {
	convRepo      repository.ConversationRepository
	msgRepo       repository.MessageRepository
	subjectRepo   repository.SubjectRepository
	contextSvc    ContextService
	attachmentSvc AttachmentService
	llmClient     llm.Client
	aiName        string
	aiCreator     string
	cannedRules   []cannedRule
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	subjectRepo repository.SubjectRepository,
	contextSvc ContextService,
	attachmentSvc AttachmentService,
	llmClient llm.Client,
	aiCfg config.AIConfig,
) ChatService {
	name := aiCfg.Name
	if name == "" {
		name = "ExamForge"
	}
	creator := aiCfg.Creator
	if creator == "" {
		creator = "Danish"
	}
	return &chatService{
		convRepo:      convRepo,
		msgRepo:       msgRepo,
		subjectRepo:   subjectRepo,
		contextSvc:    contextSvc,
		attachmentSvc: attachmentSvc,
		llmClient:     llmClient,
		aiName:        name,
		aiCreator:     creator,
		cannedRules:   buildCannedRules(name, creator),
	}
}

// buildCannedRules 构造身份/出处类问题的固定回复规则表。
func buildCannedRules(name, creator string) []cannedRule {
	lowerName := strings.ToLower(name)
	return []cannedRule{
		{
			phrases: []string{"who built you", "who made you", "who created you", "who developed you", "your creator", "your developer"},
			reply:   fmt.Sprintf("I'm built for a specific Exam purpose and the Name is %s, built truly by %s. 🦊", name, creator),
		},
		{
			phrases: []string{"what is " + lowerName, "about " + lowerName},
			reply:   fmt.Sprintf("%s is an AI-powered exam preparation platform built by %s. I help students prepare using PYQs, study materials, and AI tutoring. 🦊📚", name, creator),
		},
	}
}

// SubmitTurn 处理一次完整的对话轮次。
func (s *chatService) SubmitTurn(ctx context.Context, user *model.User, req TurnRequest) (*TurnResult, error) {
	// 1. 入参校验：文本与附件至少有其一，否则在任何副作用前拒绝
	hasFile := req.File != nil && req.File.Data != ""
	if req.Message == "" && !hasFile {
		return nil, ErrEmptyTurn
	}

	// 2. 解析会话：复用必须校验归属；未提供则立即新建
	conv, err := s.resolveConversation(ctx, user, req)
	if err != nil {
		return nil, err
	}

	// 3. 固定回复拦截：跳过上下文拼装与 LLM 调用，但消息照常落库
	if req.Message != "" {
		if canned := s.matchCanned(req.Message); canned != "" {
			s.persistTurn(conv, storedUserContent(req), canned, false)
			return &TurnResult{Reply: canned, ConversationID: convID(conv)}, nil
		}
	}

	// 4. 拼装：附件处理、资料上下文与历史三者互不依赖
	var processed ProcessedFile
	if hasFile {
		processed = s.attachmentSvc.Process(ctx, req.File)
	}
	contextBlock := s.contextSvc.AssembleChatContext(ctx, req.SubjectID)
	history := s.loadHistory(ctx, conv)
	subjectName := s.resolveSubjectName(ctx, req.SubjectID)

	finalMessage := req.Message
	if finalMessage == "" {
		finalMessage = "Analyze this file."
	}
	finalMessage += processed.TextSuffix

	systemPrompt := s.buildSystemPrompt(subjectName, contextBlock, processed.SystemContext)
	messages := composeMessages(systemPrompt, history, finalMessage, processed.ImageDataURI)

	// 5. 调用后端：不配置密钥则直接短路，失败不重试业务层（客户端
	// 自身只对传输层错误做一次重试），返回安全兜底文案
	reply, err := s.llmClient.Complete(ctx, messages, s.buildGenerationParams())
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return &TurnResult{Reply: notConfiguredReply, ConversationID: convID(conv)}, nil
		}
		log.Errorf("调用 LLM 后端失败: %v", err)
		// 用户消息仍然落库，但不写入任何幻影助手消息
		s.persistTurn(conv, storedUserContent(req), "", false)
		return &TurnResult{Reply: troubleReply, ConversationID: convID(conv)}, nil
	}
	if reply == "" {
		reply = emptyReply
	}

	// 6. 持久化双方消息并刷新预览
	s.persistTurn(conv, storedUserContent(req), reply, true)

	return &TurnResult{Reply: reply, ConversationID: convID(conv)}, nil
}

// resolveConversation 复用或新建会话。
// 新建失败只降级为"无会话"（本轮不落库），不阻断回复。
func (s *chatService) resolveConversation(ctx context.Context, user *model.User, req TurnRequest) (*model.Conversation, error) {
	if req.ConversationID != nil {
		conv, err := s.convRepo.FindByIDAndOwner(ctx, *req.ConversationID, user.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrConversationNotFound
			}
			return nil, err
		}
		return conv, nil
	}

	conv := &model.Conversation{
		UserID:    user.ID,
		SubjectID: req.SubjectID,
		Title:     deriveTitle(req.Message),
		Preview:   derivePreview(req.Message),
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		log.Errorf("创建对话失败: %v", err)
		return nil, nil
	}
	return conv, nil
}

// matchCanned 对用户文本做小写子串匹配，返回命中的固定回复。
func (s *chatService) matchCanned(message string) string {
	lower := strings.ToLower(message)
	for _, rule := range s.cannedRules {
		for _, phrase := range rule.phrases {
			if strings.Contains(lower, phrase) {
				return rule.reply
			}
		}
	}
	return ""
}

// loadHistory 加载最近的历史消息并反转为时间正序。
// LLM 后端按从旧到新理解对话流，而存储层"最近 N 条"天然是倒序。
// 读取失败降级为空历史。
func (s *chatService) loadHistory(ctx context.Context, conv *model.Conversation) []llm.Message {
	if conv == nil {
		return nil
	}
	messages, err := s.msgRepo.FindRecent(ctx, conv.ID, historyLimit)
	if err != nil {
		log.Warnf("加载对话历史失败: %v", err)
		return nil
	}
	history := make([]llm.Message, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		history = append(history, llm.TextMessage(messages[i].Role, messages[i].Content))
	}
	return history
}

// resolveSubjectName 解析作用域的学科名，无学科或查询失败时为 "General"。
func (s *chatService) resolveSubjectName(ctx context.Context, subjectID *uint) string {
	if subjectID == nil {
		return "General"
	}
	subject, err := s.subjectRepo.FindByID(*subjectID)
	if err != nil {
		log.Warnf("查询学科失败: id=%d, err=%v", *subjectID, err)
		return "General"
	}
	return subject.Name
}

// buildSystemPrompt 构造系统提示词：身份、作用域、资料上下文与附件内容。
func (s *chatService) buildSystemPrompt(subjectName, contextBlock, attachmentContext string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You are %s AI Tutor.
IDENTITY:
- Creator: %s
- Purpose: Help students prepare for exams
- Subject Context: %s
- Tone: Helpful, intelligent, encouraging

CONTEXT:
`, s.aiName, s.aiCreator, subjectName)
	if contextBlock != "" {
		sb.WriteString("LIBRARY MATERIALS:\n")
		sb.WriteString(contextBlock)
		sb.WriteString("\n")
	}
	if attachmentContext != "" {
		sb.WriteString(attachmentContext)
	}
	sb.WriteString(`
INSTRUCTIONS:
1. Answer ANY question.
2. If an Image is provided, analyze it (Math problem, Diagram, Text).
3. If a PDF is provided in context, answer questions based on it.
4. Use markdown.
`)
	return sb.String()
}

// composeMessages 按 system + history + user 的顺序组装请求消息。
// 带图片时用户轮为多模态分段，否则为纯文本。
func composeMessages(systemPrompt string, history []llm.Message, userText, imageDataURI string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.TextMessage("system", systemPrompt))
	messages = append(messages, history...)
	if imageDataURI != "" {
		messages = append(messages, llm.PartsMessage(model.RoleUser, []llm.ContentPart{
			{Type: "text", Text: userText},
			{Type: "image_url", ImageURL: &llm.ImageURL{URL: imageDataURI}},
		}))
	} else {
		messages = append(messages, llm.TextMessage(model.RoleUser, userText))
	}
	return messages
}

// buildGenerationParams 组装生成参数，配置的非零值覆盖默认值。
func (s *chatService) buildGenerationParams() *llm.GenerationParams {
	temperature := defaultTemperature
	if config.Conf.OpenRouter.Generation.Temperature != 0 {
		temperature = config.Conf.OpenRouter.Generation.Temperature
	}
	maxTokens := chatMaxTokens
	if config.Conf.OpenRouter.Generation.MaxTokens != 0 {
		maxTokens = config.Conf.OpenRouter.Generation.MaxTokens
	}
	return &llm.GenerationParams{Temperature: &temperature, MaxTokens: &maxTokens}
}

// persistTurn 落库本轮消息。reply 为空表示后端失败，只保存用户消息。
// 使用后台上下文：回复一旦生成，即使调用方断开也应完成持久化；
// 落库失败只记日志，不吞掉已经生成的回复。
func (s *chatService) persistTurn(conv *model.Conversation, userContent, reply string, updateSummary bool) {
	if conv == nil {
		return
	}
	ctx := context.Background()

	if err := s.msgRepo.Append(ctx, &model.Message{
		ConversationID: conv.ID,
		UserID:         conv.UserID,
		Role:           model.RoleUser,
		Content:        userContent,
	}); err != nil {
		log.Errorf("保存用户消息失败: conversationId=%d, err=%v", conv.ID, err)
	}

	if reply == "" {
		return
	}

	if err := s.msgRepo.Append(ctx, &model.Message{
		ConversationID: conv.ID,
		UserID:         conv.UserID,
		Role:           model.RoleAssistant,
		Content:        reply,
	}); err != nil {
		log.Errorf("保存助手消息失败: conversationId=%d, err=%v", conv.ID, err)
	}

	if updateSummary {
		preview := truncateChars(reply, previewLimit) + "..."
		if err := s.convRepo.UpdateSummary(ctx, conv.ID, &preview, nil); err != nil {
			log.Errorf("刷新对话预览失败: conversationId=%d, err=%v", conv.ID, err)
		}
	}
}

// storedUserContent 生成落库的用户消息内容。附件只存"类型+文件名"标注，
// 从不存原始字节。
func storedUserContent(req TurnRequest) string {
	if req.File == nil || req.File.Data == "" {
		return req.Message
	}
	kind := "PDF"
	if req.File.IsImage() {
		kind = "Image"
	}
	return fmt.Sprintf("[Attached %s: %s]\n%s", kind, req.File.Name, req.Message)
}

// deriveTitle 从首条用户消息派生对话标题。
func deriveTitle(message string) string {
	if message == "" {
		return "File Upload Analysis"
	}
	return truncateChars(message, titleLimit) + "..."
}

// derivePreview 从首条用户消息派生对话预览。
func derivePreview(message string) string {
	if message == "" {
		return "Sent a file"
	}
	return truncateChars(message, previewLimit)
}

func convID(conv *model.Conversation) *uint {
	if conv == nil {
		return nil
	}
	id := conv.ID
	return &id
}
