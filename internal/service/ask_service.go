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
)

// ErrEmptyQuestion 表示问答请求缺少学科或问题文本。
var ErrEmptyQuestion = errors.New("subjectId and question are required")

const (
	askMaxTokens       = 1024
	askContentLimit    = 12000 // 注入提示词的资料正文字符上限
	askTroubleReply    = "I'm having trouble responding. Please try again."
	askEmptyReply      = "I could not generate a response."
	askIdentityTail    = "\n\nI help students prepare for exams using uploaded study materials and PYQs."
	confidenceIdentity = 1.0
	confidenceGrounded = 0.8 // 有资料正文支撑
	confidenceBare     = 0.5 // 纯模型回答
)

// AskResult 是单轮问答的结果，无会话、不落库。
type AskResult struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}

// AskService 提供面向单个学科的一次性问答：把该学科的激活资料
// 清单与正文注入提示词，调用后端后直接返回，不产生任何持久化。
type AskService interface {
	Ask(ctx context.Context, subjectID uint, question string) (*AskResult, error)
}

type askService struct {
	subjectRepo  repository.SubjectRepository
	materialRepo repository.MaterialRepository
	llmClient    llm.Client
	aiName       string
	aiCreator    string
}

// NewAskService 创建一个新的 AskService 实例。
func NewAskService(
	subjectRepo repository.SubjectRepository,
	materialRepo repository.MaterialRepository,
	llmClient llm.Client,
	aiCfg config.AIConfig,
) AskService {
	name := aiCfg.Name
	if name == "" {
		name = "ExamForge"
	}
	creator := aiCfg.Creator
	if creator == "" {
		creator = "Danish"
	}
	return &askService{
		subjectRepo:  subjectRepo,
		materialRepo: materialRepo,
		llmClient:    llmClient,
		aiName:       name,
		aiCreator:    creator,
	}
}

// Ask 处理一次学科问答。
func (s *askService) Ask(ctx context.Context, subjectID uint, question string) (*AskResult, error) {
	if subjectID == 0 || question == "" {
		return nil, ErrEmptyQuestion
	}

	// 身份类问题直接返回固定答案，不触达后端
	if isIdentityQuestion(question) {
		return &AskResult{
			Answer: fmt.Sprintf("I'm built for a specific Exam purpose and the Name is %s, built truly by %s. 🦊%s",
				s.aiName, s.aiCreator, askIdentityTail),
			Sources:    []string{},
			Confidence: confidenceIdentity,
		}, nil
	}

	subjectName := "this subject"
	if subject, err := s.subjectRepo.FindByID(subjectID); err == nil {
		subjectName = subject.Name
	}

	materialsList, uploadedContent := s.collectMaterials(ctx, subjectID)
	systemPrompt := s.buildAskPrompt(subjectName, materialsList, uploadedContent)

	messages := []llm.Message{
		llm.TextMessage("system", systemPrompt),
		llm.TextMessage(model.RoleUser, question),
	}
	maxTokens := askMaxTokens
	temperature := defaultTemperature
	answer, err := s.llmClient.Complete(ctx, messages, &llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return &AskResult{
				Answer: fmt.Sprintf("## 🔧 API Not Configured\n\nI'm the **%s AI Tutor**, built by **%s**.\n\nTo enable AI responses, please add your OpenRouter API key to the configuration.",
					s.aiName, s.aiCreator),
				Sources: []string{},
			}, nil
		}
		log.Errorf("学科问答调用后端失败: subjectId=%d, err=%v", subjectID, err)
		return &AskResult{Answer: askTroubleReply, Sources: []string{}}, nil
	}
	if answer == "" {
		answer = askEmptyReply
	}

	confidence := confidenceBare
	if uploadedContent != "" {
		confidence = confidenceGrounded
	}
	return &AskResult{Answer: answer, Sources: []string{}, Confidence: confidence}, nil
}

// isIdentityQuestion 判断是否为询问助手身份的问题。
func isIdentityQuestion(question string) bool {
	lower := strings.ToLower(question)
	for _, phrase := range []string{"who built you", "who made you", "who created you", "your name", "who are you"} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// collectMaterials 收集该学科的激活资料：全部资料的清单条目，
// 以及已提取文本的资料正文拼接。查询失败降级为空。
func (s *askService) collectMaterials(ctx context.Context, subjectID uint) ([]string, string) {
	materials, err := s.materialRepo.ListActiveBySubject(ctx, subjectID)
	if err != nil {
		log.Warnf("检索学科资料失败: subjectId=%d, err=%v", subjectID, err)
		return nil, ""
	}

	list := make([]string, 0, len(materials))
	sections := make([]string, 0, len(materials))
	for _, m := range materials {
		year := "N/A"
		if m.Year != nil {
			year = fmt.Sprintf("%d", *m.Year)
		}
		list = append(list, fmt.Sprintf("%s (%s, %s)", m.Title, m.Kind, year))
		if m.TextContent != nil && *m.TextContent != "" {
			sections = append(sections, fmt.Sprintf("### %s (%s)\n%s", m.Title, m.Kind, *m.TextContent))
		}
	}
	return list, strings.Join(sections, "\n\n---\n\n")
}

// buildAskPrompt 构造问答系统提示词，资料正文截断到上限。
func (s *askService) buildAskPrompt(subjectName string, materialsList []string, uploadedContent string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You are "%s AI Tutor", an AI tutor built by %s for %s.

## Your Identity
- Name: %s AI Tutor
- Creator: %s
- Purpose: Help students prepare for exams using uploaded materials
- If asked "who built you", respond: "I'm built for a specific Exam purpose and the Name is %s.🦊"

## Subject: %s

`, s.aiName, s.aiCreator, s.aiName, s.aiName, s.aiCreator, s.aiName, subjectName)

	if len(materialsList) > 0 {
		fmt.Fprintf(&sb, "## Available Materials (%d files)\n", len(materialsList))
		for _, m := range materialsList {
			sb.WriteString("- " + m + "\n")
		}
	} else {
		sb.WriteString("## No materials uploaded yet\n")
	}

	if uploadedContent != "" {
		sb.WriteString("\n## Study Material Content\n")
		sb.WriteString(truncateChars(uploadedContent, askContentLimit))
		sb.WriteString("\n")
	}

	sb.WriteString(`
## Response Guidelines
1. Be helpful, friendly, and encouraging
2. Use markdown formatting (headers, bullets, bold)
3. Keep responses under 500 words
4. If materials are available, reference them
5. For non-educational questions, politely redirect to study topics
6. Be honest if information isn't in the materials`)

	return sb.String()
}
