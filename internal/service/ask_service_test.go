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

func newAskFixture(materials []model.Material) (*fakeLLM, AskService) {
	llmClient := &fakeLLM{}
	subjectRepo := newFakeSubjectRepo(&model.Subject{ID: 7, Name: "Operating Systems", Code: "CS301"})
	svc := NewAskService(subjectRepo, &fakeMaterialRepo{materials: materials}, llmClient,
		config.AIConfig{Name: "ExamForge", Creator: "Danish"})
	return llmClient, svc
}

func TestAsk_Validation(t *testing.T) {
	_, svc := newAskFixture(nil)

	_, err := svc.Ask(context.Background(), 0, "what is paging")
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = svc.Ask(context.Background(), 7, "")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAsk_IdentityShortCircuit(t *testing.T) {
	llmClient, svc := newAskFixture(nil)

	result, err := svc.Ask(context.Background(), 7, "so... who are you?")
	require.NoError(t, err)

	assert.Contains(t, result.Answer, "built truly by Danish")
	assert.Equal(t, 1.0, result.Confidence)
	assert.Empty(t, llmClient.calls)
}

func TestAsk_MaterialsInPrompt(t *testing.T) {
	subjectID := uint(7)
	year := 2023
	materials := []model.Material{
		{ID: 1, Title: "OS Notes", Kind: model.MaterialKindBook, SubjectID: &subjectID, IsActive: true,
			TextContent: textPtr("paging and segmentation")},
		{ID: 2, Title: "2023 Paper", Kind: model.MaterialKindPastPaper, SubjectID: &subjectID, Year: &year, IsActive: true},
	}
	llmClient, svc := newAskFixture(materials)
	llmClient.completeFn = func(messages []llm.Message, gen *llm.GenerationParams) (string, error) {
		return "Paging splits memory into frames.", nil
	}

	result, err := svc.Ask(context.Background(), 7, "explain paging")
	require.NoError(t, err)

	require.Len(t, llmClient.calls, 1)
	systemPrompt := llmClient.calls[0][0].Content.(string)
	// 清单列出全部激活资料，年份缺省显示 N/A
	assert.Contains(t, systemPrompt, "## Available Materials (2 files)")
	assert.Contains(t, systemPrompt, "- OS Notes (book, N/A)")
	assert.Contains(t, systemPrompt, "- 2023 Paper (pyq, 2023)")
	// 只有已提取文本的资料进入正文区
	assert.Contains(t, systemPrompt, "### OS Notes (book)\npaging and segmentation")
	assert.Contains(t, systemPrompt, "## Subject: Operating Systems")

	require.NotNil(t, llmClient.lastGen.MaxTokens)
	assert.Equal(t, 1024, *llmClient.lastGen.MaxTokens)

	// 有资料支撑时置信度更高
	assert.Equal(t, 0.8, result.Confidence)
	assert.Equal(t, "Paging splits memory into frames.", result.Answer)
}

func TestAsk_NoMaterials(t *testing.T) {
	llmClient, svc := newAskFixture(nil)
	llmClient.completeFn = func(messages []llm.Message, gen *llm.GenerationParams) (string, error) {
		return "From general knowledge...", nil
	}

	result, err := svc.Ask(context.Background(), 7, "explain paging")
	require.NoError(t, err)

	systemPrompt := llmClient.calls[0][0].Content.(string)
	assert.Contains(t, systemPrompt, "## No materials uploaded yet")
	assert.Equal(t, 0.5, result.Confidence)
}

func TestAsk_ContentCap(t *testing.T) {
	subjectID := uint(7)
	materials := []model.Material{
		{ID: 1, Title: "Huge", Kind: model.MaterialKindBook, SubjectID: &subjectID, IsActive: true,
			TextContent: textPtr(strings.Repeat("z", 20000))},
	}
	llmClient, svc := newAskFixture(materials)

	_, err := svc.Ask(context.Background(), 7, "explain paging")
	require.NoError(t, err)

	systemPrompt := llmClient.calls[0][0].Content.(string)
	assert.NotContains(t, systemPrompt, strings.Repeat("z", 12001))
	assert.Contains(t, systemPrompt, strings.Repeat("z", 12000))
}

func TestAsk_FailureModes(t *testing.T) {
	t.Run("backend failure returns safe answer", func(t *testing.T) {
		llmClient, svc := newAskFixture(nil)
		llmClient.completeFn = func(_ []llm.Message, _ *llm.GenerationParams) (string, error) {
			return "", errors.New("upstream exploded")
		}

		result, err := svc.Ask(context.Background(), 7, "explain paging")
		require.NoError(t, err)
		assert.Equal(t, "I'm having trouble responding. Please try again.", result.Answer)
	})

	t.Run("not configured returns setup hint", func(t *testing.T) {
		llmClient, svc := newAskFixture(nil)
		llmClient.completeFn = func(_ []llm.Message, _ *llm.GenerationParams) (string, error) {
			return "", llm.ErrNotConfigured
		}

		result, err := svc.Ask(context.Background(), 7, "explain paging")
		require.NoError(t, err)
		assert.Contains(t, result.Answer, "API Not Configured")
	})

	t.Run("empty reply falls back", func(t *testing.T) {
		llmClient, svc := newAskFixture(nil)
		llmClient.completeFn = func(_ []llm.Message, _ *llm.GenerationParams) (string, error) {
			return "", nil
		}

		result, err := svc.Ask(context.Background(), 7, "explain paging")
		require.NoError(t, err)
		assert.Equal(t, "I could not generate a response.", result.Answer)
	})
}
