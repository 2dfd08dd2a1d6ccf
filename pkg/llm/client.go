// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"examforge-go/internal/config"
)

// ErrNotConfigured 表示未配置 API 密钥，调用方不应发起任何网络请求。
var ErrNotConfigured = errors.New("llm api key not configured")

// Client defines the interface for an LLM client.
type Client interface {
	// Complete 以 role-based 消息与可选生成参数发起一次非流式对话补全，
	// 返回生成文本。单次失败（含一次幂等重试耗尽后）直接返回错误。
	Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
}

// Message 表示一条角色消息。Content 为纯文本字符串，或由
// ContentPart 组成的多模态分段列表（OpenAI 兼容格式）。
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ContentPart 是多模态消息中的一个分段。
type ContentPart struct {
	Type     string    `json:"type"` // "text" 或 "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL 携带内联图片的 data URI。
type ImageURL struct {
	URL string `json:"url"`
}

// TextMessage 构造一条纯文本消息。
func TextMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

// PartsMessage 构造一条多模态分段消息。
func PartsMessage(role string, parts []ContentPart) Message {
	return Message{Role: role, Content: parts}
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openRouterClient struct {
	cfg    config.OpenRouterConfig
	client *http.Client
}

// NewClient creates a new LLM client based on the OpenRouter config.
func NewClient(cfg config.OpenRouterConfig) Client {
	timeout := 60 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &openRouterClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *openRouterClient) Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}

	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
	}
	// 从配置或传参注入生成参数（传参优先生效）
	if gen != nil {
		reqBody.Temperature = gen.Temperature
		reqBody.TopP = gen.TopP
		reqBody.MaxTokens = gen.MaxTokens
	} else {
		if c.cfg.Generation.Temperature != 0 {
			t := c.cfg.Generation.Temperature
			reqBody.Temperature = &t
		}
		if c.cfg.Generation.TopP != 0 {
			p := c.cfg.Generation.TopP
			reqBody.TopP = &p
		}
		if c.cfg.Generation.MaxTokens != 0 {
			m := c.cfg.Generation.MaxTokens
			reqBody.MaxTokens = &m
		}
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	// 传输层错误与 5xx 重试一次，4xx 不重试
	text, err := c.doOnce(ctx, reqBytes)
	if err != nil && retryable(err) {
		text, err = c.doOnce(ctx, reqBytes)
	}
	return text, err
}

// transportError 标记可安全重试一次的失败（网络错误或上游 5xx）。
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}

func (c *openRouterClient) doOnce(ctx context.Context, reqBytes []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.AppTitle != "" {
		req.Header.Set("X-Title", c.cfg.AppTitle)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &transportError{err: fmt.Errorf("failed to call chat api: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		apiErr := fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
		if resp.StatusCode >= http.StatusInternalServerError {
			return "", &transportError{err: apiErr}
		}
		return "", apiErr
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", nil
	}
	return chatResp.Choices[0].Message.Content, nil
}
