// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"examforge-go/pkg/log"
	"examforge-go/pkg/tika"
)

// 单次聊天附件的提取文本上限（字符数），控制提示词体积。
const attachmentTextLimit = 10000

// TurnFile 是一次对话轮次中随消息附带的文件。
// Data 为 base64 编码内容，允许携带 data-URL 前缀（...;base64,）。
type TurnFile struct {
	Name      string `json:"name"`
	MediaType string `json:"type"`
	Data      string `json:"data"`
}

// IsImage 判断附件是否为图片类型。
func (f *TurnFile) IsImage() bool {
	return strings.HasPrefix(f.MediaType, "image/")
}

// ProcessedFile 是附件处理的结果。字段互斥地描述三种出路：
// 图片直接以 data URI 内联进多模态消息；PDF 的提取文本进入系统上下文；
// 其余类型只在落库消息里留下附件标注。
type ProcessedFile struct {
	ImageDataURI  string // 图片的 data URI，非图片时为空
	SystemContext string // 注入系统提示词的提取文本块
	TextSuffix    string // 追加在用户可见文本后的说明/降级标注
}

// AttachmentService 处理对话附件：图片透传、文档提取文本、
// 不可读时降级为标注。提取失败不会使整个轮次失败。
type AttachmentService interface {
	Process(ctx context.Context, file *TurnFile) ProcessedFile
}

type attachmentService struct {
	tikaClient *tika.Client
}

// NewAttachmentService 创建一个新的 AttachmentService 实例。
func NewAttachmentService(tikaClient *tika.Client) AttachmentService {
	return &attachmentService{tikaClient: tikaClient}
}

// Process 根据声明的媒体类型处理附件。
func (s *attachmentService) Process(ctx context.Context, file *TurnFile) ProcessedFile {
	if file == nil || file.Data == "" {
		return ProcessedFile{}
	}

	if file.IsImage() {
		// 图片不做文本提取，拼回 data URI 后交给多模态消息
		return ProcessedFile{
			ImageDataURI: fmt.Sprintf("data:%s;base64,%s", file.MediaType, StripDataURLPrefix(file.Data)),
		}
	}

	if file.MediaType == "application/pdf" {
		return s.extractPDF(ctx, file)
	}

	// 其他类型：不参与上下文，只在落库消息里记录附件
	return ProcessedFile{}
}

// extractPDF 解码并提取 PDF 文本；任何失败都降级为标注，轮次继续。
func (s *attachmentService) extractPDF(ctx context.Context, file *TurnFile) ProcessedFile {
	raw, err := base64.StdEncoding.DecodeString(StripDataURLPrefix(file.Data))
	if err != nil {
		log.Warnf("解码 PDF 附件失败: %s, err=%v", file.Name, err)
		return ProcessedFile{TextSuffix: "\n(Failed to parse attached PDF file)."}
	}

	text, err := s.tikaClient.ExtractText(ctx, strings.NewReader(string(raw)), file.Name, file.MediaType)
	if err != nil {
		log.Warnf("提取 PDF 附件文本失败: %s, err=%v", file.Name, err)
		return ProcessedFile{TextSuffix: "\n(Failed to parse attached PDF file)."}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return ProcessedFile{TextSuffix: "\n(Attached PDF was empty or unreadable)."}
	}

	return ProcessedFile{
		SystemContext: fmt.Sprintf("\n\n[USER ATTACHED PDF: %s]\nCONTENT START:\n%s\nCONTENT END\n",
			file.Name, truncateChars(text, attachmentTextLimit)),
		TextSuffix: fmt.Sprintf("\n(I have attached a PDF file: %s. Please analyze its content provided in the system context.)", file.Name),
	}
}

// StripDataURLPrefix 去掉 base64 数据中可能携带的 data-URL 前缀。
func StripDataURLPrefix(data string) string {
	if idx := strings.Index(data, "base64,"); idx >= 0 {
		return data[idx+len("base64,"):]
	}
	return data
}

// truncateChars 按字符数截断字符串，保证不截断多字节字符。
func truncateChars(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
