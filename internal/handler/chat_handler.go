// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"examforge-go/internal/model"
	"examforge-go/internal/service"
	"examforge-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ChatHandler 负责处理 AI 对话相关的 API 请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ChatRequest 定义了提交对话轮次 API 的请求体结构。
// message 与 file 至少要提供一个。
type ChatRequest struct {
	Message        string            `json:"message"`
	ConversationID *uint             `json:"conversationId"`
	SubjectID      *uint             `json:"subjectId"`
	File           *service.TurnFile `json:"file"`
}

// Chat 处理一次对话轮次的提交。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Chat: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载",
		})
		return
	}

	user, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息"})
		return
	}
	currentUser := user.(*model.User)

	result, err := h.chatService.SubmitTurn(c.Request.Context(), currentUser, service.TurnRequest{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		SubjectID:      req.SubjectID,
		File:           req.File,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyTurn):
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "Message or file is required"})
		case errors.Is(err, service.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "Conversation not found"})
		default:
			log.Errorf("Chat: turn failed for user %d, error: %v", currentUser.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "对话处理失败"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"response":       result.Reply,
			"conversationId": result.ConversationID,
		},
	})
}
