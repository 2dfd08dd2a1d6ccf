// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"examforge-go/internal/model"
	"examforge-go/internal/service"
	"examforge-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 负责处理对话线程管理相关的 API 请求。
type ConversationHandler struct {
	conversationService service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler 实例。
func NewConversationHandler(conversationService service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// List 返回当前用户的对话列表。
// subjectId 查询参数存在时返回该学科作用域的列表，否则返回通用列表。
func (h *ConversationHandler) List(c *gin.Context) {
	currentUser := mustUser(c)
	if currentUser == nil {
		return
	}

	var subjectID *uint
	if raw := c.Query("subjectId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的 subjectId"})
			return
		}
		uintID := uint(id)
		subjectID = &uintID
	}

	conversations, err := h.conversationService.List(c.Request.Context(), currentUser.ID, subjectID)
	if err != nil {
		log.Errorf("List conversations failed for user %d, error: %v", currentUser.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取对话列表失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": conversations})
}

// GetMessages 返回指定对话的全部消息。
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	currentUser := mustUser(c)
	if currentUser == nil {
		return
	}

	conversationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	messages, err := h.conversationService.GetMessages(c.Request.Context(), currentUser.ID, conversationID)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "Conversation not found"})
			return
		}
		log.Errorf("Get messages failed for conversation %d, error: %v", conversationID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取对话消息失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": messages})
}

// Delete 删除指定对话及其全部消息。
func (h *ConversationHandler) Delete(c *gin.Context) {
	currentUser := mustUser(c)
	if currentUser == nil {
		return
	}

	conversationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.conversationService.Delete(c.Request.Context(), currentUser.ID, conversationID); err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "Conversation not found"})
			return
		}
		log.Errorf("Delete conversation %d failed, error: %v", conversationID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "删除对话失败"})
		return
	}

	log.Infof("Conversation %d deleted by user %d", conversationID, currentUser.ID)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "Conversation deleted"})
}

// mustUser 从上下文取出已认证的用户，缺失时写入 500 响应并返回 nil。
func mustUser(c *gin.Context) *model.User {
	user, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息"})
		return nil
	}
	return user.(*model.User)
}

// pathID 解析路径参数中的数字 ID，非法时写入 400 响应。
func pathID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的 " + name})
		return 0, false
	}
	return uint(id), true
}
