// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"examforge-go/internal/service"
	"examforge-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AskHandler 负责处理学科一次性问答的 API 请求。
type AskHandler struct {
	askService service.AskService
}

// NewAskHandler 创建一个新的 AskHandler 实例。
func NewAskHandler(askService service.AskService) *AskHandler {
	return &AskHandler{askService: askService}
}

// AskRequest 定义了学科问答 API 的请求体结构。
type AskRequest struct {
	SubjectID uint   `json:"subjectId" binding:"required"`
	Question  string `json:"question" binding:"required"`
}

// Ask 处理一次学科问答请求。
func (h *AskHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Ask: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Missing required fields",
		})
		return
	}

	result, err := h.askService.Ask(c.Request.Context(), req.SubjectID, req.Question)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuestion) {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "Missing required fields"})
			return
		}
		log.Errorf("Ask: request failed for subject %d, error: %v", req.SubjectID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "问答处理失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}
