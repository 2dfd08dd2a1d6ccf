// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"examforge-go/internal/model"
	"examforge-go/internal/repository"
	"examforge-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SubjectHandler 负责处理学科相关的 API 请求。
// 学科只有简单的增查，直接依赖仓储层。
type SubjectHandler struct {
	subjectRepo repository.SubjectRepository
}

// NewSubjectHandler 创建一个新的 SubjectHandler 实例。
func NewSubjectHandler(subjectRepo repository.SubjectRepository) *SubjectHandler {
	return &SubjectHandler{subjectRepo: subjectRepo}
}

// List 返回全部学科。
func (h *SubjectHandler) List(c *gin.Context) {
	subjects, err := h.subjectRepo.FindAll()
	if err != nil {
		log.Errorf("List subjects failed, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取学科列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": subjects})
}

// CreateSubjectRequest 定义了创建学科 API 的请求体结构。
type CreateSubjectRequest struct {
	Name       string `json:"name" binding:"required"`
	Code       string `json:"code" binding:"required"`
	SemesterID *uint  `json:"semesterId"`
}

// Create 处理管理员创建学科的请求。
func (h *SubjectHandler) Create(c *gin.Context) {
	var req CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Create subject: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载：名称和编码不能为空"})
		return
	}

	subject := &model.Subject{
		Name:       req.Name,
		Code:       req.Code,
		SemesterID: req.SemesterID,
	}
	if err := h.subjectRepo.Create(subject); err != nil {
		log.Errorf("Create subject '%s' failed, error: %v", req.Name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "创建学科失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "Subject created", "data": subject})
}
