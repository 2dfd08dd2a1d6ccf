// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"examforge-go/internal/service"
	"examforge-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// MaterialHandler 负责处理学习资料相关的 API 请求。
type MaterialHandler struct {
	uploadService service.UploadService
	searchService service.SearchService
}

// NewMaterialHandler 创建一个新的 MaterialHandler 实例。
func NewMaterialHandler(uploadService service.UploadService, searchService service.SearchService) *MaterialHandler {
	return &MaterialHandler{
		uploadService: uploadService,
		searchService: searchService,
	}
}

// Upload 处理管理员上传资料的 multipart 请求。
// 表单字段: file(必填), title(必填), kind(必填, book|pyq),
// subjectId, year, examType, author(可选)。
func (h *MaterialHandler) Upload(c *gin.Context) {
	currentUser := mustUser(c)
	if currentUser == nil {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少上传文件"})
		return
	}

	req := service.UploadMaterialRequest{
		Title:       c.PostForm("title"),
		Kind:        c.PostForm("kind"),
		ExamType:    c.PostForm("examType"),
		Author:      c.PostForm("author"),
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
	}
	if raw := c.PostForm("subjectId"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			uintID := uint(id)
			req.SubjectID = &uintID
		}
	}
	if raw := c.PostForm("year"); raw != "" {
		if year, err := strconv.Atoi(raw); err == nil {
			req.Year = &year
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Errorf("Upload: failed to open multipart file '%s', error: %v", fileHeader.Filename, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "读取上传文件失败"})
		return
	}
	defer file.Close()
	req.Reader = file

	material, err := h.uploadService.UploadMaterial(c.Request.Context(), currentUser, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidMaterial):
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error()})
		case errors.Is(err, service.ErrFileTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"code": http.StatusRequestEntityTooLarge, "message": err.Error()})
		default:
			log.Errorf("Upload: material upload failed, title: '%s', error: %v", req.Title, err)
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "资料上传失败"})
		}
		return
	}

	log.Infof("Material %d uploaded by user %d", material.ID, currentUser.ID)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Material uploaded, text extraction scheduled",
		"data": gin.H{
			"id":    material.ID,
			"title": material.Title,
			"kind":  material.Kind,
		},
	})
}

// Search 处理资料全文检索请求。
func (h *MaterialHandler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的查询参数"})
		return
	}

	topK, err := strconv.Atoi(c.DefaultQuery("topK", "10"))
	if err != nil || topK <= 0 {
		topK = 10
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

	results, err := h.searchService.SearchMaterials(c.Request.Context(), query, subjectID, topK)
	if err != nil {
		log.Errorf("Search: query '%s' failed, error: %v", query, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "搜索失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": results})
}
