package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"examforge-go/internal/config"
	"examforge-go/internal/model"
	"examforge-go/internal/repository"
	"examforge-go/pkg/kafka"
	"examforge-go/pkg/log"
	"examforge-go/pkg/storage"
	"examforge-go/pkg/tasks"

	"github.com/google/uuid"
)

var (
	// ErrInvalidMaterial 表示上传元数据不合法。
	ErrInvalidMaterial = errors.New("title and a valid kind are required")
	// ErrFileTooLarge 表示文件超出该类型的大小上限。
	ErrFileTooLarge = errors.New("file exceeds the size limit for its kind")
)

const (
	maxBookSize      = 20 << 20 // 教材类 20MB
	maxPastPaperSize = 10 << 20 // 真题类 10MB

	putObjectTimeout = 60 * time.Second
)

// UploadMaterialRequest 是管理员上传资料的入参。
type UploadMaterialRequest struct {
	Title       string
	Kind        string
	SubjectID   *uint
	Year        *int
	ExamType    string
	Author      string
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// UploadService 负责资料上传：原始字节进对象存储，元数据落库，
// 文本提取交给异步管道。
type UploadService interface {
	UploadMaterial(ctx context.Context, uploader *model.User, req UploadMaterialRequest) (*model.Material, error)
}

type uploadService struct {
	materialRepo repository.MaterialRepository
	minioCfg     config.MinIOConfig
}

// NewUploadService 创建一个新的 UploadService 实例。
func NewUploadService(materialRepo repository.MaterialRepository, minioCfg config.MinIOConfig) UploadService {
	return &uploadService{materialRepo: materialRepo, minioCfg: minioCfg}
}

// UploadMaterial 处理一次资料上传。
func (s *uploadService) UploadMaterial(ctx context.Context, uploader *model.User, req UploadMaterialRequest) (*model.Material, error) {
	if req.Title == "" || (req.Kind != model.MaterialKindBook && req.Kind != model.MaterialKindPastPaper) {
		return nil, ErrInvalidMaterial
	}

	sizeLimit := int64(maxPastPaperSize)
	if req.Kind == model.MaterialKindBook {
		sizeLimit = maxBookSize
	}
	if req.Size > sizeLimit {
		return nil, ErrFileTooLarge
	}

	// 对象名用 UUID 避免覆盖同名文件
	objectName := fmt.Sprintf("materials/%s%s", uuid.New().String(), filepath.Ext(req.FileName))

	putCtx, cancel := context.WithTimeout(ctx, putObjectTimeout)
	defer cancel()
	if err := storage.PutObject(putCtx, s.minioCfg.BucketName, objectName, req.Reader, req.Size, req.ContentType); err != nil {
		return nil, fmt.Errorf("上传文件到对象存储失败: %w", err)
	}

	material := &model.Material{
		Title:      req.Title,
		Kind:       req.Kind,
		SubjectID:  req.SubjectID,
		Year:       req.Year,
		ExamType:   req.ExamType,
		Author:     req.Author,
		ObjectName: objectName,
		IsActive:   true,
		UploadedBy: uploader.ID,
	}
	if err := s.materialRepo.Create(ctx, material); err != nil {
		return nil, fmt.Errorf("保存资料记录失败: %w", err)
	}

	// 提取任务投递失败不影响上传结果，资料暂时没有可检索文本
	task := tasks.MaterialExtractionTask{
		MaterialID:  material.ID,
		ObjectName:  objectName,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		UploadedBy:  uploader.ID,
	}
	if err := kafka.ProduceExtractionTask(task); err != nil {
		log.Errorf("投递文本提取任务失败: materialId=%d, err=%v", material.ID, err)
	}

	return material, nil
}
