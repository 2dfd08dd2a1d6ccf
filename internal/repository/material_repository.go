// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"

	"examforge-go/internal/model"

	"gorm.io/gorm"
)

// MaterialRepository 接口定义了学习资料的持久化操作。
// AI 对话侧只读：仅消费激活且已提取出文本的资料。
type MaterialRepository interface {
	Create(ctx context.Context, material *model.Material) error
	FindByID(ctx context.Context, materialID uint) (*model.Material, error)
	UpdateTextContent(ctx context.Context, materialID uint, text string) error
	// ListActiveWithText 按作用域返回激活且 text_content 非空的资料。
	// subjectID 为 nil 时为全局兜底检索；limit <= 0 表示不限数量。
	ListActiveWithText(ctx context.Context, subjectID *uint, limit int) ([]model.Material, error)
	// ListActiveBySubject 返回某学科全部激活资料（含未提取文本的），
	// 供问答端点列出可用资料清单。
	ListActiveBySubject(ctx context.Context, subjectID uint) ([]model.Material, error)
}

// materialRepository 是 MaterialRepository 接口的 GORM 实现。
type materialRepository struct {
	db *gorm.DB
}

// NewMaterialRepository 创建一个新的 MaterialRepository 实例。
func NewMaterialRepository(db *gorm.DB) MaterialRepository {
	return &materialRepository{db: db}
}

// Create 在数据库中创建一条新的资料记录。
func (r *materialRepository) Create(ctx context.Context, material *model.Material) error {
	return r.db.WithContext(ctx).Create(material).Error
}

// FindByID 根据资料 ID 查找一条资料记录。
func (r *materialRepository) FindByID(ctx context.Context, materialID uint) (*model.Material, error) {
	var material model.Material
	err := r.db.WithContext(ctx).First(&material, materialID).Error
	if err != nil {
		return nil, err
	}
	return &material, nil
}

// UpdateTextContent 写入提取管道产出的文本内容。
func (r *materialRepository) UpdateTextContent(ctx context.Context, materialID uint, text string) error {
	return r.db.WithContext(ctx).Model(&model.Material{}).
		Where("id = ?", materialID).
		Update("text_content", text).Error
}

// ListActiveWithText 按作用域返回可用作上下文的资料。
func (r *materialRepository) ListActiveWithText(ctx context.Context, subjectID *uint, limit int) ([]model.Material, error) {
	var materials []model.Material
	query := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("text_content IS NOT NULL")
	if subjectID != nil {
		query = query.Where("subject_id = ?", *subjectID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&materials).Error
	return materials, err
}

// ListActiveBySubject 返回某学科全部激活资料。
func (r *materialRepository) ListActiveBySubject(ctx context.Context, subjectID uint) ([]model.Material, error) {
	var materials []model.Material
	err := r.db.WithContext(ctx).
		Where("subject_id = ? AND is_active = ?", subjectID, true).
		Find(&materials).Error
	return materials, err
}
