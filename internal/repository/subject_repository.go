// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"examforge-go/internal/model"

	"gorm.io/gorm"
)

// SubjectRepository 接口定义了学科数据的持久化操作。
type SubjectRepository interface {
	Create(subject *model.Subject) error
	FindByID(subjectID uint) (*model.Subject, error)
	FindAll() ([]model.Subject, error)
}

// subjectRepository 是 SubjectRepository 接口的 GORM 实现。
type subjectRepository struct {
	db *gorm.DB
}

// NewSubjectRepository 创建一个新的 SubjectRepository 实例。
func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{db: db}
}

// Create 在数据库中创建一个新的学科记录。
func (r *subjectRepository) Create(subject *model.Subject) error {
	return r.db.Create(subject).Error
}

// FindByID 根据学科 ID 从数据库中查找一个学科。
func (r *subjectRepository) FindByID(subjectID uint) (*model.Subject, error) {
	var subject model.Subject
	err := r.db.First(&subject, subjectID).Error
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

// FindAll 从数据库中检索所有学科记录。
func (r *subjectRepository) FindAll() ([]model.Subject, error) {
	var subjects []model.Subject
	err := r.db.Find(&subjects).Error
	return subjects, err
}
