// Package model 包含了应用的数据模型定义。
package model

import "time"

// 资料类型常量，对应 Material.Kind。
const (
	MaterialKindPastPaper = "pyq"  // 历年真题
	MaterialKindBook      = "book" // 参考书
)

// Material 定义了 materials 表的 ORM 模型。
// 它记录管理员上传的学习资料（真题/参考书）。TextContent 在上传后由
// 后台提取管道异步填充，提取失败时保持为 NULL，AI 对话仅读取
// IsActive 且 TextContent 非空的资料。
type Material struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Kind        string    `gorm:"type:varchar(10);not null" json:"kind"` // "pyq" 或 "book"
	SubjectID   *uint     `gorm:"index" json:"subjectId"`
	Year        *int      `json:"year"`
	ExamType    string    `gorm:"type:varchar(50)" json:"examType"`
	Author      string    `gorm:"type:varchar(255)" json:"author"`
	ObjectName  string    `gorm:"type:varchar(255)" json:"objectName"` // MinIO 对象名
	TextContent *string   `gorm:"type:longtext" json:"-"`
	IsActive    bool      `gorm:"not null;default:true" json:"isActive"`
	UploadedBy  uint      `gorm:"not null" json:"uploadedBy"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Material) TableName() string {
	return "materials"
}
