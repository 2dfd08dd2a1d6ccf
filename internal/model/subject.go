// Package model 包含了应用的数据模型定义。
package model

import "time"

// Subject 定义了 subjects 表的 ORM 模型。
// 层级（院系/年级/学期）的管理端点不在本服务范围内，这里只保留
// 外键引用，供学科作用域解析使用。
type Subject struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Code       string    `gorm:"type:varchar(50)" json:"code"`
	SemesterID *uint     `gorm:"index" json:"semesterId"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Subject) TableName() string {
	return "subjects"
}
