// Package model 包含了应用的数据模型定义。
package model

import "time"

// 用户角色常量。
const (
	RoleStudent = "STUDENT"
	RoleAdmin   = "ADMIN"
)

// User 定义了 users 表的 ORM 模型，同时覆盖学生与管理员两种角色。
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Role      string    `gorm:"type:varchar(20);not null;default:'STUDENT'" json:"role"` // "STUDENT" 或 "ADMIN"
	StudentNo string    `gorm:"type:varchar(20)" json:"studentNo"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}
