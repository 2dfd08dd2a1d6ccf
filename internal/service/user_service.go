// Package service 包含了应用的业务逻辑层。
package service

import (
	"errors"
	"fmt"
	"time"

	"examforge-go/internal/model"
	"examforge-go/internal/repository"
	"examforge-go/pkg/hash"
	"examforge-go/pkg/token"

	"gorm.io/gorm"
)

var (
	// ErrEmailTaken 表示注册邮箱已被占用。
	ErrEmailTaken = errors.New("邮箱已被注册")
	// ErrInvalidCredentials 表示登录凭证不正确。
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	RegisterStudent(email, password, name string) (*model.User, error)
	Login(email, password string) (accessToken, refreshToken string, err error)
	GetProfile(userID uint) (*model.User, error)
	RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
	}
}

// RegisterStudent 处理学生注册的业务逻辑。
func (s *userService) RegisterStudent(email, password, name string) (*model.User, error) {
	// 1. 检查邮箱是否已存在
	_, err := s.userRepo.FindByEmail(email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 3. 按当前学生数量生成学号序列
	count, err := s.userRepo.CountByRole(model.RoleStudent)
	if err != nil {
		return nil, err
	}
	studentNo := fmt.Sprintf("STU-%d-%03d", time.Now().Year(), count+1)

	newUser := &model.User{
		Email:     email,
		Password:  hashedPassword,
		Name:      name,
		Role:      model.RoleStudent,
		StudentNo: studentNo,
	}
	if err := s.userRepo.Create(newUser); err != nil {
		return nil, err
	}

	return newUser, nil
}

// Login 处理用户登录的业务逻辑。
func (s *userService) Login(email, password string) (accessToken, refreshToken string, err error) {
	// 1. 查找用户
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", err
	}

	// 2. 验证密码
	if !hash.CheckPassword(password, user.Password) {
		return "", "", ErrInvalidCredentials
	}

	// 3. 生成 access token 和 refresh token
	accessToken, err = s.jwtManager.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// GetProfile 根据用户 ID 获取用户详细信息。
func (s *userService) GetProfile(userID uint) (*model.User, error) {
	return s.userRepo.FindByID(userID)
}

// RefreshToken 校验 refresh token 并轮换出新的一对 token。
func (s *userService) RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error) {
	claims, err := s.jwtManager.VerifyToken(refreshTokenString)
	if err != nil {
		return "", "", err
	}

	// 用户可能在签发后被删除，轮换前再确认一次
	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		return "", "", err
	}

	newAccessToken, err = s.jwtManager.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", "", err
	}
	newRefreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", "", err
	}
	return newAccessToken, newRefreshToken, nil
}
