// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"examforge-go/internal/model"
	"examforge-go/internal/repository"
	"examforge-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// 上下文拼装的尺寸参数。入选资料不做相关性排序，
// 按存储返回顺序截断拼接（已知的简化策略，不在此处"修正"）。
const (
	subjectContextMaterials = 5    // 学科作用域下最多注入的资料数
	subjectContextChars     = 1500 // 学科作用域下单条资料的字符上限
	generalContextMaterials = 3    // 通用作用域（无学科）下的资料数
	generalContextChars     = 1000 // 通用作用域下单条资料的字符上限

	contextCacheTTL = 5 * time.Minute
)

// ContextService 负责从资料库拼装注入系统提示词的上下文块。
// 只读；没有可用资料时返回空块而不是错误——新建学科的稳态就是如此。
type ContextService interface {
	// AssembleChatContext 返回作用域对应的上下文块。
	// 读取失败降级为空块，不中断对话轮次。
	AssembleChatContext(ctx context.Context, subjectID *uint) string
}

type contextService struct {
	materialRepo repository.MaterialRepository
	rdb          *redis.Client
}

// NewContextService 创建一个新的 ContextService 实例。
// rdb 可以为 nil，此时跳过缓存直接读库。
func NewContextService(materialRepo repository.MaterialRepository, rdb *redis.Client) ContextService {
	return &contextService{materialRepo: materialRepo, rdb: rdb}
}

// AssembleChatContext 拼装作用域上下文，结果在 Redis 中短暂缓存。
func (s *contextService) AssembleChatContext(ctx context.Context, subjectID *uint) string {
	cacheKey := contextCacheKey(subjectID)
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			return cached
		} else if err != redis.Nil {
			log.Warnf("读取上下文缓存失败: %v", err)
		}
	}

	limit, perMaterial := generalContextMaterials, generalContextChars
	if subjectID != nil {
		limit, perMaterial = subjectContextMaterials, subjectContextChars
	}

	materials, err := s.materialRepo.ListActiveWithText(ctx, subjectID, limit)
	if err != nil {
		// 上下文缺失只是召回能力降级，不值得让整轮对话失败
		log.Warnf("检索上下文资料失败: %v", err)
		return ""
	}

	block := buildContextBlock(materials, perMaterial)

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, cacheKey, block, contextCacheTTL).Err(); err != nil {
			log.Warnf("写入上下文缓存失败: %v", err)
		}
	}
	return block
}

// buildContextBlock 把资料拼接为带标签的分段，空输入返回空块。
func buildContextBlock(materials []model.Material, perMaterial int) string {
	if len(materials) == 0 {
		return ""
	}
	segments := make([]string, 0, len(materials))
	for _, m := range materials {
		if m.TextContent == nil {
			continue
		}
		segments = append(segments, fmt.Sprintf("[MATERIAL: %s (%s)]\n%s",
			m.Title, m.Kind, truncateChars(*m.TextContent, perMaterial)))
	}
	return strings.Join(segments, "\n\n")
}

func contextCacheKey(subjectID *uint) string {
	if subjectID != nil {
		return fmt.Sprintf("ai:context:subject:%d", *subjectID)
	}
	return "ai:context:general"
}
