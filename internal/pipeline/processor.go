// Package pipeline 定义了资料文本提取的核心流程。
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"examforge-go/internal/config"
	"examforge-go/internal/model"
	"examforge-go/internal/repository"
	"examforge-go/pkg/es"
	"examforge-go/pkg/log"
	"examforge-go/pkg/storage"
	"examforge-go/pkg/tasks"
	"examforge-go/pkg/tika"
)

// Processor 封装了资料提取管道的所有依赖和逻辑：
// 从对象存储取回原始文件，经 Tika 提取文本后写回数据库并索引到 Elasticsearch。
type Processor struct {
	tikaClient   *tika.Client
	esCfg        config.ElasticsearchConfig
	minioCfg     config.MinIOConfig
	materialRepo repository.MaterialRepository
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	tikaClient *tika.Client,
	esCfg config.ElasticsearchConfig,
	minioCfg config.MinIOConfig,
	materialRepo repository.MaterialRepository,
) *Processor {
	return &Processor{
		tikaClient:   tikaClient,
		esCfg:        esCfg,
		minioCfg:     minioCfg,
		materialRepo: materialRepo,
	}
}

// Process 是资料提取的主函数。返回错误会触发消费端的重试计数。
func (p *Processor) Process(ctx context.Context, task tasks.MaterialExtractionTask) error {
	log.Infof("[Processor] 开始处理资料, MaterialID: %d, Object: %s", task.MaterialID, task.ObjectName)

	// 1. 从 MinIO 下载文件
	object, err := storage.GetObject(ctx, p.minioCfg.BucketName, task.ObjectName)
	if err != nil {
		log.Errorf("[Processor] 从MinIO下载文件失败, Object: %s, Error: %v", task.ObjectName, err)
		return fmt.Errorf("从 MinIO 下载文件失败: %w", err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(object)
	if err != nil {
		log.Errorf("[Processor] 读取MinIO对象流失败, Error: %v", err)
		return fmt.Errorf("读取MinIO对象流失败: %w", err)
	}
	if size == 0 {
		log.Warnf("[Processor] 对象 '%s' 内容为空, 处理中止", task.ObjectName)
		return errors.New("文件内容为空")
	}

	// 2. 使用 Tika 提取文本
	textContent, err := p.tikaClient.ExtractText(ctx, bytes.NewReader(buf.Bytes()), task.FileName, task.ContentType)
	if err != nil {
		log.Errorf("[Processor] 使用Tika提取文本失败, FileName: %s, Error: %v", task.FileName, err)
		return fmt.Errorf("使用 Tika 提取文本失败: %w", err)
	}
	if textContent == "" {
		log.Warnf("[Processor] Tika提取的文本内容为空, 处理中止, FileName: %s", task.FileName)
		return errors.New("提取的文本内容为空")
	}
	log.Infof("[Processor] 文本提取成功, 内容长度: %d 字符", utf8.RuneCountInString(textContent))

	// 3. 写回数据库, 资料从此刻起对 AI 上下文可见
	if err := p.materialRepo.UpdateTextContent(ctx, task.MaterialID, textContent); err != nil {
		log.Errorf("[Processor] 写回提取文本失败, MaterialID: %d, Error: %v", task.MaterialID, err)
		return fmt.Errorf("写回提取文本失败: %w", err)
	}

	// 4. 索引到 Elasticsearch 供全文检索。索引失败不重试整条任务,
	// 数据库中的文本已经可用, 只损失检索能力
	material, err := p.materialRepo.FindByID(ctx, task.MaterialID)
	if err != nil {
		log.Errorf("[Processor] 回查资料记录失败, MaterialID: %d, Error: %v", task.MaterialID, err)
		return nil
	}
	doc := model.MaterialDocument{
		MaterialID:  material.ID,
		SubjectID:   material.SubjectID,
		Title:       material.Title,
		Kind:        material.Kind,
		TextContent: textContent,
	}
	if err := es.IndexMaterial(ctx, p.esCfg.IndexName, doc); err != nil {
		log.Errorf("[Processor] 索引资料到 Elasticsearch 失败, MaterialID: %d, Error: %v", task.MaterialID, err)
		return nil
	}

	log.Infof("[Processor] 资料处理完成, MaterialID: %d", task.MaterialID)
	return nil
}
