// Package service 提供了搜索相关的业务逻辑。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"examforge-go/internal/config"
	"examforge-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

// MaterialSearchResult 是一条资料全文检索命中。
type MaterialSearchResult struct {
	MaterialID uint    `json:"materialId"`
	SubjectID  *uint   `json:"subjectId"`
	Title      string  `json:"title"`
	Kind       string  `json:"kind"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
}

// SearchService 接口定义了资料全文检索操作。
type SearchService interface {
	SearchMaterials(ctx context.Context, query string, subjectID *uint, topK int) ([]MaterialSearchResult, error)
}

type searchService struct {
	esClient *elasticsearch.Client
	esCfg    config.ElasticsearchConfig
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(esClient *elasticsearch.Client, esCfg config.ElasticsearchConfig) SearchService {
	return &searchService{esClient: esClient, esCfg: esCfg}
}

// SearchMaterials 对资料索引执行 multi_match 检索，标题命中的权重高于正文。
// subjectID 非空时只检索该学科下的资料。
func (s *searchService) SearchMaterials(ctx context.Context, query string, subjectID *uint, topK int) ([]MaterialSearchResult, error) {
	log.Infof("[SearchService] 开始资料检索, query: '%s', topK: %d", query, topK)

	must := map[string]interface{}{
		"multi_match": map[string]interface{}{
			"query":  query,
			"fields": []string{"title^3", "text_content"},
		},
	}
	boolQuery := map[string]interface{}{"must": must}
	if subjectID != nil {
		boolQuery["filter"] = map[string]interface{}{
			"term": map[string]interface{}{"subject_id": *subjectID},
		}
	}

	esQuery := map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"size":  topK,
		"highlight": map[string]interface{}{
			"fields": map[string]interface{}{
				"text_content": map[string]interface{}{
					"fragment_size":       200,
					"number_of_fragments": 1,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.esCfg.IndexName),
		s.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchService] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source struct {
					MaterialID uint   `json:"material_id"`
					SubjectID  *uint  `json:"subject_id"`
					Title      string `json:"title"`
					Kind       string `json:"kind"`
				} `json:"_source"`
				Score     float64 `json:"_score"`
				Highlight struct {
					TextContent []string `json:"text_content"`
				} `json:"highlight"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	results := make([]MaterialSearchResult, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		snippet := ""
		if len(hit.Highlight.TextContent) > 0 {
			snippet = hit.Highlight.TextContent[0]
		}
		results = append(results, MaterialSearchResult{
			MaterialID: hit.Source.MaterialID,
			SubjectID:  hit.Source.SubjectID,
			Title:      hit.Source.Title,
			Kind:       hit.Source.Kind,
			Score:      hit.Score,
			Snippet:    snippet,
		})
	}

	log.Infof("[SearchService] 资料检索完成, query: '%s', 命中 %d 条", query, len(results))
	return results, nil
}
