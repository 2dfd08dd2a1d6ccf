// Package model 包含了应用的数据模型定义。
package model

// MaterialDocument 是写入 Elasticsearch 资料索引的文档结构。
type MaterialDocument struct {
	MaterialID  uint   `json:"material_id"`
	SubjectID   *uint  `json:"subject_id"`
	Title       string `json:"title"`
	Kind        string `json:"kind"`
	TextContent string `json:"text_content"`
}
