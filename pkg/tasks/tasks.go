// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// MaterialExtractionTask represents the data structure for a material
// text-extraction job consumed by the pipeline.
type MaterialExtractionTask struct {
	MaterialID  uint   `json:"material_id"`
	ObjectName  string `json:"object_name"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	UploadedBy  uint   `json:"uploaded_by"`
}
