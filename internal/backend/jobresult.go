package backend

import (
	"time"
)

// JobResult 后端无关的远端任务投影
// StatusTracker / ResultRetriever 只消费这个结构，不感知后端差异
type JobResult struct {
	StatusCode  int          `json:"status_code"`
	OutputFiles []OutputFile `json:"output_files"`
	Status      StatusBlock  `json:"status"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// OutputFile 远端输出文件描述
type OutputFile struct {
	Path        string `json:"path"` // 相对路径，结果选择按此精确匹配
	Link        string `json:"link,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// StatusBlock 远端任务状态块
type StatusBlock struct {
	Completed  bool   `json:"completed"`
	HasError   bool   `json:"has_error"`
	Message    string `json:"message,omitempty"`
	StderrPath string `json:"stderr_path,omitempty"`
}
