package dto

// SubmitAnalysisRequest 创建并提交分析请求
type SubmitAnalysisRequest struct {
	Name         string            `json:"name" binding:"required,max=200"`
	Description  string            `json:"description,omitempty" binding:"omitempty,max=2000"`
	ExperimentID int64             `json:"experiment_id" binding:"required"`
	ModuleID     int64             `json:"module_id" binding:"required"`
	DatasetID    *int64            `json:"dataset_id,omitempty"`
	Params       map[string]string `json:"params,omitempty"`
}

// SubmitAnalysisResponse 提交结果（提交失败也会返回已落库的分析记录）
type SubmitAnalysisResponse struct {
	AnalysisID     int64  `json:"analysis_id"`
	JobNumber      int64  `json:"job_number"`
	AnalysisStatus int    `json:"analysis_status"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// AnalysisListItem 分析列表项
type AnalysisListItem struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ModuleName     string `json:"module_name,omitempty"`
	JobNumber      int64  `json:"job_number"`
	AnalysisStatus int    `json:"analysis_status"`
	CreatedAt      string `json:"created_at"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

// AnalysisDetail 分析详情
type AnalysisDetail struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	ExperimentID   int64  `json:"experiment_id"`
	ModuleID       int64  `json:"module_id"`
	ModuleName     string `json:"module_name,omitempty"`
	DatasetID      int64  `json:"dataset_id,omitempty"`
	DatasetName    string `json:"dataset_name,omitempty"`
	JobNumber      int64  `json:"job_number"`
	AnalysisStatus int    `json:"analysis_status"`
	ErrorMessage   string `json:"error_message,omitempty"`
	RenderResult   string `json:"render_result,omitempty"`
	CreatedAt      string `json:"created_at"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

// JobStatusResponse 任务状态响应
type JobStatusResponse struct {
	AnalysisID     int64  `json:"analysis_id"`
	JobNumber      int64  `json:"job_number"`
	AnalysisStatus int    `json:"analysis_status"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

// ServerListItem 服务器目录项（密码不出网）
type ServerListItem struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	BaseURL  string `json:"base_url"`
	IsGalaxy bool   `json:"is_galaxy"`
}
