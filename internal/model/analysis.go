package model

import (
	"time"
)

// 分析状态枚举，与远端回调/轮询共用一套取值
const (
	StatusInit       = 1  // 已创建，尚未提交
	StatusProcessing = 2  // 远端任务执行中
	StatusDone       = 3  // 远端任务成功结束
	StatusError      = -1 // 提交失败或远端任务报错
	StatusHidden     = -2 // 用户软删除，仅影响列表展示
)

// JobNumberNone 未提交 / 提交失败的哨兵值
const JobNumberNone = -1

type Analysis struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	UserID         int64      `gorm:"not null;index" json:"user_id"`
	ExperimentID   int64      `gorm:"not null;index" json:"experiment_id"`
	ModuleID       int64      `gorm:"not null;index" json:"module_id"`
	DatasetID      *int64     `gorm:"index" json:"dataset_id,omitempty"`
	Name           string     `gorm:"size:200;not null" json:"name"`
	Description    string     `gorm:"type:text" json:"description"`
	JobNumber      int64      `gorm:"default:-1;index" json:"job_number"`
	AnalysisStatus int        `gorm:"default:1;index" json:"analysis_status"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	RenderResult   string     `gorm:"size:500" json:"render_result,omitempty"`
	Version        int64      `gorm:"default:0" json:"-"` // 乐观锁，状态写入时递增
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`

	// 关联
	User    *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Module  *Module  `gorm:"foreignKey:ModuleID" json:"module,omitempty"`
	Dataset *Dataset `gorm:"foreignKey:DatasetID" json:"dataset,omitempty"`
}

func (Analysis) TableName() string {
	return "analyses"
}

// IsFailedOnSubmit 是否从未提交成功（jobNumber 非正）
func (a *Analysis) IsFailedOnSubmit() bool {
	return a.JobNumber <= 0
}

// NeedsPoll 是否还需要向后端轮询状态
// Error(-1) 的任务只要曾提交成功仍可轮询（远端可能已恢复）
func (a *Analysis) NeedsPoll() bool {
	return a.JobNumber > 0 &&
		a.AnalysisStatus != StatusDone &&
		a.AnalysisStatus != StatusHidden
}
