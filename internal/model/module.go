package model

import (
	"time"
)

// 模块参数类型
const (
	ParamTypeFile     = "file"     // 本地文件路径（上传/选择）
	ParamTypeVar      = "var"      // 标量值
	ParamTypeDataset  = "dataset"  // 数据集引用，提交时展开为文件列表
	ParamTypeField    = "field"    // 自由文本
	ParamTypeMetadata = "metadata" // 元数据引用
)

// Module 可复用的分析工具定义，绑定到一台分析服务器
type Module struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	ServerID     int64     `gorm:"not null;index" json:"server_id"`
	Name         string    `gorm:"size:200;not null" json:"name"`
	Title        string    `gorm:"size:200" json:"title,omitempty"`
	TaskID       string    `gorm:"size:200" json:"task_id,omitempty"` // 远端任务标识（GenePattern LSID / Galaxy workflow id）
	RenderResult string    `gorm:"size:500" json:"render_result,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// 关联
	Server *AnalysisServer `gorm:"foreignKey:ServerID" json:"server,omitempty"`
	Params []*ModuleParam  `gorm:"foreignKey:ModuleID" json:"params,omitempty"`
}

func (Module) TableName() string {
	return "modules"
}

// ModuleParam 模块的一个声明参数，按 Ordinal 排序提交
type ModuleParam struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	ModuleID     int64  `gorm:"not null;index" json:"module_id"`
	Ordinal      int    `gorm:"not null" json:"ordinal"`
	Name         string `gorm:"size:100;not null" json:"name"`
	ParamType    string `gorm:"size:20;not null" json:"param_type"`
	DefaultValue string `gorm:"size:500" json:"default_value,omitempty"`
	Required     bool   `gorm:"default:false" json:"required"`
	Basic        bool   `gorm:"default:true" json:"basic"` // false = 高级参数，默认折叠
}

func (ModuleParam) TableName() string {
	return "module_params"
}
