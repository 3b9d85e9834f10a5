package model

import (
	"time"
)

// Experiment 数据集与分析的归属单元（持久化细节属于外部协作方，这里只建最小模型）
type Experiment struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Experiment) TableName() string {
	return "experiments"
}

// ExpFile 实验文件，模块 dataset 参数最终解析到的对象
type ExpFile struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	ExperimentID int64     `gorm:"not null;index" json:"experiment_id"`
	FileName     string    `gorm:"size:255;not null" json:"file_name"`
	FilePath     string    `gorm:"size:500;not null" json:"file_path"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ExpFile) TableName() string {
	return "exp_files"
}

// Dataset 有序的实验文件集合，一个数据集可被多个分析复用
type Dataset struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	ExperimentID int64     `gorm:"not null;index" json:"experiment_id"`
	Name         string    `gorm:"size:200;not null" json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// 按 dataset_files.ordinal 排序加载，不走 gorm 关联
	Files []*ExpFile `gorm:"-" json:"files,omitempty"`
}

func (Dataset) TableName() string {
	return "datasets"
}

// DatasetFile 数据集-文件关系表，ordinal 决定提交顺序
type DatasetFile struct {
	ID        int64 `gorm:"primaryKey" json:"id"`
	DatasetID int64 `gorm:"not null;index:idx_dataset_ordinal" json:"dataset_id"`
	ExpFileID int64 `gorm:"not null;index" json:"exp_file_id"`
	Ordinal   int   `gorm:"not null;index:idx_dataset_ordinal" json:"ordinal"`
}

func (DatasetFile) TableName() string {
	return "dataset_files"
}
