package repository

import (
	"gorm.io/gorm"

	"github.com/flowlab/flowlab_go_server/internal/model"
)

type DatasetRepository struct {
	db *gorm.DB
}

func NewDatasetRepository(db *gorm.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// GetByID 获取数据集并装载其文件列表（按数据集内的序号）
func (r *DatasetRepository) GetByID(id int64) (*model.Dataset, error) {
	var dataset model.Dataset
	err := r.db.Where("id = ?", id).First(&dataset).Error
	if err != nil {
		return nil, err
	}

	files, err := r.ListFiles(id)
	if err != nil {
		return nil, err
	}
	dataset.Files = files

	return &dataset, nil
}

// ListFiles 数据集的成员文件，按加入顺序返回
func (r *DatasetRepository) ListFiles(datasetID int64) ([]*model.ExpFile, error) {
	var files []*model.ExpFile
	err := r.db.Model(&model.ExpFile{}).
		Joins("JOIN dataset_files ON dataset_files.exp_file_id = exp_files.id").
		Where("dataset_files.dataset_id = ?", datasetID).
		Order("dataset_files.ordinal").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}
