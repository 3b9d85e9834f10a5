package repository

import (
	"gorm.io/gorm"

	"github.com/flowlab/flowlab_go_server/internal/model"
)

type ModuleRepository struct {
	db *gorm.DB
}

func NewModuleRepository(db *gorm.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// GetByID 获取模块及其参数定义（按定义顺序）和绑定的服务器
func (r *ModuleRepository) GetByID(id int64) (*model.Module, error) {
	var module model.Module
	err := r.db.Preload("Server").
		Preload("Params", func(db *gorm.DB) *gorm.DB {
			return db.Order("ordinal")
		}).
		Where("id = ?", id).First(&module).Error
	if err != nil {
		return nil, err
	}
	return &module, nil
}

func (r *ModuleRepository) List() ([]*model.Module, error) {
	var modules []*model.Module
	err := r.db.Preload("Server").Order("name").Find(&modules).Error
	if err != nil {
		return nil, err
	}
	return modules, nil
}
