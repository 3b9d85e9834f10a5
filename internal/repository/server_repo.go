package repository

import (
	"gorm.io/gorm"

	"github.com/flowlab/flowlab_go_server/internal/model"
)

type ServerRepository struct {
	db *gorm.DB
}

func NewServerRepository(db *gorm.DB) *ServerRepository {
	return &ServerRepository{db: db}
}

func (r *ServerRepository) GetByID(id int64) (*model.AnalysisServer, error) {
	var server model.AnalysisServer
	err := r.db.Where("id = ?", id).First(&server).Error
	if err != nil {
		return nil, err
	}
	return &server, nil
}

func (r *ServerRepository) List() ([]*model.AnalysisServer, error) {
	var servers []*model.AnalysisServer
	err := r.db.Order("id").Find(&servers).Error
	if err != nil {
		return nil, err
	}
	return servers, nil
}
