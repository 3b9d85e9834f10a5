package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/flowlab/flowlab_go_server/internal/model"
)

type AnalysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(analysis *model.Analysis) error {
	return r.db.Create(analysis).Error
}

func (r *AnalysisRepository) GetByID(id int64) (*model.Analysis, error) {
	var analysis model.Analysis
	err := r.db.Where("id = ?", id).First(&analysis).Error
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *AnalysisRepository) GetByIDWithModule(id int64) (*model.Analysis, error) {
	var analysis model.Analysis
	err := r.db.Preload("Module").Preload("Module.Server").
		Where("id = ?", id).First(&analysis).Error
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *AnalysisRepository) GetByJobNumber(jobNumber int64) (*model.Analysis, error) {
	var analysis model.Analysis
	err := r.db.Preload("Module").Preload("Module.Server").
		Where("job_number = ?", jobNumber).First(&analysis).Error
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *AnalysisRepository) Update(analysis *model.Analysis) error {
	return r.db.Save(analysis).Error
}

func (r *AnalysisRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.Analysis{}).Where("id = ?", id).Updates(fields).Error
}

// UpdateStatusGuarded 带守卫的状态更新：
// 已隐藏的记录不再变化，已完成的记录只接受再次写入完成（回调与轮询可能并发到达）
// 每次成功更新递增版本号；返回是否真正写入
func (r *AnalysisRepository) UpdateStatusGuarded(id int64, status int, errorMessage string, completedAt *time.Time) (bool, error) {
	fields := map[string]interface{}{
		"analysis_status": status,
		"error_message":   errorMessage,
		"version":         gorm.Expr("version + 1"),
	}
	if completedAt != nil {
		fields["completed_at"] = completedAt
	}

	tx := r.db.Model(&model.Analysis{}).
		Where("id = ? AND analysis_status <> ?", id, model.StatusHidden).
		Where("analysis_status <> ? OR ? = ?", model.StatusDone, status, model.StatusDone).
		Updates(fields)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *AnalysisRepository) Delete(id int64) error {
	return r.db.Delete(&model.Analysis{}, id).Error
}

// Hide 软删除：状态置为隐藏，列表与轮询都不再触及
func (r *AnalysisRepository) Hide(id int64) error {
	return r.db.Model(&model.Analysis{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"analysis_status": model.StatusHidden,
			"version":         gorm.Expr("version + 1"),
		}).Error
}

// ListByUserID 获取用户的分析列表（隐藏的不计入）
func (r *AnalysisRepository) ListByUserID(userID int64, page, pageSize int, search string, status *int) ([]*model.Analysis, int64, error) {
	var analyses []*model.Analysis
	var total int64

	query := r.db.Model(&model.Analysis{}).
		Where("user_id = ?", userID).
		Where("analysis_status <> ?", model.StatusHidden)

	if search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}
	if status != nil {
		query = query.Where("analysis_status = ?", *status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Preload("Module").Order("created_at DESC").
		Offset(offset).Limit(pageSize).Find(&analyses).Error; err != nil {
		return nil, 0, err
	}

	return analyses, total, nil
}

// ListPollable 列出还需要轮询远端状态的分析：
// 有任务号，且尚未完成、未隐藏（错误态保留在列表里，远端可能恢复）
func (r *AnalysisRepository) ListPollable(userID int64) ([]*model.Analysis, error) {
	var analyses []*model.Analysis

	query := r.db.Model(&model.Analysis{}).
		Preload("Module").Preload("Module.Server").
		Where("job_number > 0").
		Where("analysis_status NOT IN ?", []int{model.StatusDone, model.StatusHidden})
	if userID > 0 {
		query = query.Where("user_id = ?", userID)
	}

	if err := query.Order("id").Find(&analyses).Error; err != nil {
		return nil, err
	}
	return analyses, nil
}
