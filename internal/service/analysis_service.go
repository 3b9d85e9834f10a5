package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/flowlab/flowlab_go_server/internal/model"
	"github.com/flowlab/flowlab_go_server/internal/model/dto"
	"github.com/flowlab/flowlab_go_server/internal/repository"
)

var (
	ErrAnalysisNotFound   = errors.New("分析项目不存在")
	ErrAnalysisPermission = errors.New("无权操作此分析项目")
)

// AnalysisService 分析记录的查询与生命周期管理
type AnalysisService struct {
	analysisRepo  *repository.AnalysisRepository
	statusService *StatusService
}

func NewAnalysisService(
	analysisRepo *repository.AnalysisRepository,
	statusService *StatusService,
) *AnalysisService {
	return &AnalysisService{
		analysisRepo:  analysisRepo,
		statusService: statusService,
	}
}

// List 获取用户的分析列表
func (s *AnalysisService) List(userID int64, page, pageSize int, search string, status *int) ([]*dto.AnalysisListItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	analyses, total, err := s.analysisRepo.ListByUserID(userID, page, pageSize, search, status)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.AnalysisListItem, 0, len(analyses))
	for _, a := range analyses {
		item := &dto.AnalysisListItem{
			ID:             a.ID,
			Name:           a.Name,
			JobNumber:      a.JobNumber,
			AnalysisStatus: a.AnalysisStatus,
			CreatedAt:      a.CreatedAt.Format(time.RFC3339),
		}
		if a.Module != nil {
			item.ModuleName = a.Module.Title
		}
		if a.CompletedAt != nil {
			item.CompletedAt = a.CompletedAt.Format(time.RFC3339)
		}
		items = append(items, item)
	}

	return items, total, nil
}

// GetByID 获取分析详情
func (s *AnalysisService) GetByID(userID, analysisID int64) (*dto.AnalysisDetail, error) {
	analysis, err := s.getVisible(userID, analysisID)
	if err != nil {
		return nil, err
	}

	detail := &dto.AnalysisDetail{
		ID:             analysis.ID,
		Name:           analysis.Name,
		Description:    analysis.Description,
		ExperimentID:   analysis.ExperimentID,
		ModuleID:       analysis.ModuleID,
		JobNumber:      analysis.JobNumber,
		AnalysisStatus: analysis.AnalysisStatus,
		ErrorMessage:   analysis.ErrorMessage,
		RenderResult:   analysis.RenderResult,
		CreatedAt:      analysis.CreatedAt.Format(time.RFC3339),
	}
	if analysis.Module != nil {
		detail.ModuleName = analysis.Module.Title
	}
	if analysis.DatasetID != nil {
		detail.DatasetID = *analysis.DatasetID
	}
	if analysis.CompletedAt != nil {
		detail.CompletedAt = analysis.CompletedAt.Format(time.RFC3339)
	}

	return detail, nil
}

// GetJobStatus 获取任务状态；执行中的任务顺带向后端拉取一次最新状态
func (s *AnalysisService) GetJobStatus(ctx context.Context, userID, analysisID int64) (*dto.JobStatusResponse, error) {
	analysis, err := s.getVisible(userID, analysisID)
	if err != nil {
		return nil, err
	}

	if analysis.NeedsPoll() {
		// 拉取失败不影响响应，返回库里的已知状态
		if status, perr := s.statusService.PollOne(ctx, analysis); perr == nil && status != analysis.AnalysisStatus {
			refreshed, rerr := s.analysisRepo.GetByID(analysisID)
			if rerr == nil {
				analysis = refreshed
			}
		}
	}

	resp := &dto.JobStatusResponse{
		AnalysisID:     analysis.ID,
		JobNumber:      analysis.JobNumber,
		AnalysisStatus: analysis.AnalysisStatus,
		ErrorMessage:   analysis.ErrorMessage,
	}
	if analysis.CompletedAt != nil {
		resp.CompletedAt = analysis.CompletedAt.Format(time.RFC3339)
	}

	return resp, nil
}

// Hide 软删除：列表不再展示，记录与远端任务保留
func (s *AnalysisService) Hide(userID, analysisID int64) error {
	if _, err := s.getVisible(userID, analysisID); err != nil {
		return err
	}
	return s.analysisRepo.Hide(analysisID)
}

// Erase 彻底删除本地记录（远端任务不受影响）
func (s *AnalysisService) Erase(userID, analysisID int64) error {
	analysis, err := s.analysisRepo.GetByID(analysisID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnalysisNotFound
		}
		return err
	}
	if analysis.UserID != userID {
		return ErrAnalysisPermission
	}
	return s.analysisRepo.Delete(analysisID)
}

// getVisible 取回未隐藏且属于该用户的分析
func (s *AnalysisService) getVisible(userID, analysisID int64) (*model.Analysis, error) {
	analysis, err := s.analysisRepo.GetByIDWithModule(analysisID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	if analysis.AnalysisStatus == model.StatusHidden {
		return nil, ErrAnalysisNotFound
	}
	if analysis.UserID != userID {
		return nil, ErrAnalysisPermission
	}
	return analysis, nil
}
