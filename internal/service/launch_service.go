package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/flowlab/flowlab_go_server/config"
	"github.com/flowlab/flowlab_go_server/internal/backend"
	"github.com/flowlab/flowlab_go_server/internal/model"
	"github.com/flowlab/flowlab_go_server/internal/model/dto"
	"github.com/flowlab/flowlab_go_server/internal/repository"
)

var (
	ErrModuleNotFound  = errors.New("分析模块不存在")
	ErrDatasetNotFound = errors.New("数据集不存在")
)

// LaunchService 负责分析的发起：
// 解析参数、落库、向后端提交，一次提交只尝试一次，不做自动重试
type LaunchService struct {
	analysisRepo *repository.AnalysisRepository
	moduleRepo   *repository.ModuleRepository
	datasetRepo  *repository.DatasetRepository
	registry     *backend.Registry
	binder       *ParamBinder
	cfg          *config.Config
}

func NewLaunchService(
	analysisRepo *repository.AnalysisRepository,
	moduleRepo *repository.ModuleRepository,
	datasetRepo *repository.DatasetRepository,
	registry *backend.Registry,
	cfg *config.Config,
) *LaunchService {
	return &LaunchService{
		analysisRepo: analysisRepo,
		moduleRepo:   moduleRepo,
		datasetRepo:  datasetRepo,
		registry:     registry,
		binder:       NewParamBinder(),
		cfg:          cfg,
	}
}

// Launch 发起一次分析
//
// 参数解析和服务器解析都在落库之前完成，配置类错误不会留下记录；
// 提交失败的分析仍会落库（任务号 -1、状态错误），让用户能看到失败原因
func (s *LaunchService) Launch(ctx context.Context, userID int64, req *dto.SubmitAnalysisRequest) (*dto.SubmitAnalysisResponse, error) {
	module, err := s.moduleRepo.GetByID(req.ModuleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModuleNotFound
		}
		return nil, err
	}

	server, err := s.registry.ServerFor(module)
	if err != nil {
		return nil, err
	}

	var dataset *model.Dataset
	if req.DatasetID != nil {
		dataset, err = s.datasetRepo.GetByID(*req.DatasetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrDatasetNotFound
			}
			return nil, err
		}
	}

	params, err := s.binder.Bind(module, dataset, req.Params)
	if err != nil {
		return nil, err
	}

	analysis := &model.Analysis{
		UserID:         userID,
		ExperimentID:   req.ExperimentID,
		ModuleID:       req.ModuleID,
		DatasetID:      req.DatasetID,
		Name:           req.Name,
		Description:    req.Description,
		JobNumber:      model.JobNumberNone,
		AnalysisStatus: model.StatusInit,
		RenderResult:   module.RenderResult,
	}
	if err := s.analysisRepo.Create(analysis); err != nil {
		return nil, err
	}

	timeout := time.Duration(s.cfg.BackendTimeoutSeconds()) * time.Second
	submitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := s.registry.ClientFor(server)
	jobNumber, err := client.Submit(submitCtx, server, module, params)
	if err != nil {
		// 提交失败：记录保留，任务号 -1 标记一次性失败
		var be *backend.Error
		message := "提交分析任务失败"
		if errors.As(err, &be) {
			message = be.UserMessage
		}
		s.analysisRepo.UpdateFields(analysis.ID, map[string]interface{}{
			"job_number":      model.JobNumberNone,
			"analysis_status": model.StatusError,
			"error_message":   message,
		})
		return &dto.SubmitAnalysisResponse{
			AnalysisID:     analysis.ID,
			JobNumber:      model.JobNumberNone,
			AnalysisStatus: model.StatusError,
			ErrorMessage:   message,
		}, nil
	}

	if err := s.analysisRepo.UpdateFields(analysis.ID, map[string]interface{}{
		"job_number":      jobNumber,
		"analysis_status": model.StatusProcessing,
	}); err != nil {
		return nil, err
	}

	return &dto.SubmitAnalysisResponse{
		AnalysisID:     analysis.ID,
		JobNumber:      jobNumber,
		AnalysisStatus: model.StatusProcessing,
	}, nil
}
