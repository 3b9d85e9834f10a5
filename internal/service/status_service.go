package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"

	"github.com/flowlab/flowlab_go_server/config"
	"github.com/flowlab/flowlab_go_server/internal/backend"
	"github.com/flowlab/flowlab_go_server/internal/model"
	"github.com/flowlab/flowlab_go_server/internal/pkg/pubsub"
	"github.com/flowlab/flowlab_go_server/internal/repository"
)

// Scope 限定一次轮询覆盖的分析范围
type Scope struct {
	All    bool
	UserID int64
}

var ScopeAll = Scope{All: true}

func ScopeUser(userID int64) Scope {
	return Scope{UserID: userID}
}

// StatusService 维护分析状态：接收回调推送，也能主动向后端轮询
// 回调与轮询可能并发到达同一条记录，写入统一走守卫更新，完成态不回退
type StatusService struct {
	analysisRepo *repository.AnalysisRepository
	registry     *backend.Registry
	publisher    *pubsub.Publisher
	cfg          *config.Config
}

func NewStatusService(
	analysisRepo *repository.AnalysisRepository,
	registry *backend.Registry,
	publisher *pubsub.Publisher,
	cfg *config.Config,
) *StatusService {
	return &StatusService{
		analysisRepo: analysisRepo,
		registry:     registry,
		publisher:    publisher,
		cfg:          cfg,
	}
}

// statusFromToken 把回调里的状态字翻译成本地状态，认不出的一律当作处理中
func statusFromToken(token string) int {
	switch token {
	case "Finished":
		return model.StatusDone
	case "Error":
		return model.StatusError
	default:
		return model.StatusProcessing
	}
}

// ApplyCallback 处理分析服务器的完成回调
//
// 回调只携带任务号和状态字；完成时间和错误详情尽量向后端补查一次，
// 查不到就降级为本地时间，回调本身不因此失败
func (s *StatusService) ApplyCallback(ctx context.Context, jobNumber int64, statusToken string) error {
	analysis, err := s.analysisRepo.GetByJobNumber(jobNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnalysisNotFound
		}
		return err
	}

	status := statusFromToken(statusToken)
	errorMessage := ""
	var completedAt *time.Time

	if status == model.StatusDone || status == model.StatusError {
		if result, rerr := s.queryBackend(ctx, analysis); rerr == nil {
			errorMessage = result.Status.Message
			completedAt = result.CompletedAt
		}
		if completedAt == nil {
			now := time.Now()
			completedAt = &now
		}
	}

	updated, err := s.analysisRepo.UpdateStatusGuarded(analysis.ID, status, errorMessage, completedAt)
	if err != nil {
		return err
	}
	if updated {
		s.notify(analysis, status, errorMessage)
	}
	return nil
}

// PollOne 主动向后端查询一次并落库，返回最新状态
func (s *StatusService) PollOne(ctx context.Context, analysis *model.Analysis) (int, error) {
	if !analysis.NeedsPoll() {
		return analysis.AnalysisStatus, nil
	}

	result, err := s.queryBackend(ctx, analysis)
	if err != nil {
		if backend.IsNotFound(err) {
			// 远端任务已消失，标记为错误避免反复轮询
			updated, uerr := s.analysisRepo.UpdateStatusGuarded(
				analysis.ID, model.StatusError, "远端任务已不存在", nil)
			if uerr != nil {
				return analysis.AnalysisStatus, uerr
			}
			if updated {
				s.notify(analysis, model.StatusError, "远端任务已不存在")
			}
			return model.StatusError, nil
		}
		// 瞬时故障：状态保持不变，等下一轮
		return analysis.AnalysisStatus, err
	}

	status := model.StatusProcessing
	switch {
	case result.Status.HasError:
		status = model.StatusError
	case result.Status.Completed:
		status = model.StatusDone
	}
	if status == analysis.AnalysisStatus {
		return status, nil
	}

	completedAt := result.CompletedAt
	if completedAt == nil && status != model.StatusProcessing {
		now := time.Now()
		completedAt = &now
	}

	updated, err := s.analysisRepo.UpdateStatusGuarded(analysis.ID, status, result.Status.Message, completedAt)
	if err != nil {
		return analysis.AnalysisStatus, err
	}
	if updated {
		s.notify(analysis, status, result.Status.Message)
	}
	return status, nil
}

// PollBatch 轮询范围内所有未完结的分析
// 单条失败只记录日志不中断批次，并发度由配置限定
func (s *StatusService) PollBatch(ctx context.Context, scope Scope) error {
	userID := scope.UserID
	if scope.All {
		userID = 0
	}

	analyses, err := s.analysisRepo.ListPollable(userID)
	if err != nil {
		return err
	}
	if len(analyses) == 0 {
		return nil
	}

	pool, err := ants.NewPool(s.cfg.PollConcurrency())
	if err != nil {
		return err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, analysis := range analyses {
		analysis := analysis
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if _, perr := s.PollOne(ctx, analysis); perr != nil {
				log.Printf("Failed to poll analysis %d (job %d): %v", analysis.ID, analysis.JobNumber, perr)
			}
		}); err != nil {
			wg.Done()
			log.Printf("Failed to schedule poll for analysis %d: %v", analysis.ID, err)
		}
	}
	wg.Wait()

	return nil
}

// queryBackend 解析分析绑定的后端并查询远端状态
func (s *StatusService) queryBackend(ctx context.Context, analysis *model.Analysis) (*backend.JobResult, error) {
	if analysis.Module == nil {
		loaded, err := s.analysisRepo.GetByIDWithModule(analysis.ID)
		if err != nil {
			return nil, err
		}
		analysis.Module = loaded.Module
	}

	server, err := s.registry.ServerFor(analysis.Module)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(s.cfg.BackendTimeoutSeconds()) * time.Second
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return s.registry.ClientFor(server).Status(queryCtx, server, analysis.JobNumber)
}

// notify 广播状态变更，推送失败只记日志
func (s *StatusService) notify(analysis *model.Analysis, status int, message string) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := s.publisher.PublishStatus(ctx, &pubsub.StatusMessage{
		UserID:     analysis.UserID,
		AnalysisID: analysis.ID,
		JobNumber:  analysis.JobNumber,
		Status:     status,
		Message:    message,
	})
	if err != nil {
		log.Printf("Failed to publish status for analysis %d: %v", analysis.ID, err)
	}
}
