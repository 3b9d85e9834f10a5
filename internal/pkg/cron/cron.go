package cron

import (
	"context"
	"log"
	"time"

	"github.com/flowlab/flowlab_go_server/internal/service"
)

// Service 定时扫描服务：周期性轮询所有未完结的分析
// 回调丢失或远端静默失败时，由这里兜底推进状态
type Service struct {
	statusService   *service.StatusService
	intervalSeconds int
	stopChan        chan struct{}
}

func NewService(statusService *service.StatusService, intervalSeconds int) *Service {
	if intervalSeconds <= 0 {
		intervalSeconds = 300
	}
	return &Service{
		statusService:   statusService,
		intervalSeconds: intervalSeconds,
		stopChan:        make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runSweep()
	log.Printf("Sweep service started (interval: %ds)", s.intervalSeconds)
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Sweep service stopped")
}

func (s *Service) runSweep() {
	ticker := time.NewTicker(time.Duration(s.intervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.intervalSeconds)*time.Second)
	defer cancel()

	if err := s.statusService.PollBatch(ctx, service.ScopeAll); err != nil {
		log.Printf("Sweep failed: %v", err)
	}
}

// RunNow 立即执行一轮扫描（用于测试或手动触发）
func (s *Service) RunNow(ctx context.Context) error {
	return s.statusService.PollBatch(ctx, service.ScopeAll)
}
