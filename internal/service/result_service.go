package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"

	"github.com/flowlab/flowlab_go_server/config"
	"github.com/flowlab/flowlab_go_server/internal/backend"
	"github.com/flowlab/flowlab_go_server/internal/model"
	"github.com/flowlab/flowlab_go_server/internal/repository"
)

var ErrNoResultFile = errors.New("未找到结果文件")

// Selector 结果获取方式
type Selector string

const (
	SelectorRender Selector = "render" // 模块声明的展示产物
	SelectorFile   Selector = "file"   // 指定路径的单个文件
	SelectorStderr Selector = "stderr" // 任务的标准错误输出
	SelectorZip    Selector = "zip"    // 全部结果打包
)

// Retrieval 一次结果获取：流式返回，调用方负责关闭 Body
type Retrieval struct {
	Body        io.ReadCloser
	ContentType string
	Filename    string
}

// ResultService 从后端取回结果产物
// 产物不落地、不缓存，每次请求直接透传后端的流
type ResultService struct {
	analysisRepo *repository.AnalysisRepository
	registry     *backend.Registry
	cfg          *config.Config
}

func NewResultService(
	analysisRepo *repository.AnalysisRepository,
	registry *backend.Registry,
	cfg *config.Config,
) *ResultService {
	return &ResultService{
		analysisRepo: analysisRepo,
		registry:     registry,
		cfg:          cfg,
	}
}

// Retrieve 获取分析的结果产物
//
// 提交即失败的分析（任务号 -1）没有任何远端产物，直接短路；
// 后端侧的缺失与故障对用户统一表现为"未找到结果文件"
func (s *ResultService) Retrieve(ctx context.Context, userID, analysisID int64, selector Selector, filePath string, download bool) (*Retrieval, error) {
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
	if analysis.IsFailedOnSubmit() {
		return nil, ErrNoResultFile
	}

	server, err := s.registry.ServerFor(analysis.Module)
	if err != nil {
		return nil, err
	}
	client := s.registry.ClientFor(server)

	timeout := time.Duration(s.cfg.BackendTimeoutSeconds()) * time.Second
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)

	retrieval, err := s.fetch(fetchCtx, client, server, analysis, selector, filePath)
	if err != nil {
		cancel()
		var be *backend.Error
		if errors.As(err, &be) {
			return nil, ErrNoResultFile
		}
		return nil, err
	}
	// Body 是流，ctx 要活到读取结束
	retrieval.Body = &cancelOnClose{ReadCloser: retrieval.Body, cancel: cancel}

	if download {
		retrieval.ContentType = "application/octet-stream"
	}

	return retrieval, nil
}

func (s *ResultService) fetch(ctx context.Context, client backend.Client, server *model.AnalysisServer, analysis *model.Analysis, selector Selector, filePath string) (*Retrieval, error) {
	switch selector {
	case SelectorRender:
		if analysis.RenderResult == "" {
			return nil, ErrNoResultFile
		}
		return s.fetchFile(ctx, client, server, analysis.JobNumber, analysis.RenderResult)

	case SelectorFile:
		if filePath == "" {
			return nil, ErrNoResultFile
		}
		return s.fetchFile(ctx, client, server, analysis.JobNumber, filePath)

	case SelectorStderr:
		result, err := client.Status(ctx, server, analysis.JobNumber)
		if err != nil {
			return nil, err
		}
		if result.Status.StderrPath == "" {
			return nil, ErrNoResultFile
		}
		return s.fetchFile(ctx, client, server, analysis.JobNumber, result.Status.StderrPath)

	case SelectorZip:
		body, err := client.FetchZip(ctx, server, analysis.JobNumber)
		if err != nil {
			return nil, err
		}
		return &Retrieval{
			Body:        body,
			ContentType: "application/zip",
			Filename:    fmt.Sprintf("analysis_%d_results.zip", analysis.JobNumber),
		}, nil

	default:
		return nil, ErrNoResultFile
	}
}

func (s *ResultService) fetchFile(ctx context.Context, client backend.Client, server *model.AnalysisServer, jobNumber int64, filePath string) (*Retrieval, error) {
	body, contentType, err := client.FetchOutput(ctx, server, jobNumber, filePath)
	if err != nil {
		return nil, err
	}
	// 文件名保留完整相对路径，避免不同目录下的同名产物混淆
	return &Retrieval{
		Body:        body,
		ContentType: contentType,
		Filename:    filePath,
	}, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
