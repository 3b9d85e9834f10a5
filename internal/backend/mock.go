package backend

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/flowlab/flowlab_go_server/internal/model"
)

// MockClient 测试后端（mock:// 协议的服务器）
// 提交立即成功并生成一份固定的自动报告，全部状态保存在内存里
type MockClient struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*mockJob
}

type mockJob struct {
	result *JobResult
	files  map[string][]byte
}

func NewMockClient() *MockClient {
	return &MockClient{
		nextID: 1000,
		jobs:   make(map[int64]*mockJob),
	}
}

// Submit 分配任务号并立即置为完成
func (c *MockClient) Submit(ctx context.Context, server *model.AnalysisServer, module *model.Module, params []Param) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	jobNumber := c.nextID

	report := fmt.Sprintf("<html><body><h1>%s</h1><p>job %d finished</p></body></html>",
		module.Name, jobNumber)
	now := time.Now()

	c.jobs[jobNumber] = &mockJob{
		result: &JobResult{
			StatusCode: http.StatusOK,
			OutputFiles: []OutputFile{
				{Path: "Reports/AutoReport.html", ContentType: "text/html"},
			},
			Status:      StatusBlock{Completed: true},
			CompletedAt: &now,
		},
		files: map[string][]byte{
			"Reports/AutoReport.html": []byte(report),
		},
	}

	return jobNumber, nil
}

// SetJob 预置任务状态与文件（测试用）
func (c *MockClient) SetJob(jobNumber int64, result *JobResult, files map[string][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs[jobNumber] = &mockJob{result: result, files: files}
}

func (c *MockClient) Status(ctx context.Context, server *model.AnalysisServer, jobNumber int64) (*JobResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[jobNumber]
	if !ok {
		return nil, NewNotFoundError("远端任务已不存在", fmt.Errorf("mock job %d not found", jobNumber))
	}
	return job.result, nil
}

func (c *MockClient) FetchOutput(ctx context.Context, server *model.AnalysisServer, jobNumber int64, path string) (io.ReadCloser, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[jobNumber]
	if !ok {
		return nil, "", NewNotFoundError("结果文件已不存在", fmt.Errorf("mock job %d not found", jobNumber))
	}
	data, ok := job.files[path]
	if !ok {
		return nil, "", NewNotFoundError("结果文件已不存在", fmt.Errorf("mock file %s not found", path))
	}
	return io.NopCloser(bytes.NewReader(data)), contentTypeByExt(path), nil
}

func (c *MockClient) FetchZip(ctx context.Context, server *model.AnalysisServer, jobNumber int64) (io.ReadCloser, error) {
	c.mu.Lock()
	job, ok := c.jobs[jobNumber]
	if !ok {
		c.mu.Unlock()
		return nil, NewNotFoundError("结果文件已不存在", fmt.Errorf("mock job %d not found", jobNumber))
	}
	// 拷贝内容，避免持锁写 zip
	files := make(map[string][]byte, len(job.files))
	for k, v := range job.files {
		files[k] = v
	}
	c.mu.Unlock()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for path, data := range files {
		w, err := zw.Create(path)
		if err != nil {
			return nil, NewTransientError("打包结果失败", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, NewTransientError("打包结果失败", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, NewTransientError("打包结果失败", err)
	}

	return io.NopCloser(&buf), nil
}
