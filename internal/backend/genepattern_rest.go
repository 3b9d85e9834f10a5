package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flowlab/flowlab_go_server/internal/model"
)

// GenePatternRestClient GenePattern REST 接口客户端
// 提交走 /gp/rest/v1/jobs，参数以 JSON 传递，Basic 认证
type GenePatternRestClient struct {
	hc *http.Client
}

func NewGenePatternRestClient(timeout time.Duration) *GenePatternRestClient {
	return &GenePatternRestClient{hc: newHTTPClient(timeout)}
}

type gpRestSubmitRequest struct {
	LSID   string  `json:"lsid"`
	Params []Param `json:"params"`
}

type gpRestSubmitResponse struct {
	JobID json.Number `json:"jobId"`
}

type gpRestJob struct {
	JobID  json.Number `json:"jobId"`
	Status struct {
		IsFinished     bool   `json:"isFinished"`
		HasError       bool   `json:"hasError"`
		StatusMessage  string `json:"statusMessage"`
		StderrLocation string `json:"stderrLocation"`
	} `json:"status"`
	OutputFiles []struct {
		Path string `json:"path"`
		Link struct {
			Href string `json:"href"`
			Name string `json:"name"`
		} `json:"link"`
		Kind string `json:"kind"`
	} `json:"outputFiles"`
	DateCompleted string `json:"dateCompleted"`
}

func (c *GenePatternRestClient) jobsURL(server *model.AnalysisServer) string {
	return strings.TrimSuffix(server.BaseURL, "/") + "/gp/rest/v1/jobs"
}

// Submit 提交任务
func (c *GenePatternRestClient) Submit(ctx context.Context, server *model.AnalysisServer, module *model.Module, params []Param) (int64, error) {
	body, err := json.Marshal(&gpRestSubmitRequest{LSID: module.TaskID, Params: params})
	if err != nil {
		return 0, NewSubmissionError("提交请求构造失败", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.jobsURL(server), bytes.NewReader(body))
	if err != nil {
		return 0, NewSubmissionError("提交请求构造失败", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(server.Username, server.Password)

	resp, err := c.hc.Do(req)
	if err != nil {
		if isTimeout(err) {
			return 0, NewSubmissionError("提交超时，分析服务器无响应", err)
		}
		return 0, NewSubmissionError("无法连接分析服务器", err)
	}
	defer drainClose(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return 0, NewSubmissionError("分析服务器认证失败", statusError(resp))
	default:
		return 0, NewSubmissionError("分析服务器拒绝了提交", statusError(resp))
	}

	var sr gpRestSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return 0, NewSubmissionError("提交响应解析失败", err)
	}
	jobNumber, err := sr.JobID.Int64()
	if err != nil || jobNumber <= 0 {
		return 0, NewSubmissionError("提交响应缺少任务号", fmt.Errorf("jobId=%q: %v", sr.JobID.String(), err))
	}

	return jobNumber, nil
}

// Status 查询任务状态
func (c *GenePatternRestClient) Status(ctx context.Context, server *model.AnalysisServer, jobNumber int64) (*JobResult, error) {
	url := c.jobsURL(server) + "/" + strconv.FormatInt(jobNumber, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewTransientError("无法连接分析服务器", err)
	}
	req.SetBasicAuth(server.Username, server.Password)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, NewTransientError(transientMessage(err), err)
	}
	defer drainClose(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, NewNotFoundError("远端任务已不存在", statusError(resp))
	default:
		return nil, NewTransientError("分析服务器返回异常", statusError(resp))
	}

	var job gpRestJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, NewTransientError("状态响应解析失败", err)
	}

	result := &JobResult{
		StatusCode: http.StatusOK,
		Status: StatusBlock{
			Completed:  job.Status.IsFinished,
			HasError:   job.Status.HasError,
			Message:    job.Status.StatusMessage,
			StderrPath: job.Status.StderrLocation,
		},
	}
	for _, f := range job.OutputFiles {
		path := f.Path
		if path == "" {
			path = f.Link.Name
		}
		result.OutputFiles = append(result.OutputFiles, OutputFile{
			Path:        path,
			Link:        f.Link.Href,
			ContentType: f.Kind,
		})
	}
	if job.DateCompleted != "" {
		if ts, err := time.Parse(time.RFC3339, job.DateCompleted); err == nil {
			result.CompletedAt = &ts
		}
	}

	return result, nil
}

// FetchOutput 取单个输出文件
func (c *GenePatternRestClient) FetchOutput(ctx context.Context, server *model.AnalysisServer, jobNumber int64, path string) (io.ReadCloser, string, error) {
	return fetchGenePatternFile(ctx, c.hc, server, genePatternResultURL(server, jobNumber, path))
}

// FetchZip 取整包结果
func (c *GenePatternRestClient) FetchZip(ctx context.Context, server *model.AnalysisServer, jobNumber int64) (io.ReadCloser, error) {
	body, _, err := fetchGenePatternFile(ctx, c.hc, server, genePatternResultURL(server, jobNumber, ""))
	return body, err
}
