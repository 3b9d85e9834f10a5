package backend

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/flowlab/flowlab_go_server/internal/model"
)

// GalaxyClient Galaxy 工作流后端客户端
// 提交为具名工作流调用，任务号即工作流运行号；结果文件不走 HTTP，
// 由外部流程拷贝到共享存储，这里只按 resultRoot/<运行号>/<相对路径> 读取
type GalaxyClient struct {
	hc         *http.Client
	resultRoot string
}

func NewGalaxyClient(timeout time.Duration, resultRoot string) *GalaxyClient {
	return &GalaxyClient{
		hc:         newHTTPClient(timeout),
		resultRoot: resultRoot,
	}
}

type galaxyInvokeRequest struct {
	WorkflowID string              `json:"workflow_id"`
	Inputs     map[string][]string `json:"inputs,omitempty"`
}

type galaxyInvokeResponse struct {
	ID json.Number `json:"id"`
}

type galaxyInvocation struct {
	ID         json.Number `json:"id"`
	State      string      `json:"state"` // new / ready / scheduled / ok / error
	Message    string      `json:"message"`
	UpdateTime string      `json:"update_time"`
}

func (c *GalaxyClient) apiURL(server *model.AnalysisServer, path string) string {
	return strings.TrimSuffix(server.BaseURL, "/") + "/api/" + path
}

// Galaxy 以 API Key 认证，连接描述里的密码字段即 key
func (c *GalaxyClient) setAuth(req *http.Request, server *model.AnalysisServer) {
	req.Header.Set("X-Api-Key", server.Password)
}

// Submit 发起工作流调用
func (c *GalaxyClient) Submit(ctx context.Context, server *model.AnalysisServer, module *model.Module, params []Param) (int64, error) {
	payload := galaxyInvokeRequest{WorkflowID: module.TaskID, Inputs: map[string][]string{}}
	for _, p := range params {
		payload.Inputs[p.Name] = p.Values
	}

	body, err := json.Marshal(&payload)
	if err != nil {
		return 0, NewSubmissionError("提交请求构造失败", err)
	}

	url := c.apiURL(server, "workflows/"+module.TaskID+"/invocations")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, NewSubmissionError("提交请求构造失败", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req, server)

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

	var ir galaxyInvokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return 0, NewSubmissionError("提交响应解析失败", err)
	}
	runID, err := ir.ID.Int64()
	if err != nil || runID <= 0 {
		return 0, NewSubmissionError("提交响应缺少运行号", fmt.Errorf("id=%q: %v", ir.ID.String(), err))
	}

	return runID, nil
}

// Status 查询工作流运行状态，输出文件从共享存储枚举
func (c *GalaxyClient) Status(ctx context.Context, server *model.AnalysisServer, jobNumber int64) (*JobResult, error) {
	url := c.apiURL(server, "invocations/"+strconv.FormatInt(jobNumber, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewTransientError("无法连接分析服务器", err)
	}
	c.setAuth(req, server)

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

	var inv galaxyInvocation
	if err := json.NewDecoder(resp.Body).Decode(&inv); err != nil {
		return nil, NewTransientError("状态响应解析失败", err)
	}

	result := &JobResult{
		StatusCode: http.StatusOK,
		Status: StatusBlock{
			Completed: inv.State == "ok" || inv.State == "done",
			HasError:  inv.State == "error" || inv.State == "failed",
			Message:   inv.Message,
		},
	}
	if inv.UpdateTime != "" && (result.Status.Completed || result.Status.HasError) {
		if ts, err := time.Parse(time.RFC3339, inv.UpdateTime); err == nil {
			result.CompletedAt = &ts
		}
	}

	// 输出文件以共享存储为准：运行目录下的相对路径列表
	result.OutputFiles = c.listRunFiles(jobNumber)

	return result, nil
}

// listRunFiles 枚举 resultRoot/<运行号>/ 下的全部文件（相对路径，字典序）
func (c *GalaxyClient) listRunFiles(jobNumber int64) []OutputFile {
	runDir := c.runDir(jobNumber)

	var files []OutputFile
	filepath.WalkDir(runDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(runDir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		files = append(files, OutputFile{
			Path:        rel,
			ContentType: contentTypeByExt(rel),
		})
		return nil
	})
	return files
}

func (c *GalaxyClient) runDir(jobNumber int64) string {
	return filepath.Join(c.resultRoot, strconv.FormatInt(jobNumber, 10))
}

// FetchOutput 从共享存储读取单个结果文件
func (c *GalaxyClient) FetchOutput(ctx context.Context, server *model.AnalysisServer, jobNumber int64, path string) (io.ReadCloser, string, error) {
	runDir := c.runDir(jobNumber)
	full := filepath.Join(runDir, filepath.FromSlash(path))

	// 防止相对路径逃出运行目录
	if !strings.HasPrefix(filepath.Clean(full), filepath.Clean(runDir)+string(filepath.Separator)) {
		return nil, "", NewNotFoundError("结果文件已不存在", fmt.Errorf("path escapes run dir: %s", path))
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, "", NewNotFoundError("结果文件已不存在", err)
	}
	return f, contentTypeByExt(path), nil
}

// FetchZip 将运行目录打包为 zip 流（边打包边输出，不整体缓冲）
func (c *GalaxyClient) FetchZip(ctx context.Context, server *model.AnalysisServer, jobNumber int64) (io.ReadCloser, error) {
	runDir := c.runDir(jobNumber)
	if info, err := os.Stat(runDir); err != nil || !info.IsDir() {
		return nil, NewNotFoundError("结果文件已不存在", err)
	}

	pr, pw := io.Pipe()
	go func() {
		zw := zip.NewWriter(pw)
		err := filepath.WalkDir(runDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(runDir, path)
			if err != nil {
				return err
			}
			w, err := zw.Create(filepath.ToSlash(rel))
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(w, f)
			return err
		})
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	return pr, nil
}
