package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/flowlab/flowlab_go_server/internal/model"
)

// Param 绑定后的提交参数，数据集参数展开为多值
type Param struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Client 计算后端的统一能力接口
// 四个实现：GenePattern SOAP / GenePattern REST / Galaxy / Mock
type Client interface {
	// Submit 提交任务，返回远端任务号
	Submit(ctx context.Context, server *model.AnalysisServer, module *model.Module, params []Param) (int64, error)

	// Status 查询远端任务，返回统一投影
	Status(ctx context.Context, server *model.AnalysisServer, jobNumber int64) (*JobResult, error)

	// FetchOutput 按相对路径取单个输出文件，返回数据流和 Content-Type
	FetchOutput(ctx context.Context, server *model.AnalysisServer, jobNumber int64, path string) (io.ReadCloser, string, error)

	// FetchZip 取整包结果
	FetchZip(ctx context.Context, server *model.AnalysisServer, jobNumber int64) (io.ReadCloser, error)
}

// newHTTPClient 所有 HTTP 后端共用的超时配置
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// isTimeout 传输错误是否为超时类
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// transientMessage 轮询阶段传输错误的用户提示
func transientMessage(err error) string {
	if isTimeout(err) {
		return "分析服务器响应超时"
	}
	return "无法连接分析服务器"
}

// contentTypeByExt 按扩展名推断 Content-Type，未知回退 octet-stream
func contentTypeByExt(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	switch filepath.Ext(path) {
	case ".html", ".htm":
		return "text/html"
	case ".txt", ".log":
		return "text/plain"
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

// drainClose 丢弃剩余响应体并关闭，保证连接复用
func drainClose(body io.ReadCloser) {
	io.Copy(io.Discard, body)
	body.Close()
}

// snippet 截取响应体片段写日志 / 报错
func snippet(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 512))
	return string(data)
}

// statusText 形如 "401 Unauthorized" 的原始错误
func statusError(resp *http.Response) error {
	return fmt.Errorf("unexpected status %s: %s", resp.Status, snippet(resp.Body))
}
