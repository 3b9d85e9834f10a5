package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/flowlab/flowlab_go_server/internal/model"
)

// GenePattern 两种接口（SOAP / REST）共用的结果下载通道：
// 结果文件始终通过 /gp/jobResults/{job}/{path} 的普通 HTTP 暴露，Basic 认证。

func genePatternResultURL(server *model.AnalysisServer, jobNumber int64, path string) string {
	base := strings.TrimSuffix(server.BaseURL, "/")
	if path == "" {
		return fmt.Sprintf("%s/gp/jobResults/%d.zip", base, jobNumber)
	}
	return fmt.Sprintf("%s/gp/jobResults/%d/%s", base, jobNumber, path)
}

// fetchGenePatternFile 取单个结果文件，404/410 映射为 NotFound
func fetchGenePatternFile(ctx context.Context, hc *http.Client, server *model.AnalysisServer, url string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", NewTransientError("无法连接分析服务器", err)
	}
	req.SetBasicAuth(server.Username, server.Password)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, "", NewTransientError(transientMessage(err), err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		ct := resp.Header.Get("Content-Type")
		if ct == "" {
			ct = contentTypeByExt(url)
		}
		return resp.Body, ct, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		err := statusError(resp)
		drainClose(resp.Body)
		return nil, "", NewNotFoundError("结果文件已不存在", err)
	default:
		err := statusError(resp)
		drainClose(resp.Body)
		return nil, "", NewTransientError("分析服务器返回异常", err)
	}
}
