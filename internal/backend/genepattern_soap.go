package backend

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowlab/flowlab_go_server/internal/model"
)

// GenePatternSoapClient GenePattern webservice（SOAP）接口客户端
// https 服务器历史上走这条通道；信封是固定的两层结构，encoding/xml 直接构造
type GenePatternSoapClient struct {
	hc *http.Client
}

func NewGenePatternSoapClient(timeout time.Duration) *GenePatternSoapClient {
	return &GenePatternSoapClient{hc: newHTTPClient(timeout)}
}

const soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"

type soapEnvelope struct {
	XMLName xml.Name `xml:"soap:Envelope"`
	NS      string   `xml:"xmlns:soap,attr"`
	Body    soapBody `xml:"soap:Body"`
}

type soapBody struct {
	Content interface{}
}

type soapParameter struct {
	Name   string   `xml:"name"`
	Values []string `xml:"value"`
}

type soapSubmitJob struct {
	XMLName    xml.Name        `xml:"submitJob"`
	TaskName   string          `xml:"taskName"`
	Parameters []soapParameter `xml:"parameters>parameter"`
}

type soapCheckStatus struct {
	XMLName   xml.Name `xml:"checkStatus"`
	JobNumber int64    `xml:"jobNumber"`
}

type soapResponseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault *struct {
			FaultString string `xml:"faultstring"`
		} `xml:"Fault"`
		SubmitJobResponse *struct {
			JobNumber int64 `xml:"jobNumber"`
		} `xml:"submitJobResponse"`
		CheckStatusResponse *struct {
			JobInfo soapJobInfo `xml:"jobInfo"`
		} `xml:"checkStatusResponse"`
	} `xml:"Body"`
}

type soapJobInfo struct {
	JobNumber      int64            `xml:"jobNumber"`
	Status         string           `xml:"status"` // Finished / Processing / Error
	ErrorMessage   string           `xml:"errorMessage"`
	StderrLocation string           `xml:"stderrLocation"`
	DateCompleted  string           `xml:"dateCompleted"`
	OutputFiles    []soapOutputFile `xml:"outputFile"`
}

type soapOutputFile struct {
	Path string `xml:"path"`
	Link string `xml:"link"`
	Kind string `xml:"kind"`
}

func (c *GenePatternSoapClient) endpoint(server *model.AnalysisServer) string {
	return strings.TrimSuffix(server.BaseURL, "/") + "/gp/services/Analysis"
}

// call 发送一次 SOAP 请求并解析响应信封
func (c *GenePatternSoapClient) call(ctx context.Context, server *model.AnalysisServer, action string, payload interface{}) (*soapResponseEnvelope, error) {
	envelope := soapEnvelope{
		NS:   soapEnvelopeNS,
		Body: soapBody{Content: payload},
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(server), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", action)
	req.SetBasicAuth(server.Username, server.Password)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer drainClose(resp.Body)

	// SOAP Fault 通常伴随 500，信封里带 faultstring
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusInternalServerError {
		return nil, statusError(resp)
	}

	var re soapResponseEnvelope
	if err := xml.NewDecoder(resp.Body).Decode(&re); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if re.Body.Fault != nil {
		return nil, fmt.Errorf("soap fault: %s", re.Body.Fault.FaultString)
	}

	return &re, nil
}

// 信封 Body 内只有一个载荷元素
func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

// Submit 提交任务
func (c *GenePatternSoapClient) Submit(ctx context.Context, server *model.AnalysisServer, module *model.Module, params []Param) (int64, error) {
	payload := soapSubmitJob{TaskName: module.TaskID}
	for _, p := range params {
		payload.Parameters = append(payload.Parameters, soapParameter{Name: p.Name, Values: p.Values})
	}

	re, err := c.call(ctx, server, "submitJob", payload)
	if err != nil {
		if isTimeout(err) {
			return 0, NewSubmissionError("提交超时，分析服务器无响应", err)
		}
		return 0, NewSubmissionError("分析服务器拒绝了提交", err)
	}
	if re.Body.SubmitJobResponse == nil || re.Body.SubmitJobResponse.JobNumber <= 0 {
		return 0, NewSubmissionError("提交响应缺少任务号", fmt.Errorf("empty submitJobResponse"))
	}

	return re.Body.SubmitJobResponse.JobNumber, nil
}

// Status 查询任务状态
func (c *GenePatternSoapClient) Status(ctx context.Context, server *model.AnalysisServer, jobNumber int64) (*JobResult, error) {
	re, err := c.call(ctx, server, "checkStatus", soapCheckStatus{JobNumber: jobNumber})
	if err != nil {
		if strings.Contains(err.Error(), "no such job") {
			return nil, NewNotFoundError("远端任务已不存在", err)
		}
		return nil, NewTransientError(transientMessage(err), err)
	}
	if re.Body.CheckStatusResponse == nil {
		return nil, NewTransientError("状态响应解析失败", fmt.Errorf("empty checkStatusResponse"))
	}

	info := re.Body.CheckStatusResponse.JobInfo
	result := &JobResult{
		StatusCode: http.StatusOK,
		Status: StatusBlock{
			Completed:  info.Status == "Finished",
			HasError:   info.Status == "Error",
			Message:    info.ErrorMessage,
			StderrPath: info.StderrLocation,
		},
	}
	for _, f := range info.OutputFiles {
		result.OutputFiles = append(result.OutputFiles, OutputFile{
			Path:        f.Path,
			Link:        f.Link,
			ContentType: f.Kind,
		})
	}
	if info.DateCompleted != "" {
		if ts, err := time.Parse(time.RFC3339, info.DateCompleted); err == nil {
			result.CompletedAt = &ts
		}
	}

	return result, nil
}

// FetchOutput 结果文件与 REST 通道一致，走 jobResults 的普通 HTTP
func (c *GenePatternSoapClient) FetchOutput(ctx context.Context, server *model.AnalysisServer, jobNumber int64, path string) (io.ReadCloser, string, error) {
	return fetchGenePatternFile(ctx, c.hc, server, genePatternResultURL(server, jobNumber, path))
}

// FetchZip 取整包结果
func (c *GenePatternSoapClient) FetchZip(ctx context.Context, server *model.AnalysisServer, jobNumber int64) (io.ReadCloser, error) {
	body, _, err := fetchGenePatternFile(ctx, c.hc, server, genePatternResultURL(server, jobNumber, ""))
	return body, err
}
