package handler

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flowlab/flowlab_go_server/internal/api/middleware"
	"github.com/flowlab/flowlab_go_server/internal/pkg/response"
	"github.com/flowlab/flowlab_go_server/internal/service"
)

type ResultHandler struct {
	resultService *service.ResultService
}

func NewResultHandler(resultService *service.ResultService) *ResultHandler {
	return &ResultHandler{
		resultService: resultService,
	}
}

// Render 获取模块声明的展示产物（通常是报告 HTML）
// GET /api/v1/analyses/:id/result
func (h *ResultHandler) Render(c *gin.Context) {
	h.serve(c, service.SelectorRender, "")
}

// File 获取指定路径的结果文件
// GET /api/v1/analyses/:id/result/file?path=xxx&download=true
func (h *ResultHandler) File(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		response.ParamError(c, "缺少文件路径")
		return
	}
	h.serve(c, service.SelectorFile, path)
}

// Stderr 获取任务的标准错误输出
// GET /api/v1/analyses/:id/result/stderr
func (h *ResultHandler) Stderr(c *gin.Context) {
	h.serve(c, service.SelectorStderr, "")
}

// Zip 获取全部结果的打包下载
// GET /api/v1/analyses/:id/result/zip
func (h *ResultHandler) Zip(c *gin.Context) {
	h.serve(c, service.SelectorZip, "")
}

func (h *ResultHandler) serve(c *gin.Context, selector service.Selector, path string) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	analysisID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的分析ID")
		return
	}

	download := c.Query("download") == "true" || selector == service.SelectorZip

	retrieval, err := h.resultService.Retrieve(c.Request.Context(), userID, analysisID, selector, path, download)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAnalysisNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrAnalysisPermission):
			response.PermissionError(c, err.Error())
		case errors.Is(err, service.ErrNoResultFile):
			response.NotFoundError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}
	defer retrieval.Body.Close()

	c.Header("Content-Type", retrieval.ContentType)
	if download {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", retrieval.Filename))
	}
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, retrieval.Body); err != nil {
		// 响应头已发出，只能记录日志
		log.Printf("Failed to stream result for analysis %d: %v", analysisID, err)
	}
}
