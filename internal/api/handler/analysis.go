package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flowlab/flowlab_go_server/internal/api/middleware"
	"github.com/flowlab/flowlab_go_server/internal/backend"
	"github.com/flowlab/flowlab_go_server/internal/model"
	"github.com/flowlab/flowlab_go_server/internal/model/dto"
	"github.com/flowlab/flowlab_go_server/internal/pkg/response"
	"github.com/flowlab/flowlab_go_server/internal/service"
)

type AnalysisHandler struct {
	analysisService *service.AnalysisService
	launchService   *service.LaunchService
}

func NewAnalysisHandler(analysisService *service.AnalysisService, launchService *service.LaunchService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
		launchService:   launchService,
	}
}

// Submit 创建并提交分析
// POST /api/v1/analyses
func (h *AnalysisHandler) Submit(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.SubmitAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.launchService.Launch(c.Request.Context(), userID, &req)
	if err != nil {
		var missing *service.MissingParamError
		switch {
		case errors.Is(err, service.ErrModuleNotFound),
			errors.Is(err, service.ErrDatasetNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, backend.ErrServerNotConfigured),
			errors.Is(err, service.ErrMissingDataset),
			errors.As(err, &missing):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	// 提交失败的分析也已落库，用失败码携带记录返回
	if resp.AnalysisStatus == model.StatusError {
		c.JSON(200, response.Response{
			Code:    response.CodeSubmitFailed,
			Message: resp.ErrorMessage,
			Data:    resp,
		})
		return
	}

	response.Success(c, resp)
}

// List 获取分析列表
// GET /api/v1/analyses
func (h *AnalysisHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	search := c.Query("search")

	var status *int
	if raw := c.Query("status"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.ParamError(c, "无效的状态值")
			return
		}
		status = &parsed
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := h.analysisService.List(userID, page, pageSize, search, status)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Get 获取分析详情
// GET /api/v1/analyses/:id
func (h *AnalysisHandler) Get(c *gin.Context) {
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

	detail, err := h.analysisService.GetByID(userID, analysisID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, detail)
}

// JobStatus 获取任务状态（执行中的任务会顺带拉取一次远端状态）
// GET /api/v1/analyses/:id/job-status
func (h *AnalysisHandler) JobStatus(c *gin.Context) {
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

	status, err := h.analysisService.GetJobStatus(c.Request.Context(), userID, analysisID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, status)
}

// Delete 删除分析：默认软删除，?erase=true 时彻底删除本地记录
// DELETE /api/v1/analyses/:id
func (h *AnalysisHandler) Delete(c *gin.Context) {
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

	if c.Query("erase") == "true" {
		err = h.analysisService.Erase(userID, analysisID)
	} else {
		err = h.analysisService.Hide(userID, analysisID)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, nil)
}

func (h *AnalysisHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAnalysisNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrAnalysisPermission):
		response.PermissionError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}
