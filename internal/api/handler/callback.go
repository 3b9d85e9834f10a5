package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flowlab/flowlab_go_server/internal/pkg/response"
	"github.com/flowlab/flowlab_go_server/internal/service"
)

// CallbackHandler 分析服务器的状态回调入口
// 回调不带用户身份，只凭任务号匹配；可选 token 校验由配置开关
type CallbackHandler struct {
	statusService *service.StatusService
	token         string
}

func NewCallbackHandler(statusService *service.StatusService, token string) *CallbackHandler {
	return &CallbackHandler{
		statusService: statusService,
		token:         token,
	}
}

// JobStatus 接收任务状态通知
// GET/POST /api/v1/callback/job-status?jobNumber=123&status=Finished
func (h *CallbackHandler) JobStatus(c *gin.Context) {
	if h.token != "" {
		provided := c.GetHeader("X-Callback-Token")
		if provided == "" {
			provided = c.Query("token")
		}
		if provided != h.token {
			response.AuthError(c, "回调令牌无效")
			return
		}
	}

	rawJob := c.Query("jobNumber")
	if rawJob == "" {
		rawJob = c.PostForm("jobNumber")
	}
	jobNumber, err := strconv.ParseInt(rawJob, 10, 64)
	if err != nil || jobNumber <= 0 {
		response.ParamError(c, "无效的任务号")
		return
	}

	statusToken := c.Query("status")
	if statusToken == "" {
		statusToken = c.PostForm("status")
	}

	if err := h.statusService.ApplyCallback(c.Request.Context(), jobNumber, statusToken); err != nil {
		if errors.Is(err, service.ErrAnalysisNotFound) {
			// 未知任务号：可能是记录已被清除的历史任务，正常应答即可
			response.Success(c, nil)
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, nil)
}
