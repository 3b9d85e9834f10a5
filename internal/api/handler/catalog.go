package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/flowlab/flowlab_go_server/internal/model/dto"
	"github.com/flowlab/flowlab_go_server/internal/pkg/response"
	"github.com/flowlab/flowlab_go_server/internal/repository"
)

// CatalogHandler 模块与服务器目录的只读接口
// 服务器的连接凭据不出网，列表只暴露地址和类型
type CatalogHandler struct {
	moduleRepo *repository.ModuleRepository
	serverRepo *repository.ServerRepository
}

func NewCatalogHandler(moduleRepo *repository.ModuleRepository, serverRepo *repository.ServerRepository) *CatalogHandler {
	return &CatalogHandler{
		moduleRepo: moduleRepo,
		serverRepo: serverRepo,
	}
}

// ListModules 获取可用的分析模块
// GET /api/v1/modules
func (h *CatalogHandler) ListModules(c *gin.Context) {
	modules, err := h.moduleRepo.List()
	if err != nil {
		response.ServerError(c, "")
		return
	}
	response.Success(c, modules)
}

// GetModule 获取模块详情（含参数定义）
// GET /api/v1/modules/:id
func (h *CatalogHandler) GetModule(c *gin.Context) {
	moduleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的模块ID")
		return
	}

	module, err := h.moduleRepo.GetByID(moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFoundError(c, "分析模块不存在")
			return
		}
		response.ServerError(c, "")
		return
	}
	response.Success(c, module)
}

// ListServers 获取分析服务器目录
// GET /api/v1/servers
func (h *CatalogHandler) ListServers(c *gin.Context) {
	servers, err := h.serverRepo.List()
	if err != nil {
		response.ServerError(c, "")
		return
	}

	items := make([]*dto.ServerListItem, 0, len(servers))
	for _, s := range servers {
		items = append(items, &dto.ServerListItem{
			ID:       s.ID,
			Name:     s.Name,
			BaseURL:  s.BaseURL,
			IsGalaxy: s.IsGalaxy,
		})
	}
	response.Success(c, items)
}
