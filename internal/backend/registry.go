package backend

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/flowlab/flowlab_go_server/config"
	"github.com/flowlab/flowlab_go_server/internal/model"
	"github.com/flowlab/flowlab_go_server/internal/repository"
)

// 配置错误：在任何网络调用之前发现并终止
var ErrServerNotConfigured = errors.New("模块未绑定分析服务器")

// Kind 后端种类
type Kind string

const (
	KindGenePatternSOAP Kind = "genepattern-soap"
	KindGenePatternREST Kind = "genepattern-rest"
	KindGalaxy          Kind = "galaxy"
	KindMock            Kind = "mock"
)

// Classify 判定服务器的后端种类：
// 显式 Galaxy 标志优先；mock:// 走测试后端；https 走 SOAP 通道；其余走 REST
func Classify(server *model.AnalysisServer) Kind {
	if server.IsGalaxy {
		return KindGalaxy
	}
	url := strings.ToLower(server.BaseURL)
	switch {
	case strings.HasPrefix(url, "mock://"):
		return KindMock
	case strings.HasPrefix(url, "https://"):
		return KindGenePatternSOAP
	default:
		return KindGenePatternREST
	}
}

// Registry 后端选择器：种类判定只在这里发生一次，上层不再分支
type Registry struct {
	serverRepo *repository.ServerRepository

	soap   *GenePatternSoapClient
	rest   *GenePatternRestClient
	galaxy *GalaxyClient
	mock   *MockClient
}

func NewRegistry(serverRepo *repository.ServerRepository, cfg *config.Config) *Registry {
	timeout := time.Duration(cfg.BackendTimeoutSeconds()) * time.Second
	return &Registry{
		serverRepo: serverRepo,
		soap:       NewGenePatternSoapClient(timeout),
		rest:       NewGenePatternRestClient(timeout),
		galaxy:     NewGalaxyClient(timeout, cfg.Galaxy.ResultRoot),
		mock:       NewMockClient(),
	}
}

// ServerFor 解析模块绑定的分析服务器
func (r *Registry) ServerFor(module *model.Module) (*model.AnalysisServer, error) {
	if module == nil || module.ServerID <= 0 {
		return nil, ErrServerNotConfigured
	}
	if module.Server != nil {
		return module.Server, nil
	}

	server, err := r.serverRepo.GetByID(module.ServerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServerNotConfigured
		}
		return nil, err
	}
	return server, nil
}

// ClientFor 返回服务器对应的后端客户端
func (r *Registry) ClientFor(server *model.AnalysisServer) Client {
	switch Classify(server) {
	case KindGalaxy:
		return r.galaxy
	case KindMock:
		return r.mock
	case KindGenePatternSOAP:
		return r.soap
	default:
		return r.rest
	}
}
