package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/flowlab/flowlab_go_server/config"
	"github.com/flowlab/flowlab_go_server/internal/api/middleware"
	"github.com/flowlab/flowlab_go_server/internal/backend"
	"github.com/flowlab/flowlab_go_server/internal/model"
	"github.com/flowlab/flowlab_go_server/internal/model/dto"
	"github.com/flowlab/flowlab_go_server/internal/pkg/response"
	"github.com/flowlab/flowlab_go_server/internal/repository"
	"github.com/flowlab/flowlab_go_server/internal/service"
	"github.com/flowlab/flowlab_go_server/internal/testutil"
)

// mockAuth 测试用认证中间件，直接注入用户ID
func mockAuth(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func setupAnalysisHandler(t *testing.T) (*AnalysisHandler, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	cfg := &config.Config{}
	analysisRepo := repository.NewAnalysisRepository(db)
	registry := backend.NewRegistry(repository.NewServerRepository(db), cfg)
	statusService := service.NewStatusService(analysisRepo, registry, nil, cfg)
	launchService := service.NewLaunchService(
		analysisRepo,
		repository.NewModuleRepository(db),
		repository.NewDatasetRepository(db),
		registry,
		cfg,
	)
	analysisService := service.NewAnalysisService(analysisRepo, statusService)

	return NewAnalysisHandler(analysisService, launchService), db
}

func TestAnalysisHandler_Submit_Success(t *testing.T) {
	handler, db := setupAnalysisHandler(t)

	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	server := testutil.TestServer(t, db, testutil.WithBaseURL("mock://local"))
	module := testutil.TestModule(t, db, server.ID)

	router := gin.New()
	router.POST("/analyses", mockAuth(user.ID), handler.Submit)

	req := dto.SubmitAnalysisRequest{
		Name:         "Demo run",
		ExperimentID: exp.ID,
		ModuleID:     module.ID,
	}

	w := performRequest(router, "POST", "/analyses", req)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(model.StatusProcessing), data["analysis_status"])
	assert.Greater(t, data["job_number"], float64(0))
}

func TestAnalysisHandler_Submit_BackendDown(t *testing.T) {
	handler, db := setupAnalysisHandler(t)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(ts.Close)

	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	server := testutil.TestServer(t, db, testutil.WithBaseURL(ts.URL))
	module := testutil.TestModule(t, db, server.ID)

	router := gin.New()
	router.POST("/analyses", mockAuth(user.ID), handler.Submit)

	req := dto.SubmitAnalysisRequest{
		Name:         "Doomed run",
		ExperimentID: exp.ID,
		ModuleID:     module.ID,
	}

	w := performRequest(router, "POST", "/analyses", req)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSubmitFailed, resp.Code)
	assert.NotEmpty(t, resp.Message)

	// 失败的提交也要落库，任务号为 -1
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(model.JobNumberNone), data["job_number"])
	assert.Equal(t, float64(model.StatusError), data["analysis_status"])
}

func TestAnalysisHandler_Submit_ModuleNotFound(t *testing.T) {
	handler, db := setupAnalysisHandler(t)

	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)

	router := gin.New()
	router.POST("/analyses", mockAuth(user.ID), handler.Submit)

	req := dto.SubmitAnalysisRequest{
		Name:         "No module",
		ExperimentID: exp.ID,
		ModuleID:     99999,
	}

	w := performRequest(router, "POST", "/analyses", req)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}

func TestAnalysisHandler_Submit_MissingRequiredParam(t *testing.T) {
	handler, db := setupAnalysisHandler(t)

	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	server := testutil.TestServer(t, db, testutil.WithBaseURL("mock://local"))
	module := testutil.TestModule(t, db, server.ID)
	testutil.TestModuleParam(t, db, module.ID, 0, "threshold", model.ParamTypeVar,
		testutil.WithRequired())

	router := gin.New()
	router.POST("/analyses", mockAuth(user.ID), handler.Submit)

	req := dto.SubmitAnalysisRequest{
		Name:         "Param missing",
		ExperimentID: exp.ID,
		ModuleID:     module.ID,
	}

	w := performRequest(router, "POST", "/analyses", req)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeParamError, resp.Code)

	// 配置类错误不留记录
	var count int64
	require.NoError(t, db.Model(&model.Analysis{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAnalysisHandler_List(t *testing.T) {
	handler, db := setupAnalysisHandler(t)

	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	server := testutil.TestServer(t, db)
	module := testutil.TestModule(t, db, server.ID)

	testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID, testutil.WithName("First"))
	testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID, testutil.WithName("Second"),
		testutil.WithAnalysisStatus(model.StatusDone))

	router := gin.New()
	router.GET("/analyses", mockAuth(user.ID), handler.List)

	t.Run("all", func(t *testing.T) {
		w := performRequest(router, "GET", "/analyses", nil)
		resp := parseResponse(t, w)

		assert.Equal(t, response.CodeSuccess, resp.Code)
		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(2), data["total"])
	})

	t.Run("status filter", func(t *testing.T) {
		w := performRequest(router, "GET", fmt.Sprintf("/analyses?status=%d", model.StatusDone), nil)
		resp := parseResponse(t, w)

		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(1), data["total"])
	})

	t.Run("invalid status", func(t *testing.T) {
		w := performRequest(router, "GET", "/analyses?status=abc", nil)
		resp := parseResponse(t, w)

		assert.Equal(t, response.CodeParamError, resp.Code)
	})
}

func TestAnalysisHandler_Get(t *testing.T) {
	handler, db := setupAnalysisHandler(t)

	user := testutil.TestUser(t, db)
	stranger := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	server := testutil.TestServer(t, db)
	module := testutil.TestModule(t, db, server.ID)
	analysis := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID)

	t.Run("owner", func(t *testing.T) {
		router := gin.New()
		router.GET("/analyses/:id", mockAuth(user.ID), handler.Get)

		w := performRequest(router, "GET", fmt.Sprintf("/analyses/%d", analysis.ID), nil)
		resp := parseResponse(t, w)

		assert.Equal(t, response.CodeSuccess, resp.Code)
	})

	t.Run("stranger", func(t *testing.T) {
		router := gin.New()
		router.GET("/analyses/:id", mockAuth(stranger.ID), handler.Get)

		w := performRequest(router, "GET", fmt.Sprintf("/analyses/%d", analysis.ID), nil)
		resp := parseResponse(t, w)

		assert.Equal(t, response.CodePermissionDenied, resp.Code)
	})

	t.Run("not found", func(t *testing.T) {
		router := gin.New()
		router.GET("/analyses/:id", mockAuth(user.ID), handler.Get)

		w := performRequest(router, "GET", "/analyses/99999", nil)
		resp := parseResponse(t, w)

		assert.Equal(t, response.CodeResourceNotFound, resp.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		router := gin.New()
		router.GET("/analyses/:id", mockAuth(user.ID), handler.Get)

		w := performRequest(router, "GET", "/analyses/abc", nil)
		resp := parseResponse(t, w)

		assert.Equal(t, response.CodeParamError, resp.Code)
	})
}

func TestAnalysisHandler_Delete(t *testing.T) {
	handler, db := setupAnalysisHandler(t)

	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	server := testutil.TestServer(t, db)
	module := testutil.TestModule(t, db, server.ID)

	router := gin.New()
	router.DELETE("/analyses/:id", mockAuth(user.ID), handler.Delete)

	t.Run("default is hide", func(t *testing.T) {
		analysis := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID)

		w := performRequest(router, "DELETE", fmt.Sprintf("/analyses/%d", analysis.ID), nil)
		resp := parseResponse(t, w)
		assert.Equal(t, response.CodeSuccess, resp.Code)

		var stored model.Analysis
		require.NoError(t, db.First(&stored, analysis.ID).Error)
		assert.Equal(t, model.StatusHidden, stored.AnalysisStatus)
	})

	t.Run("erase removes the row", func(t *testing.T) {
		analysis := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID)

		w := performRequest(router, "DELETE", fmt.Sprintf("/analyses/%d?erase=true", analysis.ID), nil)
		resp := parseResponse(t, w)
		assert.Equal(t, response.CodeSuccess, resp.Code)

		err := db.First(&model.Analysis{}, analysis.ID).Error
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}
