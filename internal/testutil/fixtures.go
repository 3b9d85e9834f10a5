package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/flowlab/flowlab_go_server/internal/model"
)

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	email := fmt.Sprintf("test_%d@example.com", time.Now().UnixNano())
	passwordHash := "$2a$10$abcdefghijklmnopqrstuvwxyz123456" // bcrypt hash placeholder
	user := &model.User{
		Username:     fmt.Sprintf("testuser_%d", time.Now().UnixNano()%100000),
		Email:        &email,
		PasswordHash: &passwordHash,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// TestServer 创建测试分析服务器
func TestServer(t *testing.T, db *gorm.DB, opts ...func(*model.AnalysisServer)) *model.AnalysisServer {
	t.Helper()

	server := &model.AnalysisServer{
		Name:     fmt.Sprintf("server_%d", time.Now().UnixNano()%100000),
		BaseURL:  "http://gp.example.com",
		Username: "gpuser",
		Password: "gppass",
	}

	for _, opt := range opts {
		opt(server)
	}

	if err := db.Create(server).Error; err != nil {
		t.Fatalf("Failed to create test server: %v", err)
	}

	return server
}

// WithBaseURL 设置服务器地址
func WithBaseURL(url string) func(*model.AnalysisServer) {
	return func(s *model.AnalysisServer) {
		s.BaseURL = url
	}
}

// WithGalaxy 标记为 Galaxy 后端
func WithGalaxy() func(*model.AnalysisServer) {
	return func(s *model.AnalysisServer) {
		s.IsGalaxy = true
	}
}

// TestModule 创建测试模块
func TestModule(t *testing.T, db *gorm.DB, serverID int64, opts ...func(*model.Module)) *model.Module {
	t.Helper()

	module := &model.Module{
		ServerID:     serverID,
		Name:         fmt.Sprintf("module_%d", time.Now().UnixNano()%100000),
		Title:        "Test Module",
		TaskID:       "urn:lsid:example.com:analysis:00001",
		RenderResult: "Reports/AutoReport.html",
	}

	for _, opt := range opts {
		opt(module)
	}

	if err := db.Create(module).Error; err != nil {
		t.Fatalf("Failed to create test module: %v", err)
	}

	return module
}

// WithTaskID 设置远端任务标识
func WithTaskID(taskID string) func(*model.Module) {
	return func(m *model.Module) {
		m.TaskID = taskID
	}
}

// WithRenderResult 设置展示产物路径
func WithRenderResult(path string) func(*model.Module) {
	return func(m *model.Module) {
		m.RenderResult = path
	}
}

// TestModuleParam 为模块追加一个参数定义
func TestModuleParam(t *testing.T, db *gorm.DB, moduleID int64, ordinal int, name, paramType string, opts ...func(*model.ModuleParam)) *model.ModuleParam {
	t.Helper()

	param := &model.ModuleParam{
		ModuleID:  moduleID,
		Ordinal:   ordinal,
		Name:      name,
		ParamType: paramType,
		Basic:     true,
	}

	for _, opt := range opts {
		opt(param)
	}

	if err := db.Create(param).Error; err != nil {
		t.Fatalf("Failed to create test module param: %v", err)
	}

	return param
}

// WithRequired 标记为必填参数
func WithRequired() func(*model.ModuleParam) {
	return func(p *model.ModuleParam) {
		p.Required = true
	}
}

// WithDefault 设置参数默认值
func WithDefault(value string) func(*model.ModuleParam) {
	return func(p *model.ModuleParam) {
		p.DefaultValue = value
	}
}

// TestExperiment 创建测试实验
func TestExperiment(t *testing.T, db *gorm.DB) *model.Experiment {
	t.Helper()

	exp := &model.Experiment{
		Name: fmt.Sprintf("experiment_%d", time.Now().UnixNano()%100000),
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("Failed to create test experiment: %v", err)
	}
	return exp
}

// TestDataset 创建测试数据集并按顺序挂上文件
func TestDataset(t *testing.T, db *gorm.DB, experimentID int64, filePaths ...string) *model.Dataset {
	t.Helper()

	dataset := &model.Dataset{
		ExperimentID: experimentID,
		Name:         fmt.Sprintf("dataset_%d", time.Now().UnixNano()%100000),
	}
	if err := db.Create(dataset).Error; err != nil {
		t.Fatalf("Failed to create test dataset: %v", err)
	}

	for i, path := range filePaths {
		file := &model.ExpFile{
			ExperimentID: experimentID,
			FileName:     fmt.Sprintf("file_%d", i),
			FilePath:     path,
		}
		if err := db.Create(file).Error; err != nil {
			t.Fatalf("Failed to create test exp file: %v", err)
		}

		link := &model.DatasetFile{
			DatasetID: dataset.ID,
			ExpFileID: file.ID,
			Ordinal:   i,
		}
		if err := db.Create(link).Error; err != nil {
			t.Fatalf("Failed to link test dataset file: %v", err)
		}
	}

	return dataset
}

// TestAnalysis 创建测试分析
func TestAnalysis(t *testing.T, db *gorm.DB, userID, experimentID, moduleID int64, opts ...func(*model.Analysis)) *model.Analysis {
	t.Helper()

	analysis := &model.Analysis{
		UserID:         userID,
		ExperimentID:   experimentID,
		ModuleID:       moduleID,
		Name:           fmt.Sprintf("Test Analysis %d", time.Now().UnixNano()%100000),
		JobNumber:      model.JobNumberNone,
		AnalysisStatus: model.StatusInit,
	}

	for _, opt := range opts {
		opt(analysis)
	}

	if err := db.Create(analysis).Error; err != nil {
		t.Fatalf("Failed to create test analysis: %v", err)
	}

	return analysis
}

// WithJobNumber 设置任务号
func WithJobNumber(jobNumber int64) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.JobNumber = jobNumber
	}
}

// WithAnalysisStatus 设置分析状态
func WithAnalysisStatus(status int) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.AnalysisStatus = status
	}
}

// WithName 设置分析名称
func WithName(name string) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.Name = name
	}
}

// WithRender 设置分析的展示产物路径
func WithRender(path string) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.RenderResult = path
	}
}
