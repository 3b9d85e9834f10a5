package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/flowlab/flowlab_go_server/config"
	"github.com/flowlab/flowlab_go_server/internal/backend"
	"github.com/flowlab/flowlab_go_server/internal/model"
	"github.com/flowlab/flowlab_go_server/internal/repository"
	"github.com/flowlab/flowlab_go_server/internal/testutil"
)

func setupResultService(t *testing.T, handler http.HandlerFunc) (*ResultService, *gorm.DB, *model.AnalysisServer) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	server := testutil.TestServer(t, db, testutil.WithBaseURL(ts.URL))

	cfg := &config.Config{}
	analysisRepo := repository.NewAnalysisRepository(db)
	registry := backend.NewRegistry(repository.NewServerRepository(db), cfg)

	return NewResultService(analysisRepo, registry, cfg), db, server
}

func TestResultService_Retrieve_Render(t *testing.T) {
	svc, db, server := setupResultService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gp/jobResults/42/Reports/AutoReport.html":
			w.Header().Set("Content-Type", "text/html")
			io.WriteString(w, "<html>report</html>")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	module := testutil.TestModule(t, db, server.ID)
	analysis := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
		testutil.WithJobNumber(42), testutil.WithAnalysisStatus(model.StatusDone),
		testutil.WithRender("Reports/AutoReport.html"))

	t.Run("inline render", func(t *testing.T) {
		retrieval, err := svc.Retrieve(context.Background(), user.ID, analysis.ID, SelectorRender, "", false)
		require.NoError(t, err)
		defer retrieval.Body.Close()

		data, err := io.ReadAll(retrieval.Body)
		require.NoError(t, err)
		assert.Equal(t, "<html>report</html>", string(data))
		assert.Equal(t, "text/html", retrieval.ContentType)
		// 文件名保留完整相对路径
		assert.Equal(t, "Reports/AutoReport.html", retrieval.Filename)
	})

	t.Run("download forces octet stream", func(t *testing.T) {
		retrieval, err := svc.Retrieve(context.Background(), user.ID, analysis.ID, SelectorRender, "", true)
		require.NoError(t, err)
		defer retrieval.Body.Close()

		assert.Equal(t, "application/octet-stream", retrieval.ContentType)
	})

	t.Run("other user is rejected", func(t *testing.T) {
		stranger := testutil.TestUser(t, db)
		_, err := svc.Retrieve(context.Background(), stranger.ID, analysis.ID, SelectorRender, "", false)
		assert.ErrorIs(t, err, ErrAnalysisPermission)
	})

	t.Run("unknown analysis", func(t *testing.T) {
		_, err := svc.Retrieve(context.Background(), user.ID, 99999, SelectorRender, "", false)
		assert.ErrorIs(t, err, ErrAnalysisNotFound)
	})
}

func TestResultService_Retrieve_File(t *testing.T) {
	svc, db, server := setupResultService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gp/jobResults/42/counts.tsv":
			w.Header().Set("Content-Type", "text/tab-separated-values")
			io.WriteString(w, "gene\tcount\n")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	module := testutil.TestModule(t, db, server.ID)
	analysis := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
		testutil.WithJobNumber(42), testutil.WithAnalysisStatus(model.StatusDone))

	t.Run("named file", func(t *testing.T) {
		retrieval, err := svc.Retrieve(context.Background(), user.ID, analysis.ID, SelectorFile, "counts.tsv", false)
		require.NoError(t, err)
		defer retrieval.Body.Close()

		data, _ := io.ReadAll(retrieval.Body)
		assert.Equal(t, "gene\tcount\n", string(data))
		assert.Equal(t, "counts.tsv", retrieval.Filename)
	})

	t.Run("missing file degrades to user error", func(t *testing.T) {
		_, err := svc.Retrieve(context.Background(), user.ID, analysis.ID, SelectorFile, "nope.txt", false)
		assert.ErrorIs(t, err, ErrNoResultFile)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := svc.Retrieve(context.Background(), user.ID, analysis.ID, SelectorFile, "", false)
		assert.ErrorIs(t, err, ErrNoResultFile)
	})
}

func TestResultService_Retrieve_Stderr(t *testing.T) {
	svc, db, server := setupResultService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gp/rest/v1/jobs/43":
			io.WriteString(w, `{"jobId": 43, "status": {"isFinished": true, "hasError": true, "stderrLocation": "stderr.txt"}}`)
		case "/gp/jobResults/43/stderr.txt":
			io.WriteString(w, "Exception in thread main")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	module := testutil.TestModule(t, db, server.ID)
	analysis := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
		testutil.WithJobNumber(43), testutil.WithAnalysisStatus(model.StatusError))

	retrieval, err := svc.Retrieve(context.Background(), user.ID, analysis.ID, SelectorStderr, "", false)
	require.NoError(t, err)
	defer retrieval.Body.Close()

	data, _ := io.ReadAll(retrieval.Body)
	assert.Equal(t, "Exception in thread main", string(data))
}

func TestResultService_Retrieve_Zip(t *testing.T) {
	svc, db, server := setupResultService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gp/jobResults/42.zip", r.URL.Path)
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("PK\x03\x04fake"))
	})

	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	module := testutil.TestModule(t, db, server.ID)
	analysis := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
		testutil.WithJobNumber(42), testutil.WithAnalysisStatus(model.StatusDone))

	retrieval, err := svc.Retrieve(context.Background(), user.ID, analysis.ID, SelectorZip, "", false)
	require.NoError(t, err)
	defer retrieval.Body.Close()

	assert.Equal(t, "application/zip", retrieval.ContentType)
	assert.Equal(t, "analysis_42_results.zip", retrieval.Filename)
}

func TestResultService_Retrieve_FailedOnSubmit(t *testing.T) {
	svc, db, server := setupResultService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend should not be reached for a failed submission")
	})

	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	module := testutil.TestModule(t, db, server.ID)
	analysis := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
		testutil.WithAnalysisStatus(model.StatusError))

	_, err := svc.Retrieve(context.Background(), user.ID, analysis.ID, SelectorRender, "", false)
	assert.ErrorIs(t, err, ErrNoResultFile)
}

func TestResultService_Retrieve_Hidden(t *testing.T) {
	svc, db, server := setupResultService(t, func(w http.ResponseWriter, r *http.Request) {})

	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	module := testutil.TestModule(t, db, server.ID)
	analysis := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
		testutil.WithJobNumber(42), testutil.WithAnalysisStatus(model.StatusHidden))

	_, err := svc.Retrieve(context.Background(), user.ID, analysis.ID, SelectorRender, "", false)
	assert.ErrorIs(t, err, ErrAnalysisNotFound)
}
