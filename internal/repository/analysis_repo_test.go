package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowlab/flowlab_go_server/internal/model"
	"github.com/flowlab/flowlab_go_server/internal/testutil"
)

func TestAnalysisRepository_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewAnalysisRepository(db)
	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	server := testutil.TestServer(t, db)
	module := testutil.TestModule(t, db, server.ID)

	analysis := &model.Analysis{
		UserID:         user.ID,
		ExperimentID:   exp.ID,
		ModuleID:       module.ID,
		Name:           "Test Analysis",
		JobNumber:      model.JobNumberNone,
		AnalysisStatus: model.StatusInit,
	}

	require.NoError(t, repo.Create(analysis))
	assert.NotZero(t, analysis.ID)

	found, err := repo.GetByID(analysis.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Analysis", found.Name)
	assert.Equal(t, int64(model.JobNumberNone), found.JobNumber)

	withModule, err := repo.GetByIDWithModule(analysis.ID)
	require.NoError(t, err)
	require.NotNil(t, withModule.Module)
	assert.Equal(t, module.ID, withModule.Module.ID)
	require.NotNil(t, withModule.Module.Server)
	assert.Equal(t, server.ID, withModule.Module.Server.ID)
}

func TestAnalysisRepository_GetByJobNumber(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewAnalysisRepository(db)
	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	server := testutil.TestServer(t, db)
	module := testutil.TestModule(t, db, server.ID)

	created := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
		testutil.WithJobNumber(4321), testutil.WithAnalysisStatus(model.StatusProcessing))

	found, err := repo.GetByJobNumber(4321)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	require.NotNil(t, found.Module)

	_, err = repo.GetByJobNumber(9999)
	assert.Error(t, err)
}

func TestAnalysisRepository_UpdateStatusGuarded(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewAnalysisRepository(db)
	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	server := testutil.TestServer(t, db)
	module := testutil.TestModule(t, db, server.ID)

	now := time.Now()

	t.Run("processing to done", func(t *testing.T) {
		a := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
			testutil.WithJobNumber(1), testutil.WithAnalysisStatus(model.StatusProcessing))

		updated, err := repo.UpdateStatusGuarded(a.ID, model.StatusDone, "", &now)
		require.NoError(t, err)
		assert.True(t, updated)

		var stored model.Analysis
		require.NoError(t, db.First(&stored, a.ID).Error)
		assert.Equal(t, model.StatusDone, stored.AnalysisStatus)
		assert.Equal(t, int64(1), stored.Version)
		assert.NotNil(t, stored.CompletedAt)
	})

	t.Run("done is terminal", func(t *testing.T) {
		a := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
			testutil.WithJobNumber(2), testutil.WithAnalysisStatus(model.StatusDone))

		updated, err := repo.UpdateStatusGuarded(a.ID, model.StatusError, "late error", nil)
		require.NoError(t, err)
		assert.False(t, updated)

		var stored model.Analysis
		require.NoError(t, db.First(&stored, a.ID).Error)
		assert.Equal(t, model.StatusDone, stored.AnalysisStatus)
		assert.Empty(t, stored.ErrorMessage)
	})

	t.Run("done accepts repeated done", func(t *testing.T) {
		a := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
			testutil.WithJobNumber(3), testutil.WithAnalysisStatus(model.StatusDone))

		updated, err := repo.UpdateStatusGuarded(a.ID, model.StatusDone, "", &now)
		require.NoError(t, err)
		assert.True(t, updated)
	})

	t.Run("error can recover to done", func(t *testing.T) {
		a := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
			testutil.WithJobNumber(4), testutil.WithAnalysisStatus(model.StatusError))

		updated, err := repo.UpdateStatusGuarded(a.ID, model.StatusDone, "", &now)
		require.NoError(t, err)
		assert.True(t, updated)
	})

	t.Run("hidden is never touched", func(t *testing.T) {
		a := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
			testutil.WithJobNumber(5), testutil.WithAnalysisStatus(model.StatusHidden))

		updated, err := repo.UpdateStatusGuarded(a.ID, model.StatusDone, "", &now)
		require.NoError(t, err)
		assert.False(t, updated)

		var stored model.Analysis
		require.NoError(t, db.First(&stored, a.ID).Error)
		assert.Equal(t, model.StatusHidden, stored.AnalysisStatus)
	})
}

func TestAnalysisRepository_ListByUserID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewAnalysisRepository(db)
	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	server := testutil.TestServer(t, db)
	module := testutil.TestModule(t, db, server.ID)

	testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID, testutil.WithName("RNA-seq QC"))
	testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID, testutil.WithName("Clustering"),
		testutil.WithAnalysisStatus(model.StatusDone))
	testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID, testutil.WithName("Hidden one"),
		testutil.WithAnalysisStatus(model.StatusHidden))

	t.Run("excludes hidden", func(t *testing.T) {
		_, total, err := repo.ListByUserID(user.ID, 1, 10, "", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})

	t.Run("search filter", func(t *testing.T) {
		items, total, err := repo.ListByUserID(user.ID, 1, 10, "RNA", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "RNA-seq QC", items[0].Name)
	})

	t.Run("status filter", func(t *testing.T) {
		done := model.StatusDone
		_, total, err := repo.ListByUserID(user.ID, 1, 10, "", &done)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("pagination", func(t *testing.T) {
		items, total, err := repo.ListByUserID(user.ID, 1, 1, "", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, items, 1)
	})
}

func TestAnalysisRepository_ListPollable(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewAnalysisRepository(db)
	user := testutil.TestUser(t, db)
	other := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	server := testutil.TestServer(t, db)
	module := testutil.TestModule(t, db, server.ID)

	processing := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
		testutil.WithJobNumber(10), testutil.WithAnalysisStatus(model.StatusProcessing))
	errored := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
		testutil.WithJobNumber(11), testutil.WithAnalysisStatus(model.StatusError))
	othersJob := testutil.TestAnalysis(t, db, other.ID, exp.ID, module.ID,
		testutil.WithJobNumber(12), testutil.WithAnalysisStatus(model.StatusProcessing))
	// 不可轮询：已完成、已隐藏、提交失败
	testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
		testutil.WithJobNumber(13), testutil.WithAnalysisStatus(model.StatusDone))
	testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
		testutil.WithJobNumber(14), testutil.WithAnalysisStatus(model.StatusHidden))
	testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
		testutil.WithAnalysisStatus(model.StatusError))

	t.Run("all users", func(t *testing.T) {
		analyses, err := repo.ListPollable(0)
		require.NoError(t, err)

		ids := make([]int64, 0, len(analyses))
		for _, a := range analyses {
			ids = append(ids, a.ID)
			require.NotNil(t, a.Module, "pollable analyses must carry their module")
		}
		assert.ElementsMatch(t, []int64{processing.ID, errored.ID, othersJob.ID}, ids)
	})

	t.Run("single user", func(t *testing.T) {
		analyses, err := repo.ListPollable(user.ID)
		require.NoError(t, err)

		ids := make([]int64, 0, len(analyses))
		for _, a := range analyses {
			ids = append(ids, a.ID)
		}
		assert.ElementsMatch(t, []int64{processing.ID, errored.ID}, ids)
	})
}

func TestAnalysisRepository_Hide(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewAnalysisRepository(db)
	user := testutil.TestUser(t, db)
	exp := testutil.TestExperiment(t, db)
	server := testutil.TestServer(t, db)
	module := testutil.TestModule(t, db, server.ID)

	a := testutil.TestAnalysis(t, db, user.ID, exp.ID, module.ID,
		testutil.WithJobNumber(20), testutil.WithAnalysisStatus(model.StatusProcessing))

	require.NoError(t, repo.Hide(a.ID))

	var stored model.Analysis
	require.NoError(t, db.First(&stored, a.ID).Error)
	assert.Equal(t, model.StatusHidden, stored.AnalysisStatus)
	assert.Equal(t, int64(1), stored.Version)
}
