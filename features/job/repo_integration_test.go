package job_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LatVAlY/specWise/features/job"
	"github.com/LatVAlY/specWise/internal/classify"
	"github.com/LatVAlY/specWise/internal/testutils"
)

func TestJobRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	repo := job.NewPostgresRepo(s.DB)
	ctx := context.Background()

	j1 := &job.Job{CollectionID: "col", DocumentID: "doc-1", FileName: "a.pdf"}
	require.NoError(t, repo.Create(ctx, j1))

	// Sleep to ensure time difference for ordering test
	time.Sleep(100 * time.Millisecond)

	j2 := &job.Job{CollectionID: "col", DocumentID: "doc-2", FileName: "b.pdf"}
	require.NoError(t, repo.Create(ctx, j2))

	jobs, err := repo.List(ctx, job.ListFilter{CollectionID: "col"})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, j2.ID, jobs[0].ID)

	// Full lifecycle for j1
	require.NoError(t, repo.Transition(ctx, j1.ID, job.StatusInProgress))
	require.NoError(t, repo.UpdateProgress(ctx, j1.ID, "Parsing pages 1-2 / 3"))
	require.NoError(t, repo.SaveCheckpoint(ctx, job.Checkpoint{JobID: j1.ID, Stage: job.StageExtracted, Payload: []byte(`[{"ref_no":"1"}]`)}))

	cp, err := repo.LoadCheckpoint(ctx, j1.ID)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, job.StageExtracted, cp.Stage)

	require.NoError(t, repo.Transition(ctx, j1.ID, job.StatusUpdating))
	items := []classify.Item{
		{SKU: "DL8110016", Name: "Innentür", Quantity: 3, QuantityUnit: "Stk", Commission: "1.1", Confidence: 0.9},
		{SKU: "DL5019", Name: "Zarge", Quantity: 1, QuantityUnit: "Stk", Commission: "1.2", Confidence: 0.7},
	}
	require.NoError(t, repo.CompleteWithResult(ctx, j1.ID, items))

	got, err := repo.Get(ctx, j1.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
	assert.Equal(t, 2, got.ItemCount)

	result, err := repo.GetResult(ctx, j1.ID)
	require.NoError(t, err)
	assert.Equal(t, items, result)

	cp, err = repo.LoadCheckpoint(ctx, j1.ID)
	require.NoError(t, err)
	assert.Nil(t, cp)

	// Cancel j2 while it runs, completion must not land
	require.NoError(t, repo.Transition(ctx, j2.ID, job.StatusInProgress))
	require.NoError(t, repo.Cancel(ctx, j2.ID))
	assert.ErrorIs(t, repo.Transition(ctx, j2.ID, job.StatusUpdating), job.ErrInvalidTransition)
	assert.ErrorIs(t, repo.CompleteWithResult(ctx, j2.ID, items), job.ErrInvalidTransition)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[job.StatusCompleted])
	assert.Equal(t, 1, counts[job.StatusCanceled])

	require.NoError(t, repo.Delete(ctx, j1.ID))
	_, err = repo.Get(ctx, j1.ID)
	assert.ErrorIs(t, err, job.ErrNotFound)
}
