package job_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/LatVAlY/specWise/features/job"
	"github.com/LatVAlY/specWise/internal/classify"
	"github.com/LatVAlY/specWise/internal/config"
	"github.com/LatVAlY/specWise/internal/middleware"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) DeleteByJob(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func TestService_Create(t *testing.T) {
	repo := job.NewMemoryRepo()
	pub := new(MockPublisher)
	svc := job.NewService(repo, pub, nil, nil)

	ctx := middleware.WithCorrelationID(context.Background(), "corr-1")

	pub.On("Publish", config.TopicProcess, mock.MatchedBy(func(body []byte) bool {
		var msg job.ProcessMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return false
		}
		return msg.JobID != "" && msg.CorrelationID == "corr-1"
	})).Return(nil)

	j, err := svc.Create(ctx, job.CreateRequest{CollectionID: "col", DocumentID: "doc", FileName: "lv.pdf"})
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, j.Status)
	pub.AssertExpectations(t)
}

func TestService_Create_Validation(t *testing.T) {
	svc := job.NewService(job.NewMemoryRepo(), new(MockPublisher), nil, nil)

	_, err := svc.Create(context.Background(), job.CreateRequest{CollectionID: "col"})
	assert.ErrorIs(t, err, job.ErrInvalidRequest)
}

func TestService_Create_PublishFailureFailsJob(t *testing.T) {
	repo := job.NewMemoryRepo()
	pub := new(MockPublisher)
	svc := job.NewService(repo, pub, nil, nil)

	pub.On("Publish", config.TopicProcess, mock.Anything).Return(errors.New("nsq down"))

	j, err := svc.Create(context.Background(), job.CreateRequest{CollectionID: "col", DocumentID: "doc"})
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, j.Status)
	assert.Equal(t, job.ErrorKindDispatch, j.ErrorKind)

	stored, _ := repo.Get(context.Background(), j.ID)
	assert.Equal(t, job.StatusFailed, stored.Status)
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()
	repo := job.NewMemoryRepo()
	svc := job.NewService(repo, nil, nil, nil)

	j := &job.Job{CollectionID: "c", DocumentID: "d"}
	require.NoError(t, repo.Create(ctx, j))

	got, err := svc.Cancel(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCanceled, got.Status)

	_, err = svc.Cancel(ctx, j.ID)
	assert.ErrorIs(t, err, job.ErrTerminal)

	_, err = svc.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, job.ErrNotFound)
}

func completedJob(t *testing.T, repo *job.MemoryRepo, items []classify.Item) *job.Job {
	t.Helper()
	ctx := context.Background()
	j := &job.Job{CollectionID: "c", DocumentID: "d"}
	require.NoError(t, repo.Create(ctx, j))
	require.NoError(t, repo.Transition(ctx, j.ID, job.StatusInProgress))
	require.NoError(t, repo.Transition(ctx, j.ID, job.StatusUpdating))
	require.NoError(t, repo.CompleteWithResult(ctx, j.ID, items))
	return j
}

func TestService_Items(t *testing.T) {
	ctx := context.Background()
	repo := job.NewMemoryRepo()
	svc := job.NewService(repo, nil, nil, nil)

	pending := &job.Job{CollectionID: "c", DocumentID: "d"}
	require.NoError(t, repo.Create(ctx, pending))
	_, err := svc.Items(ctx, pending.ID)
	assert.ErrorIs(t, err, job.ErrNotCompleted)

	done := completedJob(t, repo, []classify.Item{{SKU: "DL5019", Commission: "01.02"}})
	items, err := svc.Items(ctx, done.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestService_ExportXML(t *testing.T) {
	repo := job.NewMemoryRepo()
	svc := job.NewService(repo, nil, nil, nil)

	j := completedJob(t, repo, []classify.Item{
		{SKU: "DL8110016", Name: "Innentür (750 x 2.125 mm)", Quantity: 2, QuantityUnit: "Stk", Commission: "1.1"},
		{SKU: "DL5019", Name: "Zarge", Quantity: 1.5, QuantityUnit: "m", Commission: "1.2"},
	})

	out, err := svc.ExportXML(context.Background(), j.ID, []string{"1.2"})
	require.NoError(t, err)

	doc := string(out)
	assert.True(t, strings.HasPrefix(doc, "<?xml"))
	assert.Contains(t, doc, "<catalog>")
	assert.Contains(t, doc, "<sku>DL5019</sku>")
	assert.Contains(t, doc, "<quantity>1.5</quantity>")
	assert.Contains(t, doc, "<quantityUnit>m</quantityUnit>")
	assert.Contains(t, doc, "<priceUnit></priceUnit>")
	assert.NotContains(t, doc, "quantityunit")
	assert.NotContains(t, doc, "DL8110016")

	both, err := svc.ExportXML(context.Background(), j.ID, []string{"1.1", "1.2"})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(both), "<item>"))

	_, err = svc.ExportXML(context.Background(), j.ID, []string{"9.9"})
	assert.ErrorIs(t, err, job.ErrInvalidRequest)

	_, err = svc.ExportXML(context.Background(), j.ID, nil)
	assert.ErrorIs(t, err, job.ErrInvalidRequest)
}

func TestService_Retry(t *testing.T) {
	ctx := context.Background()
	repo := job.NewMemoryRepo()
	pub := new(MockPublisher)
	svc := job.NewService(repo, pub, nil, nil)

	pub.On("Publish", config.TopicProcess, mock.Anything).Return(nil)

	failed := &job.Job{CollectionID: "c", DocumentID: "d", FileName: "f.pdf"}
	require.NoError(t, repo.Create(ctx, failed))
	require.NoError(t, repo.Fail(ctx, failed.ID, job.ErrorKindPageSource, "boom"))

	fresh, err := svc.Retry(ctx, failed.ID)
	require.NoError(t, err)
	assert.NotEqual(t, failed.ID, fresh.ID)
	assert.Equal(t, "d", fresh.DocumentID)
	assert.Equal(t, job.StatusPending, fresh.Status)

	old, _ := repo.Get(ctx, failed.ID)
	assert.Equal(t, job.StatusFailed, old.Status)

	_, err = svc.Retry(ctx, fresh.ID)
	assert.ErrorIs(t, err, job.ErrInvalidTransition)
}

func TestService_Delete_RemovesIndexedItems(t *testing.T) {
	ctx := context.Background()
	repo := job.NewMemoryRepo()
	index := new(MockIndex)
	svc := job.NewService(repo, nil, index, nil)

	j := &job.Job{CollectionID: "c", DocumentID: "d"}
	require.NoError(t, repo.Create(ctx, j))

	index.On("DeleteByJob", mock.Anything, j.ID).Return(errors.New("weaviate down"))

	assert.NoError(t, svc.Delete(ctx, j.ID))
	index.AssertExpectations(t)

	_, err := repo.Get(ctx, j.ID)
	assert.ErrorIs(t, err, job.ErrNotFound)
}
