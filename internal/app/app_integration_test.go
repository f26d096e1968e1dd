package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LatVAlY/specWise/features/job"
	weaviate_adapter "github.com/LatVAlY/specWise/internal/adapter/weaviate"
	"github.com/LatVAlY/specWise/internal/app"
	"github.com/LatVAlY/specWise/internal/completion"
	"github.com/LatVAlY/specWise/internal/config"
	"github.com/LatVAlY/specWise/internal/document"
	"github.com/LatVAlY/specWise/internal/extract"
	"github.com/LatVAlY/specWise/internal/retrieval"
	"github.com/LatVAlY/specWise/internal/testutils"
)

// e2eCompleter extracts one door item per page and classifies it as a wooden door.
var e2eCompleter = completion.CompleterFunc(func(ctx context.Context, req completion.Request) (string, error) {
	if req.System == extract.DefaultPrompts().System {
		msg := req.Messages[len(req.Messages)-1].Content
		var items []string
		if strings.Contains(msg, "### PAGE 1\n") {
			items = append(items, `{"ref_no":"1.1","description":"Innentür Holz 750 x 2.125 mm","quantity":2,"unit":"Stk"}`)
		}
		return `{"items":[` + strings.Join(items, ",") + `]}`, nil
	}
	return `{"sku":"620001","name":"Holztür","text":null,"quantity":2,"quantity_unit":"Stk","price":0,"price_unit":"","commission":null,"confidence":0.9}`, nil
})

type constEmbedder struct{}

func (constEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func TestApp_EndToEnd_Processing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E integration test")
	}

	s := testutils.NewIntegrationSuite(t, testutils.WithWeaviate(), testutils.WithNSQ())
	s.Setup()
	defer s.Teardown()

	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := s.GetAppConfig()
	cfg.EnableIndexWorker = true

	vecStore := weaviate_adapter.NewStore(s.Weaviate)
	require.NoError(t, vecStore.EnsureSchema(ctx))

	pages := document.NewPostgresRepo(s.DB)
	require.NoError(t, pages.SavePages(ctx, "doc-1", []string{"1.1 Innentür Holz 750 x 2.125 mm, 2 Stk"}))

	application, err := app.New(ctx, cfg, s.DB, vecStore, s.NSQ, logger, &app.Options{
		Completer: e2eCompleter,
		Embedder:  constEmbedder{},
	})
	require.NoError(t, err)

	// 1. Create the job over HTTP
	body, _ := json.Marshal(job.CreateRequest{CollectionID: "col-1", DocumentID: "doc-1", FileName: "lv.pdf"})
	w := httptest.NewRecorder()
	application.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Data job.Job `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, job.StatusPending, created.Data.Status)

	// 2. Run the process message through the worker
	processMsg := s.ConsumeOne(config.TopicProcess)
	require.NotNil(t, processMsg, "should receive process message")
	require.NoError(t, application.ProcessConsumer.HandleMessage(processMsg))

	done, err := application.JobService.Get(ctx, created.Data.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, done.Status)
	assert.Equal(t, 1, done.ItemCount)

	items, err := application.JobService.Items(ctx, created.Data.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "620001", items[0].SKU)

	// 3. Index the published item
	indexMsg := s.ConsumeOne(config.TopicIndex)
	require.NotNil(t, indexMsg, "should receive index message")
	require.NoError(t, application.IndexConsumer.HandleMessage(indexMsg))

	assert.Eventually(t, func() bool {
		n, err := vecStore.CountItems(ctx, retrieval.Filter{JobID: created.Data.ID})
		return err == nil && n == 1
	}, 5*time.Second, 200*time.Millisecond)

	// 4. Search the collection
	w = httptest.NewRecorder()
	application.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/collections/col-1/search?q=Innent%C3%BCr", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.Data.ID)

	// 5. Deleting the job removes its indexed items
	w = httptest.NewRecorder()
	application.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/jobs/"+created.Data.ID, nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	n, err := vecStore.CountItems(ctx, retrieval.Filter{JobID: created.Data.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
