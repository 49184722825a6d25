package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/maltedev/fashion-scraper/internal/jobs"
	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/maltedev/fashion-scraper/internal/queue"
	"github.com/maltedev/fashion-scraper/internal/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockArchive struct {
	mock.Mock
}

func (m *mockArchive) Records(ctx context.Context, runID string) ([]*models.ProductRecord, error) {
	args := m.Called(ctx, runID)
	records, _ := args.Get(0).([]*models.ProductRecord)
	return records, args.Error(1)
}

func (m *mockArchive) RecentRuns(ctx context.Context, limit int) ([]*models.Run, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]*models.Run)
	return runs, args.Error(1)
}

func fakeRun(ctx context.Context, req scraper.Request) (*models.Run, error) {
	rec := models.NewProductRecord(req.Site, req.Queries[0], "https://www.nykaafashion.com/p/42")
	rec.Price = models.NumberOf(1299)
	return &models.Run{
		ID:        req.ID,
		Site:      req.Site,
		Queries:   req.Queries,
		Collected: 1,
		Extracted: 1,
		Records:   []*models.ProductRecord{rec},
	}, nil
}

func newTestServer(t *testing.T, archive RunStore, capacity int) (*jobs.Manager, http.Handler) {
	t.Helper()
	manager := jobs.NewManager(queue.NewInMemoryQueue(capacity), fakeRun, scraper.DefaultOptions(), nil)
	return manager, NewRouter(NewHandlers(manager, archive, nil), http.NotFoundHandler(), nil)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateRun(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		capacity   int
		wantStatus int
		wantError  string
	}{
		{
			name:       "accepted",
			body:       `{"site":"nykaa","queries":["kurta"],"max_products":3,"priority":2}`,
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "listing-only on a site without cards",
			body:       `{"site":"nykaa","queries":["kurta"],"listing_only":true}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "listing-only mode is not supported",
		},
		{
			name:       "malformed body",
			body:       `{"site":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request body",
		},
		{
			name:       "unknown site",
			body:       `{"site":"amazon","queries":["shoes"]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "unknown site",
		},
		{
			name:       "no queries",
			body:       `{"site":"myntra","queries":[" "]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "search query is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer(t, nil, tt.capacity)

			rec := do(t, h, http.MethodPost, "/api/v1/runs", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			if tt.wantError != "" {
				var body map[string]string
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Contains(t, body["error"], tt.wantError)
				return
			}

			var job jobs.Job
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&job))
			assert.NotEmpty(t, job.ID)
			assert.Equal(t, "nykaa", job.Site)
			assert.Equal(t, 3, job.MaxProducts)
			assert.Equal(t, 2, job.Priority)
			assert.Equal(t, jobs.StatusPending, job.Status)
		})
	}

	t.Run("queue full", func(t *testing.T) {
		_, h := newTestServer(t, nil, 1)
		body := `{"site":"nykaa","queries":["kurta"]}`

		require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/api/v1/runs", body).Code)
		assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodPost, "/api/v1/runs", body).Code)
	})
}

func TestGetRunAndRecords(t *testing.T) {
	manager, h := newTestServer(t, nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := manager.CreateJob(ctx, jobs.CreateRequest{Site: "nykaa", Queries: []string{"kurta"}, MaxProducts: 1})
	require.NoError(t, err)

	t.Run("pending run has no records yet", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/runs/"+job.ID+"/records", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	go manager.StartWorker(ctx)
	require.Eventually(t, func() bool {
		j, err := manager.GetJob(job.ID)
		return err == nil && j.Status == jobs.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	t.Run("get run", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/runs/"+job.ID, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got jobs.Job
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, jobs.StatusCompleted, got.Status)
		assert.Equal(t, 1, got.Extracted)
	})

	t.Run("records", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/runs/"+job.ID+"/records", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var records []*models.ProductRecord
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
		require.Len(t, records, 1)
		assert.Equal(t, models.NumberOf(1299), records[0].Price)
		assert.Equal(t, models.NotAvailable, records[0].Brand)
	})

	t.Run("list runs", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/runs?limit=5", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var list []jobs.Job
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
		require.Len(t, list, 1)
		assert.Equal(t, job.ID, list[0].ID)

		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/runs?limit=x", "").Code)
	})

	t.Run("unknown run", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/runs/nope", "").Code)
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/runs/nope/records", "").Code)
	})
}

func TestGetRunRecords_Archive(t *testing.T) {
	archived := models.NewProductRecord("myntra", "red dress", "https://www.myntra.com/dresses/x/7/buy")

	archive := new(mockArchive)
	archive.On("Records", mock.Anything, "old-run").Return([]*models.ProductRecord{archived}, nil)
	archive.On("Records", mock.Anything, "empty-run").Return([]*models.ProductRecord{}, nil)
	archive.On("Records", mock.Anything, "broken-run").Return(nil, errors.New("connection refused"))

	_, h := newTestServer(t, archive, 0)

	rec := do(t, h, http.MethodGet, "/api/v1/runs/old-run/records", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []*models.ProductRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, archived.ProductURL, records[0].ProductURL)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/runs/empty-run/records", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/runs/broken-run/records", "").Code)
	archive.AssertExpectations(t)
}

func TestListRuns_Archive(t *testing.T) {
	archive := new(mockArchive)
	manager, h := newTestServer(t, archive, 0)

	live, err := manager.CreateJob(context.Background(), jobs.CreateRequest{Site: "nykaa", Queries: []string{"kurta"}})
	require.NoError(t, err)

	older := time.Now().Add(-48 * time.Hour)
	archive.On("RecentRuns", mock.Anything, 2).Return([]*models.Run{
		{ID: "old-run", Site: "myntra", Queries: []string{"red dress"}, StartedAt: older, FinishedAt: older.Add(time.Minute), Extracted: 7},
		{ID: live.ID, Site: "nykaa", Queries: []string{"kurta"}, StartedAt: older},
	}, nil).Once()
	archive.On("RecentRuns", mock.Anything, archivedRunsLimit).Return(nil, errors.New("connection refused")).Once()

	rec := do(t, h, http.MethodGet, "/api/v1/runs?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []jobs.Job
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 2)
	assert.Equal(t, live.ID, list[0].ID)
	assert.Equal(t, jobs.StatusPending, list[0].Status)
	assert.Equal(t, "old-run", list[1].ID)
	assert.Equal(t, jobs.StatusCompleted, list[1].Status)
	assert.Equal(t, 7, list[1].Extracted)

	rec = do(t, h, http.MethodGet, "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, live.ID, list[0].ID)

	archive.AssertExpectations(t)
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, nil, 0)

	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string     `json:"status"`
		Jobs   jobs.Stats `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 0, body.Jobs.TotalJobs)
}
