package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/kmrl/dochub/constants"
	"github.com/kmrl/dochub/internal/async"
	"github.com/kmrl/dochub/internal/core"
	"github.com/kmrl/dochub/internal/jobs"
)

type recordingQueue struct {
	mu    sync.Mutex
	tasks []async.Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, t async.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *recordingQueue) Shutdown(context.Context) {}

type fixture struct {
	srv   *Server
	store *jobs.MemoryStore
	queue *recordingQueue
	dir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := jobs.NewMemoryStore()
	require.NoError(t, jobs.SeedExample(context.Background(), store, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	queue := &recordingQueue{}
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(Config{UploadDir: dir, AllowedOrigins: []string{"http://localhost:5173"}}, store, queue, nil, logger)

	n := 0
	srv.newID = func() string {
		n++
		return "task-" + string(rune('0'+n))
	}
	return &fixture{srv: srv, store: store, queue: queue, dir: dir}
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestUpload_AcceptsSupportedFiles(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, map[string]string{
		"invoice 42.txt": "Invoice #4521, due 2025-03-01",
		"virus.exe":      "MZ",
	})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)

	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1 file(s) uploaded successfully, processing started.", resp.Message)
	assert.Equal(t, []string{"task-1"}, resp.TaskIDs)

	job, err := f.store.Get(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, "invoice 42.txt", job.Filename)
	assert.Equal(t, constants.JobStatusProcessing, job.Status)
	_, err = time.Parse(time.RFC3339, job.Timestamp)
	assert.NoError(t, err)

	require.Len(t, f.queue.tasks, 1)
	task := f.queue.tasks[0]
	assert.Equal(t, "task-1", task.JobID)
	assert.True(t, strings.HasSuffix(task.Path, "task-1_invoice_42.txt"))
	data, err := os.ReadFile(task.Path)
	require.NoError(t, err)
	assert.Equal(t, "Invoice #4521, due 2025-03-01", string(data))
}

func TestUpload_NoFiles(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)

	rec := f.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No files were sent.")
}

func TestUpload_EnqueueFailureMarksJobFailed(t *testing.T) {
	f := newFixture(t)
	f.queue.err = async.ErrQueueClosed
	body, ct := multipartBody(t, map[string]string{"memo.md": "# Memo"})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)

	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "0 file(s)")

	job, err := f.store.Get(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, job.Status)
	assert.True(t, strings.HasPrefix(*job.Summary, core.FailurePrefix))
}

func TestTasksEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/tasks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, jobs.ExampleJobID, list[0]["id"])
	assert.Equal(t, "completed", list[0]["status"])
	assert.Equal(t, 0.95, list[0]["departmentSuggestion"].(map[string]any)["confidence"])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/tasks/"+jobs.ExampleJobID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/tasks/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/tasks/"+jobs.ExampleJobID+"/report", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, f.store.SaveReport(context.Background(), jobs.ExampleJobID, []byte(`{"department":"Finance"}`)))
	rec = f.do(httptest.NewRequest(http.MethodGet, "/tasks/"+jobs.ExampleJobID+"/report", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"department":"Finance"}`, rec.Body.String())
}

func TestExportAndHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/export.xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := f.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = f.do(req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestTaskEvents_StreamsProgress(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Create(context.Background(), jobs.NewJob("j1", "a.txt", time.Now())))
	ts := httptest.NewServer(f.srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/tasks/j1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first core.Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "j1", first.ID)
	assert.Equal(t, constants.JobStatusProcessing, first.Status)
	require.Equal(t, 1, f.srv.hub.Subscribers("j1"))

	f.srv.hub.Publish(core.Event{ID: "j1", Stage: "classifying", Progress: 25, Status: constants.JobStatusProcessing})
	f.srv.hub.Publish(core.Event{ID: "other", Stage: "classifying", Progress: 25})

	var ev core.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "classifying", ev.Stage)
	assert.Equal(t, 25, ev.Progress)
}

func TestTaskEvents_DropsSubscriberThatStopsReading(t *testing.T) {
	f := newFixture(t)
	f.srv.hub.writeWait = 50 * time.Millisecond
	require.NoError(t, f.store.Create(context.Background(), jobs.NewJob("j1", "a.txt", time.Now())))
	ts := httptest.NewServer(f.srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/tasks/j1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first core.Event
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, 1, f.srv.hub.Subscribers("j1"))

	// the client never reads again, so socket buffers fill and a write times out
	big := core.Event{ID: "j1", Stage: "classifying", Status: constants.JobStatusProcessing, Error: strings.Repeat("x", 1<<20)}
	start := time.Now()
	for i := 0; i < 256 && f.srv.hub.Subscribers("j1") > 0; i++ {
		f.srv.hub.Publish(big)
	}
	assert.Equal(t, 0, f.srv.hub.Subscribers("j1"))
	assert.Less(t, time.Since(start), 30*time.Second)
}

func TestTaskEvents_UnknownJob(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/tasks/nope/events", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthServer_ServingOnceStoreReachable(t *testing.T) {
	gs, hs := NewHealthServer()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = gs.Serve(lis) }()
	defer gs.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go WatchStore(ctx, jobs.NewMemoryStore(), hs, time.Hour, nil)

	cc, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer cc.Close()
	client := healthpb.NewHealthClient(cc)

	require.Eventually(t, func() bool {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 20*time.Millisecond)
}
