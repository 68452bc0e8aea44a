package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarconsole/internal/jarclient"
	"jarconsole/internal/metrics"
	"jarconsole/internal/models"
	"jarconsole/internal/poller"
	"jarconsole/internal/routes"
	"jarconsole/internal/storage"
)

type nopSource struct{}

func (nopSource) Status(context.Context) (models.Envelope[[]models.ServiceItem], error) {
	return models.Envelope[[]models.ServiceItem]{Code: models.CodeSuccess}, nil
}

type fakeActions struct {
	mu      sync.Mutex
	calls   []string
	err     error
	files   []string
	content string
	upload  string
}

func (f *fakeActions) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeActions) Start(_ context.Context, id string) error  { return f.record("start " + id) }
func (f *fakeActions) Stop(_ context.Context, id string) error   { return f.record("stop " + id) }
func (f *fakeActions) Delete(_ context.Context, id string) error { return f.record("delete " + id) }

func (f *fakeActions) Create(_ context.Context, name, fileName string, file io.Reader) error {
	data, _ := io.ReadAll(file)
	f.mu.Lock()
	f.upload = string(data)
	f.mu.Unlock()
	return f.record("create " + name + " " + fileName)
}

func (f *fakeActions) Files(_ context.Context, id string) (models.Envelope[[]string], error) {
	if err := f.record("files " + id); err != nil {
		return models.Envelope[[]string]{}, err
	}
	files := f.files
	return models.Envelope[[]string]{Code: models.CodeSuccess, Data: &files}, nil
}

func (f *fakeActions) Download(_ context.Context, id, name string, w io.Writer) (int64, error) {
	if err := f.record("download " + id + " " + name); err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, f.content)
	return int64(n), err
}

func (f *fakeActions) Upload(_ context.Context, id, name string, file io.Reader) error {
	data, _ := io.ReadAll(file)
	f.mu.Lock()
	f.upload = string(data)
	f.mu.Unlock()
	return f.record("upload " + id + " " + name)
}

func (f *fakeActions) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fixture struct {
	server  *Server
	http    *httptest.Server
	list    *poller.List
	actions *fakeActions
	store   *storage.HistoryStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := storage.NewHistoryStorage(filepath.Join(t.TempDir(), "jar_history.json"), 100)
	require.NoError(t, err)

	list := poller.NewList()
	reg := prometheus.NewRegistry()
	f := &fixture{
		list:    list,
		actions: &fakeActions{},
		store:   store,
	}
	f.server = New(Options{
		Poller:         poller.New(nopSource{}, list, poller.Options{Period: time.Hour}),
		Actions:        f.actions,
		Storage:        store,
		Metrics:        metrics.NewCollector(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:         zerolog.Nop(),
	})
	f.http = httptest.NewServer(f.server.Handler())
	t.Cleanup(f.http.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.http.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRouteTree_RedirectsAndLeaf(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/apps", nil, "")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, routes.AppsAllPath, resp.Header.Get("Location"))

	resp = f.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, routes.JarPath, resp.Header.Get("Location"))

	resp = f.do(t, http.MethodGet, resp.Header.Get("Location"), nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "JAR services")

	resp = f.do(t, http.MethodGet, "/apps/all", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoutesEndpoint_HidesJarLeaf(t *testing.T) {
	f := newFixture(t)

	menu := decode[[]routes.MenuItem](t, f.do(t, http.MethodGet, "/api/routes", nil, ""))
	require.Len(t, menu, 1)
	assert.Equal(t, "/apps", menu[0].Path)
	assert.Equal(t, "App management", menu[0].Meta.Title)
	require.Len(t, menu[0].Children, 1)
	assert.Empty(t, menu[0].Children[0].Children)
}

func TestServicesEndpoint(t *testing.T) {
	f := newFixture(t)

	env := decode[models.Envelope[[]models.ServiceItem]](t, f.do(t, http.MethodGet, "/api/services", nil, ""))
	assert.Equal(t, models.CodeSuccess, env.Code)
	require.NotNil(t, env.Data)
	assert.Empty(t, *env.Data)

	f.list.Replace([]models.ServiceItem{{ID: "1", Name: "orders", Status: models.StatusRunning}})
	env = decode[models.Envelope[[]models.ServiceItem]](t, f.do(t, http.MethodGet, "/api/services", nil, ""))
	require.NotNil(t, env.Data)
	require.Len(t, *env.Data, 1)
	assert.Equal(t, "orders", (*env.Data)[0].Name)
}

func TestActions_ProxyToPanel(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct {
		method, path, call string
	}{
		{http.MethodPut, "/api/services/7/start", "start 7"},
		{http.MethodPut, "/api/services/7/stop", "stop 7"},
		{http.MethodDelete, "/api/services/7", "delete 7"},
	} {
		resp := f.do(t, tc.method, tc.path, nil, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode, tc.path)
		env := decode[models.Envelope[struct{}]](t, resp)
		assert.Equal(t, models.CodeSuccess, env.Code)
	}
	assert.Equal(t, []string{"start 7", "stop 7", "delete 7"}, f.actions.recorded())
}

func TestActions_TransportFailureIs502AndListUntouched(t *testing.T) {
	f := newFixture(t)
	f.list.Replace([]models.ServiceItem{{ID: "1", Name: "orders", Status: models.StatusRunning}})
	version := f.list.Version()
	f.actions.err = fmt.Errorf("%w: dial tcp: refused", jarclient.ErrTransport)

	resp := f.do(t, http.MethodDelete, "/api/services/1", nil, "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	env := decode[models.Envelope[struct{}]](t, resp)
	assert.Equal(t, http.StatusBadGateway, env.Code)
	assert.Contains(t, env.Message, "transport failed")
	assert.Equal(t, version, f.list.Version())
}

func TestActions_RejectOversizedID(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPut, "/api/services/"+strings.Repeat("x", 129)+"/start", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, f.actions.recorded())
}

func TestCreateAndUpload(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartBody(t, map[string]string{"name": "orders"}, "orders.jar", "PK-jar")
	resp := f.do(t, http.MethodPost, "/api/services", body, contentType)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, contentType = multipartBody(t, nil, "orders.txt", "not a jar")
	resp = f.do(t, http.MethodPost, "/api/services", body, contentType)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, contentType = multipartBody(t, nil, "app.yml", "port: 1")
	resp = f.do(t, http.MethodPost, "/api/services/7/files", body, contentType)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, []string{"create orders orders.jar", "upload 7 app.yml"}, f.actions.recorded())
	assert.Equal(t, "port: 1", f.actions.upload)
}

func TestFilesAndDownload(t *testing.T) {
	f := newFixture(t)
	f.actions.files = []string{"a.jar", "app.yml"}
	f.actions.content = "payload"

	env := decode[models.Envelope[[]string]](t, f.do(t, http.MethodGet, "/api/services/7/files", nil, ""))
	require.NotNil(t, env.Data)
	assert.Equal(t, []string{"a.jar", "app.yml"}, *env.Data)

	resp := f.do(t, http.MethodGet, "/api/services/7/files/app.yml", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "app.yml")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestHistoryUptimeTimeline(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	_, err := f.store.Record(models.StatusEntry{Timestamp: now.Add(-2 * time.Minute), Items: []models.ServiceItem{
		{ID: "1", Name: "orders", Status: models.StatusRunning},
	}})
	require.NoError(t, err)
	_, err = f.store.Record(models.StatusEntry{Timestamp: now.Add(-time.Minute), Items: []models.ServiceItem{
		{ID: "1", Name: "orders", Status: models.StatusStopped},
	}})
	require.NoError(t, err)

	hist := decode[[]models.StatusEntry](t, f.do(t, http.MethodGet, "/api/history?limit=1", nil, ""))
	require.Len(t, hist, 1)
	assert.Equal(t, models.StatusStopped, hist[0].Items[0].Status)

	uptime := decode[[]metrics.ServiceUptime](t, f.do(t, http.MethodGet, "/api/uptime", nil, ""))
	require.Len(t, uptime, 1)
	assert.InDelta(t, 50.0, uptime[0].RunningPercent, 1)
	assert.InDelta(t, 60.0, uptime[0].RunningSeconds, 0.01)
	assert.Equal(t, 2, uptime[0].Changes)

	timelines := decode[[]models.ServiceTimeline](t, f.do(t, http.MethodGet, "/api/timeline?points=12", nil, ""))
	require.Len(t, timelines, 1)
	assert.Len(t, timelines[0].Timeline, 12)
}

func TestHealthzAndMetrics(t *testing.T) {
	f := newFixture(t)

	health := decode[map[string]any](t, f.do(t, http.MethodGet, "/healthz", nil, ""))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, false, health["polling"])

	resp := f.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "http_requests_total")
}

func TestServicesWebSocket(t *testing.T) {
	f := newFixture(t)
	f.list.Replace([]models.ServiceItem{{ID: "1", Name: "orders", Status: models.StatusRunning}})

	wsURL := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/api/services/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var env models.Envelope[[]models.ServiceItem]
	require.NoError(t, conn.ReadJSON(&env))
	require.NotNil(t, env.Data)
	require.Len(t, *env.Data, 1)
	assert.Equal(t, models.StatusRunning, (*env.Data)[0].Status)

	f.list.Replace([]models.ServiceItem{{ID: "1", Name: "orders", Status: models.StatusStopped}})
	for {
		env = models.Envelope[[]models.ServiceItem]{}
		require.NoError(t, conn.ReadJSON(&env))
		if env.Data != nil && len(*env.Data) == 1 && (*env.Data)[0].Status == models.StatusStopped {
			break
		}
	}
}

func TestServicesWebSocket_RejectsForeignOrigin(t *testing.T) {
	f := newFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/api/services/ws"
	header := http.Header{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func multipartBody(t *testing.T, fields map[string]string, fileName, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}
