package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spool/internal/api"
	"spool/internal/config"
	"spool/internal/logging"
	"spool/internal/queue"
	"spool/internal/testsupport"
	"spool/internal/watcher"
)

type fakeChecker struct {
	gotURL  string
	gotOpts watcher.Options
	result  watcher.Result
	err     error
}

func (f *fakeChecker) Check(_ context.Context, url string, opts watcher.Options) (watcher.Result, error) {
	f.gotURL = url
	f.gotOpts = opts
	return f.result, f.err
}

type downStore struct{ api.JobQueue }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

type fixture struct {
	cfg     *config.Config
	client  *queue.Client
	checker *fakeChecker
	server  *api.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	client := testsupport.MustOpenClient(t, cfg)
	checker := &fakeChecker{}
	svc := api.NewQueueService(cfg, client, checker, logging.NewNop())
	return &fixture{cfg: cfg, client: client, checker: checker, server: api.NewServer(cfg, svc, logging.NewNop())}
}

func do(t *testing.T, s *api.Server, method, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestEnqueueThenStatus(t *testing.T) {
	f := newFixture(t)

	code, body := do(t, f.server, "POST", "/enqueue", `{"url":"https://www.youtube.com/watch?v=abc123","audio":true,"callback_url":"http://cb.test/x"}`)
	require.Equal(t, 200, code, string(body))
	var ack api.EnqueueResponse
	require.NoError(t, json.Unmarshal(body, &ack))
	assert.NotEmpty(t, ack.JobID)
	assert.Equal(t, "queued", ack.Status)

	pending, err := f.client.Pending(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)

	code, body = do(t, f.server, "GET", "/status/"+ack.JobID, "")
	require.Equal(t, 200, code, string(body))
	var record map[string]string
	require.NoError(t, json.Unmarshal(body, &record))
	assert.Equal(t, "queued", record["status"])
	assert.Equal(t, "both", record["media"])
	assert.Equal(t, "mp3", record["audio_format"])
	assert.Equal(t, ack.JobID, record["filename"])
	assert.Equal(t, "http://cb.test/x", record["callback_url"])
}

func TestEnqueueRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{
		`{"url":"  "}`,
		`{"url":"https://www.youtube.com/playlist?list=PL1"}`,
		`{"url":"https://youtu.be/abc","video":"sometimes"}`,
		`not json`,
	} {
		code, resp := do(t, f.server, "POST", "/enqueue", body)
		assert.Equal(t, 400, code, body)
		var e api.ErrorResponse
		require.NoError(t, json.Unmarshal(resp, &e))
		assert.NotEmpty(t, e.Error)
	}
	pending, err := f.client.Pending(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, pending)
}

func TestStatusNotFound(t *testing.T) {
	f := newFixture(t)
	code, body := do(t, f.server, "GET", "/status/missing", "")
	assert.Equal(t, 404, code)
	assert.JSONEq(t, `{"error":"job not found"}`, string(body))
}

func TestCheckChannel(t *testing.T) {
	f := newFixture(t)
	d := 1200.0
	f.checker.result = watcher.Result{
		Items:    []watcher.Item{{ID: "abc", URL: "https://www.youtube.com/watch?v=abc", Duration: &d, JobID: "job-1"}},
		Enqueued: []string{"job-1"},
	}

	code, body := do(t, f.server, "POST", "/check-channel",
		`{"url":"https://www.youtube.com/@example/videos","track":"true","enqueue":true,"limit":3,"media":"audio","min_duration":900}`)
	require.Equal(t, 200, code, string(body))

	var resp api.CheckChannelResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, []string{"job-1"}, resp.Enqueued)
	assert.Equal(t, "abc", resp.Items[0].ID)

	assert.Equal(t, "https://www.youtube.com/@example/videos", f.checker.gotURL)
	assert.True(t, f.checker.gotOpts.Track)
	assert.True(t, f.checker.gotOpts.Enqueue)
	assert.Equal(t, 3, f.checker.gotOpts.Limit)
	assert.Equal(t, queue.MediaAudio, f.checker.gotOpts.Media)
	assert.Equal(t, 900, f.checker.gotOpts.MinDuration)
	assert.Equal(t, f.cfg.Watcher.SkipShorts, f.checker.gotOpts.SkipShorts)
}

func TestCheckChannelRequiresURL(t *testing.T) {
	f := newFixture(t)
	code, _ := do(t, f.server, "POST", "/check-channel", `{"url":""}`)
	assert.Equal(t, 400, code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	code, body := do(t, f.server, "GET", "/health", "")
	assert.Equal(t, 200, code)
	assert.JSONEq(t, `{"ok":true,"role":"api","store":"up"}`, string(body))

	svc := api.NewQueueService(f.cfg, downStore{f.client}, nil, logging.NewNop())
	down := api.NewServer(f.cfg, svc, logging.NewNop())
	code, body = do(t, down, "GET", "/health", "")
	assert.Equal(t, 503, code)
	assert.JSONEq(t, `{"ok":false,"role":"api","store":"down"}`, string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	do(t, f.server, "POST", "/enqueue", `{"url":"https://youtu.be/abc"}`)
	code, body := do(t, f.server, "GET", "/metrics", "")
	assert.Equal(t, 200, code)
	assert.Contains(t, string(body), "spool_jobs_enqueued_total")
}

func TestRateLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.API.RateLimitPerMinute = 2
	client := testsupport.MustOpenClient(t, cfg)
	server := api.NewServer(cfg, api.NewQueueService(cfg, client, nil, logging.NewNop()), logging.NewNop())

	for i := 0; i < 2; i++ {
		code, _ := do(t, server, "GET", "/status/x", "")
		assert.Equal(t, 404, code)
	}
	code, _ := do(t, server, "GET", "/status/x", "")
	assert.Equal(t, 429, code)

	code, _ = do(t, server, "GET", "/health", "")
	assert.Equal(t, 200, code)
}
