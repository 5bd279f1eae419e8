package srv

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/bookmaker/config"
)

type testServer struct {
	*Server
	ts *httptest.Server
}

func newTestServer(t *testing.T, mutate func(*config.ServerConfig)) *testServer {
	t.Helper()
	cfg := config.Default().Server
	cfg.OutputDir = t.TempDir()
	cfg.RateLimit = 0
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg, nil, zerolog.Nop())
	require.NoError(t, err)

	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return &testServer{Server: s, ts: ts}
}

func (s *testServer) startWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.jobs.Run(ctx)
}

func coverData(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 12))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func validRequest(t *testing.T) bookRequest {
	return bookRequest{
		Title:     "My Book",
		Author:    "Author Name",
		Cover:     coverData(t),
		CoverName: "cover.png",
		Chapters:  []chapterRequest{{Title: "Only", Content: "short"}},
	}
}

func (s *testServer) post(t *testing.T, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(s.ts.URL+"/books", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(s.ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) submit(t *testing.T, req bookRequest) string {
	t.Helper()
	resp := s.post(t, req)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out["id"])
	assert.Equal(t, "/books/"+out["id"], resp.Header.Get("Location"))
	return out["id"]
}

func waitFinished(t *testing.T, job *Job) {
	t.Helper()
	_, events, cancel := job.Subscribe()
	defer cancel()
	timeout := time.After(30 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatalf("job %s did not finish", job.ID)
		}
	}
}

func decodeError(t *testing.T, resp *http.Response) errorResponse {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateAndDownloadBook(t *testing.T) {
	s := newTestServer(t, nil)
	s.startWorker(t)

	id := s.submit(t, validRequest(t))
	job, ok := s.jobs.Get(id)
	require.True(t, ok)
	waitFinished(t, job)

	resp := s.get(t, "/books/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status JobStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, StateCompleted, status.State)
	assert.Equal(t, 3, status.Pages)
	assert.Equal(t, 1, status.TOCPages)
	assert.Equal(t, []TOCEntry{{Title: "Only", StartPage: 2}}, status.Chapters)
	assert.NotNil(t, status.Finished)

	resp = s.get(t, "/books/"+id+"/pdf")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	entries, err := os.ReadDir(job.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the final document remains")
	assert.Equal(t, outputName, entries[0].Name())
}

func TestCreateBookMarkdownChapter(t *testing.T) {
	s := newTestServer(t, nil)
	s.startWorker(t)

	req := validRequest(t)
	req.Chapters = []chapterRequest{{Title: "Notes", Content: "# Notes\n\n- one\n- two\n", Format: "markdown"}}
	id := s.submit(t, req)
	job, _ := s.jobs.Get(id)
	waitFinished(t, job)
	assert.Equal(t, StateCompleted, job.GetState())
}

func TestCreateBookValidation(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		mutate func(*bookRequest)
		fields []string
	}{
		{"missing cover", func(r *bookRequest) { r.Cover = "" }, []string{"cover"}},
		{"no chapters", func(r *bookRequest) { r.Chapters = nil }, []string{"chapters"}},
		{"bad base64", func(r *bookRequest) { r.Cover = "***" }, []string{"cover"}},
		{"unknown format", func(r *bookRequest) { r.Chapters[0].Format = "rtf" }, []string{"chapters[0].format"}},
		{"blank fields", func(r *bookRequest) {
			r.Title = " "
			r.Author = ""
			r.Chapters = append(r.Chapters, chapterRequest{Title: "", Content: "\n"})
		}, []string{"title", "author", "chapters[1].title", "chapters[1].content"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(t)
			tt.mutate(&req)
			resp := s.post(t, req)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.ElementsMatch(t, tt.fields, decodeError(t, resp).Fields)
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		resp, err := http.Post(s.ts.URL+"/books", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown field", func(t *testing.T) {
		resp, err := http.Post(s.ts.URL+"/books", "application/json", strings.NewReader(`{"titel":"x"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestCreateBookTooLarge(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) { c.MaxBodyBytes = 64 })
	resp := s.post(t, validRequest(t))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestUnknownJob(t *testing.T) {
	s := newTestServer(t, nil)
	for _, path := range []string{
		"/books/" + uuid.New().String(),
		"/books/" + uuid.New().String() + "/pdf",
		"/books/not-a-uuid",
		"/ws/" + uuid.New().String(),
	} {
		resp := s.get(t, path)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestDownloadNotReady(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.submit(t, validRequest(t))

	resp := s.get(t, "/books/"+id+"/pdf")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.get(t, "/books/"+id)
	var status JobStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, StateQueued, status.State)
}

func TestRenderFailureReported(t *testing.T) {
	s := newTestServer(t, nil)
	s.startWorker(t)

	req := validRequest(t)
	req.Chapters[0].Title = "Snowman ☃"
	id := s.submit(t, req)
	job, _ := s.jobs.Get(id)
	waitFinished(t, job)

	resp := s.get(t, "/books/"+id+"/pdf")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp).Error, "☃")

	assert.Equal(t, StateError, job.GetState())
	assert.NoDirExists(t, job.Dir)
}

func TestQueueFull(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) { c.QueueSize = 1 })
	s.submit(t, validRequest(t))

	resp := s.post(t, validRequest(t))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) { c.RateLimit = 2 })

	req := validRequest(t)
	req.Chapters = nil
	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, s.post(t, req).StatusCode)
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "bookmaker_queue_length")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestWebSocketStream(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.submit(t, validRequest(t))
	wsURL := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/ws/" + id

	readAll := func(conn *websocket.Conn) []WSMessage {
		var msgs []WSMessage
		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
				return msgs
			}
			msgs = append(msgs, msg)
		}
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	s.startWorker(t)
	live := readAll(conn)

	kinds := make([]string, 0, len(live))
	for _, msg := range live {
		kinds = append(kinds, msg.Type)
	}
	assert.Equal(t, []string{"state", "state", "validated", "cover", "chapter", "toc", "assembled", "written", "state"}, kinds)
	assert.Equal(t, StateQueued, live[0].Status)
	assert.Equal(t, StateCompleted, live[len(live)-1].Status)
	assert.Equal(t, 1, live[4].Chapter)
	assert.Equal(t, 2, live[4].StartPage)

	// A late subscriber gets the full history, then the stream closes.
	late, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer late.Close()
	replayed := readAll(late)
	require.Len(t, replayed, len(live))
	assert.Equal(t, live[len(live)-1].Type, replayed[len(replayed)-1].Type)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(ErrQueueFull))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}
