package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/neuroforge-dev/kernel/pkg/apierr"
	"github.com/neuroforge-dev/kernel/pkg/task"
)

// mockRunner is a configurable mock TaskRunner for testing.
type mockRunner struct {
	payload *task.DonePayload
	err     error
	gotTask *task.Task
}

func (m *mockRunner) RunTask(ctx context.Context, t *task.Task) (*task.DonePayload, error) {
	m.gotTask = t
	if m.err != nil {
		return nil, m.err
	}
	return m.payload, nil
}

func newTestAdapter(runner *mockRunner) *Adapter {
	return NewAdapter(runner, DefaultConfig())
}

func postJSON(t *testing.T, srv *httptest.Server, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	resp, err := http.Post(srv.URL+"/run_task", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	return resp
}

func TestRunTaskReturnsSuccessEnvelope(t *testing.T) {
	runner := &mockRunner{
		payload: &task.DonePayload{Language: task.Python, Attempts: 1, Stdout: "hi\n", ExitCode: 0},
	}

	adapter := newTestAdapter(runner)
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	resp := postJSON(t, srv, runTaskRequest{Task: "print hi"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var got runTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if got.Status != "success" {
		t.Errorf("status field = %q, want %q", got.Status, "success")
	}
	if got.Result.Language != task.Python {
		t.Errorf("result.language = %q, want %q", got.Result.Language, task.Python)
	}
	if runner.gotTask.Text != "print hi" {
		t.Errorf("runner received task %q, want %q", runner.gotTask.Text, "print hi")
	}
}

func TestRunTaskWithFilesB64(t *testing.T) {
	runner := &mockRunner{payload: &task.DonePayload{Language: task.Python}}
	adapter := newTestAdapter(runner)
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	content := base64.StdEncoding.EncodeToString([]byte("hello world"))
	resp := postJSON(t, srv, runTaskRequest{
		Task:     "read input.txt",
		FilesB64: map[string]string{"input.txt": content},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if string(runner.gotTask.InputFiles["input.txt"]) != "hello world" {
		t.Errorf("decoded file content = %q, want %q", runner.gotTask.InputFiles["input.txt"], "hello world")
	}
}

func TestRunTaskInvalidBase64Returns400(t *testing.T) {
	adapter := newTestAdapter(&mockRunner{})
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	resp := postJSON(t, srv, runTaskRequest{
		Task:     "x",
		FilesB64: map[string]string{"input.txt": "not-valid-base64!!"},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestRunTaskPathTraversalReturns400(t *testing.T) {
	adapter := newTestAdapter(&mockRunner{})
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	content := base64.StdEncoding.EncodeToString([]byte("x"))
	resp := postJSON(t, srv, runTaskRequest{
		Task:     "x",
		FilesB64: map[string]string{"../../etc/passwd": content},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestRunTaskEmptyTaskReturns400(t *testing.T) {
	adapter := newTestAdapter(&mockRunner{})
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	resp := postJSON(t, srv, runTaskRequest{Task: "   "})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestRunTaskInvalidJSONBodyReturns400(t *testing.T) {
	adapter := newTestAdapter(&mockRunner{})
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/run_task", "application/json", strings.NewReader("{invalid"))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var errResp apierr.ErrorResponse
	json.NewDecoder(resp.Body).Decode(&errResp)
	if errResp.Detail == "" {
		t.Error("expected non-empty error detail")
	}
}

func TestRunTaskOversizedBodyReturns413(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodySize = 10 // 10 bytes max
	adapter := NewAdapter(&mockRunner{}, cfg)
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	bigBody := strings.NewReader(`{"task":"print hello world, this is long"}`)
	resp, err := http.Post(srv.URL+"/run_task", "application/json", bigBody)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusRequestEntityTooLarge)
	}
}

func TestRunTaskWrongContentTypeReturns415(t *testing.T) {
	adapter := newTestAdapter(&mockRunner{})
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/run_task", "text/plain", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnsupportedMediaType)
	}
}

func TestRunTaskUnknownPathReturns404(t *testing.T) {
	adapter := newTestAdapter(&mockRunner{})
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestRunTaskHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        *apierr.APIError
		wantStatus int
	}{
		{"invalid_request -> 400", apierr.NewInvalidRequestError("task", "required"), http.StatusBadRequest},
		{"not_found -> 404", apierr.NewNotFoundError("not found"), http.StatusNotFound},
		{"server_error -> 500", apierr.NewServerError("internal"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{err: tt.err}
			adapter := newTestAdapter(runner)
			srv := httptest.NewServer(adapter.Handler())
			defer srv.Close()

			resp := postJSON(t, srv, runTaskRequest{Task: "x"})
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestRunTaskWrapsPlainErrorAs500(t *testing.T) {
	runner := &mockRunner{err: errors.New("boom")}
	adapter := newTestAdapter(runner)
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	resp := postJSON(t, srv, runTaskRequest{Task: "x"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
}

func TestRunTaskMethodNotAllowed(t *testing.T) {
	adapter := newTestAdapter(&mockRunner{})
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	req, _ := http.NewRequest("GET", srv.URL+"/run_task", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestRunTaskConcurrencyGateRejects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrent = 1
	runner := &mockRunner{payload: &task.DonePayload{}}
	adapter := NewAdapter(runner, cfg)

	release, ok := adapter.gate.Enter()
	if !ok {
		t.Fatal("expected first Enter to succeed")
	}
	defer release()

	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	resp := postJSON(t, srv, runTaskRequest{Task: "x"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}
}

func TestRunTaskRequestIDEchoed(t *testing.T) {
	adapter := newTestAdapter(&mockRunner{payload: &task.DonePayload{}})
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	req, _ := http.NewRequest("POST", srv.URL+"/run_task", strings.NewReader(`{"task":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "client-supplied-id")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != "client-supplied-id" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-supplied-id")
	}
}

// --- Multipart tests ---

func newMultipartRequest(t *testing.T, taskText, timeout string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	if taskText != "" {
		w.WriteField("task", taskText)
	}
	if timeout != "" {
		w.WriteField("timeout", timeout)
	}
	for name, content := range files {
		fw, err := w.CreateFormFile("files[]", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write([]byte(content))
	}
	w.Close()
	return buf, w.FormDataContentType()
}

func TestRunTaskMultipartReturnsSuccessEnvelope(t *testing.T) {
	runner := &mockRunner{payload: &task.DonePayload{Language: task.Python, Attempts: 1}}
	adapter := newTestAdapter(runner)
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	body, ctype := newMultipartRequest(t, "print hi", "", map[string]string{"data.txt": "file contents"})
	resp, err := http.Post(srv.URL+"/run_task_multipart", ctype, body)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if runner.gotTask.Text != "print hi" {
		t.Errorf("task text = %q, want %q", runner.gotTask.Text, "print hi")
	}
	if string(runner.gotTask.InputFiles["data.txt"]) != "file contents" {
		t.Errorf("file contents = %q, want %q", runner.gotTask.InputFiles["data.txt"], "file contents")
	}
}

func TestRunTaskMultipartEmptyTaskReturns400(t *testing.T) {
	adapter := newTestAdapter(&mockRunner{})
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	body, ctype := newMultipartRequest(t, "", "", nil)
	resp, err := http.Post(srv.URL+"/run_task_multipart", ctype, body)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestRunTaskMultipartInvalidTimeoutReturns400(t *testing.T) {
	adapter := newTestAdapter(&mockRunner{})
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	body, ctype := newMultipartRequest(t, "x", "not-an-int", nil)
	resp, err := http.Post(srv.URL+"/run_task_multipart", ctype, body)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestRunTaskMultipartPathTraversalReturns400(t *testing.T) {
	adapter := newTestAdapter(&mockRunner{})
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	body, ctype := newMultipartRequest(t, "x", "", map[string]string{"../../etc/passwd": "x"})
	resp, err := http.Post(srv.URL+"/run_task_multipart", ctype, body)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestRunTaskMultipartTimeoutHintPropagates(t *testing.T) {
	runner := &mockRunner{payload: &task.DonePayload{}}
	adapter := newTestAdapter(runner)
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	body, ctype := newMultipartRequest(t, "x", "45", nil)
	resp, err := http.Post(srv.URL+"/run_task_multipart", ctype, body)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if runner.gotTask.TimeoutHint == nil || *runner.gotTask.TimeoutHint != 45 {
		t.Errorf("TimeoutHint = %v, want 45", runner.gotTask.TimeoutHint)
	}
}
