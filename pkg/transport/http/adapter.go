package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/neuroforge-dev/kernel/pkg/apierr"
	"github.com/neuroforge-dev/kernel/pkg/task"
	"github.com/neuroforge-dev/kernel/pkg/transport"
)

// Adapter serves the kernel's task-execution API over HTTP.
// It routes requests to the TaskRunner and serializes results.
type Adapter struct {
	runner transport.TaskRunner
	gate   *transport.ConcurrencyGate
	mux    *http.ServeMux
	config Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout int // seconds

	// MaxConcurrent bounds the number of /run_task and
	// /run_task_multipart requests admitted at once. 0 means unlimited.
	MaxConcurrent int
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodySize:     10 << 20, // 10 MB
		ShutdownTimeout: 30,
		MaxConcurrent:   0,
	}
}

// runTaskRequest is the JSON body for POST /run_task.
type runTaskRequest struct {
	Task     string            `json:"task"`
	FilesB64 map[string]string `json:"files_b64,omitempty"`
	Timeout  *int              `json:"timeout,omitempty"`
}

// runTaskResponse wraps a successful result.
type runTaskResponse struct {
	Status string            `json:"status"`
	Result *task.DonePayload `json:"result"`
}

// NewAdapter creates an HTTP adapter dispatching to the given TaskRunner.
// Middleware is applied to the runner in the given order.
func NewAdapter(runner transport.TaskRunner, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		runner = transport.Chain(middlewares...)(runner)
	}

	a := &Adapter{
		runner: runner,
		gate:   transport.NewConcurrencyGate(cfg.MaxConcurrent),
		mux:    http.NewServeMux(),
		config: cfg,
	}

	a.mux.HandleFunc("POST /run_task", a.handleRunTask)
	a.mux.HandleFunc("POST /run_task_multipart", a.handleRunTaskMultipart)

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

// httpRequestIDMiddleware propagates the X-Request-ID header: if present
// on the request, it is forwarded into context and echoed on the response.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx := transport.ContextWithRequestID(r.Context(), id)
			r = r.WithContext(ctx)
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// handleRunTask handles POST /run_task.
func (a *Adapter) handleRunTask(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/json") {
		transport.WriteErrorResponse(w,
			apierr.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req runTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				apierr.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteErrorResponse(w,
			apierr.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return
	}

	if strings.TrimSpace(req.Task) == "" {
		transport.WriteAPIError(w, apierr.NewInvalidRequestError("task", "task must not be empty"))
		return
	}

	inputFiles := make(map[string][]byte, len(req.FilesB64))
	for name, b64 := range req.FilesB64 {
		if err := validateRelativePath(name); err != nil {
			transport.WriteAPIError(w, apierr.NewInvalidRequestError("files_b64", fmt.Sprintf("%s: %v", name, err)))
			return
		}
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			transport.WriteAPIError(w, apierr.NewInvalidRequestError("files_b64", fmt.Sprintf("%s: invalid base64", name)))
			return
		}
		inputFiles[name] = raw
	}

	t := &task.Task{
		Text:        req.Task,
		InputFiles:  inputFiles,
		TimeoutHint: req.Timeout,
	}

	a.dispatch(w, r, t)
}

// handleRunTaskMultipart handles POST /run_task_multipart.
func (a *Adapter) handleRunTaskMultipart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(a.config.MaxBodySize); err != nil {
		transport.WriteAPIError(w, apierr.NewInvalidRequestError("body", "invalid multipart form: "+err.Error()))
		return
	}

	taskText := r.FormValue("task")
	if strings.TrimSpace(taskText) == "" {
		transport.WriteAPIError(w, apierr.NewInvalidRequestError("task", "task must not be empty"))
		return
	}

	var timeoutHint *int
	if v := r.FormValue("timeout"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			transport.WriteAPIError(w, apierr.NewInvalidRequestError("timeout", "timeout must be an integer"))
			return
		}
		timeoutHint = &n
	}

	// Multipart filenames are taken verbatim; only
	// path-traversal and absolute paths are rejected, consistent with
	// files_b64 in the JSON form.
	inputFiles := make(map[string][]byte)
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["files[]"] {
			// fh.Filename is already cut to its base name by mime/multipart;
			// the Content-Disposition parameter holds the name as sent.
			name := fh.Filename
			if _, params, err := mime.ParseMediaType(fh.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
				name = params["filename"]
			}
			if err := validateRelativePath(name); err != nil {
				transport.WriteAPIError(w, apierr.NewInvalidRequestError("files", fmt.Sprintf("%s: %v", name, err)))
				return
			}
			f, err := fh.Open()
			if err != nil {
				transport.WriteAPIError(w, apierr.NewInvalidRequestError("files", fmt.Sprintf("%s: %v", name, err)))
				return
			}
			raw, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				transport.WriteAPIError(w, apierr.NewInvalidRequestError("files", fmt.Sprintf("%s: %v", name, err)))
				return
			}
			inputFiles[name] = raw
		}
	}

	t := &task.Task{
		Text:        taskText,
		InputFiles:  inputFiles,
		TimeoutHint: timeoutHint,
	}

	a.dispatch(w, r, t)
}

// dispatch admits the request through the ConcurrencyGate, runs it
// through the TaskRunner, and writes the JSON response or error envelope.
func (a *Adapter) dispatch(w http.ResponseWriter, r *http.Request, t *task.Task) {
	release, ok := a.gate.Enter()
	if !ok {
		transport.WriteErrorResponse(w,
			apierr.NewServerError("server is at capacity, try again shortly"),
			http.StatusTooManyRequests,
		)
		return
	}
	defer release()

	payload, err := a.runner.RunTask(r.Context(), t)
	if err != nil {
		var apiErr *apierr.APIError
		if !errors.As(err, &apiErr) {
			apiErr = apierr.NewServerError(err.Error())
		}
		transport.WriteAPIError(w, apiErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runTaskResponse{Status: "success", Result: payload})
}

// validateRelativePath rejects absolute paths and ".." segments, matching
// the Sandbox Runner's own input-file validation.
func validateRelativePath(name string) error {
	if filepath.IsAbs(name) {
		return fmt.Errorf("absolute paths are not allowed")
	}
	clean := filepath.ToSlash(filepath.Clean(name))
	for _, seg := range strings.Split(clean, "/") {
		if seg == ".." {
			return fmt.Errorf("path traversal is not allowed")
		}
	}
	return nil
}
