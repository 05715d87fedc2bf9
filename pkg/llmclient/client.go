package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/neuroforge-dev/kernel/pkg/debuglog"
	"github.com/neuroforge-dev/kernel/pkg/task"
)

// callRetries is the total number of backend calls (the first call plus
// retries) a single Generate/Repair makes before giving up.
const callRetries = 2

// langHints supplies per-language constraints appended to the generation
// prompt so the produced program matches the Sandbox Runner's execute
// commands (e.g. Java's entry class must be Main).
var langHints = map[task.Language]string{
	task.Python:     "Python 3.10+ script (run with `python file.py`)",
	task.JavaScript: "JavaScript for Node.js (use console.log)",
	task.C:          "C program (compile with gcc, standard C11)",
	task.Cpp:        "C++ program (compile with g++, standard C++17)",
	task.Java:       "Java program (public class Main, compile with javac Main.java)",
}

// Client implements the Orchestrator's Generator and Repairer interfaces
// against an OpenAI-compatible Chat Completions backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cfg        Config
}

// New creates a Client for the backend described by cfg.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		cfg:        cfg,
	}
}

// Generate produces source code for taskText. When priorLanguage is
// unset, the target language is first detected with a separate backend
// call, defaulting to python when detection fails or is ambiguous.
func (c *Client) Generate(ctx context.Context, taskText string, priorLanguage task.Language, primingContext string) (string, task.Language, error) {
	if strings.TrimSpace(taskText) == "" {
		return "", "", fmt.Errorf("task must not be empty")
	}

	language := priorLanguage
	if !language.Valid() {
		language = c.detectLanguage(ctx, taskText)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a %s program to %s.\n", language, taskText)
	sb.WriteString("Rules:\n")
	fmt.Fprintf(&sb, "- Return only executable %s code (no explanations).\n", language)
	sb.WriteString("- Must print or output results to STDOUT.\n")
	sb.WriteString("- " + langHints[language])
	if primingContext != "" {
		sb.WriteString("\nContext:\n" + primingContext)
	}

	code, err := c.completeWithRetry(ctx, c.cfg.GeneratorModel, sb.String())
	if err != nil {
		return "", "", fmt.Errorf("generating %s code: %w", language, err)
	}
	return code, language, nil
}

// Repair asks the backend for a corrected version of failing code.
func (c *Client) Repair(ctx context.Context, code string, language task.Language, errorText string, primingContext string) (string, error) {
	if strings.TrimSpace(code) == "" || strings.TrimSpace(errorText) == "" {
		return "", fmt.Errorf("code and error are required")
	}

	lines := []string{
		fmt.Sprintf("You are an assistant that fixes %s programs.", language),
		"The user will provide the original script and the runtime error. Provide only corrected, runnable code with minimal changes.",
		"Constraints:",
		"- Do not add network or filesystem calls unless necessary.",
		"- Avoid use of dangerous system calls.",
		"",
		"Original code:",
		code,
		"",
		"Runtime error / traceback:",
		errorText,
	}
	if language == task.Java {
		lines = append(lines, "Ensure the public class is named Main (public class Main { ... }).")
	}
	if primingContext != "" {
		lines = append(lines, "\nContext:\n"+primingContext)
	}

	fixed, err := c.completeWithRetry(ctx, c.cfg.repairerModel(), strings.Join(lines, "\n"))
	if err != nil {
		return "", fmt.Errorf("repairing %s code: %w", language, err)
	}
	return fixed, nil
}

// detectLanguage asks the backend which supported language the task
// implies. Any failure or unrecognized answer falls back to python.
func (c *Client) detectLanguage(ctx context.Context, taskText string) task.Language {
	prompt := "You are a language detection assistant.\n\n" +
		"The user will describe a coding task.\n" +
		"Your job is to determine the programming language they are referring to.\n\n" +
		"Supported options: Python, JavaScript, C, C++, Java.\n\n" +
		"Respond with only the language name in lowercase (e.g., \"python\", \"c\", \"cpp\", \"java\", \"javascript\").\n\n" +
		"User task:\n" + taskText

	text, err := c.complete(ctx, c.cfg.GeneratorModel, prompt)
	if err != nil {
		debuglog.Log("orchestrator", "language detection failed, defaulting to python", "error", err)
		return task.Python
	}

	answer := strings.ToLower(strings.TrimSpace(text))
	if lang, ok := task.ParseLanguage(answer); ok {
		return lang
	}
	if strings.Contains(answer, "c++") {
		return task.Cpp
	}
	// "javascript" before "java" so the longer name is never shadowed.
	for _, candidate := range []task.Language{task.JavaScript, task.Python, task.Cpp, task.Java} {
		if strings.Contains(answer, string(candidate)) {
			return candidate
		}
	}
	// Bare "c" only counts as its own word; a substring match would hit
	// nearly any sentence.
	for _, tok := range strings.FieldsFunc(answer, func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if tok == "c" {
			return task.C
		}
	}
	return task.Python
}

// completeWithRetry calls complete up to callRetries times, also
// retrying when the backend returns an empty completion.
func (c *Client) completeWithRetry(ctx context.Context, model, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= callRetries; attempt++ {
		text, err := c.complete(ctx, model, prompt)
		if err == nil && strings.TrimSpace(text) == "" {
			err = fmt.Errorf("backend returned an empty completion")
		}
		if err == nil {
			return text, nil
		}
		lastErr = err
		debuglog.Log("orchestrator", "completion attempt failed", "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// complete performs one non-streaming request against the Chat
// Completions endpoint and returns the first choice's content.
func (c *Client) complete(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling backend: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", mapHTTPError(httpResp)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("parsing backend response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("backend returned no choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// mapHTTPError converts a non-2xx backend response into an error,
// extracting the backend's own message when the body carries one.
func mapHTTPError(resp *http.Response) error {
	message := extractErrorMessage(resp.Body)
	if message == "" {
		return fmt.Errorf("backend error (HTTP %d)", resp.StatusCode)
	}
	return fmt.Errorf("backend error (HTTP %d): %s", resp.StatusCode, message)
}

// extractErrorMessage best-effort parses an OpenAI-style error body.
func extractErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var errResp chatErrorResponse
	if err := json.Unmarshal(raw, &errResp); err != nil {
		return ""
	}
	return errResp.Error.Message
}
