// Package executor submits code to the external execution service and
// shepherds submissions to a terminal result.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/collab-code-share/backend/internal/model"
)

// languageIDs maps logical language tags to the backend's numeric ids.
var languageIDs = map[string]int{
	"javascript": 63, // Node.js
	"python":     71, // Python 3
	"java":       62, // Java (OpenJDK)
	"cpp":        54, // C++ (GCC)
}

// fallbackLanguageID is used for unrecognized tags; unknown languages
// are never rejected outright.
var fallbackLanguageID = languageIDs[model.DefaultLanguage]

// LanguageID resolves a logical language tag to a backend id.
func LanguageID(tag string) int {
	if id, ok := languageIDs[tag]; ok {
		return id
	}
	return fallbackLanguageID
}

// Judge0Client talks to a judge0-compatible execution service. It
// supports both RapidAPI-hosted and self-hosted deployments, which
// authenticate with different header schemes.
type Judge0Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewJudge0Client creates a client for the service at baseURL. An
// empty baseURL produces an unconfigured client that fails fast.
func NewJudge0Client(baseURL, apiKey string) *Judge0Client {
	return &Judge0Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether a backend endpoint is set.
func (c *Judge0Client) Configured() bool {
	return c.baseURL != ""
}

type submitRequest struct {
	LanguageID int    `json:"language_id"`
	SourceCode string `json:"source_code"`
	Stdin      string `json:"stdin"`
}

type submitResponse struct {
	Token string `json:"token"`
}

// submissionStatus mirrors the backend's status object.
type submissionStatus struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// submission mirrors the backend's status-endpoint response. The
// output fields come back as JSON null until populated.
type submission struct {
	Stdout        *string          `json:"stdout"`
	Stderr        *string          `json:"stderr"`
	CompileOutput *string          `json:"compile_output"`
	Time          *string          `json:"time"`
	Memory        *int             `json:"memory"`
	Status        submissionStatus `json:"status"`
}

// headers builds the auth headers for the deployment flavor. RapidAPI
// hosts require a key; self-hosted deployments take an optional token.
func (c *Judge0Client) headers() (http.Header, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")

	u, err := url.Parse(c.baseURL)
	if err == nil && strings.HasSuffix(u.Host, "rapidapi.com") {
		if c.apiKey == "" {
			return nil, fmt.Errorf("%w: RapidAPI key not set", model.ErrProviderMisconfigured)
		}
		h.Set("X-RapidAPI-Key", c.apiKey)
		h.Set("X-RapidAPI-Host", u.Host)
		return h, nil
	}
	if c.apiKey != "" {
		h.Set("X-Auth-Token", c.apiKey)
	}
	return h, nil
}

// Submit queues a run on the backend and returns its token.
func (c *Judge0Client) Submit(ctx context.Context, req model.ExecutionRequest) (string, error) {
	headers, err := c.headers()
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(submitRequest{
		LanguageID: LanguageID(req.Language),
		SourceCode: req.Code,
		Stdin:      req.Stdin,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode submission: %w", err)
	}

	submitURL := c.baseURL + "/submissions?base64_encoded=false&wait=false"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build submit request: %w", err)
	}
	httpReq.Header = headers

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to reach execution backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("execution backend rejected submission: status %d", resp.StatusCode)
	}

	var parsed submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode submit response: %w", err)
	}
	if parsed.Token == "" {
		return "", model.ErrSubmissionRejected
	}
	return parsed.Token, nil
}

// Fetch reads the current state of an in-flight submission.
func (c *Judge0Client) Fetch(ctx context.Context, token string) (*submission, error) {
	headers, err := c.headers()
	if err != nil {
		return nil, err
	}

	fetchURL := c.baseURL + "/submissions/" + url.PathEscape(token) + "?base64_encoded=false"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}
	httpReq.Header = headers

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach execution backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("execution backend returned status %d", resp.StatusCode)
	}

	var parsed submission
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode submission: %w", err)
	}
	return &parsed, nil
}

// result converts a terminal submission into an ExecutionResult,
// coalescing the backend's null output fields to empty values.
func (s *submission) result() *model.ExecutionResult {
	res := &model.ExecutionResult{
		Status: model.ExecutionStatus{
			ID:          s.Status.ID,
			Description: s.Status.Description,
		},
	}
	if s.Stdout != nil {
		res.Stdout = *s.Stdout
	}
	if s.Stderr != nil {
		res.Stderr = *s.Stderr
	}
	if s.CompileOutput != nil {
		res.CompileOutput = *s.CompileOutput
	}
	if s.Time != nil {
		res.Time = *s.Time
	}
	if s.Memory != nil {
		res.Memory = *s.Memory
	}
	return res
}
