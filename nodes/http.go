package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/workflow"
)

// TypeHTTPRequest is the registered type tag for HTTP request nodes.
const TypeHTTPRequest = "http-request"

// DefaultHTTPTimeout bounds a request when the settings give no timeout.
const DefaultHTTPTimeout = 30 * time.Second

// maxResponseBytes caps how much of a response body is read into the run.
const maxResponseBytes = 10 << 20

// HTTPNode performs one HTTP request per execution.
//
// Settings:
//   - url: string, required
//   - method: string (default GET)
//   - headers: map of header name to string value
//   - query: map of query parameter to string value
//   - body: any; maps and slices are sent as JSON, strings as-is
//   - timeout: number, seconds (default 30)
//   - failOnError: bool; when true, a status >= 400 fails the node
type HTTPNode struct {
	workflow.BaseNode
	client *http.Client
}

// NewHTTPNode creates an HTTP request node with a default client.
func NewHTTPNode(id string, settings map[string]any, logger *zap.Logger) *HTTPNode {
	return &HTTPNode{
		BaseNode: workflow.NewBaseNode(id, stringSetting(settings, "name", id), TypeHTTPRequest, settings, logger),
		client:   &http.Client{},
	}
}

// WithClient replaces the HTTP client, mainly for tests and custom
// transports.
func (n *HTTPNode) WithClient(client *http.Client) *HTTPNode {
	n.client = client
	return n
}

func (n *HTTPNode) Execute(ctx context.Context, _ map[string]any, _ *workflow.ExecutionContext) workflow.ExecutionResult {
	settings := n.ResolvedSettings()
	if settings == nil {
		settings = n.RawSettings()
	}

	rawURL := stringSetting(settings, "url", "")
	if rawURL == "" {
		return workflow.NewErrorResult(fmt.Errorf("http node %s: url is required", n.ID()))
	}
	method := strings.ToUpper(stringSetting(settings, "method", http.MethodGet))

	target, err := url.Parse(rawURL)
	if err != nil {
		return workflow.NewErrorResult(fmt.Errorf("http node %s: invalid url %q: %w", n.ID(), rawURL, err))
	}
	if query := mapSetting(settings, "query"); query != nil {
		values := target.Query()
		for k, v := range query {
			values.Set(k, fmt.Sprintf("%v", v))
		}
		target.RawQuery = values.Encode()
	}

	body, contentType, err := encodeBody(settings["body"])
	if err != nil {
		return workflow.NewErrorResult(fmt.Errorf("http node %s: encode body: %w", n.ID(), err))
	}

	timeout := time.Duration(floatSetting(settings, "timeout", 0) * float64(time.Second))
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, target.String(), body)
	if err != nil {
		return workflow.NewErrorResult(fmt.Errorf("http node %s: build request: %w", n.ID(), err))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range mapSetting(settings, "headers") {
		req.Header.Set(k, fmt.Sprintf("%v", v))
	}

	start := time.Now()
	resp, err := n.client.Do(req)
	if err != nil {
		return workflow.NewErrorResult(fmt.Errorf("http node %s: %w", n.ID(), err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return workflow.NewErrorResult(fmt.Errorf("http node %s: read response: %w", n.ID(), err))
	}

	// JSON responses become structured data addressable by expressions;
	// everything else stays a string.
	var parsed any
	if json.Unmarshal(raw, &parsed) != nil {
		parsed = string(raw)
	}

	headers := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	n.Logger().Debug("http request completed",
		zap.String("node_id", n.ID()),
		zap.String("method", method),
		zap.String("url", target.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if boolSetting(settings, "failOnError", false) && resp.StatusCode >= 400 {
		return workflow.NewErrorResult(fmt.Errorf("http node %s: %s %s returned status %d",
			n.ID(), method, target.String(), resp.StatusCode))
	}

	return workflow.NewResult(map[string]any{
		"status":  float64(resp.StatusCode),
		"headers": headers,
		"body":    parsed,
		"url":     target.String(),
	})
}

// encodeBody prepares the request body. Structured values go out as JSON,
// strings verbatim.
func encodeBody(body any) (io.Reader, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		if v == "" {
			return nil, "", nil
		}
		return strings.NewReader(v), "", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}
