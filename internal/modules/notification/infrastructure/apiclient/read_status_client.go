package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"RxDash/internal/modules/notification/domain/remote"
)

// HTTPError 上游非 2xx 响应
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// TokenSource 每次请求时提供当前会话的 bearer token
type TokenSource interface {
	Token() string
}

type ReadStatusHTTPClient struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

func NewReadStatusHTTPClient(baseURL string, tokens TokenSource, httpClient *http.Client) *ReadStatusHTTPClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:5000/api/v1"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ReadStatusHTTPClient{
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: httpClient,
	}
}

func (c *ReadStatusHTTPClient) MarkOneRead(ctx context.Context, serverID string) remote.Result {
	serverID = strings.TrimSpace(serverID)
	if serverID == "" {
		return remote.Permanent(0, errors.New("notification id is empty"))
	}
	return c.do(ctx, http.MethodPatch, "/notifications/"+url.PathEscape(serverID)+"/read")
}

func (c *ReadStatusHTTPClient) MarkAllRead(ctx context.Context) remote.Result {
	return c.do(ctx, http.MethodPatch, "/notifications/read-all")
}

// envelope 上游统一响应：{"success": bool, "message": "..."}
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

func (c *ReadStatusHTTPClient) do(ctx context.Context, method, path string) remote.Result {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return remote.Permanent(0, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if tok := strings.TrimSpace(c.tokens.Token()); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return remote.Transient(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return remote.Transient(resp.StatusCode, err)
	}

	var env envelope
	var decodeErr error
	if len(body) > 0 {
		decodeErr = json.Unmarshal(body, &env)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Message: env.Message}
		if isTransientStatus(resp.StatusCode) {
			return remote.Transient(resp.StatusCode, httpErr)
		}
		return remote.Permanent(resp.StatusCode, httpErr)
	}
	// 2xx 但响应体不是 JSON 信封（如代理登录页），视为上游没有处理
	if decodeErr != nil {
		return remote.Permanent(resp.StatusCode, &HTTPError{StatusCode: resp.StatusCode, Message: "undecodable response: " + decodeErr.Error()})
	}
	if env.Success != nil && !*env.Success {
		return remote.Permanent(resp.StatusCode, &HTTPError{StatusCode: resp.StatusCode, Message: env.Message})
	}
	return remote.Succeeded(resp.StatusCode)
}

func isTransientStatus(status int) bool {
	return status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}
