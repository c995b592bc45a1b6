package task

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/time/rate"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/env"
)

// CreatePayload is the body sent to a tracker's task creation endpoint.
type CreatePayload struct {
	Title       string `json:"title"`
	ProjectID   *int64 `json:"projectId,omitempty"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
}

// RemoteTask is what we extract from a tracker response. Raw carries the
// full body (credentials redacted) for the responseData column.
type RemoteTask struct {
	ID     string
	Title  string
	Status string
	Raw    []byte
}

// Client talks to the per-action external task trackers. Calls to each
// tracker origin share a rate limiter so a refresh fan-out cannot hammer
// one server.
type Client struct {
	httpClient *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	perOriginRate  rate.Limit
	perOriginBurst int
}

func NewClient() *Client {
	perSecond := env.GetEnvIntOrDefault("TASK_API_RATE_PER_SECOND", 5)
	if perSecond <= 0 {
		perSecond = 5
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: env.GetEnvDurationOrDefault("TASK_API_HTTP_TIMEOUT", 35*time.Second),
		},
		limiters:       make(map[string]*rate.Limiter),
		perOriginRate:  rate.Limit(perSecond),
		perOriginBurst: perSecond * 2,
	}
}

// TrackerOrigin reduces an action's api_url to its scheme://host origin;
// tracker endpoints always hang off the origin, not the configured path.
func TrackerOrigin(apiURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(apiURL))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("action api url must be absolute")
	}
	return u.Scheme + "://" + u.Host, nil
}

func (c *Client) limiter(origin string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[origin]
	if !ok {
		l = rate.NewLimiter(c.perOriginRate, c.perOriginBurst)
		c.limiters[origin] = l
	}
	return l
}

// CreateTask posts a new task to the tracker behind apiURL and returns the
// parsed remote task. The returned RemoteTask has an empty ID when the
// tracker answered successfully but without a task record.
func (c *Client) CreateTask(ctx context.Context, apiURL, apiKey string, payload CreatePayload) (*RemoteTask, error) {
	origin, err := TrackerOrigin(apiURL)
	if err != nil {
		return nil, err
	}
	if err := c.limiter(origin).Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, origin+"/api/bot/tasks", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	return c.do(req)
}

// GetTask fetches the current state of a previously created task.
func (c *Client) GetTask(ctx context.Context, apiURL, apiKey, externalTaskID string) (*RemoteTask, error) {
	origin, err := TrackerOrigin(apiURL)
	if err != nil {
		return nil, err
	}
	if err := c.limiter(origin).Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/api/bot/tasks/"+url.PathEscape(externalTaskID), nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	return c.do(req)
}

// ListTasks fetches every task visible to the action's key, for the
// dashboard pending count.
func (c *Client) ListTasks(ctx context.Context, apiURL, apiKey string) ([]byte, error) {
	origin, err := TrackerOrigin(apiURL)
	if err != nil {
		return nil, err
	}
	if err := c.limiter(origin).Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/api/bot/tasks", nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("task_api_%d", resp.StatusCode)
	}
	return body, nil
}

func (c *Client) do(req *http.Request) (*RemoteTask, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if parsed := gjson.GetBytes(body, "error"); parsed.Exists() {
			msg = parsed.String()
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
	}

	return parseRemoteTask(body), nil
}

// Trackers answer in a few shapes: the task at the top level, nested under
// "task", or under "data.task". Probe in order of specificity.
var taskIDPaths = []string{"task.id", "data.task.id", "data.id", "id"}

func parseRemoteTask(body []byte) *RemoteTask {
	remote := &RemoteTask{Raw: redactSecrets(body)}

	prefix := ""
	for _, path := range taskIDPaths {
		if r := gjson.GetBytes(body, path); r.Exists() {
			remote.ID = r.String()
			prefix = strings.TrimSuffix(path, "id")
			break
		}
	}
	remote.Title = gjson.GetBytes(body, prefix+"title").String()
	remote.Status = gjson.GetBytes(body, prefix+"status").String()
	return remote
}

// Credential-shaped fields occasionally echo back in tracker responses;
// strip them before the body is persisted as responseData.
var redactedPaths = []string{"apiKey", "api_key", "token", "task.apiKey", "task.api_key", "data.task.api_key"}

func redactSecrets(body []byte) []byte {
	if !gjson.ValidBytes(body) {
		return body
	}
	out := body
	for _, path := range redactedPaths {
		if gjson.GetBytes(out, path).Exists() {
			if cleaned, err := sjson.DeleteBytes(out, path); err == nil {
				out = cleaned
			}
		}
	}
	return out
}
