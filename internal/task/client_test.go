package task

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestTrackerOrigin(t *testing.T) {
	t.Parallel()

	got, err := TrackerOrigin("https://tracker.example.com/api/v1/webhook?x=1")
	require.NoError(t, err)
	assert.Equal(t, "https://tracker.example.com", got)

	_, err = TrackerOrigin("not a url at all://")
	assert.Error(t, err)

	_, err = TrackerOrigin("/relative/path")
	assert.ErrorContains(t, err, "absolute")
}

func TestParseRemoteTaskShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		id   string
	}{
		{"nested under task", `{"task":{"id":"t-1","title":"A","status":"todo"}}`, "t-1"},
		{"nested under data.task", `{"data":{"task":{"id":"t-2","title":"B","status":"open"}}}`, "t-2"},
		{"nested under data", `{"data":{"id":"t-3","title":"C","status":"done"}}`, "t-3"},
		{"top level", `{"id":"t-4","title":"D","status":"active"}`, "t-4"},
		{"numeric id coerced", `{"task":{"id":42,"title":"E","status":"todo"}}`, "42"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			remote := parseRemoteTask([]byte(tc.body))
			assert.Equal(t, tc.id, remote.ID)
			assert.NotEmpty(t, remote.Title)
			assert.NotEmpty(t, remote.Status)
		})
	}
}

func TestParseRemoteTaskNoID(t *testing.T) {
	t.Parallel()

	remote := parseRemoteTask([]byte(`{"message":"nothing to do"}`))
	assert.Empty(t, remote.ID)
	assert.JSONEq(t, `{"message":"nothing to do"}`, string(remote.Raw))
}

func TestRedactSecrets(t *testing.T) {
	t.Parallel()

	out := redactSecrets([]byte(`{"task":{"id":"t-1","api_key":"sekret"},"token":"abc","title":"ok"}`))
	assert.False(t, gjson.GetBytes(out, "task.api_key").Exists())
	assert.False(t, gjson.GetBytes(out, "token").Exists())
	assert.Equal(t, "ok", gjson.GetBytes(out, "title").String())

	// Non-JSON bodies pass through untouched.
	assert.Equal(t, []byte("plain text"), redactSecrets([]byte("plain text")))
}

func TestCreateTask(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"task":{"id":101,"title":"Follow up","status":"todo"}}`))
	}))
	defer srv.Close()

	c := NewClient()
	pid := int64(7)
	remote, err := c.CreateTask(context.Background(), srv.URL+"/configured/path", "key-1", CreatePayload{
		Title:       "Follow up",
		ProjectID:   &pid,
		Description: "follow up",
		Status:      StatusTodo,
		Priority:    "medium",
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/bot/tasks", gotPath, "create always targets the origin endpoint")
	assert.Equal(t, "Bearer key-1", gotAuth)
	assert.Equal(t, "Follow up", gjson.GetBytes(gotBody, "title").String())
	assert.Equal(t, int64(7), gjson.GetBytes(gotBody, "projectId").Int())
	assert.Equal(t, "medium", gjson.GetBytes(gotBody, "priority").String())

	assert.Equal(t, "101", remote.ID)
	assert.Equal(t, "Follow up", remote.Title)
	assert.Equal(t, "todo", remote.Status)
}

func TestGetTaskEscapesID(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`{"task":{"id":"a/b","status":"done"}}`))
	}))
	defer srv.Close()

	c := NewClient()
	remote, err := c.GetTask(context.Background(), srv.URL, "", "a/b")
	require.NoError(t, err)
	assert.Equal(t, "/api/bot/tasks/a%2Fb", gotPath)
	assert.Equal(t, "done", remote.Status)
}

func TestClientSurfacesTrackerErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	c := NewClient()
	_, err := c.CreateTask(context.Background(), srv.URL, "bad", CreatePayload{Title: "x"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "403")
	assert.ErrorContains(t, err, "invalid api key")

	_, err = c.GetTask(context.Background(), srv.URL, "bad", "t-1")
	assert.Error(t, err)
}

func TestListTasks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bot/tasks", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{"tasks":[{"id":"1","status":"todo"},{"id":"2","status":"done"}]}`))
	}))
	defer srv.Close()

	c := NewClient()
	body, err := c.ListTasks(context.Background(), srv.URL+"/whatever", "k")
	require.NoError(t, err)
	assert.Equal(t, int64(2), gjson.GetBytes(body, "tasks.#").Int())
}
