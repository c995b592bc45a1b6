package task

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/internal/store"
)

type fakeStore struct {
	mu sync.Mutex

	actions map[string]*store.Action
	tasks   []store.ChatTask
	active  []store.ActiveTask

	upserted  []store.ChatTask
	updates   []remoteUpdate
	upsertErr error
}

type remoteUpdate struct {
	taskID    int64
	status    string
	title     string
	completed bool
}

func (f *fakeStore) GetAction(_ context.Context, actionID string) (*store.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.actions[actionID]; ok {
		return a, nil
	}
	return nil, nil
}

func (f *fakeStore) UpsertTask(_ context.Context, t store.ChatTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, t)
	return nil
}

func (f *fakeStore) ListTasks(_ context.Context, chatID string) ([]store.ChatTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.ChatTask, 0, len(f.tasks))
	for _, t := range f.tasks {
		if t.ChatID == chatID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveTasks(_ context.Context, chatID string) ([]store.ActiveTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.ActiveTask, 0, len(f.active))
	for _, t := range f.active {
		if t.ChatID == chatID && !IsTerminal(t.Status) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) ApplyRemoteUpdate(_ context.Context, taskID int64, status, title string, _ []byte, completed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, remoteUpdate{taskID: taskID, status: status, title: title, completed: completed})
	apply := func(t *store.ChatTask) {
		t.Status = status
		t.Title = title
		if completed {
			now := time.Now()
			t.CompletedAt = &now
		} else {
			t.CompletedAt = nil
		}
	}
	for i := range f.tasks {
		if f.tasks[i].ID == taskID {
			apply(&f.tasks[i])
		}
	}
	for i := range f.active {
		if f.active[i].ID == taskID {
			apply(&f.active[i].ChatTask)
		}
	}
	return nil
}

func trackerResponding(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInvokePersistsTrackedTask(t *testing.T) {
	srv := trackerResponding(t, `{"task":{"id":42,"title":"Follow up","status":"todo"}}`)

	fs := &fakeStore{}
	w := NewWorkflow(fs, NewClient())

	action := &store.Action{ID: "a-1", Name: "Tracker", APIURL: srv.URL + "/hook", APIKey: "k"}
	out := w.Invoke(context.Background(), action, "follow up", nil, ChatRef{ID: "123@c.us", Name: "Dana"})

	assert.Equal(t, OutcomeDone, out.Status)
	require.NotNil(t, out.Task)
	require.Len(t, fs.upserted, 1)

	saved := fs.upserted[0]
	assert.Equal(t, "123@c.us", saved.ChatID)
	assert.Equal(t, "a-1", saved.ActionID)
	assert.Equal(t, "Tracker", saved.ActionName)
	assert.Equal(t, "42", saved.ExternalTaskID)
	assert.Equal(t, "Follow up", saved.Title)
	assert.Equal(t, StatusTodo, saved.Status)
	assert.Equal(t, "follow up", saved.RequestSummary)
}

func TestInvokeWithoutTaskReturnsAnswer(t *testing.T) {
	srv := trackerResponding(t, `{"message":"noted, nothing to schedule"}`)

	fs := &fakeStore{}
	w := NewWorkflow(fs, NewClient())

	action := &store.Action{ID: "a-1", Name: "Tracker", APIURL: srv.URL}
	out := w.Invoke(context.Background(), action, "just a note", nil, ChatRef{ID: "123@c.us"})

	assert.Equal(t, OutcomeDone, out.Status)
	assert.Nil(t, out.Task)
	assert.Contains(t, out.Answer, "nothing to schedule")
	assert.Empty(t, fs.upserted, "no task id means nothing is persisted")
}

func TestInvokeNeverReturnsAGoError(t *testing.T) {
	// Tracker rejects the call: the outcome carries the failure instead of
	// an error escaping to the caller.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"tracker down"}`))
	}))
	defer srv.Close()

	fs := &fakeStore{}
	w := NewWorkflow(fs, NewClient())

	out := w.Invoke(context.Background(), &store.Action{ID: "a-1", Name: "Tracker", APIURL: srv.URL}, "note", nil, ChatRef{ID: "1@c.us"})
	assert.Equal(t, OutcomeError, out.Status)
	assert.Contains(t, out.Answer, "tracker down")

	// Same for an unusable api url.
	out = w.Invoke(context.Background(), &store.Action{ID: "a-1", Name: "Tracker", APIURL: "/relative"}, "note", nil, ChatRef{ID: "1@c.us"})
	assert.Equal(t, OutcomeError, out.Status)
	assert.NotEmpty(t, out.Answer)
}

func TestInvokePersistFailureBecomesErrorOutcome(t *testing.T) {
	srv := trackerResponding(t, `{"task":{"id":"t-9","title":"X","status":"todo"}}`)

	fs := &fakeStore{upsertErr: errors.New("db gone")}
	w := NewWorkflow(fs, NewClient())

	out := w.Invoke(context.Background(), &store.Action{ID: "a-1", Name: "Tracker", APIURL: srv.URL}, "note", nil, ChatRef{ID: "1@c.us"})
	assert.Equal(t, OutcomeError, out.Status)
	assert.Contains(t, out.Answer, "db gone")
}

func TestRefreshAppliesRemoteState(t *testing.T) {
	srv := trackerResponding(t, `{"task":{"id":"t-1","title":"Follow up","status":"completed"}}`)

	fs := &fakeStore{
		active: []store.ActiveTask{{
			ChatTask: store.ChatTask{ID: 11, ChatID: "123@c.us", ExternalTaskID: "t-1", Title: "Follow up", Status: StatusInProgress},
			APIURL:   srv.URL,
			APIKey:   "k",
		}},
		tasks: []store.ChatTask{{ID: 11, ChatID: "123@c.us", Status: StatusDone}},
	}
	w := NewWorkflow(fs, NewClient())

	tasks, err := w.Refresh(context.Background(), "123@c.us")
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.Len(t, fs.updates, 1)
	upd := fs.updates[0]
	assert.Equal(t, int64(11), upd.taskID)
	assert.Equal(t, StatusDone, upd.status, "tracker's completed normalizes to done")
	assert.True(t, upd.completed)
}

func TestRefreshTwiceIsIdempotent(t *testing.T) {
	var lookups int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&lookups, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"task":{"id":"t-1","title":"Follow up","status":"done"}}`))
	}))
	defer srv.Close()

	fs := &fakeStore{
		active: []store.ActiveTask{{
			ChatTask: store.ChatTask{ID: 11, ChatID: "123@c.us", ExternalTaskID: "t-1", Title: "Follow up", Status: StatusInProgress},
			APIURL:   srv.URL,
		}},
		tasks: []store.ChatTask{{ID: 11, ChatID: "123@c.us", ExternalTaskID: "t-1", Title: "Follow up", Status: StatusInProgress}},
	}
	w := NewWorkflow(fs, NewClient())

	first, err := w.Refresh(context.Background(), "123@c.us")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, StatusDone, first[0].Status)
	require.NotNil(t, first[0].CompletedAt)

	second, err := w.Refresh(context.Background(), "123@c.us")
	require.NoError(t, err)
	assert.Equal(t, first, second, "a second pass with no remote change rewrites nothing")

	// The task went terminal on the first pass, so the second pass has
	// nothing left to look up.
	assert.Equal(t, int64(1), atomic.LoadInt64(&lookups))
	assert.Len(t, fs.updates, 1)
}

func TestRefreshKeepsCachedStateOnLookupFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	fs := &fakeStore{
		active: []store.ActiveTask{{
			ChatTask: store.ChatTask{ID: 11, ChatID: "123@c.us", ExternalTaskID: "t-1", Status: StatusTodo},
			APIURL:   srv.URL,
		}},
		tasks: []store.ChatTask{{ID: 11, ChatID: "123@c.us", Status: StatusTodo}},
	}
	w := NewWorkflow(fs, NewClient())

	tasks, err := w.Refresh(context.Background(), "123@c.us")
	require.NoError(t, err, "a failed lookup is not a refresh failure")
	require.Len(t, tasks, 1)
	assert.Equal(t, StatusTodo, tasks[0].Status)
	assert.Empty(t, fs.updates)
}

func TestRefreshSkipsTasksWithoutTracker(t *testing.T) {
	fs := &fakeStore{
		active: []store.ActiveTask{{
			ChatTask: store.ChatTask{ID: 11, ChatID: "123@c.us", ExternalTaskID: "t-1", Status: StatusTodo},
			APIURL:   "",
		}},
	}
	w := NewWorkflow(fs, NewClient())

	_, err := w.Refresh(context.Background(), "123@c.us")
	require.NoError(t, err)
	assert.Empty(t, fs.updates, "action with no api url is left alone")
}

func TestListReadsCacheOnly(t *testing.T) {
	fs := &fakeStore{tasks: []store.ChatTask{
		{ID: 1, ChatID: "123@c.us", Status: StatusTodo},
		{ID: 2, ChatID: "other@c.us", Status: StatusDone},
	}}
	w := NewWorkflow(fs, NewClient())

	tasks, err := w.List(context.Background(), "123@c.us")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(1), tasks[0].ID)
}
