package task

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/internal/store"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/env"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/log"
)

// Store is the slice of the persistence layer the workflow needs.
type Store interface {
	GetAction(ctx context.Context, actionID string) (*store.Action, error)
	UpsertTask(ctx context.Context, t store.ChatTask) error
	ListTasks(ctx context.Context, chatID string) ([]store.ChatTask, error)
	ActiveTasks(ctx context.Context, chatID string) ([]store.ActiveTask, error)
	ApplyRemoteUpdate(ctx context.Context, taskID int64, status, title string, responseData []byte, completed bool) error
}

// Outcome statuses. Invoke never fails with a Go error; every path lands on
// one of these so the console always has something to render.
const (
	OutcomeDone  = "done"
	OutcomeError = "error"
)

// Outcome is the terminal result of invoking an action. Task is non-nil
// only when the tracker returned a task id and the record was persisted.
type Outcome struct {
	Status string          `json:"status"`
	Answer string          `json:"answer"`
	Task   *store.ChatTask `json:"task,omitempty"`
}

// Workflow implements action invocation and chat task tracking.
type Workflow struct {
	store  Store
	client *Client

	refreshGroup   singleflight.Group
	lookupTimeout  time.Duration
	createTimeout  time.Duration
	refreshWorkers int
}

func NewWorkflow(s Store, c *Client) *Workflow {
	workers := env.GetEnvIntOrDefault("TASK_REFRESH_CONCURRENCY", 4)
	if workers <= 0 {
		workers = 1
	}
	return &Workflow{
		store:          s,
		client:         c,
		lookupTimeout:  env.GetEnvDurationOrDefault("TASK_LOOKUP_TIMEOUT", 10*time.Second),
		createTimeout:  env.GetEnvDurationOrDefault("TASK_CREATE_TIMEOUT", 30*time.Second),
		refreshWorkers: workers,
	}
}

// Invoke triggers the action's tracker for the given chat. The returned
// outcome is terminal: a tracker task reference, the tracker's raw answer
// when it created nothing, or the failure message.
func (w *Workflow) Invoke(ctx context.Context, action *store.Action, note string, messages []ContextMessage, chat ChatRef) Outcome {
	summary := RequestSummary(note, messages)
	payload := CreatePayload{
		Title:       TitleFromNote(note, action.Name),
		ProjectID:   action.ProjectID,
		Description: Description(summary, chat),
		Status:      StatusTodo,
		Priority:    "medium",
	}

	callCtx, cancel := context.WithTimeout(ctx, w.createTimeout)
	defer cancel()

	remote, err := w.client.CreateTask(callCtx, action.APIURL, action.APIKey, payload)
	if err != nil {
		log.TaskOp(nil, "Invoke", chat.ID).WithError(err).Warn("Action invocation failed")
		return Outcome{Status: OutcomeError, Answer: err.Error()}
	}

	if remote.ID == "" {
		// Tracker answered without creating a task; surface its text as the
		// terminal answer and persist nothing.
		answer := strings.TrimSpace(string(remote.Raw))
		if answer == "" {
			answer = "action completed"
		}
		return Outcome{Status: OutcomeDone, Answer: answer}
	}

	status := NormalizeStatus(remote.Status)
	title := remote.Title
	if title == "" {
		title = payload.Title
	}

	t := store.ChatTask{
		ChatID:         chat.ID,
		ActionID:       action.ID,
		ActionName:     action.Name,
		ExternalTaskID: remote.ID,
		Title:          title,
		Status:         status,
		RequestSummary: summary,
		ResponseData:   remote.Raw,
	}
	if err := w.store.UpsertTask(ctx, t); err != nil {
		log.TaskOp(nil, "Invoke", chat.ID).WithError(err).Error("Failed to persist chat task")
		return Outcome{Status: OutcomeError, Answer: err.Error()}
	}

	log.TaskOp(nil, "Invoke", chat.ID).
		WithField("action_id", action.ID).
		WithField("external_task_id", remote.ID).
		Info("Chat task created")
	return Outcome{Status: OutcomeDone, Answer: title, Task: &t}
}

// Refresh re-reads every non-terminal task of a chat from its tracker and
// returns the full refreshed list. Per-task failures leave the row as it
// was; a stale status beats an error banner for a background poll.
// Concurrent refreshes of the same chat share one pass.
func (w *Workflow) Refresh(ctx context.Context, chatID string) ([]store.ChatTask, error) {
	result, err, _ := w.refreshGroup.Do(chatID, func() (interface{}, error) {
		if err := w.refreshPass(ctx, chatID); err != nil {
			return nil, err
		}
		return w.store.ListTasks(ctx, chatID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]store.ChatTask), nil
}

func (w *Workflow) refreshPass(ctx context.Context, chatID string) error {
	active, err := w.store.ActiveTasks(ctx, chatID)
	if err != nil {
		return err
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(w.refreshWorkers)
	for _, t := range active {
		if t.APIURL == "" {
			continue
		}
		t := t
		g.Go(func() error {
			w.refreshOne(groupCtx, t)
			return nil
		})
	}
	return g.Wait()
}

// refreshOne updates a single task row from its tracker, exactly once per
// pass. Lookup failures are swallowed by design.
func (w *Workflow) refreshOne(ctx context.Context, t store.ActiveTask) {
	callCtx, cancel := context.WithTimeout(ctx, w.lookupTimeout)
	defer cancel()

	remote, err := w.client.GetTask(callCtx, t.APIURL, t.APIKey, t.ExternalTaskID)
	if err != nil {
		log.TaskOp(nil, "Refresh", t.ChatID).
			WithField("external_task_id", t.ExternalTaskID).
			WithError(err).Debug("Task lookup failed; keeping cached state")
		return
	}

	status := t.Status
	if remote.Status != "" {
		status = NormalizeStatus(remote.Status)
	}
	title := t.Title
	if remote.Title != "" {
		title = remote.Title
	}

	if err := w.store.ApplyRemoteUpdate(ctx, t.ID, status, title, remote.Raw, IsCompleted(status)); err != nil {
		log.TaskOp(nil, "Refresh", t.ChatID).
			WithField("external_task_id", t.ExternalTaskID).
			WithError(err).Error("Failed to apply remote task update")
	}
}

// List returns the cached tasks for a chat without touching any tracker,
// for fast first render before a refresh completes.
func (w *Workflow) List(ctx context.Context, chatID string) ([]store.ChatTask, error) {
	return w.store.ListTasks(ctx, chatID)
}
