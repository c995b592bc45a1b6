package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// ChatTask is the local record of a task created on an external tracker in
// response to invoking an action from a chat. Uniquely identified by
// (chat_id, external_task_id).
type ChatTask struct {
	ID             int64           `json:"id"`
	ChatID         string          `json:"chatId"`
	ActionID       string          `json:"actionId"`
	ActionName     string          `json:"actionName"`
	ExternalTaskID string          `json:"externalTaskId"`
	Title          string          `json:"title"`
	Status         string          `json:"status"`
	RequestSummary string          `json:"requestSummary"`
	Response       string          `json:"response"`
	ResponseData   json.RawMessage `json:"responseData,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	CompletedAt    *time.Time      `json:"completedAt"`
}

// ActiveTask pairs a non-terminal task with its owning action's tracker
// credentials for the refresh pass.
type ActiveTask struct {
	ChatTask
	APIURL string
	APIKey string
}

// Statuses beyond polling. Status normalization in the workflow maps
// external variants onto this set before anything is written.
const terminalStatusSet = `('done', 'completed', 'cancelled')`

func scanTask(rows *sql.Rows) (ChatTask, error) {
	var t ChatTask
	var responseData []byte
	err := rows.Scan(&t.ID, &t.ChatID, &t.ActionID, &t.ActionName, &t.ExternalTaskID,
		&t.Title, &t.Status, &t.RequestSummary, &t.Response, &responseData,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)
	if err != nil {
		return ChatTask{}, err
	}
	if len(responseData) > 0 {
		t.ResponseData = json.RawMessage(responseData)
	}
	return t, nil
}

// UpsertTask inserts or fully overwrites the record keyed by
// (chat_id, external_task_id). Last write wins; response_data is retained
// when the new write carries none.
func (s *Store) UpsertTask(ctx context.Context, t ChatTask) error {
	var responseData any
	if len(t.ResponseData) > 0 {
		responseData = string(t.ResponseData)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_tasks (chat_id, action_id, action_name, external_task_id, title, status, request_summary, response, response_data, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9,
			CASE WHEN $6 IN ('done', 'completed') THEN NOW() ELSE NULL END)
		ON CONFLICT (chat_id, external_task_id) DO UPDATE SET
			status = EXCLUDED.status,
			title = EXCLUDED.title,
			response = EXCLUDED.response,
			response_data = COALESCE(EXCLUDED.response_data, chat_tasks.response_data),
			completed_at = EXCLUDED.completed_at,
			updated_at = NOW()
	`, t.ChatID, t.ActionID, t.ActionName, t.ExternalTaskID, t.Title, t.Status, t.RequestSummary, t.Response, responseData)
	return err
}

func (s *Store) ListTasks(ctx context.Context, chatID string) ([]ChatTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, action_id, action_name, external_task_id, title, status, request_summary, response, response_data, created_at, updated_at, completed_at
		FROM chat_tasks
		WHERE chat_id = $1
		ORDER BY created_at ASC
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []ChatTask{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ActiveTasks returns the chat's tasks still subject to polling, joined with
// the owning action's tracker URL and key. Tasks whose action was deleted
// come back with empty credentials and are skipped by the caller.
func (s *Store) ActiveTasks(ctx context.Context, chatID string) ([]ActiveTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ct.id, ct.chat_id, ct.action_id, ct.action_name, ct.external_task_id, ct.title, ct.status, ct.request_summary, ct.response, ct.response_data, ct.created_at, ct.updated_at, ct.completed_at,
			COALESCE(a.api_url, ''), COALESCE(a.api_key, '')
		FROM chat_tasks ct
		LEFT JOIN actions a ON ct.action_id = a.id
		WHERE ct.chat_id = $1 AND ct.status NOT IN `+terminalStatusSet, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []ActiveTask
	for rows.Next() {
		var t ActiveTask
		var responseData []byte
		err := rows.Scan(&t.ID, &t.ChatID, &t.ActionID, &t.ActionName, &t.ExternalTaskID,
			&t.Title, &t.Status, &t.RequestSummary, &t.Response, &responseData,
			&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt, &t.APIURL, &t.APIKey)
		if err != nil {
			return nil, err
		}
		if len(responseData) > 0 {
			t.ResponseData = json.RawMessage(responseData)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ApplyRemoteUpdate overwrites a task row from the latest remote read.
// completed_at is kept consistent with the status in the same statement so
// a refresh pass never leaves the two out of sync.
func (s *Store) ApplyRemoteUpdate(ctx context.Context, taskID int64, status, title string, responseData []byte, completed bool) error {
	var data any
	if len(responseData) > 0 {
		data = string(responseData)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE chat_tasks
		SET status = $1, title = $2, response_data = COALESCE($3::jsonb, response_data), updated_at = NOW(),
			completed_at = CASE WHEN $4::boolean THEN NOW() ELSE NULL END
		WHERE id = $5
	`, status, title, data, completed, taskID)
	return err
}

// ChatsWithActiveTasks lists the distinct chats still holding tasks that
// need a background refresh.
func (s *Store) ChatsWithActiveTasks(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT chat_id FROM chat_tasks WHERE status NOT IN `+terminalStatusSet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []string
	for rows.Next() {
		var chatID string
		if err := rows.Scan(&chatID); err != nil {
			return nil, err
		}
		chats = append(chats, chatID)
	}
	return chats, rows.Err()
}

// PruneTerminal deletes terminal tasks whose last update is older than the
// retention cutoff.
func (s *Store) PruneTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_tasks WHERE status IN `+terminalStatusSet+` AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
