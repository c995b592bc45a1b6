package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Action is an operator-configured webhook pointing at an external task
// tracker, scoped to either group or direct chats.
type Action struct {
	ID          string    `json:"id"`
	Type        string    `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	APIURL      string    `json:"apiUrl"`
	APIKey      string    `json:"apiKey"`
	APIDocURL   string    `json:"apiDocUrl"`
	ProjectID   *int64    `json:"projectId,omitempty"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

func scanAction(row interface{ Scan(...any) error }) (Action, error) {
	var a Action
	var apiURL sql.NullString
	err := row.Scan(&a.ID, &a.Type, &a.Name, &a.Description, &apiURL, &a.APIKey, &a.APIDocURL, &a.ProjectID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Action{}, err
	}
	if apiURL.Valid {
		a.APIURL = apiURL.String
	}
	return a, nil
}

func (s *Store) ListActions(ctx context.Context, actionType string) ([]Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, name, description, api_url, api_key, api_doc_url, project_id, created_at, updated_at
		FROM actions
		WHERE type = $1
		ORDER BY created_at
	`, actionType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	actions := []Action{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func (s *Store) GetAction(ctx context.Context, actionID string) (*Action, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, name, description, api_url, api_key, api_doc_url, project_id, created_at, updated_at
		FROM actions
		WHERE id = $1
	`, actionID)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) UpsertAction(ctx context.Context, a Action) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (id, type, name, description, api_url, api_key, api_doc_url, project_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			api_url = EXCLUDED.api_url,
			api_key = EXCLUDED.api_key,
			api_doc_url = EXCLUDED.api_doc_url,
			project_id = EXCLUDED.project_id,
			updated_at = NOW()
	`, a.ID, a.Type, a.Name, a.Description, a.APIURL, a.APIKey, a.APIDocURL, a.ProjectID)
	return err
}

func (s *Store) DeleteAction(ctx context.Context, actionType, actionID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM actions WHERE id = $1 AND type = $2
	`, actionID, actionType)
	return err
}

// LatestConfiguredAction returns the most recently touched action that has
// a tracker URL, used as the dashboard summary source.
func (s *Store) LatestConfiguredAction(ctx context.Context) (*Action, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, name, description, api_url, api_key, api_doc_url, project_id, created_at, updated_at
		FROM actions
		WHERE api_url IS NOT NULL AND api_url <> ''
		ORDER BY updated_at DESC NULLS LAST, created_at DESC
		LIMIT 1
	`)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
