package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AssistantConfig struct {
	ID                   string
	ProjectID            string
	Model                string
	MaxTokens            int
	SystemPrompt         string
	DeploymentProjectRef string
	TotalMessages        int
	TotalActions         int
	LastInteractionAt    time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type ProvisionAssistantInput struct {
	ProjectID            string
	Model                string
	MaxTokens            int
	SystemPrompt         string
	DeploymentProjectRef string
}

type RecordInteractionInput struct {
	ProjectID string
	Messages  int
	Actions   int
	At        time.Time
}

const assistantColumns = `id, project_id, model, max_tokens, system_prompt, COALESCE(deployment_project_ref, ''),
	total_messages, total_actions, last_interaction_unix, created_at_unix, updated_at_unix`

// ProvisionAssistant creates the assistant configuration of a ready project. It is
// idempotent: an existing configuration is returned with created=false, refreshing the
// deployment reference when a new one is supplied.
func (s *Store) ProvisionAssistant(ctx context.Context, input ProvisionAssistantInput) (AssistantConfig, bool, error) {
	projectID := strings.TrimSpace(input.ProjectID)
	project, err := s.LookupProject(ctx, projectID)
	if err != nil {
		return AssistantConfig{}, false, err
	}
	if project.Status != ProjectStatusReady {
		return AssistantConfig{}, false, fmt.Errorf("%w: status=%s", ErrProjectNotReady, project.Status)
	}

	existing, err := s.GetAssistantByProject(ctx, projectID)
	if err == nil {
		ref := strings.TrimSpace(input.DeploymentProjectRef)
		if ref == "" || ref == existing.DeploymentProjectRef {
			return existing, false, nil
		}
		if _, err := s.db.ExecContext(
			ctx,
			`UPDATE assistant_configs SET deployment_project_ref = ?, updated_at_unix = ? WHERE id = ?`,
			ref,
			time.Now().UTC().Unix(),
			existing.ID,
		); err != nil {
			return AssistantConfig{}, false, fmt.Errorf("update assistant deployment ref: %w", err)
		}
		updated, err := s.GetAssistantByProject(ctx, projectID)
		return updated, false, err
	}
	if !errors.Is(err, ErrAssistantNotFound) {
		return AssistantConfig{}, false, err
	}

	maxTokens := input.MaxTokens
	if maxTokens < 1 {
		maxTokens = 1024
	}
	model := strings.TrimSpace(input.Model)
	if model == "" {
		return AssistantConfig{}, false, fmt.Errorf("assistant model is required")
	}
	nowUnix := time.Now().UTC().Unix()
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO assistant_configs (
			id, project_id, model, max_tokens, system_prompt, deployment_project_ref, created_at_unix, updated_at_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"asst_"+uuid.NewString(),
		projectID,
		model,
		maxTokens,
		strings.TrimSpace(input.SystemPrompt),
		nullIfEmpty(strings.TrimSpace(input.DeploymentProjectRef)),
		nowUnix,
		nowUnix,
	); err != nil {
		return AssistantConfig{}, false, fmt.Errorf("insert assistant config: %w", err)
	}
	created, err := s.GetAssistantByProject(ctx, projectID)
	return created, err == nil, err
}

func (s *Store) GetAssistantByProject(ctx context.Context, projectID string) (AssistantConfig, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+assistantColumns+` FROM assistant_configs WHERE project_id = ?`,
		strings.TrimSpace(projectID),
	)
	config, err := scanAssistant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return AssistantConfig{}, ErrAssistantNotFound
	}
	if err != nil {
		return AssistantConfig{}, fmt.Errorf("lookup assistant: %w", err)
	}
	return config, nil
}

func (s *Store) ListAssistants(ctx context.Context, limit int) ([]AssistantConfig, error) {
	if limit < 1 {
		limit = 500
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+assistantColumns+` FROM assistant_configs ORDER BY created_at_unix ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query assistants: %w", err)
	}
	defer rows.Close()

	configs := []AssistantConfig{}
	for rows.Next() {
		config, err := scanAssistant(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, config)
	}
	return configs, rows.Err()
}

// RecordAssistantInteraction bumps the cumulative counters after a turn.
func (s *Store) RecordAssistantInteraction(ctx context.Context, input RecordInteractionInput) error {
	at := input.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE assistant_configs
		 SET total_messages = total_messages + ?,
			total_actions = total_actions + ?,
			last_interaction_unix = ?,
			updated_at_unix = ?
		 WHERE project_id = ?`,
		input.Messages,
		input.Actions,
		at.Unix(),
		time.Now().UTC().Unix(),
		strings.TrimSpace(input.ProjectID),
	)
	if err != nil {
		return fmt.Errorf("record assistant interaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record assistant interaction: %w", err)
	}
	if affected == 0 {
		return ErrAssistantNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssistant(row rowScanner) (AssistantConfig, error) {
	var config AssistantConfig
	var lastInteraction sql.NullInt64
	var createdAtUnix, updatedAtUnix int64
	if err := row.Scan(
		&config.ID,
		&config.ProjectID,
		&config.Model,
		&config.MaxTokens,
		&config.SystemPrompt,
		&config.DeploymentProjectRef,
		&config.TotalMessages,
		&config.TotalActions,
		&lastInteraction,
		&createdAtUnix,
		&updatedAtUnix,
	); err != nil {
		return AssistantConfig{}, err
	}
	config.LastInteractionAt = unixOrZero(lastInteraction)
	config.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	config.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
	return config, nil
}
