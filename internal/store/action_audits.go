package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActionAudit is one privileged action execution attempt. Rows are append-only.
type ActionAudit struct {
	ID             string
	ProjectID      string
	ConversationID string
	ActorID        string
	ActionName     string
	ParamsJSON     string
	Success        bool
	ResultJSON     string
	ErrorMessage   string
	StartedAt      time.Time
	CompletedAt    time.Time
	DurationMs     int64
}

type CreateActionAuditInput struct {
	ProjectID      string
	ConversationID string
	ActorID        string
	ActionName     string
	Params         any
	Success        bool
	Result         any
	ErrorMessage   string
	StartedAt      time.Time
	CompletedAt    time.Time
}

type ListActionAuditsInput struct {
	ProjectID  string
	ActorID    string
	ActionName string
	FailedOnly bool
	Limit      int
}

func (s *Store) CreateActionAudit(ctx context.Context, input CreateActionAuditInput) (ActionAudit, error) {
	record := ActionAudit{
		ID:             "audit_" + uuid.NewString(),
		ProjectID:      strings.TrimSpace(input.ProjectID),
		ConversationID: strings.TrimSpace(input.ConversationID),
		ActorID:        strings.TrimSpace(input.ActorID),
		ActionName:     strings.ToLower(strings.TrimSpace(input.ActionName)),
		Success:        input.Success,
		ErrorMessage:   strings.TrimSpace(input.ErrorMessage),
		StartedAt:      input.StartedAt.UTC(),
		CompletedAt:    input.CompletedAt.UTC(),
	}
	if record.ProjectID == "" || record.ActorID == "" || record.ActionName == "" {
		return ActionAudit{}, fmt.Errorf("missing required action audit fields")
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now().UTC()
	}
	if record.CompletedAt.IsZero() || record.CompletedAt.Before(record.StartedAt) {
		record.CompletedAt = record.StartedAt
	}
	record.DurationMs = record.CompletedAt.Sub(record.StartedAt).Milliseconds()

	paramsJSON, err := encodeJSON(input.Params)
	if err != nil {
		paramsJSON = fmt.Sprintf("{\"unencodable\":%q}", err.Error())
	}
	if paramsJSON == "" || paramsJSON == "null" {
		paramsJSON = "{}"
	}
	record.ParamsJSON = paramsJSON
	resultJSON, err := encodeJSON(input.Result)
	if err != nil {
		resultJSON = ""
	}
	if resultJSON == "null" {
		resultJSON = ""
	}
	record.ResultJSON = resultJSON

	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO action_audits (
			id, project_id, conversation_id, actor_id, action_name, params_json, success, result_json, error_message,
			started_at_unix_ms, completed_at_unix_ms, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.ProjectID,
		nullIfEmpty(record.ConversationID),
		record.ActorID,
		record.ActionName,
		record.ParamsJSON,
		boolToInt(record.Success),
		nullIfEmpty(record.ResultJSON),
		nullIfEmpty(record.ErrorMessage),
		record.StartedAt.UnixMilli(),
		record.CompletedAt.UnixMilli(),
		record.DurationMs,
	); err != nil {
		return ActionAudit{}, fmt.Errorf("insert action audit: %w", err)
	}
	return record, nil
}

func (s *Store) ListActionAudits(ctx context.Context, input ListActionAuditsInput) ([]ActionAudit, error) {
	limit := input.Limit
	if limit < 1 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	whereParts := []string{"1=1"}
	args := make([]any, 0, 5)

	if projectID := strings.TrimSpace(input.ProjectID); projectID != "" {
		whereParts = append(whereParts, "project_id = ?")
		args = append(args, projectID)
	}
	if actorID := strings.TrimSpace(input.ActorID); actorID != "" {
		whereParts = append(whereParts, "actor_id = ?")
		args = append(args, actorID)
	}
	if actionName := strings.ToLower(strings.TrimSpace(input.ActionName)); actionName != "" {
		whereParts = append(whereParts, "action_name = ?")
		args = append(args, actionName)
	}
	if input.FailedOnly {
		whereParts = append(whereParts, "success = 0")
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, project_id, COALESCE(conversation_id, ''), actor_id, action_name, params_json, success,
			COALESCE(result_json, ''), COALESCE(error_message, ''), started_at_unix_ms, completed_at_unix_ms, duration_ms
		 FROM action_audits
		 WHERE `+strings.Join(whereParts, " AND ")+`
		 ORDER BY started_at_unix_ms DESC, id DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query action audits: %w", err)
	}
	defer rows.Close()

	audits := make([]ActionAudit, 0, limit)
	for rows.Next() {
		var audit ActionAudit
		var success int
		var startedAtMs, completedAtMs int64
		if err := rows.Scan(
			&audit.ID,
			&audit.ProjectID,
			&audit.ConversationID,
			&audit.ActorID,
			&audit.ActionName,
			&audit.ParamsJSON,
			&success,
			&audit.ResultJSON,
			&audit.ErrorMessage,
			&startedAtMs,
			&completedAtMs,
			&audit.DurationMs,
		); err != nil {
			return nil, err
		}
		audit.Success = success == 1
		audit.StartedAt = fromUnixMilli(startedAtMs)
		audit.CompletedAt = fromUnixMilli(completedAtMs)
		audits = append(audits, audit)
	}
	return audits, rows.Err()
}
