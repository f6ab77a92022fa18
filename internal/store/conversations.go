package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ActionOutcome is the result of a privileged action attached to the assistant
// message that requested it.
type ActionOutcome struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Message struct {
	ID        string
	Seq       int
	Role      string
	Content   string
	Action    *ActionOutcome
	CreatedAt time.Time
}

type Conversation struct {
	ID               string
	ProjectID        string
	AssistantID      string
	RequesterID      string
	Title            string
	Messages         []Message
	ActionsRequested []string
	ActionsSucceeded []string
	MessageCount     int
	Archived         bool
	StartedAt        time.Time
	LastMessageAt    time.Time
}

type ConversationSummary struct {
	ID            string
	Title         string
	StartedAt     time.Time
	LastMessageAt time.Time
	MessageCount  int
}

type NewMessage struct {
	Role      string
	Content   string
	Action    *ActionOutcome
	CreatedAt time.Time
}

type AppendTurnInput struct {
	ConversationID  string
	ProjectID       string
	AssistantID     string
	RequesterID     string
	Title           string
	Messages        []NewMessage
	ActionRequested string
	ActionSucceeded bool
}

type ListConversationsInput struct {
	ProjectID   string
	RequesterID string
	Limit       int
}

// LookupConversation resolves an active conversation owned by requesterID inside projectID,
// including its ordered message history.
func (s *Store) LookupConversation(ctx context.Context, conversationID, projectID, requesterID string) (Conversation, error) {
	conversation, err := s.GetConversation(ctx, conversationID, requesterID)
	if err != nil {
		return Conversation{}, err
	}
	if conversation.Archived || conversation.ProjectID != strings.TrimSpace(projectID) {
		return Conversation{}, ErrConversationNotFound
	}
	return conversation, nil
}

// GetConversation returns the full conversation, archived or not, when owned by requesterID.
func (s *Store) GetConversation(ctx context.Context, conversationID, requesterID string) (Conversation, error) {
	conversationID = strings.TrimSpace(conversationID)
	requesterID = strings.TrimSpace(requesterID)
	if conversationID == "" || requesterID == "" {
		return Conversation{}, ErrConversationNotFound
	}

	var conversation Conversation
	var requestedJSON, succeededJSON string
	var archived int
	var startedAtMs, lastMessageAtMs int64
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, project_id, assistant_id, requester_id, title, actions_requested_json, actions_succeeded_json,
			message_count, archived, started_at_unix_ms, last_message_at_unix_ms
		 FROM conversations
		 WHERE id = ? AND requester_id = ?`,
		conversationID,
		requesterID,
	).Scan(
		&conversation.ID,
		&conversation.ProjectID,
		&conversation.AssistantID,
		&conversation.RequesterID,
		&conversation.Title,
		&requestedJSON,
		&succeededJSON,
		&conversation.MessageCount,
		&archived,
		&startedAtMs,
		&lastMessageAtMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("lookup conversation: %w", err)
	}
	conversation.ActionsRequested = decodeStringSet(requestedJSON)
	conversation.ActionsSucceeded = decodeStringSet(succeededJSON)
	conversation.Archived = archived == 1
	conversation.StartedAt = fromUnixMilli(startedAtMs)
	conversation.LastMessageAt = fromUnixMilli(lastMessageAtMs)

	messages, err := s.listMessages(ctx, conversation.ID)
	if err != nil {
		return Conversation{}, err
	}
	conversation.Messages = messages
	return conversation, nil
}

func (s *Store) listMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, seq, role, content, COALESCE(action_json, ''), created_at_unix_ms
		 FROM conversation_messages
		 WHERE conversation_id = ?
		 ORDER BY seq ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversation messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var message Message
		var actionJSON string
		var createdAtMs int64
		if err := rows.Scan(&message.ID, &message.Seq, &message.Role, &message.Content, &actionJSON, &createdAtMs); err != nil {
			return nil, err
		}
		if strings.TrimSpace(actionJSON) != "" {
			var outcome ActionOutcome
			if err := json.Unmarshal([]byte(actionJSON), &outcome); err == nil {
				message.Action = &outcome
			}
		}
		message.CreatedAt = fromUnixMilli(createdAtMs)
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

func (s *Store) ListConversations(ctx context.Context, input ListConversationsInput) ([]ConversationSummary, error) {
	limit := input.Limit
	if limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, title, started_at_unix_ms, last_message_at_unix_ms, message_count
		 FROM conversations
		 WHERE project_id = ? AND requester_id = ? AND archived = 0
		 ORDER BY last_message_at_unix_ms DESC
		 LIMIT ?`,
		strings.TrimSpace(input.ProjectID),
		strings.TrimSpace(input.RequesterID),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	summaries := []ConversationSummary{}
	for rows.Next() {
		var summary ConversationSummary
		var startedAtMs, lastMessageAtMs int64
		if err := rows.Scan(&summary.ID, &summary.Title, &startedAtMs, &lastMessageAtMs, &summary.MessageCount); err != nil {
			return nil, err
		}
		summary.StartedAt = fromUnixMilli(startedAtMs)
		summary.LastMessageAt = fromUnixMilli(lastMessageAtMs)
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// AppendTurn appends messages to a conversation inside one transaction, creating the
// conversation row on first use. Messages are only ever inserted; sequence numbers are
// allocated inside the transaction.
func (s *Store) AppendTurn(ctx context.Context, input AppendTurnInput) error {
	conversationID := strings.TrimSpace(input.ConversationID)
	requesterID := strings.TrimSpace(input.RequesterID)
	if conversationID == "" || requesterID == "" || strings.TrimSpace(input.ProjectID) == "" {
		return fmt.Errorf("conversation id, project id and requester id are required")
	}
	if len(input.Messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append turn: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var ownerID, requestedJSON, succeededJSON string
	var messageCount int
	err = tx.QueryRowContext(
		ctx,
		`SELECT requester_id, actions_requested_json, actions_succeeded_json, message_count FROM conversations WHERE id = ?`,
		conversationID,
	).Scan(&ownerID, &requestedJSON, &succeededJSON, &messageCount)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		startedAt := input.Messages[0].CreatedAt
		if startedAt.IsZero() {
			startedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO conversations (
				id, project_id, assistant_id, requester_id, title, started_at_unix_ms, last_message_at_unix_ms
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			conversationID,
			strings.TrimSpace(input.ProjectID),
			strings.TrimSpace(input.AssistantID),
			requesterID,
			strings.TrimSpace(input.Title),
			startedAt.UnixMilli(),
			startedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
		requestedJSON, succeededJSON = "[]", "[]"
	case err != nil:
		return fmt.Errorf("lookup conversation for append: %w", err)
	case ownerID != requesterID:
		return ErrConversationNotFound
	}

	var lastSeq int
	if err := tx.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM conversation_messages WHERE conversation_id = ?`,
		conversationID,
	).Scan(&lastSeq); err != nil {
		return fmt.Errorf("lookup last message seq: %w", err)
	}

	lastAt := time.Time{}
	for index, message := range input.Messages {
		createdAt := message.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		actionJSON := ""
		if message.Action != nil {
			encoded, err := encodeJSON(message.Action)
			if err != nil {
				return fmt.Errorf("encode message action: %w", err)
			}
			actionJSON = encoded
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO conversation_messages (id, conversation_id, seq, role, content, action_json, created_at_unix_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			"msg_"+uuid.NewString(),
			conversationID,
			lastSeq+index+1,
			strings.TrimSpace(message.Role),
			message.Content,
			nullIfEmpty(actionJSON),
			createdAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert conversation message: %w", err)
		}
		lastAt = createdAt
	}

	requested := decodeStringSet(requestedJSON)
	succeeded := decodeStringSet(succeededJSON)
	if name := strings.TrimSpace(input.ActionRequested); name != "" {
		requested = mergeSet(requested, name)
		if input.ActionSucceeded {
			succeeded = mergeSet(succeeded, name)
		}
	}
	requestedEncoded, _ := encodeJSON(requested)
	succeededEncoded, _ := encodeJSON(succeeded)
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE conversations
		 SET actions_requested_json = ?, actions_succeeded_json = ?, message_count = ?, last_message_at_unix_ms = ?
		 WHERE id = ?`,
		requestedEncoded,
		succeededEncoded,
		messageCount+len(input.Messages),
		lastAt.UnixMilli(),
		conversationID,
	); err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append turn: %w", err)
	}
	return nil
}

// ArchiveConversation hides a conversation from listings. Nothing is deleted.
func (s *Store) ArchiveConversation(ctx context.Context, conversationID, requesterID string) error {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE conversations SET archived = 1 WHERE id = ? AND requester_id = ?`,
		strings.TrimSpace(conversationID),
		strings.TrimSpace(requesterID),
	)
	if err != nil {
		return fmt.Errorf("archive conversation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive conversation: %w", err)
	}
	if affected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func mergeSet(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	merged := append(append([]string{}, values...), value)
	sort.Strings(merged)
	return merged
}
