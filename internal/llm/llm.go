package llm

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

var ErrUnavailable = errors.New("llm unavailable")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Request is one completion call: prior history plus the new user text.
type Request struct {
	Model        string
	MaxTokens    int
	SystemPrompt string
	History      []Message
	Text         string
}

// Messages returns the history followed by the new user message, skipping empty entries.
func (r Request) Messages() []Message {
	messages := make([]Message, 0, len(r.History)+1)
	for _, message := range r.History {
		if strings.TrimSpace(message.Content) == "" {
			continue
		}
		role := RoleUser
		if message.Role == RoleAssistant {
			role = RoleAssistant
		}
		messages = append(messages, Message{Role: role, Content: message.Content})
	}
	if text := strings.TrimSpace(r.Text); text != "" {
		messages = append(messages, Message{Role: RoleUser, Content: text})
	}
	return messages
}

type Responder interface {
	Reply(ctx context.Context, request Request) (string, error)
}

var (
	thinkBlockPattern = regexp.MustCompile(`(?is)<think\b[^>]*>.*?</think>`)
	thinkFencePattern = regexp.MustCompile("(?is)```think\\s*.*?```")
)

// Sanitize drops reasoning blocks some models emit before the answer.
func Sanitize(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	trimmed = thinkBlockPattern.ReplaceAllString(trimmed, "")
	trimmed = thinkFencePattern.ReplaceAllString(trimmed, "")
	trimmed = strings.ReplaceAll(trimmed, "<think>", "")
	trimmed = strings.ReplaceAll(trimmed, "</think>", "")
	return strings.TrimSpace(trimmed)
}
