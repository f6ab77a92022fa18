package actions

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Credentials are the deployment secrets resolved for one project. They are never
// persisted or echoed back to the model.
type Credentials struct {
	DeploymentToken  string
	DeploymentTeamID string
}

// Context carries everything a handler may know about the turn that requested it.
type Context struct {
	ProjectID           string
	AssistantID         string
	ConversationID      string
	RequesterID         string
	DeploymentProjectID string
	DataProjectRef      string
	DeploymentURL       string
	Credentials         Credentials
}

type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func succeeded(message string, data any) Result {
	return Result{Success: true, Message: message, Data: data}
}

func failed(message string) Result {
	return Result{Success: false, Message: message}
}

// Params is the loosely typed parameter bag parsed from a directive.
type Params map[string]any

func (p Params) String(key string) string {
	if p == nil {
		return ""
	}
	switch value := p[key].(type) {
	case string:
		return strings.TrimSpace(value)
	case json.Number:
		return value.String()
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return ""
	}
}

// Int reads a whole number from key, accepting numeric strings. Missing or
// malformed values return fallback.
func (p Params) Int(key string, fallback int) int {
	if p == nil {
		return fallback
	}
	switch value := p[key].(type) {
	case float64:
		if value == math.Trunc(value) {
			return int(value)
		}
	case int:
		return value
	case int64:
		return int(value)
	case json.Number:
		if parsed, err := value.Int64(); err == nil {
			return int(parsed)
		}
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}
