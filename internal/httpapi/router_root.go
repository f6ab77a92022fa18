package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/project-assistant/internal/actions"
	"github.com/dwizi/project-assistant/internal/assistant"
	"github.com/dwizi/project-assistant/internal/config"
	"github.com/dwizi/project-assistant/internal/heartbeat"
	"github.com/dwizi/project-assistant/internal/store"
)

type Assistant interface {
	HandleTurn(ctx context.Context, input assistant.TurnInput) (assistant.TurnOutput, error)
	GetConversation(ctx context.Context, conversationID, requesterID string) (store.Conversation, error)
	ListConversations(ctx context.Context, projectID, requesterID string, limit int) ([]store.ConversationSummary, error)
	ArchiveConversation(ctx context.Context, conversationID, requesterID string) error
}

// TransitionHistory exposes recently observed component state changes.
type TransitionHistory interface {
	Recent() []heartbeat.Transition
}

type Dependencies struct {
	Config              config.Config
	Store               *store.Store
	Assistant           Assistant
	Actions             *actions.Registry
	Logger              *slog.Logger
	Heartbeat           *heartbeat.Registry
	HeartbeatStaleAfter time.Duration
	ReadyComponents     []string
	Transitions         TransitionHistory
	Version             string
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/v1/heartbeat", rt.handleHeartbeat)
	mux.HandleFunc("/api/v1/heartbeat/transitions", rt.handleHeartbeatTransitions)
	mux.HandleFunc("/api/v1/info", rt.handleInfo)
	mux.HandleFunc("/api/v1/assistant/chat", rt.handleChat)
	mux.HandleFunc("/api/v1/assistant/ws", rt.handleChatSocket)
	mux.HandleFunc("/api/v1/assistant/conversations", rt.handleConversations)
	mux.HandleFunc("/api/v1/assistant/conversation", rt.handleConversation)
	mux.HandleFunc("/api/v1/assistant/conversation/archive", rt.handleConversationArchive)
	mux.HandleFunc("/api/v1/assistant/audit", rt.handleAudit)
	mux.HandleFunc("/api/v1/projects/ready", rt.handleProjectReady)
	return mux
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, assistant.ErrInvalidTurn), errors.Is(err, assistant.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrAssistantNotFound),
		errors.Is(err, store.ErrProjectNotFound),
		errors.Is(err, store.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrProjectNotReady):
		return http.StatusConflict
	case errors.Is(err, assistant.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, assistant.ErrModelCall):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func queryLimit(req *http.Request, fallback int) int {
	raw := strings.TrimSpace(req.URL.Query().Get("limit"))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func queryBool(req *http.Request, key string) bool {
	switch strings.ToLower(strings.TrimSpace(req.URL.Query().Get(key))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
