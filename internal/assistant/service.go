package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dwizi/project-assistant/internal/actions"
	"github.com/dwizi/project-assistant/internal/llm"
	"github.com/dwizi/project-assistant/internal/safety"
	"github.com/dwizi/project-assistant/internal/store"
)

var (
	ErrInvalidTurn  = errors.New("invalid turn")
	ErrInvalidQuery = errors.New("invalid conversation query")
	ErrRateLimited  = errors.New("turn rate limited")
	ErrModelCall    = errors.New("model call failed")
)

const (
	DefaultHistoryWindow = 20
	persistTimeout       = 10 * time.Second
	titleMaxRunes        = 80
	componentModel       = "model"
)

type Store interface {
	LookupProject(ctx context.Context, projectID string) (store.Project, error)
	GetAssistantByProject(ctx context.Context, projectID string) (store.AssistantConfig, error)
	LookupConversation(ctx context.Context, conversationID, projectID, requesterID string) (store.Conversation, error)
	GetConversation(ctx context.Context, conversationID, requesterID string) (store.Conversation, error)
	ListConversations(ctx context.Context, input store.ListConversationsInput) ([]store.ConversationSummary, error)
	AppendTurn(ctx context.Context, input store.AppendTurnInput) error
	ArchiveConversation(ctx context.Context, conversationID, requesterID string) error
	RecordAssistantInteraction(ctx context.Context, input store.RecordInteractionInput) error
}

type ActionRunner interface {
	Registry() *actions.Registry
	Execute(ctx context.Context, name string, actx actions.Context, params actions.Params) actions.Result
}

type PromptRenderer interface {
	Render(systemPrompt string, definitions []actions.Definition) string
}

type Limiter interface {
	Check(input safety.Request) safety.Decision
}

// CredentialSource resolves the deployment secrets of a project at execution time.
type CredentialSource interface {
	Credentials(ctx context.Context, projectID string) (actions.Credentials, error)
}

type StaticCredentials actions.Credentials

func (s StaticCredentials) Credentials(context.Context, string) (actions.Credentials, error) {
	return actions.Credentials(s), nil
}

type HealthReporter interface {
	Beat(component, message string)
	Degrade(component, message string, err error)
}

type Config struct {
	HistoryWindow       int
	DefaultSystemPrompt string
	Now                 func() time.Time
}

type Dependencies struct {
	Store       Store
	Responder   llm.Responder
	Actions     ActionRunner
	Prompts     PromptRenderer
	Limiter     Limiter
	Credentials CredentialSource
	Health      HealthReporter
}

type TurnInput struct {
	ProjectID      string
	RequesterID    string
	ConversationID string
	Message        string
}

type ActionSummary struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type TurnOutput struct {
	ConversationID string         `json:"conversation_id"`
	Response       string         `json:"response"`
	Action         *ActionSummary `json:"action"`
}

// Service runs chat turns: resolve, build prompt, call model, parse, execute, compose,
// persist, respond.
type Service struct {
	deps   Dependencies
	cfg    Config
	locks  *keyedLock
	logger *slog.Logger
}

func NewService(deps Dependencies, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistoryWindow < 1 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if deps.Credentials == nil {
		deps.Credentials = StaticCredentials{}
	}
	return &Service{
		deps:   deps,
		cfg:    cfg,
		locks:  newKeyedLock(),
		logger: logger.With("component", "assistant"),
	}
}

type turnState struct {
	input        TurnInput
	project      store.Project
	assistant    store.AssistantConfig
	conversation store.Conversation
	isNew        bool
	reply        string
	directive    actions.Directive
	hasDirective bool
	result       actions.Result
	response     string
	receivedAt   time.Time
	repliedAt    time.Time
}

func (s *Service) HandleTurn(ctx context.Context, input TurnInput) (TurnOutput, error) {
	input.ProjectID = strings.TrimSpace(input.ProjectID)
	input.RequesterID = strings.TrimSpace(input.RequesterID)
	input.ConversationID = strings.TrimSpace(input.ConversationID)
	input.Message = strings.TrimSpace(input.Message)
	if input.ProjectID == "" || input.RequesterID == "" || input.Message == "" {
		return TurnOutput{}, fmt.Errorf("%w: project_id, requester_id and message are required", ErrInvalidTurn)
	}
	if s.deps.Limiter != nil {
		decision := s.deps.Limiter.Check(safety.Request{ProjectID: input.ProjectID, RequesterID: input.RequesterID})
		if !decision.Allowed {
			return TurnOutput{}, fmt.Errorf("%w: %s", ErrRateLimited, decision.Notify)
		}
	}
	if input.ConversationID != "" {
		unlock := s.locks.Lock(input.ConversationID)
		defer unlock()
	}

	state := &turnState{input: input, receivedAt: s.cfg.Now().UTC()}
	if err := s.resolve(ctx, state); err != nil {
		return TurnOutput{}, err
	}
	if err := s.callModel(ctx, state); err != nil {
		return TurnOutput{}, err
	}
	state.directive, state.hasDirective = actions.Parse(state.reply, s.deps.Actions.Registry())
	if state.hasDirective {
		s.execute(ctx, state)
	}
	state.response = compose(actions.StripDirectives(state.reply), state.hasDirective, state.result)
	s.persist(ctx, state)
	return s.respond(state), nil
}

func (s *Service) resolve(ctx context.Context, state *turnState) error {
	assistant, err := s.deps.Store.GetAssistantByProject(ctx, state.input.ProjectID)
	if err != nil {
		return fmt.Errorf("resolve assistant: %w", err)
	}
	project, err := s.deps.Store.LookupProject(ctx, state.input.ProjectID)
	if err != nil {
		return fmt.Errorf("resolve project: %w", err)
	}
	state.assistant = assistant
	state.project = project

	if state.input.ConversationID != "" {
		conversation, err := s.deps.Store.LookupConversation(ctx, state.input.ConversationID, state.input.ProjectID, state.input.RequesterID)
		switch {
		case err == nil:
			state.conversation = conversation
			return nil
		case errors.Is(err, store.ErrConversationNotFound):
			s.logger.Info("conversation not resolvable, starting a new one",
				"project_id", state.input.ProjectID,
				"conversation_id", state.input.ConversationID,
			)
		default:
			return fmt.Errorf("resolve conversation: %w", err)
		}
	}
	state.isNew = true
	state.conversation = store.Conversation{
		ID:          uuid.NewString(),
		ProjectID:   state.input.ProjectID,
		AssistantID: assistant.ID,
		RequesterID: state.input.RequesterID,
		Title:       conversationTitle(state.input.Message),
	}
	return nil
}

func (s *Service) callModel(ctx context.Context, state *turnState) error {
	request := llm.Request{
		Model:        state.assistant.Model,
		MaxTokens:    state.assistant.MaxTokens,
		SystemPrompt: s.systemPrompt(state.assistant),
		History:      s.history(state.conversation.Messages),
		Text:         state.input.Message,
	}
	reply, err := s.deps.Responder.Reply(ctx, request)
	if err != nil {
		s.logger.Error("model call failed",
			"project_id", state.input.ProjectID,
			"conversation_id", state.conversation.ID,
			"model", state.assistant.Model,
			"error", err,
		)
		if s.deps.Health != nil {
			s.deps.Health.Degrade(componentModel, "model call failed", err)
		}
		return fmt.Errorf("%w: %w", ErrModelCall, err)
	}
	if s.deps.Health != nil {
		s.deps.Health.Beat(componentModel, "last model call succeeded")
	}
	state.reply = reply
	state.repliedAt = s.cfg.Now().UTC()
	return nil
}

func (s *Service) systemPrompt(assistant store.AssistantConfig) string {
	base := strings.TrimSpace(assistant.SystemPrompt)
	if base == "" {
		base = strings.TrimSpace(s.cfg.DefaultSystemPrompt)
	}
	if s.deps.Prompts == nil {
		return base
	}
	return s.deps.Prompts.Render(base, s.deps.Actions.Registry().Definitions())
}

// history keeps the most recent window of messages, oldest first.
func (s *Service) history(messages []store.Message) []llm.Message {
	if len(messages) > s.cfg.HistoryWindow {
		messages = messages[len(messages)-s.cfg.HistoryWindow:]
	}
	history := make([]llm.Message, 0, len(messages))
	for _, message := range messages {
		role := llm.RoleUser
		if message.Role == store.RoleAssistant {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: message.Content})
	}
	return history
}

func (s *Service) execute(ctx context.Context, state *turnState) {
	credentials, err := s.deps.Credentials.Credentials(ctx, state.input.ProjectID)
	if err != nil {
		s.logger.Warn("deployment credentials unavailable", "project_id", state.input.ProjectID, "error", err)
	}
	actx := actions.Context{
		ProjectID:           state.input.ProjectID,
		AssistantID:         state.assistant.ID,
		ConversationID:      state.conversation.ID,
		RequesterID:         state.input.RequesterID,
		DeploymentProjectID: state.assistant.DeploymentProjectRef,
		DataProjectRef:      state.project.DataProjectRef,
		DeploymentURL:       state.project.DeploymentURL,
		Credentials:         credentials,
	}
	state.result = s.deps.Actions.Execute(ctx, string(state.directive.Name), actx, state.directive.Params)
}

func compose(text string, executed bool, result actions.Result) string {
	if !executed {
		return text
	}
	var suffix string
	if result.Success {
		suffix = "✅ Acción ejecutada: " + result.Message
	} else {
		suffix = "❌ Error: " + result.Message
	}
	if text == "" {
		return suffix
	}
	return text + "\n\n" + suffix
}

// persist is best effort: the user already paid for the model call and any action
// side effects, so failures are logged and the reply still goes out.
func (s *Service) persist(ctx context.Context, state *turnState) {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	assistantMessage := store.NewMessage{
		Role:      store.RoleAssistant,
		Content:   state.response,
		CreatedAt: state.repliedAt,
	}
	input := store.AppendTurnInput{
		ConversationID: state.conversation.ID,
		ProjectID:      state.input.ProjectID,
		AssistantID:    state.assistant.ID,
		RequesterID:    state.input.RequesterID,
		Title:          state.conversation.Title,
	}
	actionsCount := 0
	if state.hasDirective {
		actionsCount = 1
		assistantMessage.Action = &store.ActionOutcome{
			Type:    string(state.directive.Name),
			Success: state.result.Success,
			Message: state.result.Message,
			Data:    state.result.Data,
		}
		input.ActionRequested = string(state.directive.Name)
		input.ActionSucceeded = state.result.Success
	}
	input.Messages = []store.NewMessage{
		{Role: store.RoleUser, Content: state.input.Message, CreatedAt: state.receivedAt},
		assistantMessage,
	}

	if err := s.deps.Store.AppendTurn(persistCtx, input); err != nil {
		s.logger.Error("persist turn failed",
			"project_id", state.input.ProjectID,
			"conversation_id", state.conversation.ID,
			"error", err,
		)
	}
	if err := s.deps.Store.RecordAssistantInteraction(persistCtx, store.RecordInteractionInput{
		ProjectID: state.input.ProjectID,
		Messages:  len(input.Messages),
		Actions:   actionsCount,
		At:        state.repliedAt,
	}); err != nil {
		s.logger.Error("record assistant interaction failed",
			"project_id", state.input.ProjectID,
			"error", err,
		)
	}
}

func (s *Service) respond(state *turnState) TurnOutput {
	output := TurnOutput{
		ConversationID: state.conversation.ID,
		Response:       state.response,
	}
	if state.hasDirective {
		output.Action = &ActionSummary{
			Type:    string(state.directive.Name),
			Success: state.result.Success,
			Message: state.result.Message,
			Data:    state.result.Data,
		}
	}
	s.logger.Info("turn handled",
		"project_id", state.input.ProjectID,
		"conversation_id", state.conversation.ID,
		"new_conversation", state.isNew,
		"action", string(state.directive.Name),
	)
	return output
}

func conversationTitle(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(title) <= titleMaxRunes {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:titleMaxRunes])) + "…"
}

func (s *Service) GetConversation(ctx context.Context, conversationID, requesterID string) (store.Conversation, error) {
	if strings.TrimSpace(conversationID) == "" || strings.TrimSpace(requesterID) == "" {
		return store.Conversation{}, fmt.Errorf("%w: id and requester_id are required", ErrInvalidQuery)
	}
	return s.deps.Store.GetConversation(ctx, conversationID, requesterID)
}

func (s *Service) ListConversations(ctx context.Context, projectID, requesterID string, limit int) ([]store.ConversationSummary, error) {
	if strings.TrimSpace(projectID) == "" || strings.TrimSpace(requesterID) == "" {
		return nil, fmt.Errorf("%w: project_id and requester_id are required", ErrInvalidQuery)
	}
	return s.deps.Store.ListConversations(ctx, store.ListConversationsInput{
		ProjectID:   projectID,
		RequesterID: requesterID,
		Limit:       limit,
	})
}

func (s *Service) ArchiveConversation(ctx context.Context, conversationID, requesterID string) error {
	if strings.TrimSpace(conversationID) == "" || strings.TrimSpace(requesterID) == "" {
		return fmt.Errorf("%w: id and requester_id are required", ErrInvalidQuery)
	}
	return s.deps.Store.ArchiveConversation(ctx, conversationID, requesterID)
}
