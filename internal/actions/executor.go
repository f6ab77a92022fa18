package actions

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dwizi/project-assistant/internal/store"
)

const (
	DefaultActionTimeout = 30 * time.Second
	auditWriteTimeout    = 5 * time.Second
	systemActor          = "system"
	auditComponent       = "audit"
)

type AuditSink interface {
	CreateActionAudit(ctx context.Context, input store.CreateActionAuditInput) (store.ActionAudit, error)
}

// AuditHealthReporter tracks whether audit writes are succeeding.
type AuditHealthReporter interface {
	Beat(component, message string)
	Degrade(component, message string, err error)
}

type ExecutorConfig struct {
	Timeout time.Duration
	Health  AuditHealthReporter
	Now     func() time.Time
}

// Executor runs registered actions and writes exactly one audit record per attempt.
type Executor struct {
	registry *Registry
	audits   AuditSink
	health   AuditHealthReporter
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewExecutor(registry *Registry, audits AuditSink, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultActionTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Executor{
		registry: registry,
		audits:   audits,
		health:   cfg.Health,
		timeout:  cfg.Timeout,
		now:      cfg.Now,
		logger:   logger.With("component", "action_executor"),
	}
}

func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute never returns an error: unknown actions, invalid params, handler failures and
// panics all come back as an unsuccessful Result.
func (e *Executor) Execute(ctx context.Context, name string, actx Context, params Params) Result {
	definition, ok := e.registry.Lookup(name)
	if !ok {
		return failed("Acción desconocida: " + strings.TrimSpace(name))
	}

	startedAt := e.now()
	result := e.run(ctx, definition, actx, params)
	completedAt := e.now()

	e.audit(ctx, definition.Name, actx, params, result, startedAt, completedAt)
	e.logger.Info("action executed",
		"action", string(definition.Name),
		"project_id", actx.ProjectID,
		"conversation_id", actx.ConversationID,
		"success", result.Success,
		"duration_ms", completedAt.Sub(startedAt).Milliseconds(),
	)
	return result
}

func (e *Executor) run(ctx context.Context, definition Definition, actx Context, params Params) (result Result) {
	if err := definition.Validate(params); err != nil {
		return failed(fmt.Sprintf("Parámetros inválidos para %s: %v", definition.Name, err))
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	defer func() {
		if recovered := recover(); recovered != nil {
			e.logger.Error("action handler panicked",
				"action", string(definition.Name),
				"project_id", actx.ProjectID,
				"panic", fmt.Sprint(recovered),
				"stack", string(debug.Stack()),
			)
			result = failed(fmt.Sprintf("Error interno al ejecutar %s: %v", definition.Name, recovered))
		}
	}()
	return definition.Handler(runCtx, actx, params)
}

// audit writes on a context detached from the request so a client disconnect
// cannot drop the record of an action that already ran.
func (e *Executor) audit(ctx context.Context, name Name, actx Context, params Params, result Result, startedAt, completedAt time.Time) {
	if e.audits == nil {
		return
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	actor := strings.TrimSpace(actx.RequesterID)
	if actor == "" {
		actor = systemActor
	}
	input := store.CreateActionAuditInput{
		ProjectID:      actx.ProjectID,
		ConversationID: actx.ConversationID,
		ActorID:        actor,
		ActionName:     string(name),
		Params:         params,
		Success:        result.Success,
		Result:         map[string]any{"message": result.Message, "data": result.Data},
		StartedAt:      startedAt,
		CompletedAt:    completedAt,
	}
	if !result.Success {
		input.ErrorMessage = result.Message
	}
	if _, err := e.audits.CreateActionAudit(auditCtx, input); err != nil {
		e.logger.Error("action audit write failed",
			"action", string(name),
			"project_id", actx.ProjectID,
			"conversation_id", actx.ConversationID,
			"error", err,
		)
		if e.health != nil {
			e.health.Degrade(auditComponent, "action audit write failed", err)
		}
		return
	}
	if e.health != nil {
		e.health.Beat(auditComponent, "last audit write succeeded")
	}
}
