package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/dwizi/project-assistant/internal/actions"
	"github.com/dwizi/project-assistant/internal/heartbeat"
	"github.com/dwizi/project-assistant/internal/store"
)

// SweepActor is recorded as the actor of every audit written by the sweep.
const SweepActor = "system:health-sweep"

const (
	defaultConcurrency = 4
	sweepListLimit     = 1000
)

var ErrInvalidSchedule = errors.New("invalid health sweep schedule")

var sweepCronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Store interface {
	ListAssistants(ctx context.Context, limit int) ([]store.AssistantConfig, error)
	LookupProject(ctx context.Context, projectID string) (store.Project, error)
}

type Runner interface {
	Execute(ctx context.Context, name string, actx actions.Context, params actions.Params) actions.Result
}

type CredentialSource interface {
	Credentials(ctx context.Context, projectID string) (actions.Credentials, error)
}

type Config struct {
	Schedule    string
	Concurrency int
}

type SweepReport struct {
	Checked  int      `json:"checked"`
	Healthy  int      `json:"healthy"`
	Failed   []string `json:"failed"`
	Duration string   `json:"duration"`
}

// Service runs health_check for every provisioned assistant on a cron schedule.
type Service struct {
	store       Store
	runner      Runner
	credentials CredentialSource
	cfg         Config
	logger      *slog.Logger
	reporter    heartbeat.Reporter
}

func New(store Store, runner Runner, credentials CredentialSource, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = defaultConcurrency
	}
	cfg.Schedule = strings.Join(strings.Fields(cfg.Schedule), " ")
	return &Service{
		store:       store,
		runner:      runner,
		credentials: credentials,
		cfg:         cfg,
		logger:      logger.With("component", "scheduler"),
	}
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

// ValidateSchedule reports whether raw is an expression the sweep accepts.
func ValidateSchedule(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if _, err := sweepCronParser.Parse(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return nil
}

func (s *Service) Start(ctx context.Context) error {
	if s.cfg.Schedule == "" || s.store == nil || s.runner == nil {
		if s.reporter != nil {
			s.reporter.Disabled(heartbeat.ComponentScheduler, "health sweep not scheduled")
		}
		<-ctx.Done()
		return nil
	}
	if err := ValidateSchedule(s.cfg.Schedule); err != nil {
		if s.reporter != nil {
			s.reporter.Degrade(heartbeat.ComponentScheduler, "invalid schedule", err)
		}
		return err
	}

	runner := cron.New(cron.WithParser(sweepCronParser), cron.WithLocation(time.UTC))
	var running sync.Mutex
	if _, err := runner.AddFunc(s.cfg.Schedule, func() {
		if !running.TryLock() {
			s.logger.Warn("previous health sweep still running, skipping")
			return
		}
		defer running.Unlock()
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("health sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	if s.reporter != nil {
		s.reporter.Starting(heartbeat.ComponentScheduler, "started")
		s.reporter.Beat(heartbeat.ComponentScheduler, "waiting for first sweep")
	}
	s.logger.Info("scheduler started", "schedule", s.cfg.Schedule, "concurrency", s.cfg.Concurrency)
	runner.Start()

	<-ctx.Done()
	<-runner.Stop().Done()
	if s.reporter != nil {
		s.reporter.Stopped(heartbeat.ComponentScheduler, "stopped")
	}
	s.logger.Info("scheduler stopped")
	return nil
}

// Sweep executes health_check once for every assistant. Each execution is audited
// by the runner like any user-requested action.
func (s *Service) Sweep(ctx context.Context) (SweepReport, error) {
	startedAt := time.Now()
	assistants, err := s.store.ListAssistants(ctx, sweepListLimit)
	if err != nil {
		if s.reporter != nil {
			s.reporter.Degrade(heartbeat.ComponentScheduler, "list assistants failed", err)
		}
		return SweepReport{}, fmt.Errorf("list assistants: %w", err)
	}

	var mu sync.Mutex
	report := SweepReport{Failed: []string{}}
	workers := pool.New().WithMaxGoroutines(s.cfg.Concurrency)
	for _, assistant := range assistants {
		workers.Go(func() {
			result := s.checkAssistant(ctx, assistant)
			mu.Lock()
			defer mu.Unlock()
			report.Checked++
			if result.Success {
				report.Healthy++
				return
			}
			report.Failed = append(report.Failed, assistant.ProjectID)
		})
	}
	workers.Wait()
	report.Duration = time.Since(startedAt).Round(time.Millisecond).String()

	if s.reporter != nil {
		s.reporter.Beat(heartbeat.ComponentScheduler, fmt.Sprintf("sweep checked %d assistants", report.Checked))
	}
	s.logger.Info("health sweep completed",
		"checked", report.Checked,
		"healthy", report.Healthy,
		"failed", len(report.Failed),
		"duration", report.Duration,
	)
	return report, nil
}

func (s *Service) checkAssistant(ctx context.Context, assistant store.AssistantConfig) actions.Result {
	actx := actions.Context{
		ProjectID:           assistant.ProjectID,
		AssistantID:         assistant.ID,
		RequesterID:         SweepActor,
		DeploymentProjectID: assistant.DeploymentProjectRef,
	}
	if project, err := s.store.LookupProject(ctx, assistant.ProjectID); err == nil {
		actx.DataProjectRef = project.DataProjectRef
		actx.DeploymentURL = project.DeploymentURL
	}
	if s.credentials != nil {
		credentials, err := s.credentials.Credentials(ctx, assistant.ProjectID)
		if err != nil {
			s.logger.Warn("deployment credentials unavailable", "project_id", assistant.ProjectID, "error", err)
		}
		actx.Credentials = credentials
	}
	result := s.runner.Execute(ctx, string(actions.HealthCheck), actx, nil)
	if !result.Success {
		s.logger.Warn("assistant health check failed", "project_id", assistant.ProjectID, "message", result.Message)
	}
	return result
}
