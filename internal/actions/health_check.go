package actions

import (
	"context"
	"fmt"
	"strings"
)

type HealthCheckResult struct {
	Name       string `json:"name"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	DurationMs int64  `json:"duration_ms"`
}

// healthCheck runs every applicable probe without short-circuiting. Checks whose
// prerequisites are missing are skipped, not failed.
func (t Toolkit) healthCheck(ctx context.Context, actx Context, _ Params) Result {
	checks := []HealthCheckResult{t.timed("database", func() (bool, string) {
		return t.checkDatabase(ctx, actx)
	})}
	if url := strings.TrimSpace(actx.DeploymentURL); url != "" {
		checks = append(checks, t.timed("http", func() (bool, string) {
			return t.checkHTTP(ctx, url)
		}))
	}
	if target, _, ok := t.deploymentTarget(actx); ok {
		checks = append(checks, t.timed("vercel", func() (bool, string) {
			latest, found, err := t.Platform.LatestDeployment(ctx, target)
			if err != nil {
				return false, err.Error()
			}
			if !found {
				return false, "sin despliegues"
			}
			return latest.ReadyState == "READY", "estado " + latest.ReadyState
		}))
	}

	failedNames := []string{}
	for _, check := range checks {
		if !check.Success {
			failedNames = append(failedNames, check.Name)
		}
	}
	data := map[string]any{
		"healthy": len(failedNames) == 0,
		"checks":  checks,
	}
	if len(failedNames) > 0 {
		return Result{
			Success: false,
			Message: "Chequeos fallidos: " + strings.Join(failedNames, ", "),
			Data:    data,
		}
	}
	return succeeded(fmt.Sprintf("Todos los chequeos pasaron (%d).", len(checks)), data)
}

func (t Toolkit) timed(name string, check func() (bool, string)) HealthCheckResult {
	started := t.Now()
	ok, message := check()
	return HealthCheckResult{
		Name:       name,
		Success:    ok,
		Message:    message,
		DurationMs: t.Now().Sub(started).Milliseconds(),
	}
}

func (t Toolkit) checkDatabase(ctx context.Context, actx Context) (bool, string) {
	if t.Projects == nil {
		return false, "base de datos no configurada"
	}
	if _, err := t.Projects.LookupProject(ctx, actx.ProjectID); err != nil {
		return false, err.Error()
	}
	return true, "ok"
}

func (t Toolkit) checkHTTP(ctx context.Context, url string) (bool, string) {
	probeCtx, cancel := context.WithTimeout(ctx, t.ProbeTimeout)
	defer cancel()
	status, err := t.Prober.Probe(probeCtx, url)
	if err != nil {
		return false, err.Error()
	}
	return status < 400, fmt.Sprintf("HTTP %d", status)
}
