package actions

import (
	"context"
	"time"
)

// restartService redeploys the latest build instead of rebuilding from source.
func (t Toolkit) restartService(ctx context.Context, actx Context, _ Params) Result {
	target, problem, ok := t.deploymentTarget(actx)
	if !ok {
		return failed(problem)
	}
	latest, found, err := t.Platform.LatestDeployment(ctx, target)
	if err != nil {
		return failed(err.Error())
	}
	if !found {
		return failed("No se encontraron despliegues para reiniciar.")
	}
	deployment, err := t.Platform.Redeploy(ctx, target, latest)
	if err != nil {
		return failed(err.Error())
	}
	startedAt := deployment.CreatedAt
	if startedAt.IsZero() {
		startedAt = t.Now()
	}
	return succeeded("Servicio reiniciado. Nuevo despliegue: "+deployment.ID, map[string]any{
		"deployment_id": deployment.ID,
		"url":           deployment.URL,
		"started_at":    startedAt.UTC().Format(time.RFC3339),
	})
}
