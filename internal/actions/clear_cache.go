package actions

import (
	"context"
	"time"
)

func (t Toolkit) clearCache(ctx context.Context, actx Context, _ Params) Result {
	target, problem, ok := t.deploymentTarget(actx)
	if !ok {
		return failed(problem)
	}
	if err := t.Platform.PurgeCache(ctx, target); err != nil {
		return failed(err.Error())
	}
	return succeeded("Caché purgada correctamente.", map[string]any{
		"purged_at": t.Now().UTC().Format(time.RFC3339),
	})
}
