package actions

import (
	"context"
	"fmt"

	"github.com/dwizi/project-assistant/internal/vercel"
)

func (t Toolkit) getLogs(ctx context.Context, actx Context, params Params) Result {
	target, problem, ok := t.deploymentTarget(actx)
	if !ok {
		return failed(problem)
	}
	limit := params.Int("limit", params.Int("value", DefaultLogLimit))
	if limit < 1 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}
	until := t.Now().UTC()
	entries, err := t.Platform.RecentLogs(ctx, target, vercel.LogQuery{
		Since: until.Add(-t.LogWindow),
		Until: until,
		Limit: limit,
		Level: "error",
	})
	if err != nil {
		return failed(err.Error())
	}
	if len(entries) == 0 {
		return succeeded("No se encontraron errores en los últimos 5 minutos.", map[string]any{
			"logs": []vercel.LogEntry{},
		})
	}
	return succeeded(
		fmt.Sprintf("Se encontraron %d registros de error en los últimos 5 minutos.", len(entries)),
		map[string]any{"logs": entries},
	)
}
