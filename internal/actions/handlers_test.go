package actions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwizi/project-assistant/internal/vercel"
)

func TestPlatformActionsRequireProjectReference(t *testing.T) {
	toolkit := newTestToolkit(&fakePlatform{}).withDefaults()
	actx := readyContext()
	actx.DeploymentProjectID = ""

	for _, handler := range []Handler{toolkit.clearCache, toolkit.restartService, toolkit.getLogs} {
		result := handler(context.Background(), actx, nil)
		assert.False(t, result.Success)
		assert.Equal(t, MessageNoDeploymentProject, result.Message)
	}
}

func TestPlatformActionsRequireToken(t *testing.T) {
	toolkit := newTestToolkit(&fakePlatform{}).withDefaults()
	actx := readyContext()
	actx.Credentials.DeploymentToken = " "

	for _, handler := range []Handler{toolkit.clearCache, toolkit.restartService, toolkit.getLogs} {
		result := handler(context.Background(), actx, nil)
		assert.False(t, result.Success)
		assert.Equal(t, MessageNoDeploymentToken, result.Message)
	}
}

func TestClearCache(t *testing.T) {
	platform := &fakePlatform{}
	toolkit := newTestToolkit(platform).withDefaults()

	result := toolkit.clearCache(context.Background(), readyContext(), nil)

	require.True(t, result.Success)
	assert.Equal(t, map[string]any{"purged_at": "2026-04-10T15:30:00Z"}, result.Data)
	require.Len(t, platform.purged, 1)
	assert.Equal(t, vercel.Target{Token: "tok", TeamID: "team_1", ProjectID: "prj_1"}, platform.purged[0])

	platform.err = errPlatformDown
	result = toolkit.clearCache(context.Background(), readyContext(), nil)
	assert.False(t, result.Success)
	assert.Equal(t, "platform down", result.Message)
}

func TestRestartServiceRedeploysLatest(t *testing.T) {
	platform := &fakePlatform{
		hasLatest: true,
		latest:    vercel.Deployment{ID: "dpl_old", Name: "shop", ReadyState: "READY"},
	}
	toolkit := newTestToolkit(platform).withDefaults()

	result := toolkit.restartService(context.Background(), readyContext(), nil)

	require.True(t, result.Success, result.Message)
	assert.Equal(t, map[string]any{
		"deployment_id": "dpl_new",
		"url":           "https://shop-new.vercel.app",
		"started_at":    "2026-01-02T03:04:05Z",
	}, result.Data)
	require.Len(t, platform.redeployed, 1)
	assert.Equal(t, "dpl_old", platform.redeployed[0].ID)
}

func TestRestartServiceWithoutDeployments(t *testing.T) {
	platform := &fakePlatform{}
	toolkit := newTestToolkit(platform).withDefaults()

	result := toolkit.restartService(context.Background(), readyContext(), nil)

	assert.False(t, result.Success)
	assert.Equal(t, "No se encontraron despliegues para reiniciar.", result.Message)
	assert.Empty(t, platform.redeployed)
}

func TestGetLogsEmptyIsSuccess(t *testing.T) {
	platform := &fakePlatform{}
	toolkit := newTestToolkit(platform).withDefaults()

	result := toolkit.getLogs(context.Background(), readyContext(), nil)

	require.True(t, result.Success)
	assert.Equal(t, map[string]any{"logs": []vercel.LogEntry{}}, result.Data)
	require.Len(t, platform.logQueries, 1)
	query := platform.logQueries[0]
	assert.Equal(t, DefaultLogLimit, query.Limit)
	assert.Equal(t, "error", query.Level)
	assert.Equal(t, 5*time.Minute, query.Until.Sub(query.Since))
}

func TestGetLogsLimit(t *testing.T) {
	platform := &fakePlatform{logs: []vercel.LogEntry{{Message: "boom", Level: "error"}}}
	toolkit := newTestToolkit(platform).withDefaults()

	result := toolkit.getLogs(context.Background(), readyContext(), Params{"limit": float64(5000)})
	require.True(t, result.Success)
	assert.Contains(t, result.Message, "1 registros")
	assert.Equal(t, MaxLogLimit, platform.logQueries[0].Limit)

	toolkit.getLogs(context.Background(), readyContext(), Params{"value": float64(10)})
	assert.Equal(t, 10, platform.logQueries[1].Limit)
}

func TestResetPasswordEmailResolution(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   string
	}{
		{name: "explicit email", params: Params{"email": "Ana@Example.com"}, want: "ana@example.com"},
		{name: "raw scalar email", params: Params{"value": "ana@example.com"}, want: "ana@example.com"},
		{name: "named user", params: Params{"user_id": "u2"}, want: "other@example.com"},
		{name: "camel case user", params: Params{"userId": "u2"}, want: "other@example.com"},
		{name: "requester fallback", params: nil, want: "requester@example.com"},
		{name: "scalar user id", params: Params{"value": "u2"}, want: "other@example.com"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			identity := &fakeIdentity{}
			toolkit := newTestToolkit(&fakePlatform{})
			toolkit.Identity = identity

			result := toolkit.withDefaults().resetPassword(context.Background(), readyContext(), tc.params)

			require.True(t, result.Success, result.Message)
			assert.Equal(t, []string{tc.want}, identity.sent)
			assert.Equal(t, map[string]any{"email": tc.want}, result.Data)
		})
	}
}

func TestResetPasswordFailures(t *testing.T) {
	toolkit := newTestToolkit(&fakePlatform{})
	toolkit.Profiles = fakeProfiles{}
	result := toolkit.withDefaults().resetPassword(context.Background(), readyContext(), nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "No se encontró un email")

	toolkit = newTestToolkit(&fakePlatform{})
	toolkit.Identity = &fakeIdentity{err: errors.New("rate limited by provider")}
	result = toolkit.withDefaults().resetPassword(context.Background(), readyContext(), Params{"email": "a@b.co"})
	assert.False(t, result.Success)
	assert.Equal(t, "rate limited by provider", result.Message)

	toolkit.Identity = nil
	result = toolkit.withDefaults().resetPassword(context.Background(), readyContext(), Params{"email": "a@b.co"})
	assert.False(t, result.Success)
}

func TestResetPasswordNamedTargetNeverFallsBackToRequester(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		message string
	}{
		{name: "unknown user id", params: Params{"user_id": "u-missing"}, message: "No se encontró un email para el usuario u-missing."},
		{name: "unknown camel case user id", params: Params{"userId": "ghost"}, message: "No se encontró un email para el usuario ghost."},
		{name: "unknown scalar user", params: Params{"value": "ghost"}, message: "No se encontró un email para el usuario ghost."},
		{name: "email without at sign", params: Params{"email": "ana.example.com"}, message: "El email indicado no es válido: ana.example.com"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			identity := &fakeIdentity{}
			toolkit := newTestToolkit(&fakePlatform{})
			toolkit.Identity = identity

			result := toolkit.withDefaults().resetPassword(context.Background(), readyContext(), tc.params)

			assert.False(t, result.Success)
			assert.Equal(t, tc.message, result.Message)
			assert.Empty(t, identity.sent)
		})
	}
}

func TestHealthCheckRunsEveryApplicableCheck(t *testing.T) {
	platform := &fakePlatform{hasLatest: true, latest: vercel.Deployment{ID: "dpl", ReadyState: "READY"}}
	prober := &fakeProber{status: 503}
	toolkit := newTestToolkit(platform)
	toolkit.Prober = prober
	toolkit.Projects = fakeProjects{err: errors.New("db unreachable")}

	result := toolkit.withDefaults().healthCheck(context.Background(), readyContext(), nil)

	assert.False(t, result.Success)
	data, ok := result.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, data["healthy"])
	checks, ok := data["checks"].([]HealthCheckResult)
	require.True(t, ok)
	require.Len(t, checks, 3)
	assert.Equal(t, "database", checks[0].Name)
	assert.False(t, checks[0].Success)
	assert.Equal(t, "http", checks[1].Name)
	assert.False(t, checks[1].Success)
	assert.Equal(t, "vercel", checks[2].Name)
	assert.True(t, checks[2].Success)
	assert.Equal(t, "Chequeos fallidos: database, http", result.Message)
	assert.Equal(t, []string{"https://shop.example.com"}, prober.urls)
}

func TestHealthCheckSkipsChecksWithoutPrerequisites(t *testing.T) {
	toolkit := newTestToolkit(&fakePlatform{})
	actx := readyContext()
	actx.DeploymentURL = ""
	actx.Credentials.DeploymentToken = ""

	result := toolkit.withDefaults().healthCheck(context.Background(), actx, nil)

	require.True(t, result.Success, result.Message)
	checks := result.Data.(map[string]any)["checks"].([]HealthCheckResult)
	require.Len(t, checks, 1)
	assert.Equal(t, "database", checks[0].Name)
}

func TestHealthCheckPlatformNotReady(t *testing.T) {
	platform := &fakePlatform{hasLatest: true, latest: vercel.Deployment{ID: "dpl", ReadyState: "ERROR"}}
	toolkit := newTestToolkit(platform)

	result := toolkit.withDefaults().healthCheck(context.Background(), readyContext(), nil)

	assert.False(t, result.Success)
	assert.Equal(t, "Chequeos fallidos: vercel", result.Message)
}
