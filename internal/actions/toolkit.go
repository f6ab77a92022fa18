package actions

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/project-assistant/internal/store"
	"github.com/dwizi/project-assistant/internal/vercel"
)

const (
	MessageNoDeploymentProject = "No hay información de Vercel configurada para este proyecto."
	MessageNoDeploymentToken   = "El token de Vercel no está configurado."
)

const (
	DefaultProbeTimeout = 5 * time.Second
	DefaultLogWindow    = 5 * time.Minute
	DefaultLogLimit     = 50
	MaxLogLimit         = 500
)

type IdentityProvider interface {
	SendPasswordReset(ctx context.Context, email string) error
}

type ProfileDirectory interface {
	LookupProfileEmail(ctx context.Context, userID string) (string, error)
}

type ProjectDirectory interface {
	LookupProject(ctx context.Context, projectID string) (store.Project, error)
}

type DeploymentPlatform interface {
	PurgeCache(ctx context.Context, target vercel.Target) error
	LatestDeployment(ctx context.Context, target vercel.Target) (vercel.Deployment, bool, error)
	Redeploy(ctx context.Context, target vercel.Target, source vercel.Deployment) (vercel.Deployment, error)
	RecentLogs(ctx context.Context, target vercel.Target, query vercel.LogQuery) ([]vercel.LogEntry, error)
}

// Prober reports the HTTP status of a URL.
type Prober interface {
	Probe(ctx context.Context, url string) (int, error)
}

// Toolkit holds the external collaborators the built-in handlers call into.
type Toolkit struct {
	Identity     IdentityProvider
	Profiles     ProfileDirectory
	Projects     ProjectDirectory
	Platform     DeploymentPlatform
	Prober       Prober
	ProbeTimeout time.Duration
	LogWindow    time.Duration
	Now          func() time.Time
}

func (t Toolkit) withDefaults() Toolkit {
	if t.Prober == nil {
		t.Prober = HTTPProber{}
	}
	if t.ProbeTimeout <= 0 {
		t.ProbeTimeout = DefaultProbeTimeout
	}
	if t.LogWindow <= 0 {
		t.LogWindow = DefaultLogWindow
	}
	if t.Now == nil {
		t.Now = time.Now
	}
	return t
}

// deploymentTarget checks the shared prerequisites of the platform actions.
func (t Toolkit) deploymentTarget(actx Context) (vercel.Target, string, bool) {
	projectRef := strings.TrimSpace(actx.DeploymentProjectID)
	if projectRef == "" {
		return vercel.Target{}, MessageNoDeploymentProject, false
	}
	token := strings.TrimSpace(actx.Credentials.DeploymentToken)
	if token == "" || t.Platform == nil {
		return vercel.Target{}, MessageNoDeploymentToken, false
	}
	return vercel.Target{
		Token:     token,
		TeamID:    strings.TrimSpace(actx.Credentials.DeploymentTeamID),
		ProjectID: projectRef,
	}, "", true
}

// HTTPProber issues HEAD requests without following redirects.
type HTTPProber struct {
	Client *http.Client
}

func (p HTTPProber) Probe(ctx context.Context, url string) (int, error) {
	client := p.Client
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	res, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	res.Body.Close()
	return res.StatusCode, nil
}
