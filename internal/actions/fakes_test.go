package actions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dwizi/project-assistant/internal/store"
	"github.com/dwizi/project-assistant/internal/vercel"
)

type fakePlatform struct {
	mu         sync.Mutex
	purged     []vercel.Target
	latest     vercel.Deployment
	hasLatest  bool
	latestErr  error
	redeployed []vercel.Deployment
	logs       []vercel.LogEntry
	logQueries []vercel.LogQuery
	err        error
	purgeHook  func(ctx context.Context) error
}

func (f *fakePlatform) PurgeCache(ctx context.Context, target vercel.Target) error {
	f.mu.Lock()
	f.purged = append(f.purged, target)
	hook := f.purgeHook
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx)
	}
	return f.err
}

func (f *fakePlatform) LatestDeployment(ctx context.Context, target vercel.Target) (vercel.Deployment, bool, error) {
	if f.latestErr != nil {
		return vercel.Deployment{}, false, f.latestErr
	}
	return f.latest, f.hasLatest, nil
}

func (f *fakePlatform) Redeploy(ctx context.Context, target vercel.Target, source vercel.Deployment) (vercel.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redeployed = append(f.redeployed, source)
	if f.err != nil {
		return vercel.Deployment{}, f.err
	}
	return vercel.Deployment{
		ID:        "dpl_new",
		URL:       "https://shop-new.vercel.app",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

func (f *fakePlatform) RecentLogs(ctx context.Context, target vercel.Target, query vercel.LogQuery) ([]vercel.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logQueries = append(f.logQueries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.logs, nil
}

type fakeIdentity struct {
	sent []string
	err  error
}

func (f *fakeIdentity) SendPasswordReset(ctx context.Context, email string) error {
	f.sent = append(f.sent, email)
	return f.err
}

type fakeProfiles map[string]string

func (f fakeProfiles) LookupProfileEmail(ctx context.Context, userID string) (string, error) {
	email, ok := f[userID]
	if !ok {
		return "", store.ErrProfileNotFound
	}
	return email, nil
}

type fakeProjects struct {
	err error
}

func (f fakeProjects) LookupProject(ctx context.Context, projectID string) (store.Project, error) {
	if f.err != nil {
		return store.Project{}, f.err
	}
	return store.Project{ID: projectID, Status: store.ProjectStatusReady}, nil
}

type fakeProber struct {
	status int
	err    error
	urls   []string
}

func (f *fakeProber) Probe(ctx context.Context, url string) (int, error) {
	f.urls = append(f.urls, url)
	return f.status, f.err
}

type fakeAudits struct {
	mu      sync.Mutex
	inputs  []store.CreateActionAuditInput
	ctxErrs []error
	err     error
}

func (f *fakeAudits) CreateActionAudit(ctx context.Context, input store.CreateActionAuditInput) (store.ActionAudit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.err != nil {
		return store.ActionAudit{}, f.err
	}
	return store.ActionAudit{ID: "audit_1"}, nil
}

type fakeReporter struct {
	components []string
	errs       []error
	beats      int
}

func (f *fakeReporter) Beat(component, message string) {
	f.beats++
}

func (f *fakeReporter) Degrade(component, message string, err error) {
	f.components = append(f.components, component)
	f.errs = append(f.errs, err)
}

var errPlatformDown = errors.New("platform down")

var fixedNow = time.Date(2026, 4, 10, 15, 30, 0, 0, time.UTC)

func readyContext() Context {
	return Context{
		ProjectID:           "p1",
		AssistantID:         "asst_1",
		ConversationID:      "conv_1",
		RequesterID:         "u1",
		DeploymentProjectID: "prj_1",
		DeploymentURL:       "https://shop.example.com",
		Credentials:         Credentials{DeploymentToken: "tok", DeploymentTeamID: "team_1"},
	}
}

func newTestToolkit(platform *fakePlatform) Toolkit {
	return Toolkit{
		Identity: &fakeIdentity{},
		Profiles: fakeProfiles{"u1": "requester@example.com", "u2": "other@example.com"},
		Projects: fakeProjects{},
		Platform: platform,
		Prober:   &fakeProber{status: 200},
		Now:      func() time.Time { return fixedNow },
	}
}
