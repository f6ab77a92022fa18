package vercel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPurgeCacheSendsWildcardWithTeam(t *testing.T) {
	var gotPath, gotTeam, gotAuth string
	var gotBody map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTeam = r.URL.Query().Get("teamId")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL+"/", time.Second)
	err := client.PurgeCache(context.Background(), Target{Token: "tok", TeamID: "team_1", ProjectID: "prj_1"})
	if err != nil {
		t.Fatalf("purge cache: %v", err)
	}
	if gotPath != "/v1/projects/prj_1/purge" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotTeam != "team_1" || gotAuth != "Bearer tok" {
		t.Fatalf("unexpected team/auth: %s %s", gotTeam, gotAuth)
	}
	if len(gotBody["paths"]) != 1 || gotBody["paths"][0] != "/*" {
		t.Fatalf("unexpected body: %v", gotBody)
	}
}

func TestLatestDeploymentAndRedeploy(t *testing.T) {
	var redeployBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v6/deployments":
			if r.URL.Query().Get("projectId") != "prj_1" || r.URL.Query().Get("limit") != "1" {
				t.Errorf("unexpected query: %s", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(`{"deployments":[{"uid":"dpl_old","name":"shop","url":"shop-old.vercel.app","state":"READY","target":"production","created":1700000000000}]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v13/deployments":
			_ = json.NewDecoder(r.Body).Decode(&redeployBody)
			_, _ = w.Write([]byte(`{"id":"dpl_new","url":"shop-new.vercel.app","readyState":"queued","createdAt":1700000100000}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, time.Second)
	target := Target{Token: "tok", ProjectID: "prj_1"}
	latest, ok, err := client.LatestDeployment(context.Background(), target)
	if err != nil || !ok {
		t.Fatalf("latest deployment: ok=%v err=%v", ok, err)
	}
	if latest.ID != "dpl_old" || latest.ReadyState != "READY" || latest.URL != "https://shop-old.vercel.app" {
		t.Fatalf("unexpected deployment: %+v", latest)
	}

	created, err := client.Redeploy(context.Background(), target, latest)
	if err != nil {
		t.Fatalf("redeploy: %v", err)
	}
	if created.ID != "dpl_new" || created.ReadyState != "QUEUED" {
		t.Fatalf("unexpected redeploy: %+v", created)
	}
	if !created.CreatedAt.Equal(time.UnixMilli(1700000100000).UTC()) {
		t.Fatalf("unexpected created at: %s", created.CreatedAt)
	}
	if redeployBody["deploymentId"] != "dpl_old" || redeployBody["name"] != "shop" || redeployBody["target"] != "production" {
		t.Fatalf("unexpected redeploy body: %v", redeployBody)
	}
}

func TestLatestDeploymentEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"deployments":[]}`))
	}))
	defer server.Close()

	_, ok, err := New(server.URL, time.Second).LatestDeployment(context.Background(), Target{Token: "tok", ProjectID: "prj_1"})
	if err != nil {
		t.Fatalf("latest deployment: %v", err)
	}
	if ok {
		t.Fatal("expected no deployment")
	}
}

func TestRecentLogsQueryAndLimit(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"since": r.URL.Query().Get("since"),
			"until": r.URL.Query().Get("until"),
			"limit": r.URL.Query().Get("limit"),
			"level": r.URL.Query().Get("level"),
		}
		_, _ = w.Write([]byte(`{"logs":[
			{"timestamp":1700000000000,"level":"error","message":"boom","source":"lambda"},
			{"timestamp":1700000001000,"level":"error","message":"boom again"},
			{"timestamp":1700000002000,"level":"error","message":"extra"}
		]}`))
	}))
	defer server.Close()

	until := time.UnixMilli(1700000300000).UTC()
	entries, err := New(server.URL, time.Second).RecentLogs(context.Background(), Target{Token: "tok", ProjectID: "prj_1"}, LogQuery{
		Since: until.Add(-5 * time.Minute),
		Until: until,
		Limit: 2,
		Level: "error",
	})
	if err != nil {
		t.Fatalf("recent logs: %v", err)
	}
	if len(entries) != 2 || entries[0].Message != "boom" || entries[0].Source != "lambda" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if gotQuery["since"] != "1700000000000" || gotQuery["until"] != "1700000300000" || gotQuery["limit"] != "2" || gotQuery["level"] != "error" {
		t.Fatalf("unexpected query: %v", gotQuery)
	}
}

func TestAPIErrorDecoded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"forbidden","message":"Not authorized"}}`))
	}))
	defer server.Close()

	err := New(server.URL, time.Second).PurgeCache(context.Background(), Target{Token: "tok", ProjectID: "prj_1"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusForbidden || apiErr.Message != "Not authorized" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestMissingTokenFailsFast(t *testing.T) {
	err := New("", time.Second).PurgeCache(context.Background(), Target{ProjectID: "prj_1"})
	if !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}
