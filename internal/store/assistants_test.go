package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProvisionAssistantRequiresReadyProject(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	if _, _, err := sqlStore.ProvisionAssistant(ctx, ProvisionAssistantInput{ProjectID: "missing", Model: "m"}); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected project not found, got %v", err)
	}

	if _, err := sqlStore.UpsertProject(ctx, UpsertProjectInput{ID: "p1", Name: "Draft"}); err != nil {
		t.Fatalf("upsert project: %v", err)
	}
	if _, _, err := sqlStore.ProvisionAssistant(ctx, ProvisionAssistantInput{ProjectID: "p1", Model: "m"}); !errors.Is(err, ErrProjectNotReady) {
		t.Fatalf("expected project not ready, got %v", err)
	}
}

func TestProvisionAssistantIsIdempotent(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()
	first := newReadyProject(t, sqlStore, "p1")

	again, created, err := sqlStore.ProvisionAssistant(ctx, ProvisionAssistantInput{ProjectID: "p1", Model: "other"})
	if err != nil {
		t.Fatalf("provision again: %v", err)
	}
	if created {
		t.Fatal("expected existing assistant to be reused")
	}
	if again.ID != first.ID || again.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected assistant on re-provision: %+v", again)
	}

	updated, _, err := sqlStore.ProvisionAssistant(ctx, ProvisionAssistantInput{ProjectID: "p1", DeploymentProjectRef: "prj_new"})
	if err != nil {
		t.Fatalf("provision with new ref: %v", err)
	}
	if updated.DeploymentProjectRef != "prj_new" {
		t.Fatalf("expected deployment ref refresh, got %s", updated.DeploymentProjectRef)
	}
}

func TestUpsertProjectKeepsStatusWhenOmitted(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()
	newReadyProject(t, sqlStore, "p1")

	project, err := sqlStore.UpsertProject(ctx, UpsertProjectInput{ID: "p1", Name: "Renamed"})
	if err != nil {
		t.Fatalf("upsert project: %v", err)
	}
	if project.Status != ProjectStatusReady {
		t.Fatalf("expected status to stay ready, got %s", project.Status)
	}
	if project.DeploymentURL != "https://p1.example.com" {
		t.Fatalf("expected deployment url to be kept, got %s", project.DeploymentURL)
	}
}

func TestRecordAssistantInteraction(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()
	newReadyProject(t, sqlStore, "p1")

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := sqlStore.RecordAssistantInteraction(ctx, RecordInteractionInput{ProjectID: "p1", Messages: 2, Actions: 1, At: at}); err != nil {
		t.Fatalf("record interaction: %v", err)
	}
	if err := sqlStore.RecordAssistantInteraction(ctx, RecordInteractionInput{ProjectID: "p1", Messages: 2, At: at.Add(time.Minute)}); err != nil {
		t.Fatalf("record interaction: %v", err)
	}
	config, err := sqlStore.GetAssistantByProject(ctx, "p1")
	if err != nil {
		t.Fatalf("get assistant: %v", err)
	}
	if config.TotalMessages != 4 || config.TotalActions != 1 {
		t.Fatalf("unexpected counters: messages=%d actions=%d", config.TotalMessages, config.TotalActions)
	}
	if !config.LastInteractionAt.Equal(at.Add(time.Minute)) {
		t.Fatalf("unexpected last interaction: %s", config.LastInteractionAt)
	}

	if err := sqlStore.RecordAssistantInteraction(ctx, RecordInteractionInput{ProjectID: "nope", Messages: 2}); !errors.Is(err, ErrAssistantNotFound) {
		t.Fatalf("expected assistant not found, got %v", err)
	}
}

func TestLookupProfileEmail(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()
	if err := sqlStore.UpsertProfile(ctx, Profile{ID: "u1", Email: " Ana@Example.com "}); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}
	if err := sqlStore.UpsertProfile(ctx, Profile{ID: "u2"}); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}

	email, err := sqlStore.LookupProfileEmail(ctx, "u1")
	if err != nil {
		t.Fatalf("lookup email: %v", err)
	}
	if email != "ana@example.com" {
		t.Fatalf("unexpected email: %s", email)
	}
	if _, err := sqlStore.LookupProfileEmail(ctx, "u2"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected profile not found for empty email, got %v", err)
	}
	if _, err := sqlStore.LookupProfileEmail(ctx, "u3"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected profile not found, got %v", err)
	}
}
