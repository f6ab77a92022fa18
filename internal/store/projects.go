package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const ProjectStatusReady = "ready"

type Project struct {
	ID             string
	Name           string
	Status         string
	DeploymentURL  string
	DataProjectRef string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type UpsertProjectInput struct {
	ID             string
	Name           string
	Status         string
	DeploymentURL  string
	DataProjectRef string
}

type Profile struct {
	ID          string
	Email       string
	DisplayName string
}

func (s *Store) UpsertProject(ctx context.Context, input UpsertProjectInput) (Project, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return Project{}, fmt.Errorf("project id is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = id
	}
	status := strings.ToLower(strings.TrimSpace(input.Status))
	nowUnix := time.Now().UTC().Unix()
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO projects (id, name, status, deployment_url, data_project_ref, created_at_unix, updated_at_unix)
		 VALUES (?, ?, COALESCE(?, 'draft'), ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = COALESCE(?, projects.status),
			deployment_url = COALESCE(excluded.deployment_url, projects.deployment_url),
			data_project_ref = COALESCE(excluded.data_project_ref, projects.data_project_ref),
			updated_at_unix = excluded.updated_at_unix`,
		id,
		name,
		nullIfEmpty(status),
		nullIfEmpty(strings.TrimSpace(input.DeploymentURL)),
		nullIfEmpty(strings.TrimSpace(input.DataProjectRef)),
		nowUnix,
		nowUnix,
		nullIfEmpty(status),
	); err != nil {
		return Project{}, fmt.Errorf("upsert project: %w", err)
	}
	return s.LookupProject(ctx, id)
}

func (s *Store) LookupProject(ctx context.Context, projectID string) (Project, error) {
	var project Project
	var createdAtUnix, updatedAtUnix int64
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, status, COALESCE(deployment_url, ''), COALESCE(data_project_ref, ''), created_at_unix, updated_at_unix
		 FROM projects
		 WHERE id = ?`,
		strings.TrimSpace(projectID),
	).Scan(
		&project.ID,
		&project.Name,
		&project.Status,
		&project.DeploymentURL,
		&project.DataProjectRef,
		&createdAtUnix,
		&updatedAtUnix,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrProjectNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("lookup project: %w", err)
	}
	project.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	project.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
	return project, nil
}

func (s *Store) UpsertProfile(ctx context.Context, profile Profile) error {
	id := strings.TrimSpace(profile.ID)
	if id == "" {
		return fmt.Errorf("profile id is required")
	}
	nowUnix := time.Now().UTC().Unix()
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO profiles (id, email, display_name, created_at_unix, updated_at_unix)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			updated_at_unix = excluded.updated_at_unix`,
		id,
		nullIfEmpty(strings.ToLower(strings.TrimSpace(profile.Email))),
		nullIfEmpty(strings.TrimSpace(profile.DisplayName)),
		nowUnix,
		nowUnix,
	); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// LookupProfileEmail returns ErrProfileNotFound when the profile is missing or has no email.
func (s *Store) LookupProfileEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(email, '') FROM profiles WHERE id = ?`,
		strings.TrimSpace(userID),
	).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrProfileNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup profile email: %w", err)
	}
	if strings.TrimSpace(email) == "" {
		return "", ErrProfileNotFound
	}
	return email, nil
}
