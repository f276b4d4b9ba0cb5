// Package services implements the durable-store operations behind the
// pipeline: projects, pages, content, briefs, prompt logs, and jobs.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/database"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
)

// ProjectService manages projects and their brand configuration.
type ProjectService struct {
	db *database.Client
}

// NewProjectService creates a new ProjectService
func NewProjectService(db *database.Client) *ProjectService {
	return &ProjectService{db: db}
}

// CreateProject inserts a new project.
func (s *ProjectService) CreateProject(ctx context.Context, name, siteURL string) (*models.Project, error) {
	if name == "" {
		return nil, NewValidationError("name", "required")
	}
	if siteURL == "" {
		return nil, NewValidationError("site_url", "required")
	}

	project := &models.Project{
		ID:               uuid.New(),
		Name:             name,
		SiteURL:          siteURL,
		PhaseStatus:      models.JSONMap{},
		BrandWizardState: models.JSONMap{},
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO projects (id, name, site_url, phase_status, brand_wizard_state, created_at, updated_at)
		VALUES (:id, :name, :site_url, :phase_status, :brand_wizard_state, :created_at, :updated_at)`,
		project)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

// GetProject retrieves a project by ID.
func (s *ProjectService) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := s.db.GetContext(ctx, &project, `SELECT * FROM projects WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFoundError("project", id.String())
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

// MergePhaseStatus overlays value under phase_status[phase][key]. The blob is
// read and written inside one transaction so concurrent phase writers do not
// drop each other's keys.
func (s *ProjectService) MergePhaseStatus(ctx context.Context, projectID uuid.UUID, phase, key string, value any) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var status models.JSONMap
	err = tx.GetContext(ctx, &status,
		`SELECT phase_status FROM projects WHERE id = $1 FOR UPDATE`, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewNotFoundError("project", projectID.String())
		}
		return fmt.Errorf("failed to load phase status: %w", err)
	}

	phaseMap, _ := status[phase].(map[string]any)
	if phaseMap == nil {
		phaseMap = map[string]any{}
	}
	phaseMap[key] = value
	status[phase] = phaseMap

	_, err = tx.ExecContext(ctx,
		`UPDATE projects SET phase_status = $1, updated_at = NOW() WHERE id = $2`,
		status, projectID)
	if err != nil {
		return fmt.Errorf("failed to update phase status: %w", err)
	}

	return tx.Commit()
}

// GetBrandConfig returns the project's brand configuration, or an empty
// config when none exists. Callers never need to distinguish the two.
func (s *ProjectService) GetBrandConfig(ctx context.Context, projectID uuid.UUID) (*models.BrandConfig, error) {
	var cfg models.BrandConfig
	err := s.db.GetContext(ctx, &cfg,
		`SELECT * FROM brand_configs WHERE project_id = $1`, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.BrandConfig{ProjectID: projectID, V2Schema: models.JSONMap{}}, nil
		}
		return nil, fmt.Errorf("failed to get brand config: %w", err)
	}
	return &cfg, nil
}

// UpsertBrandConfig writes a project's brand configuration, replacing any
// existing row.
func (s *ProjectService) UpsertBrandConfig(ctx context.Context, projectID uuid.UUID, brandName string, schema models.JSONMap) (*models.BrandConfig, error) {
	cfg := &models.BrandConfig{
		ID:        uuid.New(),
		ProjectID: projectID,
		BrandName: brandName,
		V2Schema:  schema,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	err := s.db.GetContext(ctx, cfg, `
		INSERT INTO brand_configs (id, project_id, brand_name, v2_schema, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (project_id) DO UPDATE
		SET brand_name = EXCLUDED.brand_name,
		    v2_schema = EXCLUDED.v2_schema,
		    updated_at = NOW()
		RETURNING *`,
		cfg.ID, cfg.ProjectID, cfg.BrandName, cfg.V2Schema, cfg.CreatedAt, cfg.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert brand config: %w", err)
	}
	return cfg, nil
}
