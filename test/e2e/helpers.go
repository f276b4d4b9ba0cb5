package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
)

// ---------------------------------------------------------------------------
// HTTP helpers
// ---------------------------------------------------------------------------

// postJSON sends a POST with an optional JSON body, asserts the status code,
// and decodes the JSON response.
func (a *TestApp) postJSON(t *testing.T, path string, body any, expectedStatus int) map[string]any {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err, "failed to encode request body")
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(http.MethodPost, a.BaseURL+path, reqBody)
	require.NoError(t, err, "failed to create request")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return a.doJSON(t, req, expectedStatus)
}

// putJSON sends a PUT with a JSON body, asserts the status code, and decodes
// the JSON response.
func (a *TestApp) putJSON(t *testing.T, path string, body any, expectedStatus int) map[string]any {
	t.Helper()

	encoded, err := json.Marshal(body)
	require.NoError(t, err, "failed to encode request body")

	req, err := http.NewRequest(http.MethodPut, a.BaseURL+path, bytes.NewReader(encoded))
	require.NoError(t, err, "failed to create request")
	req.Header.Set("Content-Type", "application/json")

	return a.doJSON(t, req, expectedStatus)
}

// getJSON sends a GET, asserts the status code, and decodes the JSON
// response.
func (a *TestApp) getJSON(t *testing.T, path string, expectedStatus int) map[string]any {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, a.BaseURL+path, nil)
	require.NoError(t, err, "failed to create request")

	return a.doJSON(t, req, expectedStatus)
}

func (a *TestApp) doJSON(t *testing.T, req *http.Request, expectedStatus int) map[string]any {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "request to %s failed", req.URL.Path)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	require.Equal(t, expectedStatus, resp.StatusCode,
		"%s %s: unexpected status, body: %s", req.Method, req.URL.Path, string(raw))

	if len(raw) == 0 {
		return nil
	}
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded),
		"response from %s is not a JSON object: %s", req.URL.Path, string(raw))
	return decoded
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

// CreateProject inserts a project through the service layer.
func (a *TestApp) CreateProject(t *testing.T, name string) *models.Project {
	t.Helper()
	project, err := a.Projects.CreateProject(context.Background(), name, "https://"+name+".example")
	require.NoError(t, err, "failed to create project fixture")
	return project
}

// SetBrand upserts the project's brand config.
func (a *TestApp) SetBrand(t *testing.T, projectID uuid.UUID, brandName string, schema models.JSONMap) {
	t.Helper()
	_, err := a.Projects.UpsertBrandConfig(context.Background(), projectID, brandName, schema)
	require.NoError(t, err, "failed to upsert brand config fixture")
}

// CreateCompletedPage inserts a crawled page in completed status with no
// keyword assignment, the input shape for keyword research.
func (a *TestApp) CreateCompletedPage(t *testing.T, projectID uuid.UUID, url, title string, labels []string) uuid.UUID {
	t.Helper()

	pageID := uuid.New()
	_, err := a.DB.ExecContext(context.Background(), `
		INSERT INTO crawled_pages (id, project_id, normalized_url, title, status, labels)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		pageID, projectID, url, title, models.PageStatusCompleted, models.StringList(labels))
	require.NoError(t, err, "failed to insert crawled page fixture")

	return pageID
}

// CreateApprovedPage inserts a crawled page with an approved keyword
// assignment, which is what makes it eligible for content generation.
func (a *TestApp) CreateApprovedPage(t *testing.T, projectID uuid.UUID, url, keyword string) uuid.UUID {
	t.Helper()

	pageID := uuid.New()
	_, err := a.DB.ExecContext(context.Background(), `
		INSERT INTO crawled_pages (id, project_id, normalized_url, title, status)
		VALUES ($1, $2, $3, $4, $5)`,
		pageID, projectID, url, "Fixture: "+keyword, models.PageStatusCompleted)
	require.NoError(t, err, "failed to insert crawled page fixture")

	_, err = a.DB.ExecContext(context.Background(), `
		INSERT INTO page_keywords (id, crawled_page_id, primary_keyword, is_approved)
		VALUES ($1, $2, $3, TRUE)`,
		uuid.New(), pageID, keyword)
	require.NoError(t, err, "failed to insert page keyword fixture")

	return pageID
}

// InsertRunningJob inserts a running generation job whose updated_at is age
// in the past. Older than the stale threshold, it is the shape a crashed run
// leaves behind.
func (a *TestApp) InsertRunningJob(t *testing.T, projectID uuid.UUID, age time.Duration) uuid.UUID {
	t.Helper()

	jobID := uuid.New()
	staleAt := time.Now().UTC().Add(-age)
	_, err := a.DB.ExecContext(context.Background(), `
		INSERT INTO crawl_jobs (id, project_id, job_type, status, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		jobID, projectID, models.JobTypeContentGeneration, models.JobStatusRunning, staleAt)
	require.NoError(t, err, "failed to insert stale job fixture")

	return jobID
}

// ---------------------------------------------------------------------------
// Polling
// ---------------------------------------------------------------------------

// WaitForOverallStatus polls the status endpoint until overall_status
// reaches want, returning the final response.
func (a *TestApp) WaitForOverallStatus(t *testing.T, projectID uuid.UUID, want string) map[string]any {
	t.Helper()

	path := fmt.Sprintf("/api/projects/%s/content/status", projectID)
	var last map[string]any
	require.Eventually(t, func() bool {
		last = a.getJSON(t, path, http.StatusOK)
		status, _ := last["overall_status"].(string)
		return status == want
	}, 30*time.Second, 100*time.Millisecond,
		"project %s never reached overall status %q, last: %v", projectID, want, last)
	return last
}

// WaitForJobStatus polls the job row directly until it reaches want.
func (a *TestApp) WaitForJobStatus(t *testing.T, jobID uuid.UUID, want string) *models.CrawlJob {
	t.Helper()

	var job *models.CrawlJob
	require.Eventually(t, func() bool {
		var err error
		job, err = a.Jobs.Get(context.Background(), jobID)
		if err != nil {
			return false
		}
		return job.Status == want
	}, 30*time.Second, 100*time.Millisecond,
		"job %s never reached status %q", jobID, want)
	return job
}
