package toggl

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"toggl-calsync/internal/domain"
)

// Client implements ports.TimeAPI against the Toggl Track API v9.
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
	log      *slog.Logger
}

func NewClient(baseURL, apiToken string, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.track.toggl.com"
	}
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// ListRecords fetches records in [from, to].
// Toggl v9: GET /api/v9/me/time_entries?start_date=...&end_date=...
// A 200 body that is not a JSON array yields (nil, nil): no usable data,
// distinct from an empty window.
func (c *Client) ListRecords(ctx context.Context, from, to time.Time) ([]domain.TimeRecord, error) {
	if c.apiToken == "" {
		return nil, errors.New("toggl: missing api token")
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path = "/api/v9/me/time_entries"
	q := u.Query()
	q.Set("start_date", from.Format(time.RFC3339))
	q.Set("end_date", to.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	body, status, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("toggl: unexpected status %d: %s", status, truncate(body))
	}

	var raw []rawTimeEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		c.log.Warn("toggl: response body is not a record list", slog.String("error", err.Error()))
		return nil, nil
	}
	out := make([]domain.TimeRecord, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// RecordExists probes a record by id.
// Toggl v9: GET /api/v9/me/time_entries/{id}. 404 means confirmed deleted;
// any other non-200 status is an error so callers never treat a transient
// failure as a deletion.
func (c *Client) RecordExists(ctx context.Context, id string) (bool, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return false, err
	}
	u.Path = "/api/v9/me/time_entries/" + url.PathEscape(id)

	body, status, err := c.get(ctx, u.String())
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("toggl: unexpected status %d probing record %s: %s", status, id, truncate(body))
	}
}

// GetProject resolves a project name. A record without project ids has
// nothing to resolve and returns an empty ProjectInfo; a failed lookup is a
// retryable error for the caller to handle.
func (c *Client) GetProject(ctx context.Context, workspaceID, projectID string) (domain.ProjectInfo, error) {
	if workspaceID == "" || projectID == "" {
		return domain.ProjectInfo{}, nil
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return domain.ProjectInfo{}, err
	}
	u.Path = fmt.Sprintf("/api/v9/workspaces/%s/projects/%s", url.PathEscape(workspaceID), url.PathEscape(projectID))

	body, status, err := c.get(ctx, u.String())
	if err != nil {
		return domain.ProjectInfo{}, err
	}
	if status != http.StatusOK {
		return domain.ProjectInfo{}, fmt.Errorf("toggl: unexpected status %d fetching project %s/%s: %s",
			status, workspaceID, projectID, truncate(body))
	}
	var p rawProject
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.ProjectInfo{}, fmt.Errorf("toggl: decode project %s/%s: %w", workspaceID, projectID, err)
	}
	return domain.ProjectInfo{Name: p.Name}, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	// Basic auth: token:api_token
	auth := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", c.apiToken, "api_token")))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func truncate(b []byte) string {
	if len(b) > 256 {
		b = b[:256]
	}
	return string(b)
}

// rawTimeEntry mirrors the JSON from Toggl v9. Timestamps are decoded as
// strings and parsed per record so one malformed record does not poison the
// whole batch.
type rawTimeEntry struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	ProjectID   *int64  `json:"project_id"`
	WorkspaceID *int64  `json:"workspace_id"`
	Start       string  `json:"start"`
	Stop        *string `json:"stop"`
}

func (r rawTimeEntry) toDomain() domain.TimeRecord {
	rec := domain.TimeRecord{
		Description: r.Description,
	}
	if r.ID != 0 {
		rec.ID = strconv.FormatInt(r.ID, 10)
	}
	if r.ProjectID != nil {
		rec.ProjectID = strconv.FormatInt(*r.ProjectID, 10)
	}
	if r.WorkspaceID != nil {
		rec.WorkspaceID = strconv.FormatInt(*r.WorkspaceID, 10)
	}
	if t, err := time.Parse(time.RFC3339, r.Start); err == nil {
		rec.Start = t
	}
	if r.Stop != nil {
		if t, err := time.Parse(time.RFC3339, *r.Stop); err == nil {
			rec.Stop = &t
		} else {
			// Keep the pointer so the record reads as completed-but-invalid
			// and gets skipped with a log line rather than synced at zero.
			var zero time.Time
			rec.Stop = &zero
		}
	}
	return rec
}

type rawProject struct {
	Name string `json:"name"`
}
