// Package assessment looks up the latest scored psychological assessment for
// a child from the external assessment service, with an optional Redis
// read-through cache in front.
package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"carelink/internal/referral/ports"
	id "carelink/pkg/domain"
	"carelink/pkg/platform/sentinel"
)

// Client fetches assessments over HTTP. A 404 from the service means the
// child has never been assessed; that is a nil result, not an error.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) LatestByChild(ctx context.Context, childID id.ChildID) (*ports.AssessmentResult, error) {
	endpoint := fmt.Sprintf("%s/children/%s/assessments/latest", c.baseURL, url.PathEscape(string(childID)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build assessment request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assessment call: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("assessment service returned status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	var decoded struct {
		TestName string    `json:"testName"`
		Score    float64   `json:"score"`
		Level    string    `json:"level"`
		Summary  string    `json:"summary"`
		ScoredAt time.Time `json:"scoredAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode assessment response: %w", err)
	}
	return &ports.AssessmentResult{
		ChildID:  childID,
		TestName: decoded.TestName,
		Score:    decoded.Score,
		Level:    decoded.Level,
		Summary:  decoded.Summary,
		ScoredAt: decoded.ScoredAt,
	}, nil
}
