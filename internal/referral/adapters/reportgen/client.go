// Package reportgen holds the HTTP adapter for the integrated-report
// generator. Generation is asynchronous; the result arrives later through the
// referral webhook.
package reportgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	id "carelink/pkg/domain"
	"carelink/pkg/platform/sentinel"
)

// Client kicks off integrated-report builds.
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

func (c *Client) Generate(ctx context.Context, referralID id.ReferralID, childID id.ChildID) error {
	body, err := json.Marshal(map[string]string{
		"referralId": referralID.String(),
		"childId":    string(childID),
	})
	if err != nil {
		return fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/integrated-reports", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("report generator call: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("report generator returned status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}
	return nil
}
