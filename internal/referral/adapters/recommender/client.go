// Package recommender holds the HTTP adapter for the external AI
// recommendation service.
package recommender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"carelink/internal/referral/ports"
	id "carelink/pkg/domain"
	"carelink/pkg/platform/sentinel"
)

// Client calls the AI recommendation service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type recommendRequest struct {
	ReferralID        string            `json:"referralId"`
	ChildID           string            `json:"childId"`
	CareType          string            `json:"careType"`
	CenterName        string            `json:"centerName"`
	PsychologicalInfo string            `json:"psychologicalInfo,omitempty"`
	RequestMotivation string            `json:"requestMotivation,omitempty"`
	LatestAssessment  *assessmentDetail `json:"latestAssessment,omitempty"`
}

type assessmentDetail struct {
	TestName string  `json:"testName"`
	Score    float64 `json:"score"`
	Level    string  `json:"level,omitempty"`
	Summary  string  `json:"summary,omitempty"`
}

type recommendResponse struct {
	Recommendations []struct {
		InstitutionID string  `json:"institutionId"`
		Score         float64 `json:"score"`
		Reason        string  `json:"reason"`
		Rank          int     `json:"rank"`
	} `json:"recommendations"`
}

func (c *Client) Recommend(ctx context.Context, rc ports.RecommendationContext) ([]ports.RecommendationCandidate, error) {
	payload := recommendRequest{
		ReferralID:        rc.ReferralID.String(),
		ChildID:           string(rc.ChildID),
		CareType:          rc.CareType,
		CenterName:        rc.CenterName,
		PsychologicalInfo: rc.PsychologicalInfo,
		RequestMotivation: rc.RequestMotivation,
	}
	if rc.LatestAssessment != nil {
		payload.LatestAssessment = &assessmentDetail{
			TestName: rc.LatestAssessment.TestName,
			Score:    rc.LatestAssessment.Score,
			Level:    rc.LatestAssessment.Level,
			Summary:  rc.LatestAssessment.Summary,
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal recommend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recommendations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build recommend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recommender call: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recommender returned status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	var decoded recommendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode recommend response: %w", err)
	}

	out := make([]ports.RecommendationCandidate, 0, len(decoded.Recommendations))
	for _, rec := range decoded.Recommendations {
		out = append(out, ports.RecommendationCandidate{
			InstitutionID: id.InstitutionID(rec.InstitutionID),
			Score:         rec.Score,
			Reason:        rec.Reason,
			Rank:          rec.Rank,
		})
	}
	return out, nil
}
