package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoFaceDetected is returned when the service finds no face in the
// reference or the probe image.
var ErrNoFaceDetected = errors.New("no face detected")

// MatchResult is the outcome of comparing a probe image against a
// student's reference image. Distance is the embedding distance the
// service measured; lower means more similar.
type MatchResult struct {
	Matched   bool    `json:"matched"`
	Distance  float64 `json:"distance"`
	Threshold float64 `json:"threshold"`
}

// Client calls the face comparison microservice. The client is an
// explicit handle: the service owns its models, callers just inject
// the client where a comparison is needed.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. When skip is set every comparison succeeds with
// a fixed distance, which keeps dev and tests off the network.
func New(baseURL string, timeout time.Duration, skip bool) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Compare submits the stored reference image URL and a base64 probe
// image and returns the match decision.
func (c *Client) Compare(ctx context.Context, referenceURL, probeB64 string) (*MatchResult, error) {
	if c.Skip {
		return &MatchResult{Matched: true, Distance: 0.32, Threshold: 0.6}, nil
	}
	if referenceURL == "" {
		return nil, fmt.Errorf("reference image url required")
	}
	if probeB64 == "" {
		return nil, fmt.Errorf("probe image required")
	}

	body, _ := json.Marshal(map[string]string{
		"reference_url": referenceURL,
		"probe_b64":     probeB64,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/compare", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("face service error %s: %s", resp.Status, string(respBody))
	}

	var out struct {
		Matched       bool    `json:"matched"`
		Distance      float64 `json:"distance"`
		Threshold     float64 `json:"threshold"`
		FacesDetected int     `json:"faces_detected"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.FacesDetected == 0 {
		return nil, ErrNoFaceDetected
	}
	return &MatchResult{Matched: out.Matched, Distance: out.Distance, Threshold: out.Threshold}, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}
