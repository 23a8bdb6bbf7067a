// Package emotion talks to the face-emotion detector sidecar and runs the
// background monitor that turns detected distress into proactive
// interactions.
package emotion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Detector reports the current emotion observed for a connection. An empty
// string means no face or no reading.
type Detector interface {
	Detect(ctx context.Context, connectionID string) (string, error)
}

// HTTPDetector queries the detector sidecar over HTTP. The sidecar analyses
// the client's camera feed out of band; this client only reads its latest
// classification.
type HTTPDetector struct {
	baseURL string
	client  *http.Client
}

func NewHTTPDetector(baseURL string, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPDetector{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDetector) Detect(ctx context.Context, connectionID string) (string, error) {
	u := d.baseURL + "/emotion?connection_id=" + url.QueryEscape(connectionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("building detector request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying emotion detector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// No reading for this connection yet.
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("emotion detector returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Emotion string `json:"emotion"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding detector response: %w", err)
	}
	return out.Emotion, nil
}
