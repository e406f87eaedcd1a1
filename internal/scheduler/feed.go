package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/leozw/farm-guardian/internal/db"
	"github.com/leozw/farm-guardian/internal/predictions"
)

// HTTPFeed reads open predictions from a service exposing
// GET {base}/channels/{channel}/prediction. 204 and 404 mean none is open.
type HTTPFeed struct {
	baseURL string
	client  *http.Client
}

func NewHTTPFeed(baseURL string, timeout time.Duration) *HTTPFeed {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFeed{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFeed) OpenPrediction(ctx context.Context, farm db.Farm) (*predictions.Prediction, error) {
	endpoint := fmt.Sprintf("%s/channels/%s/prediction", f.baseURL, url.PathEscape(farm.ChannelName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction feed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("prediction feed returned status %d", resp.StatusCode)
	}

	var p predictions.Prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode prediction: %w", err)
	}
	return &p, nil
}

// NopFeed never reports an open prediction.
type NopFeed struct{}

func (NopFeed) OpenPrediction(context.Context, db.Farm) (*predictions.Prediction, error) {
	return nil, nil
}
