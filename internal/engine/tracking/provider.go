package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/parceldesk/core/internal/engine/model"
	logx "github.com/parceldesk/core/pkg/logger"
)

// Provider exposes the carrier API's request/poll/fetch primitives. The
// engine only ever consumes the normalized TrackingSnapshot shape.
type Provider interface {
	// Request initiates a tracking lookup. When the provider resolves
	// synchronously it returns the snapshot immediately with done=true.
	Request(ctx context.Context, trackingID, destinationHint string) (snap *model.TrackingSnapshot, done bool, err error)

	// Poll reports whether the lookup initiated by Request has completed.
	Poll(ctx context.Context, trackingID string) (done bool, err error)

	// Fetch returns whatever the provider currently has for the tracking id,
	// complete or not.
	Fetch(ctx context.Context, trackingID string) (*model.TrackingSnapshot, error)
}

// HTTPProvider talks to a carrier aggregation API over JSON.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPProvider(cfg model.TrackingConfig) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type trackingPayload struct {
	TrackingID string     `json:"tracking_id"`
	Carrier    string     `json:"carrier"`
	Status     string     `json:"status"`
	Complete   bool       `json:"complete"`
	ETA        *time.Time `json:"estimated_delivery,omitempty"`
	Events     []struct {
		Time        time.Time `json:"time"`
		Status      string    `json:"status"`
		Location    string    `json:"location"`
		Description string    `json:"description"`
	} `json:"events"`
}

func (p *HTTPProvider) Request(ctx context.Context, trackingID, destinationHint string) (*model.TrackingSnapshot, bool, error) {
	body := map[string]string{"tracking_id": trackingID}
	if destinationHint != "" {
		body["destination"] = destinationHint
	}
	b, _ := json.Marshal(body)

	var payload trackingPayload
	if err := p.do(ctx, http.MethodPost, "/v1/trackings", strings.NewReader(string(b)), &payload); err != nil {
		return nil, false, err
	}
	if payload.Complete {
		return normalize(trackingID, payload), true, nil
	}
	return nil, false, nil
}

func (p *HTTPProvider) Poll(ctx context.Context, trackingID string) (bool, error) {
	var payload struct {
		Complete bool `json:"complete"`
	}
	path := "/v1/trackings/" + url.PathEscape(trackingID) + "/status"
	if err := p.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return false, err
	}
	return payload.Complete, nil
}

func (p *HTTPProvider) Fetch(ctx context.Context, trackingID string) (*model.TrackingSnapshot, error) {
	var payload trackingPayload
	path := "/v1/trackings/" + url.PathEscape(trackingID)
	if err := p.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return normalize(trackingID, payload), nil
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, body *strings.Reader, out any) error {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, p.baseURL+path, nil)
	}
	if err != nil {
		return fmt.Errorf("build tracking request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("tracking provider call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logx.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("tracking provider returned non-2xx")
		return fmt.Errorf("tracking provider status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tracking response: %w", err)
	}
	return nil
}

func normalize(trackingID string, payload trackingPayload) *model.TrackingSnapshot {
	snap := &model.TrackingSnapshot{
		TrackingID: trackingID,
		Carrier:    payload.Carrier,
		Status:     payload.Status,
		ETA:        payload.ETA,
	}
	for _, ev := range payload.Events {
		snap.Scans = append(snap.Scans, model.ScanEvent{
			Time:        ev.Time,
			Status:      ev.Status,
			Location:    ev.Location,
			Description: ev.Description,
		})
	}
	if n := len(snap.Scans); n > 0 {
		last := snap.Scans[n-1]
		snap.LastEvent = last.Status
		snap.LastLocation = last.Location
	}
	return snap
}
