package tracking

import (
	"context"
	"fmt"
	"strings"
	"time"

	errx "github.com/parceldesk/core/internal/core/error"
	"github.com/parceldesk/core/internal/engine/model"
	logx "github.com/parceldesk/core/pkg/logger"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultPollCeiling  = 4 * time.Second

	minTrackingIDLen = 10
	maxTrackingIDLen = 22
)

// trackingKeywords triggers enrichment on keyword match. A fixed English
// list is a known limitation inherited from upstream; localized triggering
// would need per-language keyword sets or a classifier signal.
var trackingKeywords = []string{"track", "parcel", "delivery status"}

// ShouldTrack reports whether the message or resolved intent name asks for
// shipment tracking.
func ShouldTrack(message, intentName string) bool {
	if strings.Contains(strings.ToLower(intentName), "track") {
		return true
	}
	low := strings.ToLower(message)
	for _, kw := range trackingKeywords {
		if strings.Contains(low, kw) {
			return true
		}
	}
	return false
}

// ExtractTrackingID returns the first plausible tracking identifier in the
// message: a 10-22 character alphanumeric token containing at least one
// digit, so ordinary long words do not qualify.
func ExtractTrackingID(message string) string {
	for _, tok := range strings.FieldsFunc(message, func(r rune) bool {
		return !isAlnum(r)
	}) {
		if len(tok) < minTrackingIDLen || len(tok) > maxTrackingIDLen {
			continue
		}
		if !strings.ContainsAny(tok, "0123456789") {
			continue
		}
		return tok
	}
	return ""
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// Adapter wraps a Provider with the bounded poll loop. The loop enforces a
// hard wall-clock ceiling so a slow provider can never block the pipeline,
// then performs one final fetch regardless of completion state.
type Adapter struct {
	provider Provider
	interval time.Duration
	ceiling  time.Duration
}

func NewAdapter(provider Provider, cfg model.TrackingConfig) (*Adapter, error) {
	interval, err := parseDuration(cfg.PollInterval, defaultPollInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid tracking poll interval %q: %w", cfg.PollInterval, err)
	}
	ceiling, err := parseDuration(cfg.PollCeiling, defaultPollCeiling)
	if err != nil {
		return nil, fmt.Errorf("invalid tracking poll ceiling %q: %w", cfg.PollCeiling, err)
	}
	return &Adapter{provider: provider, interval: interval, ceiling: ceiling}, nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return fallback, nil
	}
	return d, nil
}

// TrackOnce resolves one normalized shipment snapshot. Failures surface as
// TrackingUnavailable; the caller continues without enrichment.
func (a *Adapter) TrackOnce(ctx context.Context, trackingID, destinationHint string) (*model.TrackingSnapshot, error) {
	snap, done, err := a.provider.Request(ctx, trackingID, destinationHint)
	if err != nil {
		return nil, errx.Tracking(fmt.Errorf("request tracking %s: %w", trackingID, err))
	}
	if done && snap != nil {
		return snap, nil
	}

	deadline := time.Now().Add(a.ceiling)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

poll:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, errx.Tracking(ctx.Err())
		case <-ticker.C:
			completed, perr := a.provider.Poll(ctx, trackingID)
			if perr != nil {
				logx.Warn().Err(perr).Str("tracking_id", trackingID).Msg("tracking poll failed; fetching what is available")
				break poll
			}
			if completed {
				break poll
			}
		}
	}

	// one final fetch regardless of completion state
	snap, ferr := a.provider.Fetch(ctx, trackingID)
	if ferr != nil {
		return nil, errx.Tracking(fmt.Errorf("fetch tracking %s: %w", trackingID, ferr))
	}
	return snap, nil
}
