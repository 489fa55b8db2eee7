// Package parsers turns raw classifier model output into a Classification.
// The model is instructed to emit a single JSON object, but providers wrap
// output in code fences or prose often enough that parsing stays lenient on
// framing while staying strict on the values themselves.
package parsers

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	errx "github.com/parceldesk/core/internal/core/error"
	"github.com/parceldesk/core/internal/engine/model"
	logx "github.com/parceldesk/core/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 64 * 1024 // 64KB
	maxErrSnippet = 200
)

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

type rawClassification struct {
	IntentID   string  `json:"intent_id"`
	Confidence float64 `json:"confidence"`
}

// ParseClassification extracts the intent vote from raw model output and
// normalizes it against the configured catalog. An identifier not present in
// the catalog resolves to the unknown sentinel with confidence forced to 0,
// regardless of the reported value. Unparsable content is a
// ClassificationUnavailable failure for the caller to handle.
func ParseClassification(content string, intents *model.IntentCatalog) (c *model.Classification, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "intent_parser").Msgf("panic recovered: %v", r)
			err = errx.Classification(fmt.Errorf("intent parser panic"))
			c = nil
		}
	}()

	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "intent_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}

	raw := jsonObjectRe.FindString(content)
	if raw == "" {
		return nil, errx.Classification(fmt.Errorf("no JSON object in classifier output: %q", safeSnippet(content)))
	}

	var rc rawClassification
	if uerr := json.Unmarshal([]byte(raw), &rc); uerr != nil {
		return nil, errx.Classification(fmt.Errorf("decode classifier output: %w", uerr))
	}

	rc.IntentID = strings.TrimSpace(rc.IntentID)
	if rc.IntentID == "" {
		return nil, errx.Classification(fmt.Errorf("classifier output missing intent_id"))
	}

	conf := rc.Confidence
	if math.IsNaN(conf) || math.IsInf(conf, 0) {
		conf = 0
	}
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	if rc.IntentID != model.UnknownIntentID {
		if _, ok := intents.Lookup(rc.IntentID); !ok {
			logx.Warn().
				Str("component", "intent_parser").
				Str("intent_id", rc.IntentID).
				Msg("classifier returned out-of-catalog intent; forcing unknown")
			return &model.Classification{IntentID: model.UnknownIntentID, Confidence: 0}, nil
		}
	} else {
		conf = 0
	}

	return &model.Classification{IntentID: rc.IntentID, Confidence: conf}, nil
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
