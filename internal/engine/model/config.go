package model

// ================ Config ================

// RouterConfig gates how much the engine trusts a classification.
type RouterConfig struct {
	// ConfidenceThreshold is the minimum classifier confidence required to
	// trust a classification for routing.
	ConfidenceThreshold float64 `envconfig:"ROUTER_CONFIDENCE_THRESHOLD" default:"0.6"`
}

type ClassifierModelConfig struct {
	Model       string  `envconfig:"CLASSIFIER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"CLASSIFIER_MAX_TOKENS" default:"512"`
	Temperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" default:"0"`
}

type SummarizerModelConfig struct {
	Model       string  `envconfig:"SUMMARIZER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"SUMMARIZER_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"SUMMARIZER_TEMPERATURE" default:"0.1"`
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
}

type RetrievalConfig struct {
	// SnippetCap bounds how many ranked chunks the summarizer may consume.
	SnippetCap     int    `envconfig:"RETRIEVAL_SNIPPET_CAP" default:"5"`
	MaxCandidates  int    `envconfig:"RETRIEVAL_MAX_CANDIDATES" default:"20"`
	EmbeddingModel string `envconfig:"RETRIEVAL_EMBEDDING_MODEL" default:"text-embedding-3-small"`
}

type TrackingConfig struct {
	BaseURL      string `envconfig:"TRACKING_BASE_URL"`
	APIKey       string `envconfig:"TRACKING_API_KEY"`
	PollInterval string `envconfig:"TRACKING_POLL_INTERVAL" default:"500ms"`
	PollCeiling  string `envconfig:"TRACKING_POLL_CEILING" default:"4s"`
}

// Configured reports whether the provider credentials are present. An
// unconfigured provider degrades to skipping enrichment.
func (c TrackingConfig) Configured() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

type ConversationConfig struct {
	TTL string `envconfig:"CONVERSATION_TTL" default:"15m"`
	// MaxTurns bounds how much history feeds the classifier context.
	MaxTurns int `envconfig:"CONVERSATION_MAX_TURNS" default:"10"`
}

type PersonaConfig struct {
	BusinessType string `envconfig:"PROMPT_BUSINESS_TYPE" default:"parcel delivery support desk"`
	BusinessName string `envconfig:"PROMPT_BUSINESS_NAME" default:"ParcelDesk"`
}
