package nodes

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/parceldesk/core/internal/engine/model"
	logx "github.com/parceldesk/core/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey           string
	BaseURL          string
	ClassifierConfig *model.ClassifierModelConfig
	SummarizerConfig *model.SummarizerModelConfig
	RespConfig       *model.ResponseModelConfig
}

// ChatModels holds the three generation-service roles: the deterministic
// classifier, the best-effort summarizer, and the reply responder.
type ChatModels struct {
	Classifier          *gemini.ChatModel
	Summarizer          *gemini.ChatModel
	Response            *gemini.ChatModel
	ClassifierModelName string
	SummarizerModelName string
	ResponseModelName   string
}

// NewChatModels creates all chat models from a single Gemini client.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	// Classification must be reproducible on identical input, so no thinking
	// budget and temperature pinned by config (0 by default).
	classifier, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.ClassifierConfig.Model,
		Temperature: &config.ClassifierConfig.Temperature,
		MaxTokens:   &config.ClassifierConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating classifier model")
		return nil, fmt.Errorf("error creating classifier model: %w", err)
	}

	summarizer, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.SummarizerConfig.Model,
		Temperature: &config.SummarizerConfig.Temperature,
		MaxTokens:   &config.SummarizerConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating summarizer model")
		return nil, fmt.Errorf("error creating summarizer model: %w", err)
	}

	responder, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.RespConfig.Model,
		Temperature: &config.RespConfig.Temperature,
		MaxTokens:   &config.RespConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, fmt.Errorf("error creating response model: %w", err)
	}

	return &ChatModels{
		Classifier:          classifier,
		Summarizer:          summarizer,
		Response:            responder,
		ClassifierModelName: config.ClassifierConfig.Model,
		SummarizerModelName: config.SummarizerConfig.Model,
		ResponseModelName:   config.RespConfig.Model,
	}, nil
}

// typedErrModel decorates a chat model so node failures surface as the
// pipeline's typed errors (classification vs final generation).
type typedErrModel struct {
	inner einomodel.BaseChatModel
	wrap  func(error) error
}

// WrapModelErrors returns a chat model whose failures are wrapped by wrap.
func WrapModelErrors(inner einomodel.BaseChatModel, wrap func(error) error) einomodel.BaseChatModel {
	return &typedErrModel{inner: inner, wrap: wrap}
}

func (m *typedErrModel) Generate(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	out, err := m.inner.Generate(ctx, in, opts...)
	if err != nil {
		return nil, m.wrap(err)
	}
	return out, nil
}

func (m *typedErrModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.inner.Stream(ctx, in, opts...)
	if err != nil {
		return nil, m.wrap(err)
	}
	return out, nil
}
