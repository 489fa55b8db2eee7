package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/parceldesk/core/internal/engine/model"
)

//go:embed template/classifier_prompt.txt
var classifierSystemPrompt string

// RenderClassifierSystem renders the classifier system prompt via the Eino
// prompt component. This triggers Prompt callbacks and returns the final
// system prompt string.
func RenderClassifierSystem(ctx context.Context, intents *model.IntentCatalog, persona model.PersonaConfig) (string, error) {
	if intents == nil || intents.Len() == 0 {
		return "", fmt.Errorf("intent catalog is empty")
	}

	all := intents.All()

	var catalog strings.Builder
	for _, it := range all {
		catalog.WriteString(fmt.Sprintf("- %s: %s", it.ID, it.Name))
		if it.Description != "" {
			catalog.WriteString(" — " + it.Description)
		}
		catalog.WriteString("\n")
	}

	// Safely render known tokens only to avoid interfering with the JSON
	// braces in the template
	content := strings.NewReplacer(
		"{business_type}", persona.BusinessType,
		"{business_name}", persona.BusinessName,
		"{intent_catalog}", strings.TrimRight(catalog.String(), "\n"),
		"{example_intent}", all[0].ID,
	).Replace(classifierSystemPrompt)

	// Wrap via Eino prompt component using a messages placeholder to emit callbacks
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("classifier prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("classifier prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}
