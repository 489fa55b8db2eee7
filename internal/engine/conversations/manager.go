package conversations

import (
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/parceldesk/core/internal/engine/model"
)

// MessagesManager shapes conversation turns into model inputs. History is
// always passed in by the caller; the manager holds no session state, which
// keeps every routing call a pure function of its inputs.
type MessagesManager struct {
	maxTurns int
}

func NewMessagesManager(config model.ConversationConfig) *MessagesManager {
	maxTurns := config.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &MessagesManager{maxTurns: maxTurns}
}

// BuildClassifierContext renders the recent conversation plus the current
// message into the classifier's analysis block.
func (m *MessagesManager) BuildClassifierContext(history []*schema.Message, query string) string {
	recent := trimTail(history, m.maxTurns)

	var b strings.Builder
	b.WriteString("<conversation_context>\n")
	for _, msg := range recent {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.User:
			b.WriteString("UserMessage(" + msg.Content + ")\n")
		case schema.Assistant:
			b.WriteString("AssistantMessage(" + msg.Content + ")\n")
		}
	}
	b.WriteString("</conversation_context>\n")
	b.WriteString("<current_message_to_analyze>\n")
	b.WriteString("UserMessage(" + query + ")\n")
	b.WriteString("</current_message_to_analyze>")
	return b.String()
}

// BuildReplyMessages assembles the full generation input: the layered system
// prompt, the prior conversation turns in order, and the current user message
// when it is not already the last turn.
func (m *MessagesManager) BuildReplyMessages(systemPrompt string, history []*schema.Message, query string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))

	for _, msg := range history {
		if msg == nil || msg.Content == "" {
			continue
		}
		messages = append(messages, msg)
	}

	if !endsWithUserMessage(messages, query) {
		messages = append(messages, schema.UserMessage(query))
	}
	return messages
}

func endsWithUserMessage(messages []*schema.Message, query string) bool {
	if len(messages) == 0 {
		return false
	}
	last := messages[len(messages)-1]
	return last.Role == schema.User && last.Content == query
}

func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if len(messages) <= maxTurns {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
