package llm

import (
	"strings"

	"github.com/Rrens/support-chat/internal/domain"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a role-tagged message in the shape most chat APIs accept.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// roleFor maps transcript senders onto chat roles. Operator replies are
// shown to the model as its own earlier answers so it keeps a consistent
// voice after a human has stepped in.
func roleFor(sender domain.SenderType) string {
	if sender == domain.SenderVisitor {
		return RoleUser
	}
	return RoleAssistant
}

// BuildConversation converts history into alternating user/assistant
// messages. Consecutive turns with the same role are merged and blank turns
// are dropped.
func BuildConversation(history []Turn) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(history))
	for _, t := range history {
		body := strings.TrimSpace(t.Body)
		if body == "" {
			continue
		}
		role := roleFor(t.Sender)
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content += "\n\n" + body
			continue
		}
		msgs = append(msgs, ChatMessage{Role: role, Content: body})
	}
	return msgs
}

// BuildMessages returns the conversation with the system prompt as the
// leading instruction.
func BuildMessages(req Request) []ChatMessage {
	conv := BuildConversation(req.History)
	system := strings.TrimSpace(req.SystemPrompt)
	if system == "" {
		return conv
	}
	return append([]ChatMessage{{Role: RoleSystem, Content: system}}, conv...)
}

// TrimLeadingAssistant drops assistant messages before the first user
// message, for APIs that require the conversation to open with the user.
func TrimLeadingAssistant(msgs []ChatMessage) []ChatMessage {
	for i, m := range msgs {
		if m.Role == RoleUser {
			return msgs[i:]
		}
	}
	return nil
}
