package task

import (
	"fmt"
	"strings"

	"github.com/forPelevin/gomoji"
	"github.com/rivo/uniseg"
)

// ContextMessage is a chat message the operator quoted when invoking an
// action, giving the external tracker conversational context.
type ContextMessage struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
	FromName  string `json:"fromName,omitempty"`
	IsFromMe  bool   `json:"isFromMe"`
}

// ChatRef identifies the invoking chat for the tracker description.
type ChatRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsGroup bool   `json:"isGroup"`
}

const maxTitleGraphemes = 80

// RequestSummary builds the stored summary: the operator's note, followed by
// the quoted context messages when any were selected.
func RequestSummary(note string, messages []ContextMessage) string {
	note = strings.TrimSpace(note)
	if len(messages) == 0 {
		return note
	}

	var b strings.Builder
	b.WriteString(note)
	b.WriteString("\n\nContext:")
	for _, m := range messages {
		from := m.FromName
		if m.IsFromMe {
			from = "me"
		}
		if from == "" {
			from = "unknown"
		}
		fmt.Fprintf(&b, "\n- %s: %s", from, strings.TrimSpace(m.Body))
	}
	return b.String()
}

// Description is what the tracker receives: the summary plus the chat
// identity, so a task can be traced back to its conversation.
func Description(summary string, chat ChatRef) string {
	if chat.ID == "" {
		return summary
	}
	kind := "chat"
	if chat.IsGroup {
		kind = "group"
	}
	return fmt.Sprintf("%s\n\nFrom %s: %s (%s)", summary, kind, chat.Name, chat.ID)
}

// TitleFromNote derives a tracker title from the first line of the note.
// Emoji are stripped and the result is truncated on grapheme boundaries;
// falls back to the action name for empty notes.
func TitleFromNote(note, actionName string) string {
	line := note
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.Join(strings.Fields(gomoji.RemoveEmojis(line)), " ")
	if line == "" {
		return actionName
	}

	if uniseg.GraphemeClusterCount(line) <= maxTitleGraphemes {
		return line
	}
	var b strings.Builder
	state := -1
	rest := line
	for i := 0; i < maxTitleGraphemes && len(rest) > 0; i++ {
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		b.WriteString(cluster)
	}
	return strings.TrimSpace(b.String()) + "…"
}
