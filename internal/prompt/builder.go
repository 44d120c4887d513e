// Package prompt assembles the message list sent to the completion model.
//
// Retrieved context lives only in the leading system message, never
// interleaved with user turns: the conversation history stays semantically
// clean and the model treats the excerpts as authoritative background.
package prompt

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/chartalabs/chartad/internal/chat"
	"github.com/chartalabs/chartad/internal/sanitize"
	"github.com/chartalabs/chartad/internal/similarity"
)

// sectionDelimiter separates retrieved sections inside the system message.
const sectionDelimiter = "\n\n---\n\n"

// Builder renders retrieved sections and conversation history into the
// ordered message list for the completion model.
type Builder struct {
	documentName string
}

// NewBuilder creates a builder for the named source document (for example
// "the Australian Constitution"), used in the system instructions.
func NewBuilder(documentName string) *Builder {
	if documentName == "" {
		documentName = "the Constitution"
	}
	return &Builder{documentName: documentName}
}

// Build produces the model message list plus the sanitized, comma-joined
// identifier list of the retrieved sections for the response header.
//
// The result is one system message (instructions + context block, sections in
// descending similarity order) followed by the client conversation verbatim.
// The latest user turn is already part of the conversation and is not
// re-appended. With no retrieved sections the system message carries the
// instructions only and the source list is empty.
func (b *Builder) Build(sections []similarity.Scored, conversation []chat.Message) ([]llms.MessageContent, string) {
	messages := make([]llms.MessageContent, 0, len(conversation)+1)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, b.systemMessage(sections)))

	for _, m := range conversation {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case chat.RoleAssistant:
			role = llms.ChatMessageTypeAI
		case chat.RoleSystem:
			role = llms.ChatMessageTypeSystem
		}
		messages = append(messages, llms.TextParts(role, m.Content))
	}

	labels := make([]string, 0, len(sections))
	for _, s := range sections {
		labels = append(labels, s.Label())
	}
	return messages, sanitize.SourceList(labels)
}

func (b *Builder) systemMessage(sections []similarity.Scored) string {
	var sb strings.Builder
	fmt.Fprintf(&sb,
		"You are an assistant answering questions about %s. "+
			"Ground every answer in the excerpts provided below and cite the "+
			"relevant part, chapter, or section identifiers. If the excerpts do "+
			"not contain the answer, say so plainly instead of speculating.",
		b.documentName)

	if len(sections) == 0 {
		return sb.String()
	}

	sb.WriteString("\n\nRelevant excerpts, most relevant first:")
	for _, s := range sections {
		sb.WriteString(sectionDelimiter)
		sb.WriteString(renderSection(s))
	}
	return sb.String()
}

// renderSection serializes one section as its labels followed by its text.
func renderSection(s similarity.Scored) string {
	var parts []string
	if s.Part != "" {
		parts = append(parts, "Part "+s.Part)
	}
	if s.Chapter != "" {
		parts = append(parts, "Chapter "+s.Chapter)
	}
	if s.Section.Section != "" {
		parts = append(parts, "Section "+s.Section.Section)
	}

	if len(parts) == 0 {
		return s.Content
	}
	return strings.Join(parts, ", ") + "\n" + s.Content
}
