package aitools

import "context"

// Message is one turn of the chat conversation driving AI edits.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Attachment is an optional file sent alongside a chat message.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// Reply is what the AI service produced: either a plain assistant
// message, or a tool call to apply against the document (or both, when
// the model narrates the change it is about to make).
type Reply struct {
	Message  string    `json:"message"`
	ToolCall *ToolCall `json:"toolCall,omitempty"`
}

// EditService abstracts the AI provider. The core never talks to a
// concrete model; it hands over the conversation plus the current
// document text and receives back text or a structured tool invocation.
type EditService interface {
	Chat(ctx context.Context, messages []Message, documentContent string, file *Attachment) (*Reply, error)
}
