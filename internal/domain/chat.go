package domain

import (
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ChatMessage is one turn in the chat-style front end. Assistant messages
// start in the loading state and are resolved in place.
type ChatMessage struct {
	ID           string
	Sender       Sender
	Prompt       string
	AttachedFile string
	Text         string
	Images       []GeneratedImage
	Loading      bool
	Failed       bool
	CreatedAt    time.Time
}

func NewUserMessage(prompt, attachedFile string) *ChatMessage {
	return &ChatMessage{
		ID:           uuid.NewString(),
		Sender:       SenderUser,
		Prompt:       prompt,
		AttachedFile: attachedFile,
		CreatedAt:    time.Now(),
	}
}

// NewPendingReply returns an assistant message in the loading state.
func NewPendingReply() *ChatMessage {
	return &ChatMessage{
		ID:        uuid.NewString(),
		Sender:    SenderAssistant,
		Loading:   true,
		CreatedAt: time.Now(),
	}
}

func (m *ChatMessage) Resolve(text string, images []GeneratedImage) {
	m.Loading = false
	m.Failed = false
	m.Text = text
	m.Images = images
}

func (m *ChatMessage) Fail(err error) {
	m.Loading = false
	m.Failed = true
	m.Text = err.Error()
}
