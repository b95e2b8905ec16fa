// Package domain defines the multi-tenant conversation data model shared by
// every core component: Tenant, Assistant, Thread and Message (spec.md §3);
// the Workflow Execution State lives in internal/workflow. Types here are
// plain data; ownership and
// mutation rules live in the packages that own each entity (memory, store,
// workflow).
package domain

import (
	"time"
	"unicode/utf8"
)

// Role identifies the speaker for a Message (spec.md §3).
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType tags the variant of a ContentPart.
type PartType string

const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
	PartAudioURL PartType = "audio_url"
	PartVideoURL PartType = "video_url"
)

// ContentPart is one block of a Message's ordered content sequence. Exactly
// the field matching Type is meaningful; it is a tagged union rather than an
// interface so that Messages remain trivially JSON serializable.
type ContentPart struct {
	Type PartType `json:"type"`
	Text string   `json:"text,omitempty"`
	URL  string   `json:"url,omitempty"`
}

// ToolCall is a structured tool invocation request carried on an assistant
// Message, correlated to a later tool Message via ToolCallID.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON arguments string from the provider
}

// Message is a single turn in a thread's conversation (spec.md §3). Content
// is either a plain string (Text non-empty, Parts nil) or an ordered sequence
// of typed parts; producers choose the representation that matches their
// input (controllers emit plain text for typed user turns, ASR/vision
// pipelines emit Parts).
type Message struct {
	Role       Role          `json:"role"`
	Text       string        `json:"text,omitempty"`
	Parts      []ContentPart `json:"parts,omitempty"`
	ToolCalls  []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// IsUser reports whether the message was authored by the end user, used by
// the Sentiment Agent's journey-stage derivation (spec.md §4.3) and the
// Conversation Preservation quality gate (spec.md §4.5).
func (m Message) IsUser() bool { return m.Role == RoleUser }

// Len returns the effective character length of the message content, used by
// the preservation quality gate's average-length check.
func (m Message) Len() int {
	if m.Text != "" {
		return utf8.RuneCountInString(m.Text)
	}
	n := 0
	for _, p := range m.Parts {
		n += utf8.RuneCountInString(p.Text)
	}
	return n
}
