// Package memory implements the Memory Store (MS, spec.md §4.1): the
// short-term per-thread ring buffer and the long-term summarized store, plus
// the asynchronous summarization trigger that bridges them.
package memory

import (
	"context"
	"time"

	"github.com/digitalemployee/orchestrator/internal/domain"
)

// MemoryType distinguishes durable long-term entries (spec.md §3).
type MemoryType string

const (
	MemoryTypeLongTerm MemoryType = "LONG_TERM"
	MemoryTypeEpisodic MemoryType = "EPISODIC"
)

// LongTermEntry is a durable per-thread memory entry, keyed by
// (tenant_id, thread_id) and keyword-retrievable (spec.md §3).
type LongTermEntry struct {
	ID           string
	TenantID     string
	ThreadID     string
	Content      string
	Type         MemoryType
	Tags         []string
	Importance   float64
	AccessCount  int
	CreatedAt    time.Time
	LastAccessed time.Time
	ExpiresAt    *time.Time
}

// Summarizer is the narrow slice of the Tool & LLM Gateway (TG) that the
// Memory Store needs to produce a summary from recent messages. Defined here
// (rather than importing the gateway package) so memory and gateway can
// depend on each other's behavior without an import cycle; internal/gateway
// implements this interface and cmd/server wires the concrete value in.
type Summarizer interface {
	Summarize(ctx context.Context, tenantID, threadID string, recent []domain.Message) (string, error)
}

// Backend persists short-term buffers and long-term entries durably so that
// buffer state survives process restart (spec.md §4.1 "Consistency"). The
// in-process Store (store.go) owns ordering/trim/single-flight semantics and
// delegates storage to a Backend implementation (internal/memory/mongostore
// in production, an in-memory fake in tests).
type Backend interface {
	// AppendMessages appends messages to the thread's persisted buffer tail
	// and returns the full buffer after trimming to capacity.
	AppendMessages(ctx context.Context, tenantID, threadID string, msgs []domain.Message, capacity int) ([]domain.Message, error)
	// RecentMessages returns up to limit messages, oldest to newest.
	RecentMessages(ctx context.Context, tenantID, threadID string, limit int) ([]domain.Message, error)
	// ReplaceMessages overwrites the thread's persisted buffer (used by
	// ShrinkContext to drop messages folded into a new summary).
	ReplaceMessages(ctx context.Context, tenantID, threadID string, msgs []domain.Message) error

	// InsertLongTerm persists a new long-term/episodic entry.
	InsertLongTerm(ctx context.Context, entry LongTermEntry) (string, error)
	// QueryLongTerm returns entries for (tenant, thread), optionally ranked by
	// keyword relevance against query, newest-first when query is empty.
	QueryLongTerm(ctx context.Context, tenantID, threadID, query string, limit int) ([]LongTermEntry, error)
	// DeleteLongTerm removes one entry, scoped to tenant. Returns
	// apperrors.KindMemoryNotFound if absent or tenant-mismatched.
	DeleteLongTerm(ctx context.Context, tenantID, threadID, entryID string) error
	// DeleteExpiredLongTerm removes every entry whose ExpiresAt < now and
	// returns the count removed.
	DeleteExpiredLongTerm(ctx context.Context, now time.Time) (int, error)
}
