package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
	"github.com/digitalemployee/orchestrator/internal/domain"
)

// FakeBackend is an in-memory Backend used by this package's tests and by
// other packages that need a Memory Store without a Mongo dependency (e.g.
// the gateway's memory-tool handler tests). internal/memory/mongostore is the production
// Backend.
type FakeBackend struct {
	mu       sync.Mutex
	buffers  map[string][]domain.Message
	longTerm map[string][]LongTermEntry
}

// NewFakeBackend constructs an empty FakeBackend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		buffers:  map[string][]domain.Message{},
		longTerm: map[string][]LongTermEntry{},
	}
}


func (f *FakeBackend) AppendMessages(_ context.Context, tenantID, threadID string, msgs []domain.Message, capacity int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := threadKey(tenantID, threadID)
	buf := append(f.buffers[key], msgs...)
	// Trim semantics: trimming preserves the tail (newest) of the buffer.
	if capacity > 0 && len(buf) > capacity {
		buf = buf[len(buf)-capacity:]
	}
	f.buffers[key] = buf
	out := append([]domain.Message(nil), buf...)
	return out, nil
}

func (f *FakeBackend) RecentMessages(_ context.Context, tenantID, threadID string, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := f.buffers[threadKey(tenantID, threadID)]
	if limit > 0 && len(buf) > limit {
		buf = buf[len(buf)-limit:]
	}
	return append([]domain.Message(nil), buf...), nil
}

func (f *FakeBackend) ReplaceMessages(_ context.Context, tenantID, threadID string, msgs []domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buffers[threadKey(tenantID, threadID)] = append([]domain.Message(nil), msgs...)
	return nil
}

func (f *FakeBackend) InsertLongTerm(_ context.Context, entry LongTermEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := threadKey(entry.TenantID, entry.ThreadID)
	f.longTerm[key] = append(f.longTerm[key], entry)
	return entry.ID, nil
}

func (f *FakeBackend) QueryLongTerm(_ context.Context, tenantID, threadID, query string, limit int) ([]LongTermEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := append([]LongTermEntry(nil), f.longTerm[threadKey(tenantID, threadID)]...)

	if query != "" {
		q := strings.ToLower(query)
		var matched []LongTermEntry
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Content), q) {
				matched = append(matched, e)
			}
		}
		entries = matched
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *FakeBackend) DeleteLongTerm(_ context.Context, tenantID, threadID, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := threadKey(tenantID, threadID)
	entries := f.longTerm[key]
	for i, e := range entries {
		if e.ID == entryID {
			f.longTerm[key] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return apperrors.New(apperrors.KindMemoryNotFound, "long-term entry not found")
}

func (f *FakeBackend) DeleteExpiredLongTerm(_ context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for key, entries := range f.longTerm {
		var kept []LongTermEntry
		for _, e := range entries {
			if e.ExpiresAt != nil && e.ExpiresAt.Before(now) {
				n++
				continue
			}
			kept = append(kept, e)
		}
		f.longTerm[key] = kept
	}
	return n, nil
}
