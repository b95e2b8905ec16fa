package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/telemetry"
)

// Options configures a Store.
type Options struct {
	Backend Backend
	// Summarizer produces a summary from recent messages (the TG collaborator).
	// May be nil if summarization is not wired (summarization triggers become no-ops).
	Summarizer Summarizer

	NShort      int           // ring buffer capacity (spec.md §3 N_SHORT)
	NSummary    int           // summarization trigger threshold (spec.md §3 N_SUMMARY)
	LongTermTTL time.Duration // TTL_LT applied to summaries written by the trigger

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// Store implements the Memory Store (spec.md §4.1). It owns per-thread
// append ordering, trim-to-capacity, and the single-in-flight
// summarization rule; durable storage is delegated to a Backend.
type Store struct {
	backend    Backend
	summarizer Summarizer

	nShort      int
	nSummary    int
	longTermTTL time.Duration

	logger  telemetry.Logger
	metrics telemetry.Metrics

	// inFlight guards the per-thread summarization singleton (spec.md §5
	// "Per-thread summarization singleton"): at most one summarization task
	// may be running for a given thread at any time.
	mu       sync.Mutex
	inFlight map[string]bool // keyed by tenantID+"/"+threadID

	// appendMu serializes appends per thread so the buffer is never torn
	// under concurrent callers (spec.md §5 "the buffer is never torn").
	appendMu sync.Map // threadKey -> *sync.Mutex
}

// New constructs a Store. Defaults: NShort=20, NSummary=15, LongTermTTL=30d,
// matching spec.md's approximate constants.
func New(opts Options) *Store {
	if opts.NShort <= 0 {
		opts.NShort = 20
	}
	if opts.NSummary <= 0 {
		opts.NSummary = 15
	}
	if opts.LongTermTTL <= 0 {
		opts.LongTermTTL = 30 * 24 * time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Store{
		backend:     opts.Backend,
		summarizer:  opts.Summarizer,
		nShort:      opts.NShort,
		nSummary:    opts.NSummary,
		longTermTTL: opts.LongTermTTL,
		logger:      logger,
		metrics:     metrics,
		inFlight:    map[string]bool{},
	}
}

func threadKey(tenantID, threadID string) string { return tenantID + "/" + threadID }

func (s *Store) threadLock(tenantID, threadID string) *sync.Mutex {
	v, _ := s.appendMu.LoadOrStore(threadKey(tenantID, threadID), &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Append appends messages in order, trims the buffer to NShort from the
// tail, and (if the new length crosses NSummary) enqueues a summarization
// task subject to the single-in-flight rule (spec.md §4.1).
//
// Appends for the same thread are serialized so the buffer is never torn
// under concurrent callers (spec.md §5).
func (s *Store) Append(ctx context.Context, tenantID, threadID string, msgs []domain.Message) (int, error) {
	lock := s.threadLock(tenantID, threadID)
	lock.Lock()
	buffer, err := s.backend.AppendMessages(ctx, tenantID, threadID, msgs, s.nShort)
	lock.Unlock()
	if err != nil {
		return 0, err
	}
	newLen := len(buffer)
	if newLen >= s.nSummary {
		s.triggerSummarization(tenantID, threadID)
	}
	return newLen, nil
}

// GetRecent returns up to limit messages (oldest to newest), bounded by
// NShort. A limit <= 0 means "use NShort".
func (s *Store) GetRecent(ctx context.Context, tenantID, threadID string, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > s.nShort {
		limit = s.nShort
	}
	return s.backend.RecentMessages(ctx, tenantID, threadID, limit)
}

// StoreSummary writes a long-term/episodic entry and returns its id.
func (s *Store) StoreSummary(ctx context.Context, tenantID, threadID, content string, memType MemoryType, tags []string, importance float64, expiresAt *time.Time) (string, error) {
	id, err := s.backend.InsertLongTerm(ctx, LongTermEntry{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		ThreadID:   threadID,
		Content:    content,
		Type:       memType,
		Tags:       tags,
		Importance: importance,
		CreatedAt:  time.Now(),
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindMemoryWriteError, err, "store summary")
	}
	return id, nil
}

// RetrieveContext returns (short_term_messages, long_term_entries): when
// query is non-empty, the top-limit long-term entries by keyword relevance;
// otherwise the most recent entries by creation time (spec.md §4.1).
func (s *Store) RetrieveContext(ctx context.Context, tenantID, threadID, query string, limit int) ([]domain.Message, []LongTermEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	recent, err := s.GetRecent(ctx, tenantID, threadID, 0)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.backend.QueryLongTerm(ctx, tenantID, threadID, query, limit)
	if err != nil {
		return nil, nil, err
	}
	return recent, entries, nil
}

// ShrinkContext erases short-term entries now reflected in a freshly written
// summary. Called by the summarization task post-commit (spec.md §4.1).
func (s *Store) ShrinkContext(ctx context.Context, tenantID, threadID string) error {
	lock := s.threadLock(tenantID, threadID)
	lock.Lock()
	defer lock.Unlock()
	return s.backend.ReplaceMessages(ctx, tenantID, threadID, nil)
}

// DeleteExpired removes long-term entries whose ExpiresAt < now.
func (s *Store) DeleteExpired(ctx context.Context) (int, error) {
	return s.backend.DeleteExpiredLongTerm(ctx, time.Now())
}

// DeleteEpisodic performs a user-initiated episodic entry deletion.
func (s *Store) DeleteEpisodic(ctx context.Context, tenantID, threadID, entryID string) error {
	return s.backend.DeleteLongTerm(ctx, tenantID, threadID, entryID)
}

// triggerSummarization fires the summarization protocol (spec.md §4.1)
// asynchronously, enforcing that at most one runs per thread at a time. If a
// summarization is already in flight for the thread, this call is a no-op
// (the next append that again crosses the threshold will retry).
func (s *Store) triggerSummarization(tenantID, threadID string) {
	if s.summarizer == nil {
		return
	}
	key := threadKey(tenantID, threadID)

	s.mu.Lock()
	if s.inFlight[key] {
		s.mu.Unlock()
		return
	}
	s.inFlight[key] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, key)
			s.mu.Unlock()
		}()
		s.runSummarization(context.Background(), tenantID, threadID)
	}()
}

// runSummarization implements spec.md §4.1's summarization protocol: load
// recent messages, call TG, write the result as LONG_TERM with
// expires_at = now + TTL_LT, then shrink the buffer. LLM or write failure is
// non-fatal: logged, counted, buffer left untouched.
func (s *Store) runSummarization(ctx context.Context, tenantID, threadID string) {
	recent, err := s.GetRecent(ctx, tenantID, threadID, 0)
	if err != nil {
		s.logger.Warn(ctx, "summarization: failed to load recent messages", "thread", threadID, "err", err)
		return
	}
	content, err := s.summarizer.Summarize(ctx, tenantID, threadID, recent)
	if err != nil {
		s.logger.Warn(ctx, "summarization: llm call failed, buffer left untouched", "thread", threadID, "err", err)
		s.metrics.IncCounter("memory.summarization.llm_failure", 1, "thread", threadID)
		return
	}
	expires := time.Now().Add(s.longTermTTL)
	if _, err := s.StoreSummary(ctx, tenantID, threadID, content, MemoryTypeLongTerm, nil, 0, &expires); err != nil {
		s.logger.Warn(ctx, "summarization: write failed, buffer left untouched", "thread", threadID, "err", err)
		s.metrics.IncCounter("memory.summarization.write_failure", 1, "thread", threadID)
		return
	}
	if err := s.ShrinkContext(ctx, tenantID, threadID); err != nil {
		s.logger.Warn(ctx, "summarization: shrink_context failed", "thread", threadID, "err", err)
	}
}
