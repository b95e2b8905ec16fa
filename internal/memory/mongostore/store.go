// Package mongostore is the production memory.Backend, persisting per-thread
// short-term buffers and long-term entries in MongoDB (spec.md §4.1
// "Consistency": buffer state survives process restart). Grounded on the
// teacher's features/memory/mongo client wrapper: a narrow collection
// interface keeps the store unit-testable without a live server.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/memory"
)

const (
	defaultBufferCollection   = "conversation_buffers"
	defaultLongTermCollection = "long_term_memory"
	defaultTimeout            = 5 * time.Second
)

// Options configures Store.
type Options struct {
	Client             *mongodriver.Client
	Database           string
	BufferCollection   string
	LongTermCollection string
	Timeout            time.Duration
}

// Store implements memory.Backend against MongoDB.
type Store struct {
	buffers   collection
	longTerm  collection
	mongo     *mongodriver.Client
	timeout   time.Duration
}

// New constructs a Store and ensures its indexes exist.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	bufColl := opts.BufferCollection
	if bufColl == "" {
		bufColl = defaultBufferCollection
	}
	ltColl := opts.LongTermCollection
	if ltColl == "" {
		ltColl = defaultLongTermCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	db := opts.Client.Database(opts.Database)
	buffers := mongoCollection{coll: db.Collection(bufColl)}
	longTerm := mongoCollection{coll: db.Collection(ltColl)}

	if err := ensureIndexes(ctx, buffers, longTerm); err != nil {
		return nil, err
	}
	return &Store{buffers: buffers, longTerm: longTerm, mongo: opts.Client, timeout: timeout}, nil
}

func (s *Store) Name() string { return "memory-mongo" }

func (s *Store) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.mongo.Ping(ctx, readpref.Primary())
}

func ensureIndexes(ctx context.Context, buffers, longTerm collection) error {
	if err := buffers.CreateIndex(ctx, bson.D{{Key: "tenant_id", Value: 1}, {Key: "thread_id", Value: 1}}, true); err != nil {
		return err
	}
	if err := longTerm.CreateIndex(ctx, bson.D{{Key: "tenant_id", Value: 1}, {Key: "thread_id", Value: 1}}, false); err != nil {
		return err
	}
	// QueryLongTerm's $text search needs a text index on content.
	if err := longTerm.CreateIndex(ctx, bson.D{{Key: "content", Value: "text"}}, false); err != nil {
		return err
	}
	return longTerm.CreateIndex(ctx, bson.D{{Key: "expires_at", Value: 1}}, false)
}

type bufferDocument struct {
	TenantID  string           `bson:"tenant_id"`
	ThreadID  string           `bson:"thread_id"`
	Messages  []messageDoc     `bson:"messages"`
	UpdatedAt time.Time        `bson:"updated_at"`
}

type messageDoc struct {
	Role       string           `bson:"role"`
	Text       string           `bson:"text,omitempty"`
	Parts      []partDoc        `bson:"parts,omitempty"`
	ToolCalls  []toolCallDoc    `bson:"tool_calls,omitempty"`
	ToolCallID string           `bson:"tool_call_id,omitempty"`
	CreatedAt  time.Time        `bson:"created_at"`
}

type partDoc struct {
	Type string `bson:"type"`
	Text string `bson:"text,omitempty"`
	URL  string `bson:"url,omitempty"`
}

type toolCallDoc struct {
	ID        string `bson:"id"`
	Name      string `bson:"name"`
	Arguments string `bson:"arguments"`
}

func toMessageDocs(msgs []domain.Message) []messageDoc {
	out := make([]messageDoc, len(msgs))
	for i, m := range msgs {
		parts := make([]partDoc, len(m.Parts))
		for j, p := range m.Parts {
			parts[j] = partDoc{Type: string(p.Type), Text: p.Text, URL: p.URL}
		}
		tcs := make([]toolCallDoc, len(m.ToolCalls))
		for j, tc := range m.ToolCalls {
			tcs[j] = toolCallDoc{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
		}
		out[i] = messageDoc{
			Role: string(m.Role), Text: m.Text, Parts: parts,
			ToolCalls: tcs, ToolCallID: m.ToolCallID, CreatedAt: m.CreatedAt,
		}
	}
	return out
}

func fromMessageDocs(docs []messageDoc) []domain.Message {
	out := make([]domain.Message, len(docs))
	for i, d := range docs {
		parts := make([]domain.ContentPart, len(d.Parts))
		for j, p := range d.Parts {
			parts[j] = domain.ContentPart{Type: domain.PartType(p.Type), Text: p.Text, URL: p.URL}
		}
		tcs := make([]domain.ToolCall, len(d.ToolCalls))
		for j, tc := range d.ToolCalls {
			tcs[j] = domain.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
		}
		out[i] = domain.Message{
			Role: domain.Role(d.Role), Text: d.Text, Parts: parts,
			ToolCalls: tcs, ToolCallID: d.ToolCallID, CreatedAt: d.CreatedAt,
		}
	}
	return out
}

// AppendMessages implements memory.Backend. It reads, appends, trims
// preserving the tail, and writes back; callers serialize per-thread
// concurrency (internal/memory.Store.threadLock), so no optimistic locking
// is needed here.
func (s *Store) AppendMessages(ctx context.Context, tenantID, threadID string, msgs []domain.Message, capacity int) ([]domain.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"tenant_id": tenantID, "thread_id": threadID}
	var doc bufferDocument
	err := s.buffers.FindOne(ctx, filter, &doc)
	if err != nil && !errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, apperrors.Wrap(apperrors.KindMemoryWriteError, err, "load buffer")
	}

	current := fromMessageDocs(doc.Messages)
	combined := append(current, msgs...)
	if capacity > 0 && len(combined) > capacity {
		combined = combined[len(combined)-capacity:]
	}

	update := bson.M{
		"$set": bson.M{
			"tenant_id":  tenantID,
			"thread_id":  threadID,
			"messages":   toMessageDocs(combined),
			"updated_at": time.Now().UTC(),
		},
	}
	if err := s.buffers.UpsertOne(ctx, filter, update); err != nil {
		return nil, apperrors.Wrap(apperrors.KindMemoryWriteError, err, "write buffer")
	}
	return combined, nil
}

func (s *Store) RecentMessages(ctx context.Context, tenantID, threadID string, limit int) ([]domain.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc bufferDocument
	err := s.buffers.FindOne(ctx, bson.M{"tenant_id": tenantID, "thread_id": threadID}, &doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindMemoryWriteError, err, "load buffer")
	}
	msgs := fromMessageDocs(doc.Messages)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (s *Store) ReplaceMessages(ctx context.Context, tenantID, threadID string, msgs []domain.Message) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"tenant_id": tenantID, "thread_id": threadID}
	update := bson.M{"$set": bson.M{
		"tenant_id":  tenantID,
		"thread_id":  threadID,
		"messages":   toMessageDocs(msgs),
		"updated_at": time.Now().UTC(),
	}}
	if err := s.buffers.UpsertOne(ctx, filter, update); err != nil {
		return apperrors.Wrap(apperrors.KindMemoryWriteError, err, "replace buffer")
	}
	return nil
}

type longTermDocument struct {
	ID           string     `bson:"_id"`
	TenantID     string     `bson:"tenant_id"`
	ThreadID     string     `bson:"thread_id"`
	Content      string     `bson:"content"`
	Type         string     `bson:"type"`
	Tags         []string   `bson:"tags,omitempty"`
	Importance   float64    `bson:"importance"`
	AccessCount  int        `bson:"access_count"`
	CreatedAt    time.Time  `bson:"created_at"`
	LastAccessed time.Time  `bson:"last_accessed,omitempty"`
	ExpiresAt    *time.Time `bson:"expires_at,omitempty"`
}

func (s *Store) InsertLongTerm(ctx context.Context, entry memory.LongTermEntry) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	doc := longTermDocument{
		ID: entry.ID, TenantID: entry.TenantID, ThreadID: entry.ThreadID,
		Content: entry.Content, Type: string(entry.Type), Tags: entry.Tags,
		Importance: entry.Importance, CreatedAt: entry.CreatedAt, ExpiresAt: entry.ExpiresAt,
	}
	if err := s.longTerm.InsertOne(ctx, doc); err != nil {
		return "", apperrors.Wrap(apperrors.KindMemoryInsertFailure, err, "insert long-term entry")
	}
	return entry.ID, nil
}

func (s *Store) QueryLongTerm(ctx context.Context, tenantID, threadID, query string, limit int) ([]memory.LongTermEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"tenant_id": tenantID, "thread_id": threadID}
	if query != "" {
		filter["$text"] = bson.M{"$search": query}
	}
	docs, err := s.longTerm.Find(ctx, filter, limit, query != "")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindMemoryWriteError, err, "query long-term entries")
	}
	out := make([]memory.LongTermEntry, len(docs))
	for i, d := range docs {
		out[i] = memory.LongTermEntry{
			ID: d.ID, TenantID: d.TenantID, ThreadID: d.ThreadID, Content: d.Content,
			Type: memory.MemoryType(d.Type), Tags: d.Tags, Importance: d.Importance,
			AccessCount: d.AccessCount, CreatedAt: d.CreatedAt, LastAccessed: d.LastAccessed,
			ExpiresAt: d.ExpiresAt,
		}
	}
	return out, nil
}

func (s *Store) DeleteLongTerm(ctx context.Context, tenantID, threadID, entryID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.longTerm.DeleteOne(ctx, bson.M{"_id": entryID, "tenant_id": tenantID, "thread_id": threadID})
	if err != nil {
		return apperrors.Wrap(apperrors.KindMemoryWriteError, err, "delete long-term entry")
	}
	if n == 0 {
		return apperrors.New(apperrors.KindMemoryNotFound, "long-term entry not found")
	}
	return nil
}

func (s *Store) DeleteExpiredLongTerm(ctx context.Context, now time.Time) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.longTerm.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindMemoryWriteError, err, "delete expired long-term entries")
	}
	return n, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// collection is the narrow surface Store needs from a Mongo collection,
// kept as an interface so store_test.go can fake it without a live server
// (same seam as the teacher's clients/mongo wrapper).
type collection interface {
	FindOne(ctx context.Context, filter bson.M, out any) error
	UpsertOne(ctx context.Context, filter bson.M, update bson.M) error
	InsertOne(ctx context.Context, doc any) error
	Find(ctx context.Context, filter bson.M, limit int, byTextScore bool) ([]longTermDocument, error)
	DeleteOne(ctx context.Context, filter bson.M) (int, error)
	DeleteMany(ctx context.Context, filter bson.M) (int, error)
	CreateIndex(ctx context.Context, keys bson.D, unique bool) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter bson.M, out any) error {
	return c.coll.FindOne(ctx, filter).Decode(out)
}

func (c mongoCollection) UpsertOne(ctx context.Context, filter, update bson.M) error {
	_, err := c.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (c mongoCollection) InsertOne(ctx context.Context, doc any) error {
	_, err := c.coll.InsertOne(ctx, doc)
	return err
}

func (c mongoCollection) Find(ctx context.Context, filter bson.M, limit int, byTextScore bool) ([]longTermDocument, error) {
	findOpts := options.Find()
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}
	if byTextScore {
		findOpts.SetSort(bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}})
	} else {
		findOpts.SetSort(bson.D{{Key: "created_at", Value: -1}})
	}
	cur, err := c.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []longTermDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c mongoCollection) DeleteOne(ctx context.Context, filter bson.M) (int, error) {
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func (c mongoCollection) DeleteMany(ctx context.Context, filter bson.M) (int, error) {
	res, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func (c mongoCollection) CreateIndex(ctx context.Context, keys bson.D, unique bool) error {
	idxOpts := options.Index()
	if unique {
		idxOpts.SetUnique(true)
	}
	_, err := c.coll.Indexes().CreateOne(ctx, mongodriver.IndexModel{Keys: keys, Options: idxOpts})
	return err
}

var _ memory.Backend = (*Store)(nil)
