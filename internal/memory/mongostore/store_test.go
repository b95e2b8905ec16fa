package mongostore

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/memory"
)

// fakeCollection implements collection entirely in memory, standing in for a
// live server the same way the teacher's clients/mongo tests fake the driver.
type fakeCollection struct {
	buffers      map[string]bufferDocument
	longTerm     map[string]longTermDocument
	indexCreated bool
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{buffers: map[string]bufferDocument{}, longTerm: map[string]longTermDocument{}}
}

func bufferKey(f bson.M) string { return f["tenant_id"].(string) + "/" + f["thread_id"].(string) }

func (c *fakeCollection) FindOne(_ context.Context, filter bson.M, out any) error {
	if id, ok := filter["_id"]; ok {
		doc, found := c.longTerm[id.(string)]
		if !found {
			return mongodriver.ErrNoDocuments
		}
		*out.(*longTermDocument) = doc
		return nil
	}
	doc, ok := c.buffers[bufferKey(filter)]
	if !ok {
		return mongodriver.ErrNoDocuments
	}
	*out.(*bufferDocument) = doc
	return nil
}

func (c *fakeCollection) UpsertOne(_ context.Context, filter, update bson.M) error {
	set := update["$set"].(bson.M)
	doc := bufferDocument{
		TenantID:  set["tenant_id"].(string),
		ThreadID:  set["thread_id"].(string),
		Messages:  set["messages"].([]messageDoc),
		UpdatedAt: set["updated_at"].(time.Time),
	}
	c.buffers[bufferKey(filter)] = doc
	return nil
}

func (c *fakeCollection) InsertOne(_ context.Context, doc any) error {
	d := doc.(longTermDocument)
	c.longTerm[d.ID] = d
	return nil
}

func (c *fakeCollection) Find(_ context.Context, filter bson.M, limit int, _ bool) ([]longTermDocument, error) {
	var out []longTermDocument
	for _, d := range c.longTerm {
		if d.TenantID != filter["tenant_id"] || d.ThreadID != filter["thread_id"] {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *fakeCollection) DeleteOne(_ context.Context, filter bson.M) (int, error) {
	id := filter["_id"].(string)
	d, ok := c.longTerm[id]
	if !ok || d.TenantID != filter["tenant_id"] || d.ThreadID != filter["thread_id"] {
		return 0, nil
	}
	delete(c.longTerm, id)
	return 1, nil
}

func (c *fakeCollection) DeleteMany(_ context.Context, filter bson.M) (int, error) {
	lt, ok := filter["expires_at"].(bson.M)["$lt"].(time.Time)
	_ = ok
	n := 0
	for id, d := range c.longTerm {
		if d.ExpiresAt != nil && d.ExpiresAt.Before(lt) {
			delete(c.longTerm, id)
			n++
		}
	}
	return n, nil
}

func (c *fakeCollection) CreateIndex(_ context.Context, _ bson.D, _ bool) error {
	c.indexCreated = true
	return nil
}

func newTestStore() (*Store, *fakeCollection, *fakeCollection) {
	buffers := newFakeCollection()
	longTerm := newFakeCollection()
	return &Store{buffers: buffers, longTerm: longTerm, timeout: time.Second}, buffers, longTerm
}

func TestStoreAppendMessagesTrimsTail(t *testing.T) {
	s, _, _ := newTestStore()
	ctx := context.Background()

	_, err := s.AppendMessages(ctx, "t1", "th1", []domain.Message{{Role: domain.RoleUser, Text: "a"}}, 2)
	require.NoError(t, err)
	out, err := s.AppendMessages(ctx, "t1", "th1", []domain.Message{{Role: domain.RoleUser, Text: "b"}, {Role: domain.RoleUser, Text: "c"}}, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "b", out[0].Text)
	require.Equal(t, "c", out[1].Text)
}

func TestStoreInsertAndQueryLongTerm(t *testing.T) {
	s, _, _ := newTestStore()
	ctx := context.Background()

	id, err := s.InsertLongTerm(ctx, memory.LongTermEntry{
		ID: "e1", TenantID: "t1", ThreadID: "th1", Content: "likes blue", Type: memory.MemoryTypeLongTerm,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, "e1", id)

	entries, err := s.QueryLongTerm(ctx, "t1", "th1", "", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "likes blue", entries[0].Content)
}

func TestStoreDeleteExpiredLongTerm(t *testing.T) {
	s, _, _ := newTestStore()
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	_, err := s.InsertLongTerm(ctx, memory.LongTermEntry{ID: "e1", TenantID: "t1", ThreadID: "th1", Content: "old", ExpiresAt: &past, CreatedAt: time.Now()})
	require.NoError(t, err)

	n, err := s.DeleteExpiredLongTerm(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestStoreDeleteLongTermNotFound(t *testing.T) {
	s, _, _ := newTestStore()
	err := s.DeleteLongTerm(context.Background(), "t1", "th1", "missing")
	require.Error(t, err)
}
