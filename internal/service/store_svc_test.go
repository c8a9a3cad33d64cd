package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/model"
)

func newTestStore() (*DualStore, *fakeDocRepo, *fakeChunkRepo) {
	docs := newFakeDocRepo()
	chunks := newFakeChunkRepo()
	return NewDualStore(NewMemoryStore(), docs, chunks), docs, chunks
}

func TestDualStorePutWritesBothTiers(t *testing.T) {
	store, docs, chunks := newTestStore()
	doc := memDoc("gdpr")
	batch := []model.Chunk{
		chunkWithVec(doc.ID, 0, "a", vec(1, 0)),
		chunkWithVec(doc.ID, 1, "b", vec(0, 1)),
	}

	require.NoError(t, store.Put(context.Background(), doc, batch))

	_, ok := docs.docs[doc.ID]
	assert.True(t, ok)
	assert.Len(t, chunks.chunks, 2)
	for _, c := range batch {
		assert.Equal(t, model.TierBoth, c.Tier)
		assert.False(t, c.PendingDurable)
	}
	assert.Empty(t, store.mem.PendingDocuments())
}

func TestDualStorePutSurvivesPersistentOutage(t *testing.T) {
	store, docs, chunks := newTestStore()
	docs.failing = true
	chunks.failing = true

	doc := memDoc("gdpr")
	batch := []model.Chunk{chunkWithVec(doc.ID, 0, "a", vec(1, 0))}

	// Ingestion still succeeds; the chunks stay queryable from memory.
	require.NoError(t, store.Put(context.Background(), doc, batch))

	results := store.MemorySearch(vec(1, 0), model.SearchFilters{}, 5, 0)
	require.Len(t, results, 1)
	assert.True(t, results[0].Chunk.PendingDurable)
	assert.Equal(t, model.TierMemory, results[0].Chunk.Tier)
	assert.Equal(t, []uuid.UUID{doc.ID}, store.mem.PendingDocuments())
}

func TestDualStoreReconcileFlushesPending(t *testing.T) {
	store, docs, chunks := newTestStore()
	docs.failing = true
	chunks.failing = true

	doc := memDoc("gdpr")
	require.NoError(t, store.Put(context.Background(), doc, []model.Chunk{chunkWithVec(doc.ID, 0, "a", vec(1, 0))}))
	require.Len(t, store.mem.PendingDocuments(), 1)

	// Tier comes back; the next reconcile pass drains the backlog.
	docs.failing = false
	chunks.failing = false
	store.Reconcile(context.Background())

	assert.Empty(t, store.mem.PendingDocuments())
	assert.Len(t, chunks.chunks, 1)
	memChunks := store.mem.ChunksByDocument(doc.ID)
	require.Len(t, memChunks, 1)
	assert.Equal(t, model.TierBoth, memChunks[0].Tier)
}

func TestDualStoreReconcileKeepsPendingOnFailure(t *testing.T) {
	store, docs, chunks := newTestStore()
	docs.failing = true
	chunks.failing = true

	doc := memDoc("gdpr")
	require.NoError(t, store.Put(context.Background(), doc, []model.Chunk{chunkWithVec(doc.ID, 0, "a", vec(1, 0))}))

	store.Reconcile(context.Background())
	assert.Len(t, store.mem.PendingDocuments(), 1)
}

func TestDualStoreGetPrefersPersistent(t *testing.T) {
	store, _, _ := newTestStore()
	doc := memDoc("gdpr")
	require.NoError(t, store.Put(context.Background(), doc, []model.Chunk{chunkWithVec(doc.ID, 0, "a", vec(1, 0))}))

	got, chunks, err := store.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	require.Len(t, chunks, 1)
	assert.Equal(t, model.TierPersistent, chunks[0].Tier)
}

func TestDualStoreGetFallsBackToMemory(t *testing.T) {
	store, docs, chunks := newTestStore()
	doc := memDoc("gdpr")
	require.NoError(t, store.Put(context.Background(), doc, []model.Chunk{chunkWithVec(doc.ID, 0, "a", vec(1, 0))}))

	docs.failing = true
	chunks.failing = true
	got, memChunks, err := store.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Len(t, memChunks, 1)
}

func TestDualStoreGetUnknownDocument(t *testing.T) {
	store, _, _ := newTestStore()
	_, _, err := store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDualStoreDeleteCascades(t *testing.T) {
	store, docs, chunks := newTestStore()
	doc := memDoc("gdpr")
	require.NoError(t, store.Put(context.Background(), doc, []model.Chunk{
		chunkWithVec(doc.ID, 0, "a", vec(1, 0)),
		chunkWithVec(doc.ID, 1, "b", vec(0, 1)),
	}))

	result := store.Delete(context.Background(), doc.ID, true)
	assert.False(t, result.Partial)
	assert.True(t, result.Memory.OK)
	assert.True(t, result.Persistent.OK)

	assert.Empty(t, docs.docs)
	assert.Empty(t, chunks.chunks)
	assert.Empty(t, store.AllChunks(context.Background(), model.SearchFilters{}))
	assert.Empty(t, store.MemorySearch(vec(1, 0), model.SearchFilters{}, 5, 0))
}

func TestDualStoreDeleteReportsPartialFailure(t *testing.T) {
	store, docs, chunks := newTestStore()
	doc := memDoc("gdpr")
	require.NoError(t, store.Put(context.Background(), doc, []model.Chunk{chunkWithVec(doc.ID, 0, "a", vec(1, 0))}))

	docs.failing = true
	chunks.failing = true
	result := store.Delete(context.Background(), doc.ID, true)

	// The memory tier succeeded; the report names the tier that did not.
	assert.True(t, result.Partial)
	assert.True(t, result.Memory.OK)
	assert.False(t, result.Persistent.OK)
	assert.Equal(t, errTierDown.Error(), result.Persistent.Error)
	_, ok := store.mem.GetDocument(doc.ID)
	assert.False(t, ok)
}

func TestDualStoreAllChunksPrefersPersistentCopy(t *testing.T) {
	store, _, chunks := newTestStore()
	doc := memDoc("gdpr")
	c := chunkWithVec(doc.ID, 0, "memory copy", vec(1, 0))
	require.NoError(t, store.Put(context.Background(), doc, []model.Chunk{c}))

	// Same identifier, diverged content in the durable tier.
	persisted := chunks.chunks[c.ID]
	persisted.Content = "persistent copy"
	chunks.chunks[c.ID] = persisted

	merged := store.AllChunks(context.Background(), model.SearchFilters{})
	require.Len(t, merged, 1)
	assert.Equal(t, "persistent copy", merged[0].Content)
	assert.Equal(t, model.TierPersistent, merged[0].Tier)
}

func TestDualStoreAllChunksCarriesDocumentTitle(t *testing.T) {
	store, _, _ := newTestStore()
	doc := memDoc("GDPR")
	require.NoError(t, store.Put(context.Background(), doc, []model.Chunk{
		chunkWithVec(doc.ID, 0, "personal data must be processed lawfully", vec(1, 0)),
	}))

	// The persistent copy wins the de-duplication but keeps the title.
	merged := store.AllChunks(context.Background(), model.SearchFilters{})
	require.Len(t, merged, 1)
	assert.Equal(t, model.TierPersistent, merged[0].Tier)
	assert.Equal(t, "GDPR", merged[0].DocTitle)
}

func TestDualStorePutAndDeleteReleaseDocumentLocks(t *testing.T) {
	store, _, _ := newTestStore()
	doc := memDoc("doc")
	require.NoError(t, store.Put(context.Background(), doc, []model.Chunk{chunkWithVec(doc.ID, 0, "a", vec(1, 0))}))
	store.Delete(context.Background(), doc.ID, true)
	store.Reconcile(context.Background())

	store.mu.Lock()
	held := len(store.locks)
	store.mu.Unlock()
	assert.Equal(t, 0, held)
}

func TestDualStoreAllChunksIncludesMemoryOnly(t *testing.T) {
	store, docs, chunks := newTestStore()
	docs.failing = true
	chunks.failing = true
	doc := memDoc("gdpr")
	require.NoError(t, store.Put(context.Background(), doc, []model.Chunk{chunkWithVec(doc.ID, 0, "a", vec(1, 0))}))

	chunks.failing = false
	merged := store.AllChunks(context.Background(), model.SearchFilters{})
	require.Len(t, merged, 1)
	assert.Equal(t, model.TierMemory, merged[0].Tier)
}
