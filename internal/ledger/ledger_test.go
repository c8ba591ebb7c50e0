package ledger

import (
	"encoding/base64"
	"fmt"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabscope/tabscope/internal/types"
)

// Helper: fixed clock returning the given ms-epoch instant.
func clockAt(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

// Helper: minimal start event.
func start(id string, ts int64) types.RequestStart {
	return types.RequestStart{
		ID:        id,
		URL:       "https://example.com/" + id,
		Method:    "GET",
		Timestamp: ts,
		Type:      "xhr",
	}
}

// ============================================
// Capacity & Eviction
// ============================================

func TestCapacityBoundProperty(t *testing.T) {
	t.Parallel()

	f := func(count uint16, capacityOffset uint8) bool {
		capacity := int(capacityOffset)%32 + 1
		l := New(capacity)
		for i := 0; i < int(count)%2000; i++ {
			l.IngestStart(start(fmt.Sprintf("req-%d", i), int64(i)))
			if l.Len() > l.Cap() {
				return false
			}
		}
		return l.Len() <= l.Cap()
	}
	cfg := &quick.Config{MaxCount: 200}
	if err := quick.Check(f, cfg); err != nil {
		t.Error(err)
	}
}

func TestEvictionIsFIFOOnInsertion(t *testing.T) {
	t.Parallel()
	l := New(3)

	l.IngestStart(start("a", 1))
	l.IngestStart(start("b", 2))
	l.IngestStart(start("c", 3))

	// Complete the oldest record: completion must not shield it from eviction.
	l.IngestCompleted(types.RequestCompleted{ID: "a", StatusCode: 200})

	l.IngestStart(start("d", 4))

	snap := l.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "d", snap[0].ID)
	assert.Equal(t, "c", snap[1].ID)
	assert.Equal(t, "b", snap[2].ID)
}

func TestEvictedRecordTerminalEventIsNoOp(t *testing.T) {
	t.Parallel()
	l := New(1)

	l.IngestStart(start("old", 1))
	l.IngestStart(start("new", 2)) // evicts "old", leaves its correlation entry behind

	require.Equal(t, 2, l.InFlight())

	// Terminal event for the evicted id: no record change, but the stale
	// correlation entry must still be removed.
	l.IngestCompleted(types.RequestCompleted{ID: "old", StatusCode: 200})

	assert.Equal(t, 1, l.InFlight())
	snap := l.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "new", snap[0].ID)
	assert.Nil(t, snap[0].Status)
}

// ============================================
// Correlation & Terminal Events
// ============================================

func TestDurationFromCorrelationTable(t *testing.T) {
	t.Parallel()
	l := New(10)
	l.now = clockAt(150)

	l.IngestStart(start("x", 100))
	l.IngestCompleted(types.RequestCompleted{ID: "x", StatusCode: 200})

	snap := l.Snapshot()
	require.Len(t, snap, 1)
	require.NotNil(t, snap[0].Duration)
	assert.Equal(t, int64(50), *snap[0].Duration)
	assert.Equal(t, 0, l.InFlight())
}

func TestOrphanCompletionLeavesLedgerUnchanged(t *testing.T) {
	t.Parallel()
	l := New(10)

	l.IngestStart(start("known", 1))
	before := l.Snapshot()

	l.IngestCompleted(types.RequestCompleted{ID: "never-started", StatusCode: 200})
	l.IngestErrored(types.RequestErrored{ID: "also-unknown", Error: "net::ERR_FAILED"})

	after := l.Snapshot()
	assert.Equal(t, before, after)
}

func TestEndToEndCompletion(t *testing.T) {
	t.Parallel()
	l := New(10)
	l.now = clockAt(1080)

	l.IngestStart(types.RequestStart{
		ID: "r1", URL: "https://example.com/a.js", Method: "GET",
		Timestamp: 1000, Type: "script",
	})
	l.IngestHeadersSent(types.RequestHeadersSent{
		ID:      "r1",
		Headers: []types.HeaderPair{{Name: "Accept", Value: "*/*"}},
	})
	l.IngestCompleted(types.RequestCompleted{
		ID: "r1", StatusCode: 200, StatusLine: "HTTP/1.1 200 OK",
		ResponseHeaders: []types.HeaderPair{{Name: "content-length", Value: "1234"}},
		FromCache:       false,
	})

	snap := l.Snapshot()
	require.Len(t, snap, 1)
	rec := snap[0]

	assert.Equal(t, "r1", rec.ID)
	require.NotNil(t, rec.Status)
	assert.Equal(t, 200, *rec.Status)
	assert.Equal(t, "OK", rec.StatusText)
	require.NotNil(t, rec.Size)
	assert.Equal(t, int64(1234), *rec.Size)
	require.NotNil(t, rec.Duration)
	assert.Equal(t, int64(80), *rec.Duration)
	require.NotNil(t, rec.FromCache)
	assert.False(t, *rec.FromCache)
	assert.Equal(t, map[string]string{"Accept": "*/*"}, rec.RequestHeaders)
	assert.Empty(t, rec.ResponseBody)
}

func TestErrorOutcome(t *testing.T) {
	t.Parallel()
	l := New(10)
	l.now = clockAt(2005)

	l.IngestStart(start("r2", 2000))
	l.IngestErrored(types.RequestErrored{ID: "r2", Error: "net::ERR_CONNECTION_RESET"})

	snap := l.Snapshot()
	require.Len(t, snap, 1)
	rec := snap[0]

	require.NotNil(t, rec.Status)
	assert.Equal(t, 0, *rec.Status)
	assert.Equal(t, "Error", rec.StatusText)
	assert.Equal(t, "net::ERR_CONNECTION_RESET", rec.Error)
	require.NotNil(t, rec.Duration)
	assert.Equal(t, int64(5), *rec.Duration)
	assert.Nil(t, rec.ResponseHeaders)
	assert.Nil(t, rec.Size)
	assert.Nil(t, rec.FromCache)
}

func TestTerminalEventsAreMutuallyExclusive(t *testing.T) {
	t.Parallel()
	l := New(10)

	// Error first; a late (contract-violating) completion must not turn
	// the record into an impossible error+status>=100 hybrid.
	l.IngestStart(start("r", 1))
	l.IngestErrored(types.RequestErrored{ID: "r", Error: "net::ERR_ABORTED"})
	l.IngestCompleted(types.RequestCompleted{ID: "r", StatusCode: 200})

	for _, rec := range l.Snapshot() {
		if rec.Error != "" && rec.Status != nil {
			assert.Less(t, *rec.Status, 100, "record %s has both error and real status", rec.ID)
		}
	}
}

func TestHeadersSentAfterCompletionOnlyAddsHeaders(t *testing.T) {
	t.Parallel()
	l := New(10)
	l.now = clockAt(60)

	l.IngestStart(start("late", 50))
	l.IngestCompleted(types.RequestCompleted{
		ID: "late", StatusCode: 204, StatusLine: "HTTP/1.1 204 No Content",
		FromCache: true,
	})
	l.IngestHeadersSent(types.RequestHeadersSent{
		ID: "late",
		Headers: []types.HeaderPair{
			{Name: "X-First", Value: "1"},
			{Name: "X-First", Value: "2"}, // later duplicate wins
		},
	})

	rec := l.Snapshot()[0]
	require.NotNil(t, rec.Status)
	assert.Equal(t, 204, *rec.Status)
	assert.Equal(t, "No Content", rec.StatusText)
	require.NotNil(t, rec.FromCache)
	assert.True(t, *rec.FromCache)
	assert.Equal(t, map[string]string{"X-First": "2"}, rec.RequestHeaders)
}

func TestDuplicateStartInsertsSecondRecord(t *testing.T) {
	t.Parallel()
	l := New(10)
	l.now = clockAt(30)

	l.IngestStart(start("dup", 10))
	l.IngestStart(start("dup", 20))
	l.IngestCompleted(types.RequestCompleted{ID: "dup", StatusCode: 200})

	snap := l.Snapshot()
	require.Len(t, snap, 2)
	// Terminal events correlate with the newest record for the id.
	require.NotNil(t, snap[0].Status)
	assert.Equal(t, 200, *snap[0].Status)
	assert.Nil(t, snap[1].Status)
}

// ============================================
// Clear & Snapshot Semantics
// ============================================

func TestClearIsIdempotent(t *testing.T) {
	t.Parallel()
	l := New(10)

	l.IngestStart(start("a", 1))
	l.IngestStart(start("b", 2))

	assert.Equal(t, 2, l.Clear())
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, 0, l.InFlight())

	assert.Equal(t, 0, l.Clear())
	assert.Equal(t, 0, l.Len())
}

func TestSnapshotIsolation(t *testing.T) {
	t.Parallel()
	l := New(10)

	l.IngestStart(start("a", 1))
	snap := l.Snapshot()
	require.Len(t, snap, 1)

	// Mutations after the snapshot must not be visible through it.
	l.IngestStart(start("b", 2))
	l.IngestCompleted(types.RequestCompleted{ID: "a", StatusCode: 500})

	assert.Len(t, snap, 1)
	assert.Nil(t, snap[0].Status)

	// Nor may mutating the snapshot reach back into the ledger.
	l.IngestHeadersSent(types.RequestHeadersSent{
		ID:      "b",
		Headers: []types.HeaderPair{{Name: "Accept", Value: "*/*"}},
	})
	snap2 := l.Snapshot()
	snap2[1].RequestHeaders["Accept"] = "tampered"
	assert.Equal(t, "*/*", l.Snapshot()[1].RequestHeaders["Accept"])
}

func TestSnapshotNewestFirst(t *testing.T) {
	t.Parallel()
	l := New(10)

	for i := 0; i < 5; i++ {
		l.IngestStart(start(fmt.Sprintf("req-%d", i), int64(i)))
	}
	snap := l.Snapshot()
	require.Len(t, snap, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("req-%d", 4-i), snap[i].ID)
	}
}

// ============================================
// Body Decoding
// ============================================

func TestBinaryBodySubstitutesSentinel(t *testing.T) {
	t.Parallel()
	l := New(10)

	l.IngestStart(types.RequestStart{
		ID: "bin", URL: "https://example.com/upload", Method: "POST",
		Timestamp: 1, Type: "xhr",
		Body: &types.RequestBodyPayload{
			Raw: []string{base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, 0x00, 0x81})},
		},
	})

	assert.Equal(t, types.BinaryBodySentinel, l.Snapshot()[0].RequestBody)
}

func TestTextBodyDecodes(t *testing.T) {
	t.Parallel()
	l := New(10)

	l.IngestStart(types.RequestStart{
		ID: "txt", URL: "https://example.com/api", Method: "POST",
		Timestamp: 1, Type: "fetch",
		Body: &types.RequestBodyPayload{
			Raw: []string{base64.StdEncoding.EncodeToString([]byte(`{"k":"v"}`))},
		},
	})

	assert.Equal(t, `{"k":"v"}`, l.Snapshot()[0].RequestBody)
}
