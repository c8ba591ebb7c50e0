// ledger.go — Bounded in-memory ledger of observed network exchanges.
// Correlates the four webRequest lifecycle events by request id and keeps
// the most recent MaxRecords exchanges, evicting strict FIFO on insert.
// All access guarded by RWMutex. Ingestion never propagates failures:
// every ingest path recovers panics so a processing bug cannot take the
// event channel down with it.
package ledger

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tabscope/tabscope/internal/types"
)

// MaxRecords is the default ledger capacity (exported for status metrics).
const MaxRecords = 500

// Ledger owns the record buffer and the start-time correlation table.
//
// The record slice is kept oldest-first internally; Snapshot reverses to
// newest-first on the way out. Two invariants hold under the lock:
//  1. byID maps each live id to the most recently inserted record with
//     that id (duplicate starts insert a second record and repoint byID).
//  2. started holds one entry per exchange that has seen a start event
//     but no terminal event. Entries for evicted records stay behind
//     until their terminal event arrives, which removes them as a no-op.
type Ledger struct {
	mu sync.RWMutex

	// records is the ring buffer, oldest-first; evicted from the front.
	records []*types.RequestRecord
	// byID maps each live id to the newest record carrying it.
	byID map[string]*types.RequestRecord
	// started is the correlation table: in-flight id → start ts (ms epoch).
	started  map[string]int64
	capacity int

	now func() time.Time // Clock, swappable in tests.
}

// New creates an empty ledger with the given capacity.
// capacity <= 0 falls back to MaxRecords.
func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = MaxRecords
	}
	return &Ledger{
		records:  make([]*types.RequestRecord, 0, capacity),
		byID:     make(map[string]*types.RequestRecord),
		started:  make(map[string]int64),
		capacity: capacity,
		now:      time.Now,
	}
}

// ============================================
// Queries
// ============================================

// Snapshot returns the current ledger newest-first as deep copies.
// Later ingestion is never observable through the returned slice.
func (l *Ledger) Snapshot() []*types.RequestRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*types.RequestRecord, 0, len(l.records))
	for i := len(l.records) - 1; i >= 0; i-- {
		out = append(out, l.records[i].Clone())
	}
	return out
}

// Len returns the number of records currently held.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// InFlight returns the number of exchanges awaiting a terminal event.
func (l *Ledger) InFlight() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.started)
}

// Cap returns the configured capacity.
func (l *Ledger) Cap() int {
	return l.capacity // Immutable, no lock needed
}

// Clear empties the record buffer and the correlation table atomically.
// Idempotent. Returns the number of records dropped.
func (l *Ledger) Clear() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.records)
	l.records = make([]*types.RequestRecord, 0, l.capacity)
	l.byID = make(map[string]*types.RequestRecord)
	l.started = make(map[string]int64)
	return n
}

// ============================================
// Internal helpers (caller must hold lock)
// ============================================

// insertLocked appends a new record and enforces the capacity bound.
// Eviction is strict FIFO on insertion order regardless of whether the
// evicted record completed. The evicted record's correlation entry is
// left in place; the eventual terminal event clears it as a no-op.
func (l *Ledger) insertLocked(rec *types.RequestRecord) {
	l.records = append(l.records, rec)
	l.byID[rec.ID] = rec

	if len(l.records) <= l.capacity {
		return
	}
	drop := len(l.records) - l.capacity
	for i := 0; i < drop; i++ {
		old := l.records[i]
		// Only unmap if the id still points at the evicted record; a
		// duplicate start may have repointed it at a newer one.
		if l.byID[old.ID] == old {
			delete(l.byID, old.ID)
		}
	}
	surviving := make([]*types.RequestRecord, l.capacity)
	copy(surviving, l.records[drop:])
	l.records = surviving
}

// safely runs fn with panic recovery. Ingestion is fire-and-forget: a
// panic is logged to stderr and swallowed so the caller's event loop
// keeps running.
func (l *Ledger) safely(op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "[tabscope] PANIC in ledger %s: %v\n%s\n", op, r, debug.Stack())
		}
	}()
	fn()
}
