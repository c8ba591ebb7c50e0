// store.go — Latest-wins cookie and storage snapshots per tab.
// The extension pushes whole snapshots; only the newest per tab is kept.
// Tab count is bounded: when a new tab would exceed the cap, the least
// recently updated tab is dropped entirely (cookies and storage).
package pagestate

import (
	"sync"
	"time"

	"github.com/tabscope/tabscope/internal/types"
)

// MaxTabs is the default number of tabs tracked concurrently.
const MaxTabs = 32

// Store holds the most recent page-state snapshots per tab id.
// All fields guarded by mu.
type Store struct {
	mu sync.RWMutex

	cookies map[int]*types.CookieSnapshot
	storage map[int]*types.StorageSnapshot
	touched map[int]time.Time // last update per tab, drives eviction
	maxTabs int

	now func() time.Time // Clock, swappable in tests.
}

// NewStore creates an empty store bounded to maxTabs tabs.
// maxTabs <= 0 falls back to MaxTabs.
func NewStore(maxTabs int) *Store {
	if maxTabs <= 0 {
		maxTabs = MaxTabs
	}
	return &Store{
		cookies: make(map[int]*types.CookieSnapshot),
		storage: make(map[int]*types.StorageSnapshot),
		touched: make(map[int]time.Time),
		maxTabs: maxTabs,
		now:     time.Now,
	}
}

// PutCookies replaces the cookie snapshot for the snapshot's tab.
func (s *Store) PutCookies(snap types.CookieSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = s.now()
	}
	s.cookies[snap.TabID] = &snap
	s.touchLocked(snap.TabID)
}

// PutStorage replaces the storage snapshot for the snapshot's tab.
func (s *Store) PutStorage(snap types.StorageSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = s.now()
	}
	s.storage[snap.TabID] = &snap
	s.touchLocked(snap.TabID)
}

// Cookies returns the latest cookie snapshot for a tab, or false if the
// tab was never seen or has been evicted.
func (s *Store) Cookies(tabID int) (types.CookieSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.cookies[tabID]
	if !ok {
		return types.CookieSnapshot{}, false
	}
	out := *snap
	out.Cookies = append([]types.Cookie(nil), snap.Cookies...)
	return out, true
}

// Storage returns the latest storage snapshot for a tab, or false if
// absent.
func (s *Store) Storage(tabID int) (types.StorageSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.storage[tabID]
	if !ok {
		return types.StorageSnapshot{}, false
	}
	out := *snap
	out.Local = cloneStringMap(snap.Local)
	out.Session = cloneStringMap(snap.Session)
	return out, true
}

// Tabs returns the tab ids currently tracked, in no particular order.
func (s *Store) Tabs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tabs := make([]int, 0, len(s.touched))
	for id := range s.touched {
		tabs = append(tabs, id)
	}
	return tabs
}

// Clear drops all snapshots. Idempotent.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cookies = make(map[int]*types.CookieSnapshot)
	s.storage = make(map[int]*types.StorageSnapshot)
	s.touched = make(map[int]time.Time)
}

// touchLocked marks a tab updated and evicts the stalest tab when the
// bound is exceeded. Caller must hold the write lock.
func (s *Store) touchLocked(tabID int) {
	s.touched[tabID] = s.now()
	if len(s.touched) <= s.maxTabs {
		return
	}

	stalest := tabID
	var stalestAt time.Time
	first := true
	for id, at := range s.touched {
		if first || at.Before(stalestAt) {
			stalest, stalestAt, first = id, at, false
		}
	}
	delete(s.touched, stalest)
	delete(s.cookies, stalest)
	delete(s.storage, stalest)
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
