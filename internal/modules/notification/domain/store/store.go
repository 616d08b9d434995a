// Package store holds the in-memory notification list of the current session.
//
// Every exported mutation runs to completion under the store lock and recomputes
// the unread counter from the resulting record set. Subscribers are notified after
// the lock is released, in the order mutations were applied.
package store

import (
	"sync"

	"RxDash/internal/modules/notification/domain/entity"
)

type ChangeKind string

const (
	ChangeInserted ChangeKind = "inserted"
	ChangeRead     ChangeKind = "read"
	ChangeAllRead  ChangeKind = "all_read"
	ChangeRemoved  ChangeKind = "removed"
	ChangeMerged   ChangeKind = "merged"
	ChangeRestored ChangeKind = "restored"
	ChangeCleared  ChangeKind = "cleared"
)

// Change describes one applied mutation. Notification is set for single-record
// changes (inserted, read, removed).
type Change struct {
	Kind         ChangeKind           `json:"kind"`
	Version      uint64               `json:"version"`
	LocalID      string               `json:"localId,omitempty"`
	Notification *entity.Notification `json:"notification,omitempty"`
	UnreadCount  int                  `json:"unreadCount"`
	Total        int                  `json:"total"`
}

// MergeResult counts what a history merge did.
type MergeResult struct {
	Inserted int
	Updated  int
	Skipped  int
}

type Store struct {
	mu      sync.Mutex
	items   []entity.Notification
	unread  int
	version uint64

	// delivery runs in version order; a publisher waits for its predecessor.
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	delivered  uint64

	subMu   sync.RWMutex
	subs    map[uint64]func(Change)
	nextSub uint64
}

func New() *Store {
	s := &Store{subs: make(map[uint64]func(Change))}
	s.notifyCond = sync.NewCond(&s.notifyMu)
	return s
}

// Insert appends n unless its LocalID, or its non-empty ServerID, is already present.
// Rejected duplicates are not errors; the return value is for logging only.
func (s *Store) Insert(n entity.Notification) bool {
	s.mu.Lock()
	if n.LocalID == "" || s.indexLocked(n.LocalID) >= 0 || s.indexByServerLocked(n.ServerID) >= 0 {
		s.mu.Unlock()
		return false
	}
	s.items = append(s.items, n.Clone())
	ch := s.commitLocked(ChangeInserted, n.LocalID, &n)
	s.mu.Unlock()

	s.publish(ch)
	return true
}

// MarkRead marks localID read. Unknown ids and already-read records leave the store unchanged.
func (s *Store) MarkRead(localID string) bool {
	s.mu.Lock()
	i := s.indexLocked(localID)
	if i < 0 || s.items[i].IsRead {
		s.mu.Unlock()
		return false
	}
	s.items[i].IsRead = true
	n := s.items[i]
	ch := s.commitLocked(ChangeRead, localID, &n)
	s.mu.Unlock()

	s.publish(ch)
	return true
}

// MarkAllRead marks every record read; the unread counter becomes zero.
func (s *Store) MarkAllRead() int {
	s.mu.Lock()
	changed := 0
	for i := range s.items {
		if !s.items[i].IsRead {
			s.items[i].IsRead = true
			changed++
		}
	}
	ch := s.commitLocked(ChangeAllRead, "", nil)
	s.mu.Unlock()

	s.publish(ch)
	return changed
}

// Remove deletes localID if present.
func (s *Store) Remove(localID string) bool {
	s.mu.Lock()
	i := s.indexLocked(localID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	ch := s.removeAtLocked(i)
	s.mu.Unlock()

	s.publish(ch)
	return true
}

// RemoveByServerID deletes the record carrying serverID and reports its local id.
func (s *Store) RemoveByServerID(serverID string) (string, bool) {
	s.mu.Lock()
	i := s.indexByServerLocked(serverID)
	if i < 0 {
		s.mu.Unlock()
		return "", false
	}
	localID := s.items[i].LocalID
	ch := s.removeAtLocked(i)
	s.mu.Unlock()

	s.publish(ch)
	return localID, true
}

// Merge applies a history batch. Unknown records are inserted with the same
// duplicate rules as Insert; records whose ServerID is already present take the
// server's read state.
func (s *Store) Merge(batch []entity.Notification) MergeResult {
	var res MergeResult

	s.mu.Lock()
	for _, n := range batch {
		if i := s.indexByServerLocked(n.ServerID); i >= 0 {
			if s.items[i].IsRead != n.IsRead {
				s.items[i].IsRead = n.IsRead
				res.Updated++
			} else {
				res.Skipped++
			}
			continue
		}
		if n.LocalID == "" || s.indexLocked(n.LocalID) >= 0 {
			res.Skipped++
			continue
		}
		s.items = append(s.items, n.Clone())
		res.Inserted++
	}
	if res.Inserted == 0 && res.Updated == 0 {
		s.mu.Unlock()
		return res
	}
	ch := s.commitLocked(ChangeMerged, "", nil)
	s.mu.Unlock()

	s.publish(ch)
	return res
}

// Restore replaces the contents with records, dropping any that would break
// the uniqueness rules. Used to rehydrate from a saved snapshot.
func (s *Store) Restore(records []entity.Notification) int {
	s.mu.Lock()
	kept, ch := s.restoreLocked(records)
	s.mu.Unlock()

	s.publish(ch)
	return kept
}

// RestoreIfEmpty is Restore for a store that holds nothing yet; records that
// arrived first are never replaced.
func (s *Store) RestoreIfEmpty(records []entity.Notification) (int, bool) {
	s.mu.Lock()
	if len(s.items) > 0 {
		s.mu.Unlock()
		return 0, false
	}
	kept, ch := s.restoreLocked(records)
	s.mu.Unlock()

	s.publish(ch)
	return kept, true
}

func (s *Store) restoreLocked(records []entity.Notification) (int, Change) {
	s.items = s.items[:0]
	for _, n := range records {
		if n.LocalID == "" || s.indexLocked(n.LocalID) >= 0 || s.indexByServerLocked(n.ServerID) >= 0 {
			continue
		}
		s.items = append(s.items, n.Clone())
	}
	return len(s.items), s.commitLocked(ChangeRestored, "", nil)
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	ch := s.commitLocked(ChangeCleared, "", nil)
	s.mu.Unlock()

	s.publish(ch)
}

func (s *Store) Get(localID string) (entity.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(localID)
	if i < 0 {
		return entity.Notification{}, false
	}
	return s.items[i].Clone(), true
}

// Snapshot returns a copy of the records in insertion order.
func (s *Store) Snapshot() []entity.Notification {
	out, _ := s.SnapshotVersion()
	return out
}

// SnapshotVersion returns a copy of the records together with the version they reflect.
func (s *Store) SnapshotVersion() ([]entity.Notification, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Notification, len(s.items))
	for i := range s.items {
		out[i] = s.items[i].Clone()
	}
	return out, s.version
}

// View runs fn with a snapshot and its version after every change up to that
// version has been delivered to subscribers, and before any later change is.
// fn must not mutate the store and View must not be called from a subscriber.
func (s *Store) View(fn func(items []entity.Notification, version uint64)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	out, version := s.SnapshotVersion()

	for s.delivered < version {
		s.notifyCond.Wait()
	}
	fn(out, version)
}

func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *Store) removeAtLocked(i int) Change {
	n := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	return s.commitLocked(ChangeRemoved, n.LocalID, &n)
}

func (s *Store) commitLocked(kind ChangeKind, localID string, n *entity.Notification) Change {
	s.unread = countUnread(s.items)
	s.version++
	ch := Change{
		Kind:        kind,
		Version:     s.version,
		LocalID:     localID,
		UnreadCount: s.unread,
		Total:       len(s.items),
	}
	if n != nil {
		c := n.Clone()
		ch.Notification = &c
	}
	return ch
}

func (s *Store) indexLocked(localID string) int {
	if localID == "" {
		return -1
	}
	for i := range s.items {
		if s.items[i].LocalID == localID {
			return i
		}
	}
	return -1
}

func (s *Store) indexByServerLocked(serverID string) int {
	if serverID == "" {
		return -1
	}
	for i := range s.items {
		if s.items[i].ServerID == serverID {
			return i
		}
	}
	return -1
}

func countUnread(items []entity.Notification) int {
	n := 0
	for i := range items {
		if !items[i].IsRead {
			n++
		}
	}
	return n
}
