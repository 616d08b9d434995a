package store_test

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"RxDash/internal/modules/notification/domain/entity"
	"RxDash/internal/modules/notification/domain/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(localID, serverID string, read bool) entity.Notification {
	return entity.Notification{
		LocalID:  localID,
		ServerID: serverID,
		IsRead:   read,
		Payload:  entity.Payload{Title: "Prescription ready " + localID},
	}
}

func seeded(t *testing.T) *store.Store {
	t.Helper()
	s := store.New()
	require.True(t, s.Insert(rec("a", "s1", false)))
	require.True(t, s.Insert(rec("b", "s2", false)))
	require.Equal(t, 2, s.UnreadCount())
	return s
}

func assertNoDrift(t *testing.T, s *store.Store) {
	t.Helper()
	unread := 0
	locals := map[string]struct{}{}
	servers := map[string]struct{}{}
	for _, n := range s.Snapshot() {
		if !n.IsRead {
			unread++
		}
		_, dupLocal := locals[n.LocalID]
		require.False(t, dupLocal, "duplicate localId %s", n.LocalID)
		locals[n.LocalID] = struct{}{}
		if n.ServerID != "" {
			_, dupServer := servers[n.ServerID]
			require.False(t, dupServer, "duplicate serverId %s", n.ServerID)
			servers[n.ServerID] = struct{}{}
		}
	}
	require.Equal(t, unread, s.UnreadCount())
}

func TestInsert_RejectsDuplicateServerID(t *testing.T) {
	s := seeded(t)
	before := s.Snapshot()

	assert.False(t, s.Insert(rec("c", "s1", false)))
	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, 2, s.Len())
	assertNoDrift(t, s)
}

func TestInsert_RejectsDuplicateLocalID(t *testing.T) {
	s := seeded(t)
	assert.False(t, s.Insert(rec("a", "s9", false)))
	assert.False(t, s.Insert(rec("", "s10", false)))
	assert.Equal(t, 2, s.Len())
}

func TestInsert_AllowsManyWithoutServerID(t *testing.T) {
	s := store.New()
	assert.True(t, s.Insert(rec("x", "", false)))
	assert.True(t, s.Insert(rec("y", "", true)))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, s.UnreadCount())
}

func TestMarkRead(t *testing.T) {
	s := seeded(t)

	assert.True(t, s.MarkRead("a"))
	n, ok := s.Get("a")
	require.True(t, ok)
	assert.True(t, n.IsRead)
	assert.Equal(t, 1, s.UnreadCount())

	// already read: unchanged
	v := s.Version()
	assert.False(t, s.MarkRead("a"))
	assert.Equal(t, 1, s.UnreadCount())
	assert.Equal(t, v, s.Version())
	assertNoDrift(t, s)
}

func TestMarkRead_AbsentIsNoop(t *testing.T) {
	s := seeded(t)
	before := s.Snapshot()
	v := s.Version()

	assert.False(t, s.MarkRead("missing"))
	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, 2, s.UnreadCount())
	assert.Equal(t, v, s.Version())
}

func TestMarkAllRead(t *testing.T) {
	s := seeded(t)
	require.True(t, s.Insert(rec("c", "", true)))

	assert.Equal(t, 2, s.MarkAllRead())
	assert.Equal(t, 0, s.UnreadCount())
	for _, n := range s.Snapshot() {
		assert.True(t, n.IsRead)
	}
}

func TestRemove(t *testing.T) {
	s := seeded(t)
	require.True(t, s.MarkRead("b"))

	assert.False(t, s.Remove("missing"))
	assert.Equal(t, 1, s.UnreadCount())

	assert.True(t, s.Remove("b"))
	assert.Equal(t, 1, s.UnreadCount(), "removing a read record keeps the unread count")

	assert.True(t, s.Remove("a"))
	assert.Equal(t, 0, s.UnreadCount())
	assert.Equal(t, 0, s.Len())
}

func TestRemoveByServerID(t *testing.T) {
	s := seeded(t)

	local, ok := s.RemoveByServerID("s2")
	assert.True(t, ok)
	assert.Equal(t, "b", local)

	_, ok = s.RemoveByServerID("s2")
	assert.False(t, ok)
	_, ok = s.RemoveByServerID("")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestMerge(t *testing.T) {
	s := seeded(t)
	require.True(t, s.MarkRead("a"))

	res := s.Merge([]entity.Notification{
		rec("h1", "s1", false), // server says unread: adopted
		rec("h2", "s2", false), // same state: skipped
		rec("h3", "s3", false), // new
		rec("h4", "s3", true),  // duplicate inside batch: read state adopted
		rec("a", "", false),    // local id collision: skipped
	})

	assert.Equal(t, store.MergeResult{Inserted: 1, Updated: 2, Skipped: 2}, res)
	a, _ := s.Get("a")
	assert.False(t, a.IsRead)
	assert.Equal(t, 3, s.Len())
	assertNoDrift(t, s)
}

func TestMerge_NoChangeDoesNotPublish(t *testing.T) {
	s := seeded(t)
	var got []store.Change
	sub := s.Subscribe(func(c store.Change) { got = append(got, c) })
	defer sub.Unsubscribe()

	res := s.Merge([]entity.Notification{rec("z", "s1", false)})
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, got)
}

func TestRestoreAndClear(t *testing.T) {
	s := seeded(t)

	kept := s.Restore([]entity.Notification{
		rec("r1", "s7", true),
		rec("r2", "s7", false),
		rec("r1", "s8", false),
		rec("r3", "", false),
	})
	assert.Equal(t, 2, kept)
	assert.Equal(t, 1, s.UnreadCount())
	_, ok := s.Get("a")
	assert.False(t, ok)

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.UnreadCount())
}

func TestRestoreIfEmpty(t *testing.T) {
	s := seeded(t)
	kept, ok := s.RestoreIfEmpty([]entity.Notification{rec("r1", "s7", false)})
	assert.False(t, ok)
	assert.Equal(t, 0, kept)
	assert.Equal(t, 2, s.Len())

	empty := store.New()
	kept, ok = empty.RestoreIfEmpty([]entity.Notification{rec("r1", "s7", false), rec("r2", "s7", true)})
	assert.True(t, ok)
	assert.Equal(t, 1, kept)
	assert.Equal(t, uint64(1), empty.Version())
}

func TestSnapshotIsACopy(t *testing.T) {
	s := seeded(t)
	snap := s.Snapshot()
	snap[0].IsRead = true
	assert.Equal(t, 2, s.UnreadCount())
	n, _ := s.Get("a")
	assert.False(t, n.IsRead)
}

func TestSubscribe(t *testing.T) {
	s := store.New()
	var got []store.Change
	sub := s.Subscribe(func(c store.Change) { got = append(got, c) })

	require.True(t, s.Insert(rec("a", "s1", false)))
	require.True(t, s.MarkRead("a"))
	require.True(t, s.Remove("a"))

	require.Len(t, got, 3)
	assert.Equal(t, store.ChangeInserted, got[0].Kind)
	assert.Equal(t, 1, got[0].UnreadCount)
	assert.Equal(t, store.ChangeRead, got[1].Kind)
	assert.Equal(t, 0, got[1].UnreadCount)
	assert.Equal(t, store.ChangeRemoved, got[2].Kind)
	assert.Equal(t, "a", got[2].LocalID)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{got[0].Version, got[1].Version, got[2].Version})

	sub.Unsubscribe()
	sub.Unsubscribe()
	s.MarkAllRead()
	assert.Len(t, got, 3)
}

func TestSubscribe_PanicDoesNotBlockDelivery(t *testing.T) {
	s := store.New()
	s.Subscribe(func(store.Change) { panic("boom") })
	var n int
	s.Subscribe(func(store.Change) { n++ })

	s.Insert(rec("a", "", false))
	s.Insert(rec("b", "", false))
	assert.Equal(t, 2, n)
}

func TestSubscribe_CallbackMayReadStore(t *testing.T) {
	s := store.New()
	var lens []int
	s.Subscribe(func(store.Change) { lens = append(lens, s.Len()) })
	s.Insert(rec("a", "", false))
	assert.Equal(t, []int{1}, lens)
}

func TestRandomSequencesKeepInvariants(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	s := store.New()
	for i := 0; i < 2000; i++ {
		local := fmt.Sprintf("l%d", r.Intn(40))
		server := ""
		if r.Intn(3) > 0 {
			server = fmt.Sprintf("s%d", r.Intn(40))
		}
		switch r.Intn(6) {
		case 0, 1:
			s.Insert(rec(local, server, r.Intn(2) == 0))
		case 2:
			s.MarkRead(local)
		case 3:
			s.Remove(local)
		case 4:
			s.Merge([]entity.Notification{rec(local, server, r.Intn(2) == 0)})
		case 5:
			if r.Intn(10) == 0 {
				s.MarkAllRead()
			}
		}
		assertNoDrift(t, s)
	}
}

func TestConcurrentMutationsDeliverInOrder(t *testing.T) {
	s := store.New()
	var (
		mu   sync.Mutex
		last uint64
		bad  bool
	)
	s.Subscribe(func(c store.Change) {
		mu.Lock()
		if c.Version != last+1 {
			bad = true
		}
		last = c.Version
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				s.Insert(rec(id, "srv-"+id, false))
				s.MarkRead(id)
			}
		}(w)
	}
	wg.Wait()

	assert.False(t, bad)
	assert.Equal(t, uint64(800), last)
	assert.Equal(t, 0, s.UnreadCount())
	assertNoDrift(t, s)
}

func TestView_OrdersAgainstDelivery(t *testing.T) {
	s := store.New()

	var mu sync.Mutex
	var seen []uint64
	sub := s.Subscribe(func(ch store.Change) {
		mu.Lock()
		seen = append(seen, ch.Version)
		mu.Unlock()
	})
	defer sub.Unsubscribe()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Insert(rec(fmt.Sprintf("g%d-%d", g, i), "", false))
			}
		}(g)
	}

	var viewVersion uint64
	var viewLen, deliveredAtView int
	s.View(func(items []entity.Notification, version uint64) {
		viewVersion = version
		viewLen = len(items)
		mu.Lock()
		deliveredAtView = len(seen)
		mu.Unlock()
	})
	wg.Wait()

	assert.Equal(t, int(viewVersion), viewLen)
	assert.Equal(t, int(viewVersion), deliveredAtView)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 200)
	for i, v := range seen {
		if i < deliveredAtView {
			assert.LessOrEqual(t, v, viewVersion)
		} else {
			assert.Greater(t, v, viewVersion)
		}
	}
}

func TestSnapshotVersion(t *testing.T) {
	s := seeded(t)
	items, version := s.SnapshotVersion()
	assert.Len(t, items, 2)
	assert.Equal(t, s.Version(), version)
}
