package session

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"emberhold.world/internal/persistence/indexdb"
	"emberhold.world/internal/sim/catalogs"
	"emberhold.world/internal/sim/settlement"
	"emberhold.world/internal/sim/tuning"

	_ "modernc.org/sqlite"
)

// fakeClock advances only when told to, so catch-up is fully controlled.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T) *settlement.Engine {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	tune := tuning.Defaults()
	e, err := settlement.NewEngine(cats, &tune)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return e
}

func openTestSession(t *testing.T, clock *fakeClock, dataDir string) *Session {
	t.Helper()
	s, err := Open(Config{
		Name:    "Emberhold",
		Seed:    42,
		DataDir: dataDir,
		Engine:  newTestEngine(t),
		Clock:   clock.Now,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_FoundsAndServesState(t *testing.T) {
	clock := newFakeClock()
	s := openTestSession(t, clock, "")

	if s.ID() != "emberhold" {
		t.Fatalf("id=%q want=emberhold", s.ID())
	}
	if s.Resumed() || s.CatchupTicks() != 0 {
		t.Fatalf("fresh settlement reported resume/catchup: %v/%d", s.Resumed(), s.CatchupTicks())
	}

	v, err := s.ViewState()
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if v.State.Population != 10 || v.State.Tick != 0 {
		t.Fatalf("view state=%d/%d", v.State.Population, v.State.Tick)
	}
	if v.Digest != v.State.Digest() {
		t.Fatalf("digest does not match the returned state")
	}

	// The view is a copy; mutating it must not reach the session.
	v.State.Population = 999
	v2, _ := s.ViewState()
	if v2.State.Population != 10 {
		t.Fatalf("view mutation leaked into session state")
	}
}

func TestSession_AdvanceOnClock(t *testing.T) {
	clock := newFakeClock()
	s := openTestSession(t, clock, "")

	if n := s.AdvanceNow(); n != 0 {
		t.Fatalf("ticks=%d want=0 with no elapsed time", n)
	}

	clock.Advance(10 * 900 * time.Second)
	if n := s.AdvanceNow(); n != 10 {
		t.Fatalf("ticks=%d want=10", n)
	}

	v, _ := s.ViewState()
	if v.State.Tick != 10 {
		t.Fatalf("tick=%d want=10", v.State.Tick)
	}
}

func TestSession_CommandsCatchUpFirst(t *testing.T) {
	clock := newFakeClock()
	s := openTestSession(t, clock, "")

	clock.Advance(5 * 900 * time.Second)
	res := s.Do(settlement.Command{Op: settlement.OpBuild, StructureType: "farmstead"}, "r1")
	if !res.Accepted {
		t.Fatalf("build rejected: %+v", res)
	}
	if res.Tick != 5 {
		t.Fatalf("command applied at tick %d want=5", res.Tick)
	}
}

func TestSession_RejectionCodes(t *testing.T) {
	clock := newFakeClock()
	s := openTestSession(t, clock, "")

	cases := []struct {
		cmd  settlement.Command
		code string
	}{
		{settlement.Command{Op: settlement.OpBuild, StructureType: "quarry"}, "E_LOCKED"},
		{settlement.Command{Op: settlement.OpBuild, StructureType: "nonsense"}, "E_INVALID_TARGET"},
		{settlement.Command{Op: settlement.OpBuild, StructureType: "palisade"}, "E_NO_RESOURCE"},
		{settlement.Command{Op: settlement.OpRepair, StructureID: 0}, "E_CONFLICT"},
		{settlement.Command{Op: settlement.OpDemolish, StructureID: 99}, "E_INVALID_TARGET"},
	}

	// Burn wood down so the palisade is unaffordable.
	s.Do(settlement.Command{Op: settlement.OpBuild, StructureType: "farmstead"}, "setup1")
	s.Do(settlement.Command{Op: settlement.OpBuild, StructureType: "shelter"}, "setup2")

	for _, c := range cases {
		res := s.Do(c.cmd, "r")
		if res.Accepted {
			t.Fatalf("%+v accepted", c.cmd)
		}
		if res.Code != c.code {
			t.Fatalf("%+v code=%s want=%s (%s)", c.cmd, res.Code, c.code, res.Message)
		}
	}
}

func TestSession_EventCursors(t *testing.T) {
	clock := newFakeClock()
	s := openTestSession(t, clock, "")

	// A year of catch-up produces plenty of events (seasons at minimum).
	clock.Advance(72 * time.Hour)
	if n := s.AdvanceNow(); n == 0 {
		t.Fatalf("no ticks advanced")
	}

	all := s.EventsSince(0)
	if len(all) < 2 {
		t.Fatalf("events=%d want several", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Cursor <= all[i-1].Cursor {
			t.Fatalf("cursors not increasing at %d", i)
		}
	}

	mid := all[len(all)/2].Cursor
	tail := s.EventsSince(mid)
	if len(tail) != len(all)-len(all)/2-1 {
		t.Fatalf("tail=%d want=%d", len(tail), len(all)-len(all)/2-1)
	}
	if len(tail) > 0 && tail[0].Cursor <= mid {
		t.Fatalf("tail starts at cursor %d, not after %d", tail[0].Cursor, mid)
	}

	if got := s.EventsSince(all[len(all)-1].Cursor); len(got) != 0 {
		t.Fatalf("events past the end: %d", len(got))
	}
}

func TestSession_SubscriberNotified(t *testing.T) {
	clock := newFakeClock()
	s := openTestSession(t, clock, "")

	ch := make(chan Notice, 16)
	if _, err := s.Subscribe(ch); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	clock.Advance(3 * 900 * time.Second)
	s.AdvanceNow()

	select {
	case n := <-ch:
		if n.Tick != 3 || n.Digest == "" {
			t.Fatalf("notice=%+v", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no notice after advance")
	}
}

func TestSession_SnapshotResume(t *testing.T) {
	dir := t.TempDir()
	clock := newFakeClock()

	s, err := Open(Config{
		Name:    "Emberhold",
		Seed:    42,
		DataDir: dir,
		Engine:  newTestEngine(t),
		Clock:   clock.Now,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	clock.Advance(20 * 900 * time.Second)
	s.AdvanceNow()
	v1, _ := s.ViewState()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(Config{
		Name:    "Emberhold",
		Seed:    42,
		DataDir: dir,
		Engine:  newTestEngine(t),
		Clock:   clock.Now,
	})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	if !s2.Resumed() {
		t.Fatalf("second open did not resume from snapshot")
	}
	v2, _ := s2.ViewState()
	if v2.State.Tick != v1.State.Tick {
		t.Fatalf("resumed tick=%d want=%d", v2.State.Tick, v1.State.Tick)
	}
	if v2.Digest != v1.Digest {
		t.Fatalf("resumed digest differs")
	}
}

func TestSession_ChronicleReachesIndex(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "index.db")
	idx, err := indexdb.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	clock := newFakeClock()
	s, err := Open(Config{
		Name:    "Emberhold",
		Seed:    42,
		DataDir: dir,
		Engine:  newTestEngine(t),
		Index:   idx,
		Clock:   clock.Now,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	// A full year in three catch-up windows; the thaw writes a chronicle
	// entry on top of the founding one.
	for i := 0; i < 3; i++ {
		clock.Advance(72 * time.Hour)
		s.AdvanceNow()
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		t.Fatalf("open ro: %v", err)
	}
	defer db.Close()

	// The index writer commits on a timer; poll until the rows appear.
	deadline := time.Now().Add(10 * time.Second)
	for {
		var total, founding int
		_ = db.QueryRow(`SELECT COUNT(*) FROM chronicle WHERE settlement='emberhold'`).Scan(&total)
		_ = db.QueryRow(`SELECT COUNT(*) FROM chronicle WHERE settlement='emberhold' AND title='Founding'`).Scan(&founding)
		if founding == 1 && total >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("chronicle rows never landed: total=%d founding=%d", total, founding)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestManager_OneSessionPerSettlement(t *testing.T) {
	m := NewManager(newTestEngine(t), "", nil, nil)
	clock := newFakeClock()
	m.SetClock(clock.Now)
	defer m.CloseAll()

	a, err := m.GetOrOpen("Emberhold", 1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	b, err := m.GetOrOpen("emberhold", 999) // same slug, seed ignored on reuse
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if a != b {
		t.Fatalf("same settlement produced two sessions")
	}

	c, err := m.GetOrOpen("Duskwick", 2)
	if err != nil {
		t.Fatalf("open second: %v", err)
	}
	if c == a {
		t.Fatalf("different settlements share a session")
	}

	if got, ok := m.Get("emberhold"); !ok || got != a {
		t.Fatalf("Get did not return the live session")
	}
}
