package settlement

import "testing"

func TestAdvance_TicksFromElapsedTime(t *testing.T) {
	e := newTestEngine(t)
	st := e.Found("Emberhold", 41, 1000)

	rep := e.Advance(st, 1000+900*7+450)
	if rep.Ticks != 7 {
		t.Fatalf("ticks=%d want=7", rep.Ticks)
	}
	if st.Tick != 7 {
		t.Fatalf("state tick=%d want=7", st.Tick)
	}
	if st.LastObservedUnix != 1000+900*7 {
		t.Fatalf("last observed=%d want remainder preserved", st.LastObservedUnix)
	}

	// The fractional remainder is not lost: 450s carried plus 450s new is
	// one more tick.
	rep = e.Advance(st, 1000+900*8+450)
	if rep.Ticks != 1 {
		t.Fatalf("ticks=%d want=1 on follow-up", rep.Ticks)
	}
}

func TestAdvance_ClampsToWindow(t *testing.T) {
	e := newTestEngine(t)
	st := e.Found("Emberhold", 41, 0)

	year := int64(365 * 24 * 3600)
	rep := e.Advance(st, year)
	maxTicks := e.Tuning().CatchupMaxHours * 3600 / e.Tuning().TickRealSeconds
	if rep.Ticks != maxTicks {
		t.Fatalf("ticks=%d want window cap %d", rep.Ticks, maxTicks)
	}
}

func TestAdvance_ClockMovingBackwards(t *testing.T) {
	e := newTestEngine(t)
	st := e.Found("Emberhold", 41, 5000)

	rep := e.Advance(st, 100)
	if rep.Ticks != 0 {
		t.Fatalf("ticks=%d want=0 for a clock that went backwards", rep.Ticks)
	}
	if st.LastObservedUnix != 100 {
		t.Fatalf("last observed not updated: %d", st.LastObservedUnix)
	}
}

func TestAdvanceBatch_BoundedAndResumable(t *testing.T) {
	e := newTestEngine(t)
	single := e.Found("Emberhold", 41, 0)
	batched := e.Found("Emberhold", 41, 0)

	now := int64(237 * 900)
	repS := e.Advance(single, now)
	if repS.Ticks != 237 {
		t.Fatalf("single ticks=%d want=237", repS.Ticks)
	}

	total := 0
	calls := 0
	for {
		rep := e.AdvanceBatch(batched, now, 50)
		if rep.Ticks == 0 {
			break
		}
		if rep.Ticks > 50 {
			t.Fatalf("batch ran %d ticks, bound is 50", rep.Ticks)
		}
		total += rep.Ticks
		calls++
	}
	if total != 237 || calls != 5 {
		t.Fatalf("batched total=%d calls=%d want 237 over 5 calls", total, calls)
	}
	if single.Digest() != batched.Digest() {
		t.Fatalf("batched catch-up diverged from single-shot")
	}
}

func TestAdvance_StopsAtExtinction(t *testing.T) {
	e := newTestEngine(t)
	st := e.Found("Emberhold", 41, 0)
	st.Population = 1
	st.Health = 0
	st.Food = FoodStore{}
	st.Resources.Water = 0
	st.Resources.Firewood = 0

	rep := e.Advance(st, int64(e.Tuning().CatchupMaxHours)*3600)
	if !st.Extinct {
		t.Fatalf("settlement survived on nothing for the whole window")
	}
	maxTicks := e.Tuning().CatchupMaxHours * 3600 / e.Tuning().TickRealSeconds
	if rep.Ticks >= maxTicks {
		t.Fatalf("advance did not stop early at extinction: %d", rep.Ticks)
	}
}
