package settlement

// Report summarizes a catch-up advance.
type Report struct {
	Ticks  int     `json:"ticks"`
	Events []Event `json:"events,omitempty"`
}

// Advance runs all ticks owed since the settlement was last observed,
// clamped to the catch-up window. Batch size is a latency knob only; running
// N ticks at once is bit-identical to running them one at a time.
func (e *Engine) Advance(st *State, nowUnix int64) Report {
	return e.AdvanceBatch(st, nowUnix, 0)
}

// AdvanceBatch runs at most maxTicks of the owed ticks (0 = no bound).
// Callers loop until Ticks comes back below their bound, which lets a long
// catch-up yield between batches.
func (e *Engine) AdvanceBatch(st *State, nowUnix int64, maxTicks int) Report {
	elapsed := nowUnix - st.LastObservedUnix
	if elapsed < 0 {
		elapsed = 0
	}
	maxSecs := int64(e.tune.CatchupMaxHours) * 3600
	if elapsed > maxSecs {
		elapsed = maxSecs
	}
	ticks := int(elapsed / int64(e.tune.TickRealSeconds))

	run := ticks
	if maxTicks > 0 && run > maxTicks {
		run = maxTicks
	}

	var rep Report
	for i := 0; i < run && !st.Extinct; i++ {
		rep.Events = append(rep.Events, e.Step(st)...)
		rep.Ticks++
	}

	// Advance the observation point by exactly the ticks run, keeping the
	// sub-tick remainder so repeated short advances do not drift. When the
	// elapsed window was clamped, unrun time is forfeited, not banked.
	remainder := elapsed - int64(ticks)*int64(e.tune.TickRealSeconds)
	skipped := int64(ticks-rep.Ticks) * int64(e.tune.TickRealSeconds)
	if st.Extinct {
		skipped = 0
	}
	st.LastObservedUnix = nowUnix - remainder - skipped
	return rep
}
