package settlement

import "fmt"

// Step advances the settlement by exactly one tick and returns the events it
// produced. Phase order is fixed; every phase that mutates stocks clamps
// before the next one runs. Changing the order or the draw sequence breaks
// replay compatibility.
func (e *Engine) Step(st *State) []Event {
	if st.Extinct {
		return nil
	}
	st.Tick++

	var out []Event

	e.sweepConstruction(st, &out)
	e.advanceCalendar(st, &out)
	e.runProduction(st)
	e.runConsumption(st)
	e.runSpoilage(st)
	e.runPopulation(st, &out)
	e.decayEffects(st)
	e.runThreats(st, &out)
	e.maybeEvent(st, &out)
	e.runDiscovery(st, &out)
	e.runWellbeing(st)
	e.settlePanic(st)

	return out
}

// sweepConstruction completes any build whose end tick has arrived. Builds
// finish at the start of the tick so a completed farmstead produces the same
// tick it opens.
func (e *Engine) sweepConstruction(st *State, out *[]Event) {
	for i := range st.Structures {
		s := &st.Structures[i]
		if !s.UnderConstruction() || s.BuildEnd > st.Tick {
			continue
		}
		s.BuildEnd = 0
		s.Level++
		d, _ := e.structDef(s.Type)
		name := d.Name
		if name == "" {
			name = s.Type
		}
		if s.Level == 1 {
			*out = append(*out, e.newEvent(st, "construction", "Construction Complete",
				fmt.Sprintf("The %s is finished.", name)))
		} else {
			*out = append(*out, e.newEvent(st, "construction", "Upgrade Complete",
				fmt.Sprintf("The %s now stands at level %d.", name, s.Level)))
		}
	}
}

// advanceCalendar moves the quarter-day clock and rolls weather at each dawn.
// Season and year boundaries fire here, including scripted epochs.
func (e *Engine) advanceCalendar(st *State, out *[]Event) {
	st.TickOfDay++
	if st.TickOfDay < e.tune.TicksPerDay {
		return
	}
	st.TickOfDay = 0
	st.Day++
	st.Weather = e.rollWeather(st)

	if st.Day <= e.tune.DaysPerSeason {
		return
	}
	st.Day = 1
	if st.GraceSeasons > 0 {
		st.GraceSeasons--
	}

	if st.Season == Winter {
		st.Season = Spring
		st.Year++
		st.Stats.YearsSurvived++
		st.Stats.WintersSurvived++
		title := fmt.Sprintf("Year %d Begins", st.Year)
		e.chronicle(st, title, fmt.Sprintf("The thaw comes. %s has endured another winter.", st.Name))
		*out = append(*out, e.newEvent(st, "season", title, "Spring returns to the valley."))
	} else {
		st.Season++
		title := fmt.Sprintf("%s Arrives", seasonTitle(st.Season))
		*out = append(*out, e.newEvent(st, "season", title, seasonMessage(st.Season)))
	}

	e.fireEpochs(st, out)
}

func seasonTitle(s Season) string {
	switch s {
	case Summer:
		return "Summer"
	case Autumn:
		return "Autumn"
	case Winter:
		return "Winter"
	}
	return "Spring"
}

func seasonMessage(s Season) string {
	switch s {
	case Summer:
		return "Long days and heavy air. The fields are at their best."
	case Autumn:
		return "The harvest is in sight, and so are hungrier eyes on the road."
	case Winter:
		return "The first hard frost. What is stored now must last."
	}
	return "The ground softens."
}

// decayEffects counts down active modifiers and drops the expired ones,
// preserving order.
func (e *Engine) decayEffects(st *State) {
	if len(st.ActiveEffects) == 0 {
		return
	}
	kept := st.ActiveEffects[:0]
	for _, a := range st.ActiveEffects {
		a.Remaining--
		if a.Remaining > 0 {
			kept = append(kept, a)
		}
	}
	st.ActiveEffects = kept
}

// runSpoilage applies one decay pass. The first time anything spoils, the
// villagers take note and salting rumor starts to spread.
func (e *Engine) runSpoilage(st *State) {
	hasSalt := e.hasActiveTag(st, "salt_storage")
	hasCold := st.Discoveries.Has("cold_storage")
	lost := st.Food.Spoil(hasSalt, hasCold)
	st.Food.Clamp()
	if lost > 0 && !st.SpoilageNoticed {
		st.SpoilageNoticed = true
		e.bumpRumor(st, "salt_preservation", 0.1)
	}
}
