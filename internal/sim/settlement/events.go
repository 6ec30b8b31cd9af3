package settlement

// eventTemplate pairs a catalog entry with its code half: an eligibility
// predicate and a builder that fills effects or choices. Templates with
// choices suspend as PendingChoice instead of applying immediately.
type eventTemplate struct {
	ID        string
	HasChoice bool
	Eligible  func(e *Engine, st *State) bool
	Build     func(e *Engine, st *State, ev *Event)
}

// maybeEvent is the random-event phase: one chance roll, then a weighted pick
// among the currently eligible templates. Exactly two draws happen on the
// firing path and one otherwise.
func (e *Engine) maybeEvent(st *State, out *[]Event) {
	if st.Rand.Float01() >= e.tune.EventChance {
		return
	}

	ids := make([]string, 0, len(e.templates))
	weights := make([]float64, 0, len(e.templates))
	total := 0.0
	for _, t := range e.templates {
		if t.HasChoice && st.PendingChoice != nil {
			continue
		}
		if t.Eligible != nil && !t.Eligible(e, st) {
			continue
		}
		w := e.cats.Events.ByID[t.ID].BaseWeight
		if w <= 0 {
			continue
		}
		ids = append(ids, t.ID)
		weights = append(weights, w)
		total += w
	}
	if total <= 0 {
		return
	}

	picked := PickWeighted(ids, weights, st.Rand.Float01()*total)
	for _, t := range e.templates {
		if t.ID != picked {
			continue
		}
		def := e.cats.Events.ByID[t.ID]
		ev := e.newEvent(st, def.Category, def.Title, def.Message)
		t.Build(e, st, &ev)
		if len(ev.Choices) > 0 {
			pending := ev
			st.PendingChoice = &pending
		} else {
			e.applyEffects(st, ev.Effects)
		}
		*out = append(*out, ev)
		return
	}
}

// PickWeighted walks the cumulative weights with a pre-scaled target in
// [0, sum). ids and weights are parallel; the last id absorbs any float
// residue.
func PickWeighted(ids []string, weights []float64, target float64) string {
	for i, w := range weights {
		if target < w {
			return ids[i]
		}
		target -= w
	}
	return ids[len(ids)-1]
}

// ResolveChoice applies the picked option of the pending event. Unknown event
// or choice IDs are no-ops that leave the choice pending.
func (e *Engine) ResolveChoice(st *State, eventID, choiceID string) bool {
	if st.PendingChoice == nil || st.PendingChoice.ID != eventID {
		return false
	}
	for _, c := range st.PendingChoice.Choices {
		if c.ID != choiceID {
			continue
		}
		e.applyEffects(st, c.Effects)
		st.PendingChoice = nil
		return true
	}
	return false
}

func buildTemplates() []eventTemplate {
	return []eventTemplate{
		{
			ID:        "wandering_traders",
			HasChoice: true,
			Eligible:  func(e *Engine, st *State) bool { return st.Resources.Wood >= 20 },
			Build: func(e *Engine, st *State, ev *Event) {
				ev.Choices = []Choice{
					{ID: "sell_timber", Label: "Sell 20 wood for 12 coin", Effects: []Effect{
						{Kind: EffectResource, Target: "wood", Amount: -20},
						{Kind: EffectResource, Target: "coin", Amount: 12},
					}},
					{ID: "send_away", Label: "Send them on their way", Effects: []Effect{
						{Kind: EffectStat, Target: "morale", Amount: -1},
					}},
				}
			},
		},
		{
			ID:       "bumper_harvest",
			Eligible: func(e *Engine, st *State) bool { return st.Season != Winter },
			Build: func(e *Engine, st *State, ev *Event) {
				bonus := 6 + float64(st.Population)*0.5
				ev.Effects = []Effect{
					{Kind: EffectFood, Target: "fresh", Amount: bonus},
					{Kind: EffectStat, Target: "morale", Amount: 3},
				}
			},
		},
		{
			ID:       "harsh_frost",
			Eligible: func(e *Engine, st *State) bool { return st.Season == Autumn || st.Season == Winter },
			Build: func(e *Engine, st *State, ev *Event) {
				ev.Effects = []Effect{
					{Kind: EffectProduction, Target: "food", Amount: -0.4, Duration: 16},
					{Kind: EffectStat, Target: "panic", Amount: 3},
				}
			},
		},
		{
			ID: "fever_outbreak",
			Build: func(e *Engine, st *State, ev *Event) {
				hit := -8.0
				if st.Resources.Herbs >= 3 {
					hit = -4.0
					ev.Effects = append(ev.Effects, Effect{Kind: EffectResource, Target: "herbs", Amount: -3})
					ev.Message += " The herbalists' stores blunt the worst of it."
				}
				ev.Effects = append(ev.Effects,
					Effect{Kind: EffectStat, Target: "health", Amount: hit},
					Effect{Kind: EffectStat, Target: "panic", Amount: 4},
				)
			},
		},
		{
			ID:       "wanderers_arrive",
			Eligible: func(e *Engine, st *State) bool { return st.Population < e.housingCap(st) },
			Build: func(e *Engine, st *State, ev *Event) {
				ev.Effects = []Effect{
					{Kind: EffectStat, Target: "population", Amount: 2},
					{Kind: EffectStat, Target: "morale", Amount: 1},
				}
			},
		},
		{
			ID:       "well_runs_low",
			Eligible: func(e *Engine, st *State) bool { return st.Season == Summer },
			Build: func(e *Engine, st *State, ev *Event) {
				ev.Effects = []Effect{
					{Kind: EffectResource, Target: "water", Amount: -st.Resources.Water * 0.3},
					{Kind: EffectStat, Target: "panic", Amount: 2},
				}
			},
		},
		{
			ID: "old_tales",
			Build: func(e *Engine, st *State, ev *Event) {
				if id, ok := e.cheapestUnlockableRumor(st); ok {
					ev.Effects = []Effect{{Kind: EffectDiscovery, Target: id, Amount: 0.08}}
				} else {
					ev.Effects = []Effect{{Kind: EffectStat, Target: "morale", Amount: 2}}
				}
			},
		},
		{
			ID:       "granary_rats",
			Eligible: func(e *Engine, st *State) bool { return st.Food.Grain >= 5 },
			Build: func(e *Engine, st *State, ev *Event) {
				ev.Effects = []Effect{
					{Kind: EffectFood, Target: "grain", Amount: -st.Food.Grain * 0.15},
					{Kind: EffectStat, Target: "morale", Amount: -2},
				}
			},
		},
		{
			ID:        "festival_of_lights",
			HasChoice: true,
			Eligible:  func(e *Engine, st *State) bool { return st.Food.Total() > float64(st.Population)*2 },
			Build: func(e *Engine, st *State, ev *Event) {
				ev.Choices = []Choice{
					{ID: "hold_festival", Label: "Open the stores and light the lamps", Effects: []Effect{
						{Kind: EffectFood, Target: "grain", Amount: -float64(st.Population)},
						{Kind: EffectStat, Target: "morale", Amount: 8},
						{Kind: EffectStat, Target: "panic", Amount: -5},
					}},
					{ID: "forbid_festival", Label: "The stores stay shut", Effects: []Effect{
						{Kind: EffectStat, Target: "morale", Amount: -3},
					}},
				}
			},
		},
		{
			ID:        "refugee_band",
			HasChoice: true,
			Eligible:  func(e *Engine, st *State) bool { return st.Population < e.housingCap(st) },
			Build: func(e *Engine, st *State, ev *Event) {
				ev.Choices = []Choice{
					{ID: "take_in", Label: "Take them in", Effects: []Effect{
						{Kind: EffectStat, Target: "population", Amount: 3},
						{Kind: EffectFood, Target: "grain", Amount: -4},
						{Kind: EffectStat, Target: "morale", Amount: 2},
					}},
					{ID: "turn_away", Label: "Turn them away", Effects: []Effect{
						{Kind: EffectStat, Target: "morale", Amount: -4},
						{Kind: EffectStat, Target: "panic", Amount: -1},
					}},
				}
			},
		},
	}
}

// cheapestUnlockableRumor finds the first pre-science discovery, in sorted
// catalog order, whose prereqs are met and which is not yet complete.
func (e *Engine) cheapestUnlockableRumor(st *State) (string, bool) {
	for _, id := range e.cats.Discoveries.IDs {
		if st.Discoveries.Has(id) {
			continue
		}
		d := e.cats.Discoveries.ByID[id]
		if !e.isScience(d.Era) && e.prereqsMet(st, d.Prereqs) {
			return id, true
		}
	}
	return "", false
}
