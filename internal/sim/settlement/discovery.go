package settlement

import (
	"fmt"
	"sort"

	"emberhold.world/internal/sim/catalogs"
)

func (e *Engine) isScience(era string) bool {
	return catalogs.EraIndex(era) >= catalogs.EraIndex(catalogs.ScienceEra)
}

func (e *Engine) prereqsMet(st *State, prereqs []string) bool {
	for _, p := range prereqs {
		if !st.Discoveries.Has(p) {
			return false
		}
	}
	return true
}

// rumorTrigger names a condition under which lived experience pushes a
// discovery forward. Listed in fixed order; the table is scanned every tick.
type rumorTrigger struct {
	id     string
	amount float64
	when   func(e *Engine, st *State) bool
}

var rumorTriggers = []rumorTrigger{
	{"fire_keeping", 0.004, func(e *Engine, st *State) bool { return st.Season == Winter }},
	{"fire_keeping", 0.001, func(e *Engine, st *State) bool { return st.Resources.Firewood > 50 }},
	{"herb_lore", 0.003, func(e *Engine, st *State) bool { return st.Resources.Herbs > 5 }},
	{"crop_rotation", 0.003, func(e *Engine, st *State) bool { return e.hasActiveType(st, "farmstead") }},
	{"crop_rotation", 0.001, func(e *Engine, st *State) bool { return st.Season == Autumn }},
	{"salt_preservation", 0.002, func(e *Engine, st *State) bool { return st.Food.Salted > 0 }},
	{"animal_husbandry", 0.002, func(e *Engine, st *State) bool { return st.Food.Total() > float64(st.Population)*3 }},
	{"masonry", 0.002, func(e *Engine, st *State) bool { return st.Resources.Stone > 40 }},
	{"iron_working", 0.002, func(e *Engine, st *State) bool { return st.Resources.Iron > 10 }},
	{"iron_working", 0.001, func(e *Engine, st *State) bool { return e.hasActiveType(st, "quarry") }},
	{"written_word", 0.002, func(e *Engine, st *State) bool { return st.Resources.Coin > 20 }},
}

// runDiscovery advances both tracks. Early eras fill by rumor from lived
// conditions; science-era work needs assigned scientists, accrued knowledge
// and the knowledge cost paid on completion.
func (e *Engine) runDiscovery(st *State, out *[]Event) {
	for _, tr := range rumorTriggers {
		if st.Discoveries.Has(tr.id) {
			continue
		}
		d := e.cats.Discoveries.ByID[tr.id]
		if !e.prereqsMet(st, d.Prereqs) {
			continue
		}
		if tr.when(e, st) {
			e.bumpDiscoveryProgress(st, tr.id, tr.amount)
		}
	}

	if st.Jobs.Scientists > 0 {
		st.Resources.Knowledge += float64(st.Jobs.Scientists) * scientistKnowledge

		hallLevels := 0
		for i := range st.Structures {
			s := &st.Structures[i]
			if !s.Active() {
				continue
			}
			if d, ok := e.structDef(s.Type); ok && d.Tag == "science" {
				hallLevels += s.Level
			}
		}
		rate := float64(st.Jobs.Scientists) * scienceBaseRate * (1 + scholarsHallBonus*float64(hallLevels))

		for _, id := range e.cats.Discoveries.IDs {
			if st.Discoveries.Has(id) {
				continue
			}
			d := e.cats.Discoveries.ByID[id]
			if !e.isScience(d.Era) || !e.prereqsMet(st, d.Prereqs) {
				continue
			}
			e.bumpDiscoveryProgress(st, id, rate)
		}
	}

	// Completion pass, in sorted catalog order.
	for _, id := range e.cats.Discoveries.IDs {
		if st.Discoveries.Has(id) {
			continue
		}
		d := e.cats.Discoveries.ByID[id]
		if !e.prereqsMet(st, d.Prereqs) {
			continue
		}
		if e.isScience(d.Era) {
			if st.Discoveries.Knowledge[id] < 1 || st.Resources.Knowledge < d.KnowledgeCost {
				continue
			}
			st.Resources.Knowledge -= d.KnowledgeCost
		} else if st.Discoveries.Rumor[id] < 1 {
			continue
		}
		e.completeDiscovery(st, id, out)
	}
}

func (e *Engine) completeDiscovery(st *State, id string, out *[]Event) {
	i := sort.SearchStrings(st.Discoveries.Completed, id)
	if i < len(st.Discoveries.Completed) && st.Discoveries.Completed[i] == id {
		return
	}
	st.Discoveries.Completed = append(st.Discoveries.Completed, "")
	copy(st.Discoveries.Completed[i+1:], st.Discoveries.Completed[i:])
	st.Discoveries.Completed[i] = id
	delete(st.Discoveries.Rumor, id)
	delete(st.Discoveries.Knowledge, id)

	d := e.cats.Discoveries.ByID[id]
	title := fmt.Sprintf("Discovery: %s", d.Name)
	msg := fmt.Sprintf("The settlement has mastered %s.", d.Name)
	e.chronicle(st, title, msg)
	*out = append(*out, e.newEvent(st, "discovery", title, msg))
	st.Morale += 4
	st.clampStats()
}
