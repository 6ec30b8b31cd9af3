package settlement

import (
	"fmt"
	"hash/fnv"

	"emberhold.world/internal/sim/catalogs"
	"emberhold.world/internal/sim/rng"
	"emberhold.world/internal/sim/tuning"
)

// Engine binds catalogs and tuning to the pure state-transition code. It is
// immutable after construction and safe to share across settlements; all
// mutable simulation state lives in *State.
type Engine struct {
	cats      *catalogs.Catalogs
	tune      *tuning.Tuning
	templates []eventTemplate
}

func NewEngine(cats *catalogs.Catalogs, tune *tuning.Tuning) (*Engine, error) {
	e := &Engine{cats: cats, tune: tune, templates: buildTemplates()}
	for _, t := range e.templates {
		if _, ok := cats.Events.ByID[t.ID]; !ok {
			return nil, fmt.Errorf("event template %q not in events catalog", t.ID)
		}
	}
	for _, id := range cats.Epochs.IDs {
		for _, fx := range cats.Epochs.ByID[id].Effects {
			if err := validateEffect(effectFromDef(fx)); err != nil {
				return nil, fmt.Errorf("epoch %s: %w", id, err)
			}
		}
	}
	return e, nil
}

func (e *Engine) Catalogs() *catalogs.Catalogs { return e.cats }
func (e *Engine) Tuning() *tuning.Tuning      { return e.tune }

func effectFromDef(d catalogs.EffectDef) Effect {
	return Effect{Kind: d.Kind, Target: d.Target, Amount: d.Amount, Duration: d.DurationTicks}
}

// Found creates a settlement at tick zero. A zero seed derives one from the
// name so two same-named settlements still replay identically.
func (e *Engine) Found(name string, seed int64, nowUnix int64) *State {
	if seed == 0 {
		h := fnv.New64a()
		h.Write([]byte(name))
		seed = int64(h.Sum64())
		if seed == 0 {
			seed = 1
		}
	}

	st := &State{
		Name:       name,
		Seed:       seed,
		Year:       e.tune.StartYear,
		Season:     Spring,
		Day:        1,
		Population: 10,
		Health:     80,
		Morale:     60,
		Panic:      10,
		Resources: Resources{
			Wood:     60,
			Stone:    20,
			Water:    80,
			Firewood: 150,
			Herbs:    5,
			Coin:     10,
		},
		Food: FoodStore{
			Fresh:      20,
			Vegetables: 15,
			Grain:      80,
			Dried:      40,
			Salted:     20,
		},
		GraceSeasons:     e.tune.GraceSeasons,
		LastObservedUnix: nowUnix,
	}
	st.Rand = rng.New(seed)

	for i := 0; i < 5; i++ {
		st.Structures = append(st.Structures, Structure{Type: "shelter", Level: 1})
	}

	st.Weather = e.rollWeather(st)
	e.chronicle(st, "Founding", fmt.Sprintf("%s is founded in the spring of %d by ten settlers.", name, st.Year))
	return st
}

func (e *Engine) rollWeather(st *State) Weather {
	r := st.Rand.Float01()
	for _, b := range weatherBands[st.Season] {
		if r < b.weight {
			return b.weather
		}
		r -= b.weight
	}
	return weatherBands[st.Season][0].weather
}

func (e *Engine) structDef(typ string) (catalogs.StructureDef, bool) {
	d, ok := e.cats.Structures.ByID[typ]
	return d, ok
}

// housingCap sums housing across active structures, scaled by level.
func (e *Engine) housingCap(st *State) int {
	total := 0
	for i := range st.Structures {
		s := &st.Structures[i]
		if !s.Active() {
			continue
		}
		if d, ok := e.structDef(s.Type); ok {
			total += d.Housing * s.Level
		}
	}
	return total
}

// housingQuality is the average level of active housing relative to its
// maximum, in (0,1]. Better housing means more births.
func (e *Engine) housingQuality(st *State) float64 {
	levels, max := 0, 0
	for i := range st.Structures {
		s := &st.Structures[i]
		if !s.Active() {
			continue
		}
		d, ok := e.structDef(s.Type)
		if !ok || d.Housing == 0 {
			continue
		}
		levels += s.Level
		max += d.MaxLevel
	}
	if max == 0 {
		return 0
	}
	return float64(levels) / float64(max)
}

// DefenseRating folds guards and defensive structures into a 0..0.8 factor.
// Damage scales a structure's contribution down linearly.
func (e *Engine) DefenseRating(st *State) float64 {
	rating := float64(st.Jobs.Guards) * guardDefense
	for i := range st.Structures {
		s := &st.Structures[i]
		if !s.Active() {
			continue
		}
		if d, ok := e.structDef(s.Type); ok && d.Defense > 0 {
			rating += d.Defense * float64(s.Level) * (1 - s.Damage)
		}
	}
	if rating > defenseCap {
		rating = defenseCap
	}
	return rating
}

func (e *Engine) hasActiveTag(st *State, tag string) bool {
	for i := range st.Structures {
		s := &st.Structures[i]
		if !s.Active() {
			continue
		}
		if d, ok := e.structDef(s.Type); ok && d.Tag == tag {
			return true
		}
	}
	return false
}

func (e *Engine) hasActiveType(st *State, typ string) bool {
	for i := range st.Structures {
		s := &st.Structures[i]
		if s.Active() && s.Type == typ {
			return true
		}
	}
	return false
}

// chronicle appends a dated entry, trimming the oldest block when the log
// exceeds its cap so long-lived settlements stay bounded.
func (e *Engine) chronicle(st *State, title, message string) {
	st.ChronicleTotal++
	st.Chronicle = append(st.Chronicle, ChronicleEntry{
		Tick:    st.Tick,
		Year:    st.Year,
		Season:  st.Season.String(),
		Title:   title,
		Message: message,
	})
	if len(st.Chronicle) > e.tune.ChronicleCap {
		trimmed := make([]ChronicleEntry, len(st.Chronicle)-e.tune.ChronicleTrim)
		copy(trimmed, st.Chronicle[e.tune.ChronicleTrim:])
		st.Chronicle = trimmed
	}
}

// newEvent stamps an event with the settlement clock and a per-settlement
// sequence number so event IDs are unique and deterministic.
func (e *Engine) newEvent(st *State, kind, title, message string) Event {
	st.NextEventNum++
	return Event{
		ID:      fmt.Sprintf("ev-%d-%d", st.Tick, st.NextEventNum),
		Tick:    st.Tick,
		Year:    st.Year,
		Season:  st.Season.String(),
		Day:     st.Day,
		Type:    kind,
		Title:   title,
		Message: message,
	}
}
