package settlement

import (
	"emberhold.world/internal/sim/rng"
)

type Season int

const (
	Spring Season = iota
	Summer
	Autumn
	Winter
)

var seasonNames = [4]string{"spring", "summer", "autumn", "winter"}

func (s Season) String() string { return seasonNames[s&3] }

type Weather int

const (
	WeatherClear Weather = iota
	WeatherRain
	WeatherStorm
	WeatherFog
	WeatherDrought
	WeatherSnow
	WeatherFrost
)

var weatherNames = [...]string{"clear", "rain", "storm", "fog", "drought", "snow", "frost"}

func (w Weather) String() string {
	if int(w) < len(weatherNames) {
		return weatherNames[w]
	}
	return "clear"
}

type ThreatPhase int

const (
	ThreatNone ThreatPhase = iota
	ThreatRumors
	ThreatScouts
	ThreatRaidImminent
)

var threatNames = [4]string{"none", "rumors", "scouts", "raid-imminent"}

func (p ThreatPhase) String() string { return threatNames[p&3] }

type ThreatState struct {
	Phase   ThreatPhase `json:"phase"`
	Faction string      `json:"faction,omitempty"`
	Wealth  float64     `json:"wealth"`
}

// Structure occupies a stable slot in State.Structures; commands reference it
// by index. Demolished slots stay in place so indices never shift.
type Structure struct {
	Type       string  `json:"type"`
	Level      int     `json:"level"`
	BuildEnd   uint64  `json:"build_end,omitempty"` // tick; nonzero while under construction
	Damage     float64 `json:"damage,omitempty"`    // 0..1
	Demolished bool    `json:"demolished,omitempty"`
}

// Active reports whether the structure currently produces and defends.
func (s *Structure) Active() bool {
	return !s.Demolished && s.BuildEnd == 0 && s.Level > 0
}

func (s *Structure) UnderConstruction() bool {
	return !s.Demolished && s.BuildEnd != 0
}

type Jobs struct {
	Guards     int `json:"guards"`
	Scientists int `json:"scientists"`
	Farmers    int `json:"farmers"`
	Builders   int `json:"builders"`
}

func (j Jobs) Total() int { return j.Guards + j.Scientists + j.Farmers + j.Builders }

type DiscoveryState struct {
	// Completed is sorted and monotonic: identifiers are only ever added.
	Completed []string           `json:"completed,omitempty"`
	Rumor     map[string]float64 `json:"rumor,omitempty"`
	Knowledge map[string]float64 `json:"knowledge,omitempty"`
}

func (d *DiscoveryState) Has(id string) bool {
	for _, c := range d.Completed {
		if c == id {
			return true
		}
	}
	return false
}

type Stats struct {
	YearsSurvived   int `json:"years_survived"`
	WintersSurvived int `json:"winters_survived"`
	Births          int `json:"births"`
	Deaths          int `json:"deaths"`
	RaidsRepelled   int `json:"raids_repelled"`
	RaidsSuffered   int `json:"raids_suffered"`
}

type ChronicleEntry struct {
	Tick    uint64 `json:"tick"`
	Year    int    `json:"year"`
	Season  string `json:"season"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Effect is a tagged value applied by events, epochs or external rewards.
// Modifier kinds (production, consumption) must carry a duration and live as
// ActiveEffects; all other kinds apply a single immediate step and must not.
type Effect struct {
	Kind     string  `json:"kind"`
	Target   string  `json:"target,omitempty"`
	Amount   float64 `json:"amount"`
	Duration int     `json:"duration_ticks,omitempty"`
}

const (
	EffectResource    = "resource"
	EffectFood        = "food"
	EffectStat        = "stat"
	EffectProduction  = "production"
	EffectConsumption = "consumption"
	EffectThreat      = "threat"
	EffectDamage      = "damage"
	EffectDiscovery   = "discovery"
)

// ActiveEffect is a modifier currently in force; Remaining counts down once
// per tick and the effect is dropped at zero.
type ActiveEffect struct {
	Effect    Effect `json:"effect"`
	Remaining int    `json:"remaining"`
}

type Choice struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Effects []Effect `json:"effects,omitempty"`
}

// Event is an immutable narrative record; it is the engine's externally
// observable output alongside the chronicle.
type Event struct {
	ID      string   `json:"id"`
	Tick    uint64   `json:"tick"`
	Year    int      `json:"year"`
	Season  string   `json:"season"`
	Day     int      `json:"day"`
	Type    string   `json:"type"`
	Title   string   `json:"title"`
	Message string   `json:"message"`
	Effects []Effect `json:"effects,omitempty"`
	Choices []Choice `json:"choices,omitempty"`
}

// State is the root aggregate. The tick processor is its only writer during
// a run; everything here serializes (gob snapshots, JSON digests).
type State struct {
	Name string  `json:"name"`
	Seed int64   `json:"seed"`
	Rand rng.Gen `json:"rand"`

	Tick      uint64 `json:"tick"`
	Year      int    `json:"year"`
	Season    Season `json:"season"`
	Day       int    `json:"day"`
	TickOfDay int    `json:"tick_of_day"`

	Population int     `json:"population"`
	Jobs       Jobs    `json:"jobs"`
	Health     float64 `json:"health"`
	Morale     float64 `json:"morale"`
	Panic      float64 `json:"panic"`

	Resources  Resources   `json:"resources"`
	Food       FoodStore   `json:"food"`
	Structures []Structure `json:"structures"`

	Discoveries DiscoveryState `json:"discoveries"`
	Threat      ThreatState    `json:"threat"`
	Weather     Weather        `json:"weather"`

	ActiveEffects []ActiveEffect `json:"active_effects,omitempty"`
	PendingChoice *Event         `json:"pending_choice,omitempty"`
	FiredEpochs   []string       `json:"fired_epochs,omitempty"`

	// Chronicle is the retained tail; ChronicleTotal counts every entry
	// ever appended, so readers can tell new entries from trimmed history.
	Chronicle      []ChronicleEntry `json:"chronicle"`
	ChronicleTotal int              `json:"chronicle_total"`
	Stats          Stats            `json:"stats"`

	Extinct         bool    `json:"extinct"`
	GraceSeasons    int     `json:"grace_seasons"`
	SpoilageNoticed bool    `json:"spoilage_noticed"`
	LegacyBonus     float64 `json:"legacy_bonus,omitempty"`

	LastObservedUnix int64  `json:"last_observed_unix"`
	NextEventNum     uint64 `json:"next_event_num"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampStat(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func (st *State) clampStats() {
	st.Health = clampStat(st.Health)
	st.Morale = clampStat(st.Morale)
	st.Panic = clampStat(st.Panic)
}
