package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning carries schedule and window knobs. Economy constants (spoilage
// rates, consumption rates, weather bands) are static tables in the
// settlement package; changing them changes the game, not the deployment.
type Tuning struct {
	TickRealSeconds int `yaml:"tick_real_seconds"`
	CatchupMaxHours int `yaml:"catchup_max_hours"`
	BatchTicks      int `yaml:"batch_ticks"`

	TicksPerDay   int `yaml:"ticks_per_day"`
	DaysPerSeason int `yaml:"days_per_season"`
	StartYear     int `yaml:"start_year"`
	GraceSeasons  int `yaml:"grace_seasons"`

	ChronicleCap  int `yaml:"chronicle_cap"`
	ChronicleTrim int `yaml:"chronicle_trim"`

	EventChance float64 `yaml:"event_chance"`

	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
	AdvanceEverySecs   int `yaml:"advance_every_secs"`
}

func Defaults() Tuning {
	return Tuning{
		TickRealSeconds:    900, // one tick per 15 real minutes
		CatchupMaxHours:    72,
		BatchTicks:         50,
		TicksPerDay:        4,
		DaysPerSeason:      42,
		StartYear:          1500,
		GraceSeasons:       4,
		ChronicleCap:       500,
		ChronicleTrim:      100,
		EventChance:        0.02,
		SnapshotEveryTicks: 500,
		AdvanceEverySecs:   30,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
