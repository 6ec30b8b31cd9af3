package catalogs

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Catalogs is the closed game-data set: every structure type, discovery,
// raid faction, narrative template and scripted epoch the engine can ever
// reference. Each file carries a sha256 digest so observers can detect a
// data mismatch against a running settlement.
type Catalogs struct {
	Structures  StructureCatalog
	Discoveries DiscoveryCatalog
	Factions    FactionCatalog
	Events      EventCatalog
	Epochs      EpochCatalog
}

type StructureCatalog struct {
	ByID   map[string]StructureDef
	IDs    []string
	Digest string
}

// StructureDef separates catalog data from dispatch: cost/production/defense
// live here, the tick loop only reads them.
type StructureDef struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Cost       map[string]float64 `json:"cost"`
	BuildTicks int                `json:"build_ticks"`
	Production map[string]float64 `json:"production,omitempty"`
	Defense    float64            `json:"defense,omitempty"`
	Housing    int                `json:"housing,omitempty"`
	Tag        string             `json:"tag,omitempty"` // "salt_storage","faith","science"
	Requires   string             `json:"requires,omitempty"`
	MaxLevel   int                `json:"max_level"`
}

type DiscoveryCatalog struct {
	ByID   map[string]DiscoveryDef
	IDs    []string
	Digest string
}

type DiscoveryDef struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Era           string   `json:"era"`
	Prereqs       []string `json:"prereqs,omitempty"`
	KnowledgeCost float64  `json:"knowledge_cost,omitempty"`
}

type FactionCatalog struct {
	ByID   map[string]FactionDef
	IDs    []string
	Digest string
}

type FactionDef struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Aggression float64 `json:"aggression"`
	RaidSeason string  `json:"raid_season,omitempty"`
}

type EventCatalog struct {
	ByID   map[string]EventDef
	IDs    []string
	Digest string
}

// EventDef is the data half of a narrative template; eligibility predicates
// and effect builders are code in the settlement package, keyed by ID.
type EventDef struct {
	ID         string  `json:"id"`
	Category   string  `json:"category"`
	Title      string  `json:"title"`
	Message    string  `json:"message"`
	BaseWeight float64 `json:"base_weight"`
}

type EpochCatalog struct {
	ByID   map[string]EpochDef
	IDs    []string
	Digest string
}

type EpochDef struct {
	ID      string      `json:"id"`
	Year    int         `json:"year"`
	Season  string      `json:"season"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
	Effects []EffectDef `json:"effects,omitempty"`
}

// EffectDef is the serializable form of an event effect.
type EffectDef struct {
	Kind          string  `json:"kind"`
	Target        string  `json:"target,omitempty"`
	Amount        float64 `json:"amount"`
	DurationTicks int     `json:"duration_ticks,omitempty"`
}

// Eras, ordered. Discoveries below ScienceEra accrue rumor progress;
// at or above it they need scientists and a knowledge cost.
var Eras = []string{"hearth", "field", "craft", "scholarship", "engine"}

const ScienceEra = "scholarship"

func EraIndex(era string) int {
	for i, e := range Eras {
		if e == era {
			return i
		}
	}
	return -1
}

var Seasons = []string{"spring", "summer", "autumn", "winter"}

func SeasonIndex(season string) int {
	for i, s := range Seasons {
		if s == season {
			return i
		}
	}
	return -1
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadStructures(filepath.Join(configDir, "structures.json"), &c.Structures); err != nil {
		return nil, err
	}
	if err := loadDiscoveries(filepath.Join(configDir, "discoveries.json"), &c.Discoveries); err != nil {
		return nil, err
	}
	if err := loadFactions(filepath.Join(configDir, "factions.json"), &c.Factions); err != nil {
		return nil, err
	}
	if err := loadEvents(filepath.Join(configDir, "events.json"), &c.Events); err != nil {
		return nil, err
	}
	if err := loadEpochs(filepath.Join(configDir, "epochs.json"), &c.Epochs); err != nil {
		return nil, err
	}

	if err := c.crossCheck(); err != nil {
		return nil, err
	}
	return &c, nil
}

// crossCheck verifies references between catalogs so a broken config fails at
// load, not mid-simulation.
func (c *Catalogs) crossCheck() error {
	for _, id := range c.Structures.IDs {
		d := c.Structures.ByID[id]
		if d.Requires != "" {
			if _, ok := c.Discoveries.ByID[d.Requires]; !ok {
				return fmt.Errorf("structures.json: %s requires unknown discovery %q", id, d.Requires)
			}
		}
	}
	for _, id := range c.Discoveries.IDs {
		d := c.Discoveries.ByID[id]
		if EraIndex(d.Era) < 0 {
			return fmt.Errorf("discoveries.json: %s has unknown era %q", id, d.Era)
		}
		for _, p := range d.Prereqs {
			if _, ok := c.Discoveries.ByID[p]; !ok {
				return fmt.Errorf("discoveries.json: %s prereq %q not found", id, p)
			}
		}
	}
	for _, id := range c.Factions.IDs {
		f := c.Factions.ByID[id]
		if f.RaidSeason != "" && SeasonIndex(f.RaidSeason) < 0 {
			return fmt.Errorf("factions.json: %s has unknown season %q", id, f.RaidSeason)
		}
	}
	for _, id := range c.Epochs.IDs {
		e := c.Epochs.ByID[id]
		if SeasonIndex(e.Season) < 0 {
			return fmt.Errorf("epochs.json: %s has unknown season %q", id, e.Season)
		}
	}
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func readValidated(path, schemaName string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := validateSchema(schemaName, raw); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return raw, nil
}

func loadStructures(path string, out *StructureCatalog) error {
	raw, err := readValidated(path, "structures")
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []StructureDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("structures.json: %w", err)
	}
	out.ByID = map[string]StructureDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("structures.json: empty id")
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("structures.json: duplicate id %q", d.ID)
		}
		if d.MaxLevel <= 0 {
			d.MaxLevel = 3
		}
		out.ByID[d.ID] = d
	}
	out.IDs = sortedKeys(out.ByID)
	return nil
}

func loadDiscoveries(path string, out *DiscoveryCatalog) error {
	raw, err := readValidated(path, "discoveries")
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []DiscoveryDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("discoveries.json: %w", err)
	}
	out.ByID = map[string]DiscoveryDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("discoveries.json: empty id")
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("discoveries.json: duplicate id %q", d.ID)
		}
		out.ByID[d.ID] = d
	}
	out.IDs = sortedKeys(out.ByID)
	return nil
}

func loadFactions(path string, out *FactionCatalog) error {
	raw, err := readValidated(path, "factions")
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []FactionDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("factions.json: %w", err)
	}
	out.ByID = map[string]FactionDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("factions.json: empty id")
		}
		out.ByID[d.ID] = d
	}
	out.IDs = sortedKeys(out.ByID)
	if len(out.IDs) == 0 {
		return fmt.Errorf("factions.json: at least one faction required")
	}
	return nil
}

func loadEvents(path string, out *EventCatalog) error {
	raw, err := readValidated(path, "events")
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []EventDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("events.json: %w", err)
	}
	out.ByID = map[string]EventDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("events.json: empty id")
		}
		out.ByID[d.ID] = d
	}
	out.IDs = sortedKeys(out.ByID)
	return nil
}

func loadEpochs(path string, out *EpochCatalog) error {
	raw, err := readValidated(path, "epochs")
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []EpochDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("epochs.json: %w", err)
	}
	out.ByID = map[string]EpochDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("epochs.json: empty id")
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("epochs.json: duplicate id %q", d.ID)
		}
		out.ByID[d.ID] = d
	}
	out.IDs = sortedKeys(out.ByID)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CombinedDigest identifies the full data set in one string (sent in the
// transport welcome message).
func (c *Catalogs) CombinedDigest() string {
	var buf bytes.Buffer
	for _, d := range []string{
		c.Structures.Digest, c.Discoveries.Digest, c.Factions.Digest,
		c.Events.Digest, c.Epochs.Digest,
	} {
		buf.WriteString(d)
		buf.WriteByte('\n')
	}
	return sha256Hex(buf.Bytes())
}
