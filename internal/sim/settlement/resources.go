package settlement

// Resources holds the settlement's fungible stocks: seven continuous
// quantities plus coin, which is discrete in play but kept as float64 so all
// arithmetic stays componentwise. Fields may go negative mid-phase; Clamp
// runs at the end of every mutating phase, never instead of the mutation.
type Resources struct {
	Wood      float64 `json:"wood"`
	Stone     float64 `json:"stone"`
	Iron      float64 `json:"iron"`
	Water     float64 `json:"water"`
	Firewood  float64 `json:"firewood"`
	Herbs     float64 `json:"herbs"`
	Knowledge float64 `json:"knowledge"`
	Coin      float64 `json:"coin"`
}

// ResourceNames lists the addressable stocks in canonical order. Catalog
// cost/production maps and resource effects use these keys.
var ResourceNames = []string{"wood", "stone", "iron", "water", "firewood", "herbs", "knowledge", "coin"}

func (r *Resources) Get(name string) float64 {
	switch name {
	case "wood":
		return r.Wood
	case "stone":
		return r.Stone
	case "iron":
		return r.Iron
	case "water":
		return r.Water
	case "firewood":
		return r.Firewood
	case "herbs":
		return r.Herbs
	case "knowledge":
		return r.Knowledge
	case "coin":
		return r.Coin
	}
	return 0
}

// Add adjusts a named stock; unknown names are no-ops so stale catalog
// references never fault the tick.
func (r *Resources) Add(name string, amount float64) {
	switch name {
	case "wood":
		r.Wood += amount
	case "stone":
		r.Stone += amount
	case "iron":
		r.Iron += amount
	case "water":
		r.Water += amount
	case "firewood":
		r.Firewood += amount
	case "herbs":
		r.Herbs += amount
	case "knowledge":
		r.Knowledge += amount
	case "coin":
		r.Coin += amount
	}
}

func (r *Resources) Clamp() {
	for _, f := range []*float64{&r.Wood, &r.Stone, &r.Iron, &r.Water, &r.Firewood, &r.Herbs, &r.Knowledge, &r.Coin} {
		if *f < 0 {
			*f = 0
		}
	}
}

func (r *Resources) Total() float64 {
	return r.Wood + r.Stone + r.Iron + r.Water + r.Firewood + r.Herbs + r.Knowledge + r.Coin
}

// CanAfford reports whether every stock covers the named cost.
func (r *Resources) CanAfford(cost map[string]float64) bool {
	for _, name := range ResourceNames {
		if c, ok := cost[name]; ok && r.Get(name) < c {
			return false
		}
	}
	return true
}

// Pay subtracts a cost. Callers check CanAfford first; Pay itself never
// refuses, the end-of-phase clamp catches any residue.
func (r *Resources) Pay(cost map[string]float64) {
	for _, name := range ResourceNames {
		if c, ok := cost[name]; ok {
			r.Add(name, -c)
		}
	}
}
