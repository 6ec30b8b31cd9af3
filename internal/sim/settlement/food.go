package settlement

// FoodStore is the perishable half of the economy: six categories with
// independent decay. Consumption drains fastest-spoiling categories first so
// the durable stores survive into winter.
type FoodStore struct {
	Fresh      float64 `json:"fresh"`
	Vegetables float64 `json:"vegetables"`
	Grain      float64 `json:"grain"`
	Salted     float64 `json:"salted"`
	Dried      float64 `json:"dried"`
	Chilled    float64 `json:"chilled"`

	// Spoiled is the loss of the most recent spoilage pass.
	Spoiled float64 `json:"spoiled"`
}

type foodCategory struct {
	name        string
	rate        float64 // fraction lost per tick
	moraleWeight float64
}

// foodCategories is ordered by decay rate, fastest first; this is also the
// consumption priority order.
var foodCategories = []foodCategory{
	{"fresh", 0.15, 1.0},
	{"vegetables", 0.03, 0.8},
	{"grain", 0.001, 0.3},
	{"salted", 0.0008, 0.5},
	{"dried", 0.0005, 0.4},
	{"chilled", 0.0003, 0.9},
}

func (f *FoodStore) get(name string) *float64 {
	switch name {
	case "fresh":
		return &f.Fresh
	case "vegetables":
		return &f.Vegetables
	case "grain":
		return &f.Grain
	case "salted":
		return &f.Salted
	case "dried":
		return &f.Dried
	case "chilled":
		return &f.Chilled
	}
	return nil
}

// AddCategory adds to a named category; unknown names are no-ops.
func (f *FoodStore) AddCategory(name string, amount float64) {
	if p := f.get(name); p != nil {
		*p += amount
	}
}

func (f *FoodStore) Total() float64 {
	return f.Fresh + f.Vegetables + f.Grain + f.Salted + f.Dried + f.Chilled
}

func (f *FoodStore) Clamp() {
	for _, c := range foodCategories {
		if p := f.get(c.name); *p < 0 {
			*p = 0
		}
	}
}

// Consume drains `amount` in priority order and returns the shortfall.
func (f *FoodStore) Consume(amount float64) (shortfall float64) {
	remaining := amount
	for _, c := range foodCategories {
		if remaining <= 0 {
			break
		}
		p := f.get(c.name)
		if *p >= remaining {
			*p -= remaining
			remaining = 0
		} else {
			remaining -= *p
			*p = 0
		}
	}
	return remaining
}

// Spoil applies one decay pass. Chilled stock decays at the fresh rate until
// cold storage is discovered; salted stock decays at half rate once a salt
// store stands. Returns the total lost this pass.
func (f *FoodStore) Spoil(hasSaltStore, hasColdStorage bool) float64 {
	var total float64
	for _, c := range foodCategories {
		rate := c.rate
		switch c.name {
		case "salted":
			if hasSaltStore {
				rate /= 2
			}
		case "chilled":
			if !hasColdStorage {
				rate = foodCategories[0].rate
			}
		}
		p := f.get(c.name)
		loss := *p * rate
		*p -= loss
		total += loss
	}
	f.Spoiled = total
	return total
}

// varietyScore sums the morale weights of categories holding at least one
// unit; a varied larder keeps spirits up.
func (f *FoodStore) varietyScore() float64 {
	var score float64
	for _, c := range foodCategories {
		if *f.get(c.name) >= 1 {
			score += c.moraleWeight
		}
	}
	return score
}
