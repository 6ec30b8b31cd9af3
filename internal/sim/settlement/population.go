package settlement

import "fmt"

// runPopulation handles deaths then births. Deaths only occur under failing
// health; births need housing headroom, passable health and a food surplus.
// Both use expected-value accounting with a single fractional draw so the
// draw count per tick is fixed.
func (e *Engine) runPopulation(st *State, out *[]Event) {
	if st.Population <= 0 {
		return
	}

	if st.Health < deathHealthFloor {
		chance := (deathHealthFloor - st.Health) / deathHealthFloor * deathBaseChance
		expected := float64(st.Population) * chance
		deaths := int(expected)
		if st.Rand.Float01() < expected-float64(deaths) {
			deaths++
		}
		if deaths > st.Population {
			deaths = st.Population
		}
		if deaths > 0 {
			st.Population -= deaths
			st.Stats.Deaths += deaths
			st.Panic += float64(deaths) * 3
			st.Morale -= float64(deaths) * 2
			if deaths == 1 {
				*out = append(*out, e.newEvent(st, "population", "A Death",
					"Hunger and cold claim a villager. A grave is dug in the hard ground."))
			} else {
				*out = append(*out, e.newEvent(st, "population", "Deaths",
					fmt.Sprintf("%d villagers are lost. The survivors dig in silence.", deaths)))
			}
			e.clampJobs(st)
		}
	} else {
		// Keep the draw count stable whether or not anyone is dying.
		st.Rand.Float01()
	}

	if st.Population > 0 && st.Population < e.housingCap(st) && st.Health > birthHealthFloor {
		surplus := st.Food.Total() / (float64(st.Population) * 2)
		if surplus > 1.5 {
			surplus = 1.5
		}
		chance := birthBaseChance * seasonBirthMult[st.Season] * surplus *
			(st.Health / 100) * (1 - st.Panic/200) *
			(0.5 + 0.5*e.housingQuality(st))
		if st.Rand.Float01() < chance {
			st.Population++
			st.Stats.Births++
			st.Morale += 3
			*out = append(*out, e.newEvent(st, "population", "A Birth",
				"A child is born. The whole settlement finds reasons to visit the hearth."))
		}
	} else {
		st.Rand.Float01()
	}

	if st.Population <= 0 {
		st.Population = 0
		st.Extinct = true
		e.chronicle(st, "The Last Light Goes Out",
			fmt.Sprintf("In the %s of %d, the last of %s passes. The valley is quiet again.",
				st.Season, st.Year, st.Name))
		*out = append(*out, e.newEvent(st, "population", "Extinction",
			"No one is left. The settlement's story ends here."))
	}

	st.clampStats()
}

// clampJobs shrinks assignments after deaths so assigned roles never exceed
// the living population. Guards are released last.
func (e *Engine) clampJobs(st *State) {
	excess := st.Jobs.Total() - st.Population
	for _, role := range []*int{&st.Jobs.Builders, &st.Jobs.Farmers, &st.Jobs.Scientists, &st.Jobs.Guards} {
		if excess <= 0 {
			break
		}
		cut := *role
		if cut > excess {
			cut = excess
		}
		*role -= cut
		excess -= cut
	}
}
