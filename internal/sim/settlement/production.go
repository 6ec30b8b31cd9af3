package settlement

// productionMult folds active modifiers, morale and legacy into one factor
// for a given output. Food additionally takes season and weather.
func (e *Engine) productionMult(st *State, target string) float64 {
	mult := 1.0
	for _, a := range st.ActiveEffects {
		if a.Effect.Kind != EffectProduction {
			continue
		}
		if a.Effect.Target == "" || a.Effect.Target == target {
			mult += a.Effect.Amount
		}
	}
	mult *= 0.5 + st.Morale/200
	mult *= 1 + st.LegacyBonus
	if mult < 0 {
		mult = 0
	}
	return mult
}

func (e *Engine) foodMult(st *State) float64 {
	return e.productionMult(st, "food") * seasonFoodMult[st.Season] * weatherFoodMult(st.Weather)
}

// runProduction gathers baseline villager foraging, then structure output.
// Iteration over production maps follows ResourceNames order so the pass is
// deterministic regardless of map layout.
func (e *Engine) runProduction(st *State) {
	pop := float64(st.Population)
	if pop <= 0 {
		return
	}

	fm := e.foodMult(st)
	st.Food.Fresh += pop * forageFreshPerPop * fm
	st.Resources.Water += pop * forageWaterPerPop * weatherWaterMult(st.Weather) * e.productionMult(st, "water")
	st.Resources.Firewood += pop * forageFirewoodPerPop * e.productionMult(st, "firewood")
	st.Resources.Wood += pop * forageWoodPerPop * e.productionMult(st, "wood")
	if st.Season == Autumn {
		st.Food.Grain += pop * forageGrainPerPop * e.productionMult(st, "food")
	}

	farmerMult := 1 + farmerFoodBonus*float64(st.Jobs.Farmers)
	if farmerMult > farmerFoodBonusCap {
		farmerMult = farmerFoodBonusCap
	}

	for i := range st.Structures {
		s := &st.Structures[i]
		if !s.Active() {
			continue
		}
		d, ok := e.structDef(s.Type)
		if !ok {
			continue
		}
		condition := float64(s.Level) * (1 - 0.5*s.Damage)
		for _, name := range productionOrder {
			v, ok := d.Production[name]
			if !ok {
				continue
			}
			out := v * condition
			if name == "food" {
				st.Food.Fresh += out * fm * farmerMult
			} else {
				st.Resources.Add(name, out*e.productionMult(st, name))
			}
		}
	}

	st.Resources.Clamp()
	st.Food.Clamp()
}

// productionOrder is ResourceNames plus the pseudo-resource "food", which
// structure production maps route into the fresh store.
var productionOrder = append([]string{"food"}, ResourceNames...)
