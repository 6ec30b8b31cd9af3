package settlement

// runConsumption drains food, water and (in winter, heavily) firewood.
// Shortfalls hurt health and raise panic in proportion to the unmet share of
// demand; they never drive a stock negative past the end-of-phase clamp.
func (e *Engine) runConsumption(st *State) {
	pop := float64(st.Population)
	if pop <= 0 {
		return
	}

	consMult := 1.0
	for _, a := range st.ActiveEffects {
		if a.Effect.Kind == EffectConsumption {
			consMult += a.Effect.Amount
		}
	}
	if consMult < 0 {
		consMult = 0
	}

	foodNeed := pop * consumeFoodPerPop * consMult
	if short := st.Food.Consume(foodNeed); short > 0 {
		ratio := short / foodNeed
		st.Health -= foodShortHealth * ratio
		st.Panic += foodShortPanic * ratio
	}

	waterNeed := pop * consumeWaterPerPop * consMult
	if st.Resources.Water >= waterNeed {
		st.Resources.Water -= waterNeed
	} else {
		ratio := (waterNeed - st.Resources.Water) / waterNeed
		st.Resources.Water = 0
		st.Health -= waterShortHealth * ratio
		st.Panic += waterShortPanic * ratio
	}

	fuelNeed := pop * consumeFirewoodMildPerPop
	if st.Season == Winter {
		fuelNeed = pop * consumeFirewoodWinterPop
	}
	fuelNeed *= consMult
	if st.Resources.Firewood >= fuelNeed {
		st.Resources.Firewood -= fuelNeed
	} else {
		ratio := (fuelNeed - st.Resources.Firewood) / fuelNeed
		st.Resources.Firewood = 0
		if st.Season == Winter {
			st.Health -= firewoodShortHealth * ratio
			st.Panic += firewoodShortPanic * ratio
		} else {
			st.Health -= firewoodShortMildHealth * ratio
			st.Panic += firewoodShortMildPanic * ratio
		}
	}

	st.Resources.Clamp()
	st.Food.Clamp()
	st.clampStats()
}
