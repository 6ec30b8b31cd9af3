package settlement

// runWellbeing is the slow drift of health and morale: a varied larder lifts
// spirits, heavy conscription wears them down, a shrine calms the fearful,
// full stores mend bodies.
func (e *Engine) runWellbeing(st *State) {
	if st.Population <= 0 {
		return
	}

	st.Morale += 0.03 * st.Food.varietyScore()

	if float64(st.Jobs.Guards) > float64(st.Population)*guardOverwatchRatio {
		st.Morale -= 0.3
	}

	if e.hasActiveTag(st, "faith") && !st.Discoveries.Has("secular_governance") {
		st.Panic -= 0.3
	}

	if st.Food.Total() > float64(st.Population)*2 && st.Resources.Water > float64(st.Population)*0.5 {
		st.Health += 0.2
	}

	st.clampStats()
}

// settlePanic lets fear ebb when nothing is actively wrong.
func (e *Engine) settlePanic(st *State) {
	if st.Threat.Phase == ThreatNone && st.Food.Total() >= float64(st.Population) {
		st.Panic -= 0.5
		if st.Panic < 0 {
			st.Panic = 0
		}
	}
}
