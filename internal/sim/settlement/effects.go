package settlement

import (
	"fmt"

	"emberhold.world/internal/sim/catalogs"
)

// validateEffect enforces the duration rule: modifier kinds persist and must
// say for how long, everything else is a single immediate step.
func validateEffect(fx Effect) error {
	switch fx.Kind {
	case EffectProduction, EffectConsumption:
		if fx.Duration <= 0 {
			return fmt.Errorf("%s effect requires duration_ticks > 0", fx.Kind)
		}
	case EffectResource, EffectFood, EffectStat, EffectThreat, EffectDamage, EffectDiscovery:
		if fx.Duration != 0 {
			return fmt.Errorf("%s effect must not carry a duration", fx.Kind)
		}
	default:
		return fmt.Errorf("unknown effect kind %q", fx.Kind)
	}
	return nil
}

func (e *Engine) applyEffects(st *State, fxs []Effect) {
	for _, fx := range fxs {
		e.applyEffect(st, fx)
	}
}

// applyEffect mutates state for one effect. Unknown targets are no-ops, the
// same forgiveness the resource accessors give. Callers validated the
// duration rule already.
func (e *Engine) applyEffect(st *State, fx Effect) {
	switch fx.Kind {
	case EffectProduction, EffectConsumption:
		st.ActiveEffects = append(st.ActiveEffects, ActiveEffect{Effect: fx, Remaining: fx.Duration})
	case EffectResource:
		st.Resources.Add(fx.Target, fx.Amount)
		st.Resources.Clamp()
	case EffectFood:
		target := fx.Target
		if target == "" || target == "food" {
			target = "fresh"
		}
		st.Food.AddCategory(target, fx.Amount)
		st.Food.Clamp()
	case EffectStat:
		switch fx.Target {
		case "health":
			st.Health += fx.Amount
		case "morale":
			st.Morale += fx.Amount
		case "panic":
			st.Panic += fx.Amount
		case "population":
			st.Population += int(fx.Amount)
			if st.Population < 0 {
				st.Population = 0
			}
			e.clampJobs(st)
		}
		st.clampStats()
	case EffectThreat:
		if fx.Amount < 0 {
			st.Threat.Phase = ThreatNone
			st.Threat.Faction = ""
		} else if st.Threat.Phase < ThreatRaidImminent {
			st.Threat.Phase++
			if st.Threat.Faction == "" {
				st.Threat.Faction = e.cats.Factions.IDs[st.Rand.Bounded(len(e.cats.Factions.IDs))]
			}
		}
	case EffectDamage:
		if n := len(st.Structures); n > 0 {
			s := &st.Structures[st.Rand.Bounded(n)]
			if !s.Demolished {
				s.Damage += fx.Amount
				s.Damage = clamp01(s.Damage)
			}
		}
	case EffectDiscovery:
		e.bumpDiscoveryProgress(st, fx.Target, fx.Amount)
	}
}

// bumpDiscoveryProgress routes progress to rumor or knowledge depending on
// the target's era. Completion itself only happens in the discovery phase.
func (e *Engine) bumpDiscoveryProgress(st *State, id string, amount float64) {
	d, ok := e.cats.Discoveries.ByID[id]
	if !ok || st.Discoveries.Has(id) {
		return
	}
	if catalogs.EraIndex(d.Era) >= catalogs.EraIndex(catalogs.ScienceEra) {
		if st.Discoveries.Knowledge == nil {
			st.Discoveries.Knowledge = map[string]float64{}
		}
		st.Discoveries.Knowledge[id] = clamp01(st.Discoveries.Knowledge[id] + amount)
	} else {
		if st.Discoveries.Rumor == nil {
			st.Discoveries.Rumor = map[string]float64{}
		}
		st.Discoveries.Rumor[id] = clamp01(st.Discoveries.Rumor[id] + amount)
	}
}

func (e *Engine) bumpRumor(st *State, id string, amount float64) {
	e.bumpDiscoveryProgress(st, id, amount)
}

// ApplyExternalEffects validates then applies a batch of out-of-band effects
// (legacy rewards, operator adjustments). Any invalid effect rejects the
// whole batch.
func (e *Engine) ApplyExternalEffects(st *State, fxs []Effect) error {
	for _, fx := range fxs {
		if err := validateEffect(fx); err != nil {
			return err
		}
	}
	e.applyEffects(st, fxs)
	return nil
}
