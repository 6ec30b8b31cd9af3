package settlement

import "fmt"

// Threats escalate through a fixed ladder: rumors, scouts sighted, raid
// imminent, then the raid itself. Wealthier settlements attract attention
// faster; the founding grace period suppresses the first rung entirely.

// PerceivedWealth scores how tempting the settlement looks to raiders, on a
// 0..2 scale.
func (e *Engine) PerceivedWealth(st *State) float64 {
	w := (st.Resources.Total()+st.Food.Total())*0.002 +
		float64(st.Population)*0.02 +
		float64(st.Stats.YearsSurvived)*0.05
	if w < 0 {
		w = 0
	}
	if w > 2 {
		w = 2
	}
	return w
}

func (e *Engine) runThreats(st *State, out *[]Event) {
	st.Threat.Wealth = e.PerceivedWealth(st)

	switch st.Threat.Phase {
	case ThreatNone:
		if st.GraceSeasons > 0 {
			st.Rand.Float01()
			return
		}
		p := threatBaseChance * st.Threat.Wealth * seasonRaidMult[st.Season]
		if p > threatChanceCap {
			p = threatChanceCap
		}
		if st.Rand.Float01() < p {
			st.Threat.Phase = ThreatRumors
			st.Threat.Faction = e.cats.Factions.IDs[st.Rand.Bounded(len(e.cats.Factions.IDs))]
			f := e.cats.Factions.ByID[st.Threat.Faction]
			*out = append(*out, e.newEvent(st, "threat", "Rumors on the Road",
				fmt.Sprintf("Traders speak of %s moving through the region.", f.Name)))
		}
	case ThreatRumors:
		if st.Rand.Float01() < threatEscalate {
			st.Threat.Phase = ThreatScouts
			*out = append(*out, e.newEvent(st, "threat", "Scouts Sighted",
				"Riders watch the settlement from the tree line, then vanish."))
		}
	case ThreatScouts:
		if st.Rand.Float01() < threatEscalate {
			st.Threat.Phase = ThreatRaidImminent
			st.Panic += 10
			f := e.cats.Factions.ByID[st.Threat.Faction]
			*out = append(*out, e.newEvent(st, "threat", "Raid Imminent",
				fmt.Sprintf("%s are massing nearby. The raid will come within days.", f.Name)))
		}
	case ThreatRaidImminent:
		if st.Rand.Float01() < threatStrikeChance {
			e.executeRaid(st, out)
		}
	}

	st.clampStats()
}

func (e *Engine) raidSeverity(st *State) float64 {
	f := e.cats.Factions.ByID[st.Threat.Faction]
	sev := 0.35 + f.Aggression + st.Threat.Wealth*0.2
	if f.RaidSeason != "" && f.RaidSeason == st.Season.String() {
		sev += 0.1
	}
	if st.Season == Winter {
		sev -= 0.1
	}
	if sev < 0.05 {
		sev = 0.05
	}
	if sev > 1.2 {
		sev = 1.2
	}
	return sev
}

// ResolveRaid is the pure core of raid resolution: effective severity after
// defense, and whether the raid is repelled outright.
func ResolveRaid(severity, defense float64) (effective float64, repelled bool) {
	if defense > defenseCap {
		defense = defenseCap
	}
	effective = severity * (1 - defense)
	return effective, effective < raidRepelThreshold
}

func (e *Engine) executeRaid(st *State, out *[]Event) {
	f := e.cats.Factions.ByID[st.Threat.Faction]
	sev := e.raidSeverity(st)
	eff, repelled := ResolveRaid(sev, e.DefenseRating(st))

	if repelled {
		frac := raidRepelledLoss
		st.Resources.Wood *= 1 - frac
		st.Food.Fresh *= 1 - frac
		st.Morale += 5
		st.Panic -= 10
		st.Stats.RaidsRepelled++
		title := "Raid Repelled"
		msg := fmt.Sprintf("%s break against the defenses and scatter. The settlement holds.", f.Name)
		e.chronicle(st, title, msg)
		*out = append(*out, e.newEvent(st, "raid", title, msg))
	} else {
		frac := raidLootFraction * eff
		if frac > raidLootCap {
			frac = raidLootCap
		}
		st.Resources.Wood *= 1 - frac
		st.Resources.Stone *= 1 - frac
		st.Resources.Iron *= 1 - frac
		st.Resources.Coin *= 1 - frac
		st.Food.Fresh *= 1 - frac
		st.Food.Vegetables *= 1 - frac
		st.Food.Grain *= 1 - frac
		st.Food.Salted *= 1 - frac
		st.Food.Dried *= 1 - frac
		st.Food.Chilled *= 1 - frac
		st.Panic += 30 * eff
		st.Morale -= 10 * eff
		st.Stats.RaidsSuffered++

		if st.Rand.Float01() < raidDamageBase+0.4*eff {
			if n := len(st.Structures); n > 0 {
				s := &st.Structures[st.Rand.Bounded(n)]
				if !s.Demolished {
					s.Damage += 0.5 * eff
					if s.Damage > 1 {
						s.Damage = 1
					}
				}
			}
		} else if len(st.Structures) > 0 {
			st.Rand.Bounded(len(st.Structures))
		}

		title := "Raided"
		msg := fmt.Sprintf("%s sweep through before dawn and carry off what they can.", f.Name)
		e.chronicle(st, title, msg)
		*out = append(*out, e.newEvent(st, "raid", title, msg))
	}

	st.Threat.Phase = ThreatNone
	st.Threat.Faction = ""
	st.Resources.Clamp()
	st.Food.Clamp()
	st.clampStats()
}
