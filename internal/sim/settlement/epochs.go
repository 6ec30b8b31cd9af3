package settlement

import "sort"

// fireEpochs runs scripted history at season boundaries. Each epoch fires at
// most once per settlement; the fired set is kept sorted for stable digests.
func (e *Engine) fireEpochs(st *State, out *[]Event) {
	for _, id := range e.cats.Epochs.IDs {
		ep := e.cats.Epochs.ByID[id]
		if ep.Year != st.Year || ep.Season != st.Season.String() {
			continue
		}
		if epochFired(st.FiredEpochs, id) {
			continue
		}
		i := sort.SearchStrings(st.FiredEpochs, id)
		st.FiredEpochs = append(st.FiredEpochs, "")
		copy(st.FiredEpochs[i+1:], st.FiredEpochs[i:])
		st.FiredEpochs[i] = id

		ev := e.newEvent(st, "epoch", ep.Title, ep.Message)
		for _, fx := range ep.Effects {
			ev.Effects = append(ev.Effects, effectFromDef(fx))
		}
		e.applyEffects(st, ev.Effects)
		e.chronicle(st, ep.Title, ep.Message)
		*out = append(*out, ev)
	}
}

func epochFired(fired []string, id string) bool {
	i := sort.SearchStrings(fired, id)
	return i < len(fired) && fired[i] == id
}
