package settlement

import "fmt"

// Command is a player decision applied between ticks. Invalid commands
// (unknown structure, unaffordable cost, bad index) are rejected with an
// error and leave state untouched.
type Command struct {
	Op string `json:"op"`

	StructureType string `json:"structure_type,omitempty"`
	StructureID   int    `json:"structure_id,omitempty"`

	Role  string `json:"role,omitempty"`
	Count int    `json:"count,omitempty"`

	EventID  string `json:"event_id,omitempty"`
	ChoiceID string `json:"choice_id,omitempty"`

	Effects []Effect `json:"effects,omitempty"`
}

const (
	OpBuild          = "build"
	OpUpgrade        = "upgrade"
	OpDemolish       = "demolish"
	OpRepair         = "repair"
	OpAssignJob      = "assign_job"
	OpResolveChoice  = "resolve_choice"
	OpExternalEffect = "external_effect"
)

// Apply executes one command against the settlement. It runs on the same
// goroutine as Step; commands are serialized with ticks, never concurrent.
func (e *Engine) Apply(st *State, cmd Command) ([]Event, error) {
	if st.Extinct {
		return nil, fmt.Errorf("settlement is extinct")
	}
	switch cmd.Op {
	case OpBuild:
		return e.cmdBuild(st, cmd.StructureType)
	case OpUpgrade:
		return e.cmdUpgrade(st, cmd.StructureID)
	case OpDemolish:
		return e.cmdDemolish(st, cmd.StructureID)
	case OpRepair:
		return e.cmdRepair(st, cmd.StructureID)
	case OpAssignJob:
		return nil, e.cmdAssign(st, cmd.Role, cmd.Count)
	case OpResolveChoice:
		if !e.ResolveChoice(st, cmd.EventID, cmd.ChoiceID) {
			return nil, fmt.Errorf("no pending choice matches event %q option %q", cmd.EventID, cmd.ChoiceID)
		}
		return nil, nil
	case OpExternalEffect:
		return nil, e.ApplyExternalEffects(st, cmd.Effects)
	}
	return nil, fmt.Errorf("unknown op %q", cmd.Op)
}

// buildDuration scales catalog build ticks down as builders are assigned.
func (e *Engine) buildDuration(st *State, baseTicks int) uint64 {
	ticks := baseTicks * 10 / (10 + st.Jobs.Builders*2)
	if ticks < 1 {
		ticks = 1
	}
	return uint64(ticks)
}

func (e *Engine) cmdBuild(st *State, typ string) ([]Event, error) {
	d, ok := e.structDef(typ)
	if !ok {
		return nil, fmt.Errorf("unknown structure type %q", typ)
	}
	if d.Requires != "" && !st.Discoveries.Has(d.Requires) {
		return nil, fmt.Errorf("%s requires the discovery %q", typ, d.Requires)
	}
	if !st.Resources.CanAfford(d.Cost) {
		return nil, fmt.Errorf("cannot afford %s", typ)
	}
	st.Resources.Pay(d.Cost)
	st.Resources.Clamp()
	st.Structures = append(st.Structures, Structure{
		Type:     typ,
		BuildEnd: st.Tick + e.buildDuration(st, d.BuildTicks),
	})
	ev := e.newEvent(st, "construction", "Construction Begins",
		fmt.Sprintf("Work starts on a new %s.", d.Name))
	return []Event{ev}, nil
}

func (e *Engine) structAt(st *State, id int) (*Structure, error) {
	if id < 0 || id >= len(st.Structures) {
		return nil, fmt.Errorf("no structure with id %d", id)
	}
	s := &st.Structures[id]
	if s.Demolished {
		return nil, fmt.Errorf("structure %d is demolished", id)
	}
	return s, nil
}

func (e *Engine) cmdUpgrade(st *State, id int) ([]Event, error) {
	s, err := e.structAt(st, id)
	if err != nil {
		return nil, err
	}
	if s.UnderConstruction() {
		return nil, fmt.Errorf("structure %d is still under construction", id)
	}
	d, _ := e.structDef(s.Type)
	if s.Level >= d.MaxLevel {
		return nil, fmt.Errorf("%s is already at its highest level", s.Type)
	}
	cost := scaleCost(d.Cost, float64(s.Level+1))
	if !st.Resources.CanAfford(cost) {
		return nil, fmt.Errorf("cannot afford to upgrade %s", s.Type)
	}
	st.Resources.Pay(cost)
	st.Resources.Clamp()
	s.BuildEnd = st.Tick + e.buildDuration(st, d.BuildTicks)
	ev := e.newEvent(st, "construction", "Upgrade Begins",
		fmt.Sprintf("The %s is being rebuilt larger.", d.Name))
	return []Event{ev}, nil
}

func (e *Engine) cmdDemolish(st *State, id int) ([]Event, error) {
	s, err := e.structAt(st, id)
	if err != nil {
		return nil, err
	}
	d, _ := e.structDef(s.Type)
	for name, c := range scaleCost(d.Cost, 0.5) {
		st.Resources.Add(name, c)
	}
	s.Demolished = true
	s.BuildEnd = 0
	ev := e.newEvent(st, "construction", "Demolished",
		fmt.Sprintf("The %s is pulled down and its materials salvaged.", d.Name))
	return []Event{ev}, nil
}

func (e *Engine) cmdRepair(st *State, id int) ([]Event, error) {
	s, err := e.structAt(st, id)
	if err != nil {
		return nil, err
	}
	if s.Damage <= 0 {
		return nil, fmt.Errorf("structure %d is not damaged", id)
	}
	d, _ := e.structDef(s.Type)
	cost := scaleCost(d.Cost, 0.5*s.Damage)
	if !st.Resources.CanAfford(cost) {
		return nil, fmt.Errorf("cannot afford to repair %s", s.Type)
	}
	st.Resources.Pay(cost)
	st.Resources.Clamp()
	s.Damage = 0
	ev := e.newEvent(st, "construction", "Repaired",
		fmt.Sprintf("The %s is made sound again.", d.Name))
	return []Event{ev}, nil
}

// cmdAssign sets one role's headcount. The request is clamped so total
// assignments never exceed the living population.
func (e *Engine) cmdAssign(st *State, role string, count int) error {
	if count < 0 {
		count = 0
	}
	var slot *int
	switch role {
	case "guard":
		slot = &st.Jobs.Guards
	case "scientist":
		slot = &st.Jobs.Scientists
	case "farmer":
		slot = &st.Jobs.Farmers
	case "builder":
		slot = &st.Jobs.Builders
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	others := st.Jobs.Total() - *slot
	if others+count > st.Population {
		count = st.Population - others
		if count < 0 {
			count = 0
		}
	}
	*slot = count
	return nil
}

func scaleCost(cost map[string]float64, factor float64) map[string]float64 {
	out := make(map[string]float64, len(cost))
	for k, v := range cost {
		out[k] = v * factor
	}
	return out
}
