package settlement

import "testing"

func TestDiscovery_RumorCompletesAtFull(t *testing.T) {
	e := newTestEngine(t)
	st := e.Found("Emberhold", 3, 0)
	st.Discoveries.Rumor = map[string]float64{"fire_keeping": 0.999}
	st.Season = Winter // winter trigger pushes fire_keeping over the line

	var out []Event
	e.runDiscovery(st, &out)

	if !st.Discoveries.Has("fire_keeping") {
		t.Fatalf("fire_keeping not completed at full rumor")
	}
	if _, still := st.Discoveries.Rumor["fire_keeping"]; still {
		t.Fatalf("rumor progress not cleared on completion")
	}
	if len(out) != 1 || out[0].Type != "discovery" {
		t.Fatalf("missing discovery event: %+v", out)
	}
}

func TestDiscovery_PrereqsGateProgress(t *testing.T) {
	e := newTestEngine(t)
	st := e.Found("Emberhold", 3, 0)
	// crop_rotation requires fire_keeping; force its trigger condition.
	st.Structures = append(st.Structures, Structure{Type: "farmstead", Level: 1})
	st.Discoveries.Rumor = map[string]float64{"crop_rotation": 0.999}

	var out []Event
	e.runDiscovery(st, &out)
	if st.Discoveries.Has("crop_rotation") {
		t.Fatalf("crop_rotation completed without its prereq")
	}

	st.Discoveries.Completed = []string{"fire_keeping"}
	e.runDiscovery(st, &out)
	if !st.Discoveries.Has("crop_rotation") {
		t.Fatalf("crop_rotation blocked with prereq satisfied")
	}
}

func TestDiscovery_CompletedStaysSorted(t *testing.T) {
	e := newTestEngine(t)
	st := e.Found("Emberhold", 3, 0)

	var out []Event
	for _, id := range []string{"masonry", "fire_keeping", "herb_lore"} {
		e.completeDiscovery(st, id, &out)
	}
	want := []string{"fire_keeping", "herb_lore", "masonry"}
	if len(st.Discoveries.Completed) != len(want) {
		t.Fatalf("completed=%v want=%v", st.Discoveries.Completed, want)
	}
	for i, id := range want {
		if st.Discoveries.Completed[i] != id {
			t.Fatalf("completed=%v want=%v", st.Discoveries.Completed, want)
		}
	}

	// Completing twice must not duplicate.
	e.completeDiscovery(st, "masonry", &out)
	if len(st.Discoveries.Completed) != 3 {
		t.Fatalf("duplicate completion grew the list: %v", st.Discoveries.Completed)
	}
}

func TestDiscovery_ScienceNeedsScientistsAndKnowledge(t *testing.T) {
	e := newTestEngine(t)
	st := e.Found("Emberhold", 3, 0)
	st.Discoveries.Completed = []string{"written_word"}
	st.Discoveries.Knowledge = map[string]float64{"mathematics": 1}

	var out []Event
	e.runDiscovery(st, &out)
	if st.Discoveries.Has("mathematics") {
		t.Fatalf("mathematics completed without the knowledge cost paid")
	}

	cost := e.Catalogs().Discoveries.ByID["mathematics"].KnowledgeCost
	st.Resources.Knowledge = cost
	e.runDiscovery(st, &out)
	if !st.Discoveries.Has("mathematics") {
		t.Fatalf("mathematics blocked with progress and knowledge available")
	}
	if st.Resources.Knowledge >= cost {
		t.Fatalf("knowledge cost not spent: %v", st.Resources.Knowledge)
	}
}

func TestDiscovery_ScientistsAccrueScienceProgress(t *testing.T) {
	e := newTestEngine(t)
	st := e.Found("Emberhold", 3, 0)
	st.Discoveries.Completed = []string{"written_word"}
	st.Jobs.Scientists = 4

	var out []Event
	e.runDiscovery(st, &out)

	if st.Resources.Knowledge <= 0 {
		t.Fatalf("scientists produced no knowledge")
	}
	if st.Discoveries.Knowledge["mathematics"] <= 0 {
		t.Fatalf("no science progress on mathematics")
	}
	if st.Discoveries.Knowledge["engineering"] != 0 {
		t.Fatalf("engineering progressed without its prereqs: %v", st.Discoveries.Knowledge)
	}
}

func TestDiscovery_ScholarsHallBoostsRate(t *testing.T) {
	e := newTestEngine(t)
	plain := e.Found("Emberhold", 3, 0)
	plain.Discoveries.Completed = []string{"written_word"}
	plain.Jobs.Scientists = 2

	hall := e.Found("Emberhold", 3, 0)
	hall.Discoveries.Completed = []string{"written_word"}
	hall.Jobs.Scientists = 2
	hall.Structures = append(hall.Structures, Structure{Type: "scholars_hall", Level: 2})

	var out []Event
	e.runDiscovery(plain, &out)
	e.runDiscovery(hall, &out)

	if hall.Discoveries.Knowledge["mathematics"] <= plain.Discoveries.Knowledge["mathematics"] {
		t.Fatalf("scholars hall did not speed research: %v vs %v",
			hall.Discoveries.Knowledge["mathematics"], plain.Discoveries.Knowledge["mathematics"])
	}
}
