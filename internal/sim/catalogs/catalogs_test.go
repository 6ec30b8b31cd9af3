package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ShippedConfigs(t *testing.T) {
	c, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(c.Structures.IDs) == 0 || len(c.Discoveries.IDs) == 0 ||
		len(c.Factions.IDs) == 0 || len(c.Events.IDs) == 0 || len(c.Epochs.IDs) == 0 {
		t.Fatalf("empty catalog section")
	}

	for _, cat := range []struct {
		name   string
		digest string
	}{
		{"structures", c.Structures.Digest},
		{"discoveries", c.Discoveries.Digest},
		{"factions", c.Factions.Digest},
		{"events", c.Events.Digest},
		{"epochs", c.Epochs.Digest},
	} {
		if len(cat.digest) != 64 {
			t.Fatalf("%s digest=%q want 64 hex chars", cat.name, cat.digest)
		}
	}

	if c.CombinedDigest() == "" {
		t.Fatalf("empty combined digest")
	}

	// Loading the same files twice must produce the same digests.
	c2, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if c.CombinedDigest() != c2.CombinedDigest() {
		t.Fatalf("combined digest unstable across loads")
	}
}

func TestLoad_DefaultMaxLevel(t *testing.T) {
	dir := writeConfigSet(t, map[string]string{
		"structures.json": `[{"id":"hut","name":"Hut","cost":{"wood":5},"build_ticks":2}]`,
	})
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Structures.ByID["hut"].MaxLevel != 3 {
		t.Fatalf("max_level=%d want default 3", c.Structures.ByID["hut"].MaxLevel)
	}
}

func TestLoad_CrossCheckFailures(t *testing.T) {
	cases := []struct {
		name string
		file string
		body string
	}{
		{
			"structure requires unknown discovery",
			"structures.json",
			`[{"id":"lab","name":"Lab","cost":{"wood":5},"build_ticks":2,"requires":"warp_drive"}]`,
		},
		{
			"discovery prereq missing",
			"discoveries.json",
			`[{"id":"a","name":"A","era":"hearth","prereqs":["ghost"]}]`,
		},
		{
			"discovery era unknown",
			"discoveries.json",
			`[{"id":"a","name":"A","era":"bronze"}]`,
		},
		{
			"faction season unknown",
			"factions.json",
			`[{"id":"f","name":"F","aggression":0.1,"raid_season":"monsoon"}]`,
		},
		{
			"epoch season unknown",
			"epochs.json",
			`[{"id":"e","year":1501,"season":"harvest","title":"T","message":"M"}]`,
		},
	}

	for _, tc := range cases {
		dir := writeConfigSet(t, map[string]string{tc.file: tc.body})
		if _, err := Load(dir); err == nil {
			t.Fatalf("%s: load succeeded", tc.name)
		}
	}
}

func TestLoad_DuplicateIDRejected(t *testing.T) {
	dir := writeConfigSet(t, map[string]string{
		"structures.json": `[
			{"id":"hut","name":"Hut","cost":{"wood":5},"build_ticks":2},
			{"id":"hut","name":"Hut Again","cost":{"wood":5},"build_ticks":2}
		]`,
	})
	if _, err := Load(dir); err == nil {
		t.Fatalf("duplicate structure id accepted")
	}
}

func TestLoad_SchemaRejectsMalformed(t *testing.T) {
	dir := writeConfigSet(t, map[string]string{
		// cost must be an object of numbers
		"structures.json": `[{"id":"hut","name":"Hut","cost":"cheap","build_ticks":2}]`,
	})
	if _, err := Load(dir); err == nil {
		t.Fatalf("malformed structures.json accepted")
	}
}

// writeConfigSet lays down a minimal valid config dir, then applies the
// caller's overrides.
func writeConfigSet(t *testing.T, overrides map[string]string) string {
	t.Helper()
	base := map[string]string{
		"structures.json":  `[{"id":"hut","name":"Hut","cost":{"wood":5},"build_ticks":2}]`,
		"discoveries.json": `[{"id":"fire","name":"Fire","era":"hearth"}]`,
		"factions.json":    `[{"id":"bandits","name":"Bandits","aggression":0.1}]`,
		"events.json":      `[{"id":"omen","category":"lore","title":"Omen","message":"A sign.","base_weight":1}]`,
		"epochs.json":      `[]`,
	}
	for k, v := range overrides {
		base[k] = v
	}

	dir := t.TempDir()
	for name, body := range base {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}
