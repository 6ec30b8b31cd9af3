package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"emberhold.world/internal/sim/settlement"
)

func readJSONL(t *testing.T, dir string, out func([]byte)) {
	t.Helper()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range ents {
		if !strings.HasSuffix(e.Name(), ".jsonl.zst") {
			continue
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		dec, err := zstd.NewReader(f)
		if err != nil {
			t.Fatalf("zstd: %v", err)
		}
		sc := bufio.NewScanner(dec)
		for sc.Scan() {
			out(sc.Bytes())
		}
		if err := sc.Err(); err != nil {
			t.Fatalf("scan: %v", err)
		}
		dec.Close()
		_ = f.Close()
	}
}

func TestEventLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewEventLogger(dir)

	want := []settlement.Event{
		{ID: "ev-1-1", Tick: 1, Year: 1500, Season: "spring", Type: "season", Title: "First Thaw"},
		{ID: "ev-2-1", Tick: 2, Year: 1500, Season: "spring", Type: "construction", Title: "Construction Complete"},
	}
	for _, ev := range want {
		if err := l.WriteEvent(ev); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got []settlement.Event
	readJSONL(t, filepath.Join(dir, "events"), func(b []byte) {
		var ev settlement.Event
		if err := json.Unmarshal(b, &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, ev)
	})
	if len(got) != len(want) {
		t.Fatalf("events=%d want=%d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Title != want[i].Title {
			t.Fatalf("entry %d = %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestCommandLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewCommandLogger(dir)

	if err := l.WriteCommand(CommandEntry{Tick: 7, ReqID: "r1", Op: "build", Accepted: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.WriteCommand(CommandEntry{Tick: 8, ReqID: "r2", Op: "repair", Accepted: false, Code: "E_CONFLICT"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got []CommandEntry
	readJSONL(t, filepath.Join(dir, "commands"), func(b []byte) {
		var e CommandEntry
		if err := json.Unmarshal(b, &e); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, e)
	})
	if len(got) != 2 {
		t.Fatalf("entries=%d want=2", len(got))
	}
	if got[1].Code != "E_CONFLICT" || got[1].Accepted {
		t.Fatalf("entry=%+v", got[1])
	}
}
