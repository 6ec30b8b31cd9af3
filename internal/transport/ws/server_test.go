package ws

import (
	"encoding/json"
	stdlog "log"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"emberhold.world/internal/protocol"
	"emberhold.world/internal/sim/catalogs"
	"emberhold.world/internal/sim/session"
	"emberhold.world/internal/sim/settlement"
	"emberhold.world/internal/sim/tuning"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testRig struct {
	srv   *httptest.Server
	mgr   *session.Manager
	clock *fakeClock
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	tune := tuning.Defaults()
	eng, err := settlement.NewEngine(cats, &tune)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	logger := stdlog.New(os.Stdout, "[ws-test] ", stdlog.LstdFlags)
	mgr := session.NewManager(eng, "", nil, logger)
	clock := newFakeClock()
	mgr.SetClock(clock.Now)

	s := NewServer(mgr, cats, &tune, logger)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		mgr.CloseAll()
	})
	return &testRig{srv: srv, mgr: mgr, clock: clock}
}

func (r *testRig) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(r.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// waitFor reads frames until one of the wanted type arrives.
func waitFor(t *testing.T, conn *websocket.Conn, msgType string) []byte {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		if base.Type == msgType {
			return msg
		}
	}
}

func hello(name string, seed int64) protocol.HelloMsg {
	return protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		SettlementName:  name,
		Seed:            seed,
	}
}

func TestHandshake_WelcomeAndState(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.dial(t)

	sendJSON(t, conn, hello("Emberhold", 42))

	var w protocol.WelcomeMsg
	if err := json.Unmarshal(waitFor(t, conn, protocol.TypeWelcome), &w); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if w.SettlementID != "emberhold" {
		t.Fatalf("settlement_id=%q", w.SettlementID)
	}
	if w.Seed != 42 || w.Resumed {
		t.Fatalf("welcome=%+v", w)
	}
	if w.Params.TickRealSeconds != 900 || w.Params.TicksPerDay != 4 {
		t.Fatalf("params=%+v", w.Params)
	}
	if len(w.Catalogs.Combined) != 64 {
		t.Fatalf("combined digest=%q", w.Catalogs.Combined)
	}

	var st protocol.StateMsg
	if err := json.Unmarshal(waitFor(t, conn, protocol.TypeState), &st); err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.State == nil || st.State.Population != 10 || st.State.Tick != 0 {
		t.Fatalf("initial state=%+v", st.State)
	}
	if st.Digest != st.State.Digest() {
		t.Fatalf("state digest does not match payload")
	}
}

func TestHandshake_RejectsNonHello(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.dial(t)

	sendJSON(t, conn, protocol.CommandMsg{
		Type:            protocol.TypeCommand,
		ProtocolVersion: protocol.Version,
		ReqID:           "r1",
	})

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("connection survived a non-HELLO opener")
	}
}

func TestHandshake_RejectsVersionMismatch(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.dial(t)

	h := hello("Emberhold", 1)
	h.ProtocolVersion = "0.9"
	sendJSON(t, conn, h)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("connection survived a version mismatch")
	}
}

func TestCommand_AckAndStatePush(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.dial(t)

	sendJSON(t, conn, hello("Emberhold", 42))
	waitFor(t, conn, protocol.TypeState)

	sendJSON(t, conn, protocol.CommandMsg{
		Type:            protocol.TypeCommand,
		ProtocolVersion: protocol.Version,
		ReqID:           "r1",
		Command:         settlement.Command{Op: settlement.OpBuild, StructureType: "farmstead"},
	})

	var ack protocol.AckMsg
	if err := json.Unmarshal(waitFor(t, conn, protocol.TypeAck), &ack); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if ack.AckFor != "r1" || !ack.Accepted {
		t.Fatalf("ack=%+v", ack)
	}

	// The accepted command triggers a fresh STATE push with the farmstead in it.
	deadline := time.Now().Add(5 * time.Second)
	for {
		var st protocol.StateMsg
		if err := json.Unmarshal(waitFor(t, conn, protocol.TypeState), &st); err != nil {
			t.Fatalf("state: %v", err)
		}
		for _, b := range st.State.Structures {
			if b.Type == "farmstead" {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("no STATE push carrying the new structure")
		}
	}
}

func TestCommand_RejectionAck(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.dial(t)

	sendJSON(t, conn, hello("Emberhold", 42))
	waitFor(t, conn, protocol.TypeState)

	sendJSON(t, conn, protocol.CommandMsg{
		Type:            protocol.TypeCommand,
		ProtocolVersion: protocol.Version,
		ReqID:           "r2",
		Command:         settlement.Command{Op: settlement.OpBuild, StructureType: "quarry"},
	})

	var ack protocol.AckMsg
	if err := json.Unmarshal(waitFor(t, conn, protocol.TypeAck), &ack); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if ack.Accepted || ack.Code != protocol.ErrLocked {
		t.Fatalf("ack=%+v", ack)
	}
}

func TestEvents_PushedAfterAdvance(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.dial(t)

	sendJSON(t, conn, hello("Emberhold", 42))
	waitFor(t, conn, protocol.TypeState)

	// A full catch-up window crosses a season boundary, so at least one
	// event is guaranteed.
	rig.clock.Advance(72 * time.Hour)
	sess, ok := rig.mgr.Get("emberhold")
	if !ok {
		t.Fatalf("session missing")
	}
	sess.AdvanceNow()

	var ev protocol.EventsMsg
	if err := json.Unmarshal(waitFor(t, conn, protocol.TypeEvents), &ev); err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(ev.Events) == 0 {
		t.Fatalf("empty EVENTS push")
	}
	if ev.NextCursor < ev.Events[len(ev.Events)-1].Cursor {
		t.Fatalf("next_cursor=%d behind last event %d", ev.NextCursor, ev.Events[len(ev.Events)-1].Cursor)
	}
}

func TestBye_ClosesCleanly(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.dial(t)

	sendJSON(t, conn, hello("Emberhold", 42))
	waitFor(t, conn, protocol.TypeState)

	sendJSON(t, conn, protocol.ByeMsg{Type: protocol.TypeBye, ProtocolVersion: protocol.Version})

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("close: %v", err)
			}
			return
		}
	}
}
