// Package ws serves the observer protocol over a WebSocket. Each connection
// binds to exactly one settlement session: HELLO names it, WELCOME answers
// with the sim parameters and catalog digests, then the server pushes STATE
// and EVENTS after every change while COMMAND/ACK flow in between.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"emberhold.world/internal/protocol"
	"emberhold.world/internal/sim/catalogs"
	"emberhold.world/internal/sim/session"
	"emberhold.world/internal/sim/tuning"
)

type Server struct {
	mgr  *session.Manager
	cats *catalogs.Catalogs
	tune *tuning.Tuning
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(mgr *session.Manager, cats *catalogs.Catalogs, tune *tuning.Tuning, logger *log.Logger) *Server {
	return &Server{
		mgr:  mgr,
		cats: cats,
		tune: tune,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess, cursor, ok := s.handshake(conn)
		if !ok {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		notices := make(chan session.Notice, 16)
		subID, err := sess.Subscribe(notices)
		if err != nil {
			return
		}
		defer sess.Unsubscribe(subID)

		out := make(chan []byte, 64)

		// Writer goroutine: marshalled frames only, one writer per conn.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Notice pump: turn session notices into STATE + EVENTS pushes.
		go func() {
			cur := cursor
			for {
				select {
				case <-ctx.Done():
					return
				case n := <-notices:
					for _, it := range n.Events {
						if it.Cursor > cur {
							cur = it.Cursor
						}
					}
					v, err := sess.ViewState()
					if err != nil {
						cancel()
						return
					}
					enqueue(out, stateMsg(v))
					if len(n.Events) > 0 {
						enqueue(out, eventsMsg(n.Events, cur))
					}
				}
			}
		}()

		// Initial STATE and any EVENTS past the client's cursor.
		v, err := sess.ViewState()
		if err != nil {
			return
		}
		enqueue(out, stateMsg(v))
		if items := sess.EventsSince(cursor); len(items) > 0 {
			enqueue(out, eventsMsg(items, items[len(items)-1].Cursor))
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeCommand:
				var cm protocol.CommandMsg
				if err := json.Unmarshal(msg, &cm); err != nil {
					continue
				}
				if cm.ProtocolVersion != protocol.Version {
					continue
				}
				res := sess.Do(cm.Command, cm.ReqID)
				enqueue(out, protocol.AckMsg{
					Type:            protocol.TypeAck,
					ProtocolVersion: protocol.Version,
					AckFor:          cm.ReqID,
					Accepted:        res.Accepted,
					Code:            res.Code,
					Message:         res.Message,
					Tick:            res.Tick,
				})
			case protocol.TypeBye:
				// WriteControl is safe alongside the writer goroutine.
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				cancel()
				return
			}
		}
	}
}

// handshake reads HELLO, binds the settlement session and answers WELCOME.
func (s *Server) handshake(conn *websocket.Conn) (*session.Session, uint64, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, 0, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return nil, 0, false
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, 0, false
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return nil, 0, false
	}
	if hello.SettlementName == "" {
		closePolicy(conn, "settlement_name required")
		return nil, 0, false
	}

	sess, err := s.mgr.GetOrOpen(hello.SettlementName, hello.Seed)
	if err != nil {
		s.log.Printf("open settlement %q: %v", hello.SettlementName, err)
		closePolicy(conn, "settlement unavailable")
		return nil, 0, false
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SettlementID:    sess.ID(),
		Seed:            sess.Seed(),
		Resumed:         sess.Resumed(),
		CatchupTicks:    sess.CatchupTicks(),
		Params: protocol.SimParams{
			TickRealSeconds: s.tune.TickRealSeconds,
			TicksPerDay:     s.tune.TicksPerDay,
			DaysPerSeason:   s.tune.DaysPerSeason,
			CatchupMaxHours: s.tune.CatchupMaxHours,
		},
		Catalogs: protocol.CatalogDigests{
			Structures:  s.cats.Structures.Digest,
			Discoveries: s.cats.Discoveries.Digest,
			Factions:    s.cats.Factions.Digest,
			Events:      s.cats.Events.Digest,
			Epochs:      s.cats.Epochs.Digest,
			Combined:    s.cats.CombinedDigest(),
		},
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil, 0, false
	}
	return sess, hello.SinceCursor, true
}

func stateMsg(v session.View) protocol.StateMsg {
	return protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		State:           v.State,
		Digest:          v.Digest,
	}
}

func eventsMsg(items []session.EventItem, next uint64) protocol.EventsMsg {
	out := make([]protocol.EventItem, 0, len(items))
	for _, it := range items {
		out = append(out, protocol.EventItem{Cursor: it.Cursor, Event: it.Event})
	}
	return protocol.EventsMsg{
		Type:            protocol.TypeEvents,
		ProtocolVersion: protocol.Version,
		Events:          out,
		NextCursor:      next,
	}
}

// enqueue drops the frame when the writer is backed up; a slow observer never
// stalls the session.
func enqueue(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func closePolicy(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
