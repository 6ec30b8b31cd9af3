// Package indexdb maintains a queryable sqlite index next to the JSONL logs.
// Writes go through a buffered channel to a single writer goroutine, so the
// simulation loop never blocks on disk; when the queue is full entries are
// dropped and counted, the compressed logs remain the source of truth.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"emberhold.world/internal/persistence/snapshot"
	"emberhold.world/internal/sim/catalogs"
	"emberhold.world/internal/sim/settlement"
	"emberhold.world/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropEvent     atomic.Uint64
	dropCommand   atomic.Uint64
	dropChronicle atomic.Uint64
	dropSnapshot  atomic.Uint64
	dropAdvance   atomic.Uint64
}

type reqKind int

const (
	reqEvent reqKind = iota + 1
	reqCommand
	reqChronicle
	reqSnapshot
	reqAdvance
)

type req struct {
	kind reqKind

	settlement string
	event      eventRow
	command    commandRow
	chronicle  settlement.ChronicleEntry
	snapshot   snapshotRow
	advance    advanceRow
}

type eventRow struct {
	Cursor uint64
	Event  settlement.Event
}

type commandRow struct {
	Tick     uint64
	ReqID    string
	Op       string
	Accepted bool
	Code     string
	Raw      []byte
}

type snapshotRow struct {
	Tick       uint64
	Path       string
	Seed       int64
	Year       int
	Season     string
	Population int
	Digest     string
}

type advanceRow struct {
	AtUnix    int64
	Ticks     int
	TickAfter uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Deep buffer: a catch-up advance can emit months of events at once.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			settlement TEXT NOT NULL,
			cursor INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (settlement, cursor)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_tick ON events(settlement, type, tick);`,
		`CREATE TABLE IF NOT EXISTS commands (
			settlement TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			req_id TEXT,
			op TEXT NOT NULL,
			accepted INTEGER NOT NULL,
			code TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (settlement, tick, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS chronicle (
			settlement TEXT NOT NULL,
			tick INTEGER NOT NULL,
			year INTEGER NOT NULL,
			season TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			PRIMARY KEY (settlement, tick, title)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chronicle_year ON chronicle(settlement, year);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			settlement TEXT NOT NULL,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			year INTEGER NOT NULL,
			season TEXT NOT NULL,
			population INTEGER NOT NULL,
			digest TEXT NOT NULL,
			PRIMARY KEY (settlement, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS advances (
			settlement TEXT NOT NULL,
			at_unix INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			tick_after INTEGER NOT NULL,
			PRIMARY KEY (settlement, at_unix)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteEvent(settlementID string, cursor uint64, ev settlement.Event) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqEvent, settlement: settlementID, event: eventRow{Cursor: cursor, Event: ev}}:
	default:
		s.dropEvent.Add(1)
	}
}

func (s *SQLiteIndex) WriteCommand(settlementID string, tick uint64, reqID string, cmd settlement.Command, accepted bool, code string) {
	if s == nil || s.closed.Load() {
		return
	}
	raw, _ := json.Marshal(cmd)
	r := commandRow{Tick: tick, ReqID: reqID, Op: cmd.Op, Accepted: accepted, Code: code, Raw: raw}
	select {
	case s.ch <- req{kind: reqCommand, settlement: settlementID, command: r}:
	default:
		s.dropCommand.Add(1)
	}
}

func (s *SQLiteIndex) WriteChronicle(settlementID string, entry settlement.ChronicleEntry) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqChronicle, settlement: settlementID, chronicle: entry}:
	default:
		s.dropChronicle.Add(1)
	}
}

func (s *SQLiteIndex) RecordSnapshot(settlementID, path string, snap snapshot.SettlementV1) {
	if s == nil || s.closed.Load() {
		return
	}
	st := snap.State
	if st == nil {
		return
	}
	r := snapshotRow{
		Tick:       snap.Header.Tick,
		Path:       path,
		Seed:       st.Seed,
		Year:       st.Year,
		Season:     st.Season.String(),
		Population: st.Population,
		Digest:     snap.StateDigest,
	}
	select {
	case s.ch <- req{kind: reqSnapshot, settlement: settlementID, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

func (s *SQLiteIndex) RecordAdvance(settlementID string, atUnix int64, ticks int, tickAfter uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	if ticks <= 0 {
		return
	}
	r := advanceRow{AtUnix: atUnix, Ticks: ticks, TickAfter: tickAfter}
	select {
	case s.ch <- req{kind: reqAdvance, settlement: settlementID, advance: r}:
	default:
		s.dropAdvance.Add(1)
	}
}

// UpsertCatalogs stores the raw game data files and the applied tuning so a
// db is self-describing: any settlement row can be traced to the exact data
// it ran under.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	add := func(name, digest, file string) {
		b, err := os.ReadFile(filepath.Join(configDir, file))
		if err != nil || len(b) == 0 {
			return
		}
		rows = append(rows, kv{name: name, digest: digest, json: b})
	}
	if configDir != "" {
		add("structures", cats.Structures.Digest, "structures.json")
		add("discoveries", cats.Discoveries.Digest, "discoveries.json")
		add("factions", cats.Factions.Digest, "factions.json")
		add("events", cats.Events.Digest, "events.json")
		add("epochs", cats.Epochs.Digest, "epochs.json")
	}

	// Tuning: store the values we actually apply (canonical JSON).
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('catalogs_digest',?)`, cats.CombinedDigest()); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type Stats struct {
	DropEventTotal     uint64
	DropCommandTotal   uint64
	DropChronicleTotal uint64
	DropSnapshotTotal  uint64
	DropAdvanceTotal   uint64
	QueueDepth         int
	QueueCapacity      int
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		DropEventTotal:     s.dropEvent.Load(),
		DropCommandTotal:   s.dropCommand.Load(),
		DropChronicleTotal: s.dropChronicle.Load(),
		DropSnapshotTotal:  s.dropSnapshot.Load(),
		DropAdvanceTotal:   s.dropAdvance.Load(),
		QueueDepth:         len(s.ch),
		QueueCapacity:      cap(s.ch),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(settlement,cursor,tick,type,title,raw_json) VALUES(?,?,?,?,?,?)`)
	insertCommand, _ := s.db.Prepare(`INSERT OR REPLACE INTO commands(settlement,tick,seq,req_id,op,accepted,code,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertChronicle, _ := s.db.Prepare(`INSERT OR REPLACE INTO chronicle(settlement,tick,year,season,title,message) VALUES(?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(settlement,tick,path,seed,year,season,population,digest) VALUES(?,?,?,?,?,?,?,?)`)
	insertAdvance, _ := s.db.Prepare(`INSERT OR REPLACE INTO advances(settlement,at_unix,ticks,tick_after) VALUES(?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertEvent, insertCommand, insertChronicle, insertSnapshot, insertAdvance} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastCmdTick uint64
		cmdSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqEvent:
			ev := r.event.Event
			raw, _ := json.Marshal(ev)
			if insertEvent != nil {
				if _, err := tx.Stmt(insertEvent).Exec(
					r.settlement,
					int64(r.event.Cursor),
					int64(ev.Tick),
					ev.Type,
					ev.Title,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqCommand:
			c := r.command
			if c.Tick != lastCmdTick {
				lastCmdTick = c.Tick
				cmdSeq = 0
			}
			seq := cmdSeq
			cmdSeq++
			if insertCommand != nil {
				accepted := 0
				if c.Accepted {
					accepted = 1
				}
				if _, err := tx.Stmt(insertCommand).Exec(
					r.settlement,
					int64(c.Tick),
					seq,
					c.ReqID,
					c.Op,
					accepted,
					c.Code,
					string(c.Raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqChronicle:
			ce := r.chronicle
			if insertChronicle != nil {
				if _, err := tx.Stmt(insertChronicle).Exec(
					r.settlement,
					int64(ce.Tick),
					ce.Year,
					ce.Season,
					ce.Title,
					ce.Message,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					r.settlement,
					int64(sn.Tick),
					sn.Path,
					sn.Seed,
					sn.Year,
					sn.Season,
					sn.Population,
					sn.Digest,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqAdvance:
			a := r.advance
			if insertAdvance != nil {
				if _, err := tx.Stmt(insertAdvance).Exec(
					r.settlement,
					a.AtUnix,
					a.Ticks,
					int64(a.TickAfter),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
