// Package session owns running settlements. Each Session runs one goroutine
// that is the sole writer of its settlement state; commands, reads and
// catch-up advances are serialized through its request channel, which is what
// makes the digest guarantees hold under concurrent observers.
package session

import (
	"encoding/json"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"emberhold.world/internal/persistence/indexdb"
	"emberhold.world/internal/persistence/log"
	"emberhold.world/internal/persistence/snapshot"
	"emberhold.world/internal/protocol"
	"emberhold.world/internal/sim/settlement"
)

type Config struct {
	ID      string
	Name    string
	Seed    int64
	DataDir string

	Engine *settlement.Engine
	Index  *indexdb.SQLiteIndex

	// Clock is replaceable in tests; defaults to time.Now.
	Clock func() time.Time

	Logger *stdlog.Logger
}

// EventItem pairs an event with its session-scoped cursor.
type EventItem struct {
	Cursor uint64
	Event  settlement.Event
}

// Notice is pushed to subscribers after any mutation: new events (possibly
// none) and the digest after the change.
type Notice struct {
	Tick   uint64
	Digest string
	Events []EventItem
}

type CmdResult struct {
	Accepted bool
	Code     string
	Message  string
	Tick     uint64
}

type View struct {
	State  *settlement.State
	Digest string
}

type reqKind int

const (
	reqCommand reqKind = iota + 1
	reqView
	reqEvents
	reqAdvance
	reqSubscribe
	reqUnsubscribe
)

type request struct {
	kind reqKind

	cmd   settlement.Command
	reqID string

	sinceCursor uint64

	sub   chan Notice
	subID int

	cmdResp    chan CmdResult
	viewResp   chan View
	eventsResp chan []EventItem
	subResp    chan int
	advResp    chan int
}

type Session struct {
	cfg Config
	eng *settlement.Engine
	st  *settlement.State

	reqs chan request
	stop chan struct{}
	done chan struct{}

	// Everything below is owned by the run goroutine.
	events     []EventItem
	nextCursor uint64
	subs       map[int]chan Notice
	nextSub    int
	lastSnap   uint64

	evLog  *log.EventLogger
	cmdLog *log.CommandLogger

	resumed      bool
	catchupTicks int

	// chronSeen is the ChronicleTotal watermark already forwarded to the
	// index; entries past it are the tail of the retained slice.
	chronSeen int
}

// Open resumes a settlement from its latest snapshot or founds a new one,
// catches up owed ticks, then starts the run goroutine.
func Open(cfg Config) (*Session, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("session: nil engine")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = stdlog.New(os.Stdout, "[session] ", stdlog.LstdFlags|stdlog.Lmicroseconds)
	}
	if cfg.ID == "" {
		cfg.ID = slugify(cfg.Name)
	}

	s := &Session{
		cfg:  cfg,
		eng:  cfg.Engine,
		reqs: make(chan request, 64),
		stop: make(chan struct{}),
		done: make(chan struct{}),
		subs: map[int]chan Notice{},
	}

	if cfg.DataDir != "" {
		dir := s.dir()
		s.evLog = log.NewEventLogger(dir)
		s.cmdLog = log.NewCommandLogger(dir)
	}

	now := cfg.Clock().Unix()
	if st, ok := s.loadLatest(); ok {
		s.st = st
		s.resumed = true
		// The prior run already indexed the retained entries; the table's
		// primary key makes a re-send harmless but there is no need.
		s.chronSeen = st.ChronicleTotal
	} else {
		s.st = s.eng.Found(cfg.Name, cfg.Seed, now)
		cfg.Logger.Printf("founded settlement=%s seed=%d", cfg.ID, s.st.Seed)
	}
	s.lastSnap = s.st.Tick

	rep := s.eng.Advance(s.st, now)
	s.catchupTicks = rep.Ticks
	s.absorb(rep.Events)
	s.syncChronicle()
	if rep.Ticks > 0 {
		cfg.Logger.Printf("caught up settlement=%s ticks=%d tick=%d", cfg.ID, rep.Ticks, s.st.Tick)
		s.cfg.Index.RecordAdvance(cfg.ID, now, rep.Ticks, s.st.Tick)
		s.maybeSnapshot()
	}

	go s.run()
	return s, nil
}

func (s *Session) ID() string        { return s.cfg.ID }
func (s *Session) Resumed() bool     { return s.resumed }
func (s *Session) CatchupTicks() int { return s.catchupTicks }
func (s *Session) Seed() int64       { return s.st.Seed }

func (s *Session) dir() string {
	return filepath.Join(s.cfg.DataDir, "settlements", s.cfg.ID)
}

func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "settlement"
	}
	return b.String()
}

// Close stops the run goroutine, snapshots, and closes the log sinks.
func (s *Session) Close() error {
	select {
	case <-s.stop:
		return nil
	default:
	}
	close(s.stop)
	<-s.done

	s.writeSnapshot()
	if s.evLog != nil {
		_ = s.evLog.Close()
	}
	if s.cmdLog != nil {
		_ = s.cmdLog.Close()
	}
	return nil
}

// Do applies a command between ticks and reports the verdict.
func (s *Session) Do(cmd settlement.Command, reqID string) CmdResult {
	resp := make(chan CmdResult, 1)
	closed := CmdResult{Accepted: false, Code: protocol.ErrSettlementBusy, Message: "session closed"}
	select {
	case s.reqs <- request{kind: reqCommand, cmd: cmd, reqID: reqID, cmdResp: resp}:
		select {
		case r := <-resp:
			return r
		case <-s.done:
			return closed
		}
	case <-s.stop:
		return closed
	}
}

// ViewState returns an isolated copy of the state plus its digest.
func (s *Session) ViewState() (View, error) {
	resp := make(chan View, 1)
	select {
	case s.reqs <- request{kind: reqView, viewResp: resp}:
		select {
		case v := <-resp:
			return v, nil
		case <-s.done:
		}
	case <-s.stop:
	}
	return View{}, fmt.Errorf("session closed")
}

// EventsSince returns buffered events after the given cursor.
func (s *Session) EventsSince(cursor uint64) []EventItem {
	resp := make(chan []EventItem, 1)
	select {
	case s.reqs <- request{kind: reqEvents, sinceCursor: cursor, eventsResp: resp}:
		select {
		case items := <-resp:
			return items
		case <-s.done:
		}
	case <-s.stop:
	}
	return nil
}

// AdvanceNow forces a catch-up pass outside the timer, returning the number
// of ticks run. Tests and the replay tool use it.
func (s *Session) AdvanceNow() int {
	resp := make(chan int, 1)
	select {
	case s.reqs <- request{kind: reqAdvance, advResp: resp}:
		select {
		case n := <-resp:
			return n
		case <-s.done:
		}
	case <-s.stop:
	}
	return 0
}

// Subscribe registers a notice channel. The channel must be serviced; lagging
// subscribers have notices dropped, not queued.
func (s *Session) Subscribe(ch chan Notice) (int, error) {
	resp := make(chan int, 1)
	select {
	case s.reqs <- request{kind: reqSubscribe, sub: ch, subResp: resp}:
		select {
		case id := <-resp:
			return id, nil
		case <-s.done:
		}
	case <-s.stop:
	}
	return 0, fmt.Errorf("session closed")
}

func (s *Session) Unsubscribe(id int) {
	select {
	case s.reqs <- request{kind: reqUnsubscribe, subID: id}:
	case <-s.stop:
	}
}

func (s *Session) run() {
	defer close(s.done)

	every := time.Duration(s.eng.Tuning().AdvanceEverySecs) * time.Second
	if every <= 0 {
		every = 30 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.advance()
		case r := <-s.reqs:
			s.handle(r)
		}
	}
}

func (s *Session) handle(r request) {
	switch r.kind {
	case reqCommand:
		r.cmdResp <- s.apply(r.cmd, r.reqID)
	case reqView:
		r.viewResp <- s.view()
	case reqEvents:
		r.eventsResp <- s.eventsSince(r.sinceCursor)
	case reqAdvance:
		r.advResp <- s.advance()
	case reqSubscribe:
		s.nextSub++
		s.subs[s.nextSub] = r.sub
		r.subResp <- s.nextSub
	case reqUnsubscribe:
		delete(s.subs, r.subID)
	}
}

func (s *Session) advance() int {
	now := s.cfg.Clock().Unix()
	batch := s.eng.Tuning().BatchTicks

	// Long catch-ups run in batches so each absorb/notify/snapshot unit of
	// work stays bounded; observers see progress instead of one giant burst.
	total := 0
	for {
		rep := s.eng.AdvanceBatch(s.st, now, batch)
		if rep.Ticks == 0 {
			break
		}
		total += rep.Ticks
		items := s.absorb(rep.Events)
		s.syncChronicle()
		s.maybeSnapshot()
		s.notify(items)
		if batch <= 0 || rep.Ticks < batch {
			break
		}
	}
	if total > 0 {
		s.cfg.Index.RecordAdvance(s.cfg.ID, now, total, s.st.Tick)
	}
	return total
}

func (s *Session) apply(cmd settlement.Command, reqID string) CmdResult {
	// Catch up before applying so the decision lands on current state.
	s.advance()

	evs, err := s.eng.Apply(s.st, cmd)
	res := CmdResult{Accepted: err == nil, Tick: s.st.Tick}
	if err != nil {
		res.Code = commandErrCode(err)
		res.Message = err.Error()
	}

	if s.cmdLog != nil {
		_ = s.cmdLog.WriteCommand(log.CommandEntry{
			Tick:     s.st.Tick,
			ReqID:    reqID,
			Op:       cmd.Op,
			Accepted: res.Accepted,
			Code:     res.Code,
			Message:  res.Message,
		})
	}
	s.cfg.Index.WriteCommand(s.cfg.ID, s.st.Tick, reqID, cmd, res.Accepted, res.Code)

	if err == nil {
		items := s.absorb(evs)
		s.syncChronicle()
		s.notify(items)
	}
	return res
}

// commandErrCode maps engine rejections onto wire codes by message shape; the
// engine deliberately stays free of protocol knowledge.
func commandErrCode(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "extinct"):
		return protocol.ErrExtinct
	case strings.Contains(msg, "cannot afford"):
		return protocol.ErrNoResource
	case strings.Contains(msg, "requires the discovery"):
		return protocol.ErrLocked
	case strings.Contains(msg, "no structure"), strings.Contains(msg, "unknown"),
		strings.Contains(msg, "demolished"), strings.Contains(msg, "no pending choice"):
		return protocol.ErrInvalidTarget
	case strings.Contains(msg, "under construction"), strings.Contains(msg, "highest level"),
		strings.Contains(msg, "not damaged"):
		return protocol.ErrConflict
	}
	return protocol.ErrBadRequest
}

// absorb assigns cursors, buffers, and persists a batch of events.
func (s *Session) absorb(evs []settlement.Event) []EventItem {
	if len(evs) == 0 {
		return nil
	}
	items := make([]EventItem, 0, len(evs))
	for _, ev := range evs {
		s.nextCursor++
		item := EventItem{Cursor: s.nextCursor, Event: ev}
		items = append(items, item)
		s.events = append(s.events, item)
		if s.evLog != nil {
			_ = s.evLog.WriteEvent(ev)
		}
		s.cfg.Index.WriteEvent(s.cfg.ID, item.Cursor, ev)
	}
	// Bound the in-memory buffer; the index holds full history.
	const keep = 4096
	if len(s.events) > keep {
		s.events = append([]EventItem(nil), s.events[len(s.events)-keep:]...)
	}
	return items
}

// syncChronicle forwards chronicle entries appended since the last sync to
// the read-model index. ChronicleTotal counts appends across trims, so the
// unseen entries are always the tail of the retained slice.
func (s *Session) syncChronicle() {
	fresh := s.st.ChronicleTotal - s.chronSeen
	if fresh <= 0 {
		return
	}
	if fresh > len(s.st.Chronicle) {
		fresh = len(s.st.Chronicle)
	}
	for _, entry := range s.st.Chronicle[len(s.st.Chronicle)-fresh:] {
		s.cfg.Index.WriteChronicle(s.cfg.ID, entry)
	}
	s.chronSeen = s.st.ChronicleTotal
}

func (s *Session) eventsSince(cursor uint64) []EventItem {
	i := sort.Search(len(s.events), func(i int) bool { return s.events[i].Cursor > cursor })
	if i >= len(s.events) {
		return nil
	}
	out := make([]EventItem, len(s.events)-i)
	copy(out, s.events[i:])
	return out
}

func (s *Session) view() View {
	// JSON round trip gives an isolated deep copy; the digest is computed
	// from the same bytes the copy came from.
	raw, err := json.Marshal(s.st)
	if err != nil {
		return View{}
	}
	var cp settlement.State
	if err := json.Unmarshal(raw, &cp); err != nil {
		return View{}
	}
	return View{State: &cp, Digest: s.st.Digest()}
}

func (s *Session) notify(items []EventItem) {
	n := Notice{Tick: s.st.Tick, Digest: s.st.Digest(), Events: items}
	for _, ch := range s.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

func (s *Session) maybeSnapshot() {
	everyTicks := uint64(s.eng.Tuning().SnapshotEveryTicks)
	if everyTicks == 0 || s.cfg.DataDir == "" {
		return
	}
	if s.st.Tick-s.lastSnap < everyTicks {
		return
	}
	s.writeSnapshot()
}

func (s *Session) writeSnapshot() {
	if s.cfg.DataDir == "" {
		return
	}
	path := filepath.Join(s.dir(), "snaps", fmt.Sprintf("%012d.snap.zst", s.st.Tick))
	snap := snapshot.SettlementV1{
		Header: snapshot.Header{
			Version:      1,
			SettlementID: s.cfg.ID,
			Tick:         s.st.Tick,
			SavedUnix:    s.cfg.Clock().Unix(),
		},
		CatalogsDigest: s.eng.Catalogs().CombinedDigest(),
		StateDigest:    s.st.Digest(),
		State:          s.st,
	}
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		s.cfg.Logger.Printf("snapshot failed settlement=%s tick=%d err=%v", s.cfg.ID, s.st.Tick, err)
		return
	}
	s.lastSnap = s.st.Tick
	s.cfg.Index.RecordSnapshot(s.cfg.ID, path, snap)
}

// loadLatest finds the newest snapshot under the session dir and validates it
// against the engine's catalogs.
func (s *Session) loadLatest() (*settlement.State, bool) {
	if s.cfg.DataDir == "" {
		return nil, false
	}
	path := snapshot.Latest(filepath.Join(s.dir(), "snaps"))
	if path == "" {
		return nil, false
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		s.cfg.Logger.Printf("snapshot unreadable settlement=%s path=%s err=%v", s.cfg.ID, path, err)
		return nil, false
	}
	if snap.CatalogsDigest != s.eng.Catalogs().CombinedDigest() {
		s.cfg.Logger.Printf("snapshot catalog mismatch settlement=%s path=%s", s.cfg.ID, path)
		return nil, false
	}
	if snap.State == nil {
		return nil, false
	}
	s.cfg.Logger.Printf("resumed settlement=%s tick=%d", s.cfg.ID, snap.State.Tick)
	return snap.State, true
}
