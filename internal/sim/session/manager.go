package session

import (
	stdlog "log"
	"sort"
	"sync"
	"time"

	"emberhold.world/internal/persistence/indexdb"
	"emberhold.world/internal/sim/settlement"
)

// Manager keeps at most one live Session per settlement id and opens them
// lazily on first connection.
type Manager struct {
	engine  *settlement.Engine
	dataDir string
	index   *indexdb.SQLiteIndex
	clock   func() time.Time
	logger  *stdlog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(eng *settlement.Engine, dataDir string, index *indexdb.SQLiteIndex, logger *stdlog.Logger) *Manager {
	return &Manager{
		engine:   eng,
		dataDir:  dataDir,
		index:    index,
		clock:    time.Now,
		logger:   logger,
		sessions: map[string]*Session{},
	}
}

// SetClock replaces the wall clock for every session opened afterwards.
func (m *Manager) SetClock(clock func() time.Time) { m.clock = clock }

// Get returns the live session for a settlement id, if any.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrOpen returns the live session for the named settlement, resuming or
// founding as needed.
func (m *Manager) GetOrOpen(name string, seed int64) (*Session, error) {
	id := slugify(name)

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}

	s, err := Open(Config{
		ID:      id,
		Name:    name,
		Seed:    seed,
		DataDir: m.dataDir,
		Engine:  m.engine,
		Index:   m.index,
		Clock:   m.clock,
		Logger:  m.logger,
	})
	if err != nil {
		return nil, err
	}
	m.sessions[id] = s
	return s, nil
}

// IDs returns the ids of the live sessions, sorted.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll shuts every session down, snapshotting each.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
}
