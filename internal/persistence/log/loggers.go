package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"emberhold.world/internal/sim/settlement"
)

// hourlySink appends JSON lines to a zstd-compressed file per UTC hour.
// A sink holds at most one open segment; crossing an hour boundary closes
// the current one and starts the next. Every record is flushed through the
// encoder so a crash loses at most the record being written.
type hourlySink struct {
	dir  string
	name string

	mu   sync.Mutex
	hour string // UTC hour stamp of the open segment
	file *os.File
	zw   *zstd.Encoder
	buf  *bufio.Writer
}

func newHourlySink(dir, name string) *hourlySink {
	return &hourlySink{dir: dir, name: name}
}

func (s *hourlySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutSegment()
}

func (s *hourlySink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != s.hour {
		if err := s.openSegment(hour); err != nil {
			return err
		}
	}

	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := s.buf.Write(line); err != nil {
		return err
	}
	return s.buf.Flush()
}

func (s *hourlySink) openSegment(hour string) error {
	if err := s.shutSegment(); err != nil {
		return err
	}
	path := s.segmentPath(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	s.file = f
	s.zw = zw
	s.buf = bufio.NewWriterSize(zw, 64*1024)
	s.hour = hour
	return nil
}

// shutSegment finishes the open segment if any. Only the encoder close is
// reported; it is the step that seals the zstd frame.
func (s *hourlySink) shutSegment() error {
	var err error
	if s.buf != nil {
		_ = s.buf.Flush()
		s.buf = nil
	}
	if s.zw != nil {
		err = s.zw.Close()
		s.zw = nil
	}
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	return err
}

func (s *hourlySink) segmentPath(hour string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.jsonl.zst", s.name, hour))
}

// EventLogger writes one JSONL entry per narrative event (compressed).
type EventLogger struct{ w *hourlySink }

func NewEventLogger(settlementDir string) *EventLogger {
	return &EventLogger{w: newHourlySink(filepath.Join(settlementDir, "events"), "events")}
}

func (l *EventLogger) WriteEvent(ev settlement.Event) error { return l.w.Write(ev) }
func (l *EventLogger) Close() error                         { return l.w.Close() }

// CommandEntry records a command verdict for the audit trail.
type CommandEntry struct {
	Tick     uint64 `json:"tick"`
	ReqID    string `json:"req_id,omitempty"`
	Op       string `json:"op"`
	Accepted bool   `json:"accepted"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// CommandLogger writes the decision audit trail (compressed JSONL). Replaying
// it against the same seed reproduces the settlement.
type CommandLogger struct{ w *hourlySink }

func NewCommandLogger(settlementDir string) *CommandLogger {
	return &CommandLogger{w: newHourlySink(filepath.Join(settlementDir, "commands"), "commands")}
}

func (l *CommandLogger) WriteCommand(e CommandEntry) error { return l.w.Write(e) }
func (l *CommandLogger) Close() error                      { return l.w.Close() }
