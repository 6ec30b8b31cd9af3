// Package snapshot persists full settlement state as a zstd-compressed gob
// stream with a one-line JSON header. The header is readable without
// decoding the body, so tooling can list snapshots cheaply.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"emberhold.world/internal/sim/settlement"
)

type Header struct {
	Version      int    `json:"version"`
	SettlementID string `json:"settlement_id"`
	Tick         uint64 `json:"tick"`
	SavedUnix    int64  `json:"saved_unix"`
}

// SettlementV1 is the on-disk form. CatalogsDigest pins the game data the
// state was produced under; resuming against different data would break
// replay guarantees, so loaders must check it.
type SettlementV1 struct {
	Header Header `json:"header"`

	CatalogsDigest string            `json:"catalogs_digest"`
	StateDigest    string            `json:"state_digest"`
	State          *settlement.State `json:"state"`
}

func WriteSnapshot(path string, snap SettlementV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SettlementV1, error) {
	var snap SettlementV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("snapshot header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}

	if snap.State != nil && snap.StateDigest != "" {
		if got := snap.State.Digest(); got != snap.StateDigest {
			return snap, fmt.Errorf("snapshot state digest mismatch: %s != %s", got, snap.StateDigest)
		}
	}
	return snap, nil
}

// Latest returns the newest snapshot path in dir, or "" when none exist.
// Names embed zero-padded ticks, so lexical order is tick order.
func Latest(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		if e.Name() > best {
			best = e.Name()
		}
	}
	if best == "" {
		return ""
	}
	return filepath.Join(dir, best)
}

// ReadHeader decodes just the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReaderSize(dec, 64*1024).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("snapshot header: %w", err)
	}
	if err := json.Unmarshal(bytes.TrimSpace(line), &h); err != nil {
		return h, fmt.Errorf("snapshot header: %w", err)
	}
	return h, nil
}
