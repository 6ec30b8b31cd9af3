package settlement

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Digest fingerprints the full state as sha256 over its canonical JSON form.
// Two settlements with the same seed and the same decision history digest
// identically at every tick; this is the replay-verification primitive.
func (st *State) Digest() string {
	raw, err := json.Marshal(st)
	if err != nil {
		// State contains no unmarshalable types; this cannot happen.
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
