// Package snapshot persists raw register payloads to disk as CBOR, so
// two sweeps taken at different times can be diffed without re-reading
// the pack.
package snapshot

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/mnh-jansson/m18-protocol/pkg/schema"
)

// Snapshot is one sweep's raw payloads, keyed by register ID. Raw payloads
// are stored rather than decoded values, since schema.Value carries a
// time.Time and other types CBOR round-trips less predictably than plain
// bytes — Decode is cheap enough to rerun on load.
type Snapshot struct {
	TakenUnix int64             `cbor:"taken_unix"`
	Payloads  map[string][]byte `cbor:"payloads"`
}

// New returns an empty Snapshot stamped with takenUnix.
func New(takenUnix int64) *Snapshot {
	return &Snapshot{TakenUnix: takenUnix, Payloads: make(map[string][]byte)}
}

// Put records the raw payload read for id.
func (s *Snapshot) Put(id schema.ID, payload []byte) {
	cp := append([]byte(nil), payload...)
	s.Payloads[string(id)] = cp
}

// Save marshals s as CBOR and writes it to path.
func Save(path string, s *Snapshot) error {
	data, err := cbor.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads and unmarshals a Snapshot previously written by Save.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// Diff returns the IDs whose raw payload differs between a and b,
// including IDs present in only one of the two.
func Diff(a, b *Snapshot) []schema.ID {
	var changed []schema.ID
	seen := make(map[string]bool)
	for id, pa := range a.Payloads {
		seen[id] = true
		pb, ok := b.Payloads[id]
		if !ok || !bytesEqual(pa, pb) {
			changed = append(changed, schema.ID(id))
		}
	}
	for id := range b.Payloads {
		if !seen[id] {
			changed = append(changed, schema.ID(id))
		}
	}
	return changed
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
