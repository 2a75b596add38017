package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/mnh-jansson/m18-protocol/pkg/schema"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(1700000000)
	s.Put(schema.WallClock, []byte{0x65, 0x00, 0x00, 0x00})
	s.Put(schema.IdentitySerial, []byte{0x00, 0x28, 0x0C, 0x4A, 0x3F})

	path := filepath.Join(t.TempDir(), "snap.cbor")
	if err := Save(path, s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.TakenUnix != s.TakenUnix {
		t.Fatalf("TakenUnix = %d, want %d", loaded.TakenUnix, s.TakenUnix)
	}
	if len(loaded.Payloads) != len(s.Payloads) {
		t.Fatalf("got %d payloads, want %d", len(loaded.Payloads), len(s.Payloads))
	}
}

func TestDiffDetectsChangedAndMissingIDs(t *testing.T) {
	a := New(1)
	a.Put(schema.WallClock, []byte{1, 2, 3, 4})
	a.Put(schema.IdentitySerial, []byte{0, 0, 0, 0, 0})

	b := New(2)
	b.Put(schema.WallClock, []byte{1, 2, 3, 5}) // changed
	// IdentitySerial missing from b entirely
	b.Put(schema.UserNote, make([]byte, schema.UserNoteLen)) // only in b

	changed := Diff(a, b)
	want := map[schema.ID]bool{
		schema.WallClock:      true,
		schema.IdentitySerial: true,
		schema.UserNote:       true,
	}
	if len(changed) != len(want) {
		t.Fatalf("got %d changed IDs, want %d: %v", len(changed), len(want), changed)
	}
	for _, id := range changed {
		if !want[id] {
			t.Fatalf("unexpected changed ID %s", id)
		}
	}
}
