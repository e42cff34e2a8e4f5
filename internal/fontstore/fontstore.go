// Package fontstore is a concrete export.FontStore backed by in-memory
// TrueType/OpenType font bytes. It exists because spec.md §1 treats font
// parsing as an external collaborator the core only sees through the
// export.Face interface — a complete repository still needs one working
// adapter behind that interface for the exporter to have a real caller.
package fontstore

import (
	"fmt"
	"sync"

	"github.com/chinmay-sawant/typstpdf/internal/export"
	"github.com/chinmay-sawant/typstpdf/internal/export/font"
	"github.com/chinmay-sawant/typstpdf/internal/frame"
)

// Store resolves frame.FaceID values to faces parsed once at Register time.
// Register parses its bytes on every call and replaces any face already
// held under the same id.
type Store struct {
	mu    sync.RWMutex
	faces map[frame.FaceID]export.Face
}

// New returns an empty Store.
func New() *Store {
	return &Store{faces: make(map[frame.FaceID]export.Face)}
}

// Register parses raw sfnt bytes and makes them available under id.
// Returns an error if the bytes don't parse as TrueType/OpenType; callers
// typically load these once at startup, well before any export call.
func (s *Store) Register(id frame.FaceID, data []byte) error {
	f, err := font.Parse(data)
	if err != nil {
		return fmt.Errorf("fontstore: register %s: %w", id, err)
	}
	s.mu.Lock()
	s.faces[id] = export.NewFontFace(f)
	s.mu.Unlock()
	return nil
}

// Get implements export.FontStore. It panics if id was never registered:
// the exporter's contract is that FaceIDs on a Frame always resolve,
// mirroring how frame.go documents FaceID as "opaque comparable keys" the
// caller is responsible for keeping valid for the export call's duration.
func (s *Store) Get(id frame.FaceID) export.Face {
	s.mu.RLock()
	defer s.mu.RUnlock()
	face, ok := s.faces[id]
	if !ok {
		panic(fmt.Sprintf("fontstore: unregistered face %q", id))
	}
	return face
}
