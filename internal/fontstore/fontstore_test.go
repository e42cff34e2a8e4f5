package fontstore

import "testing"

func TestGetPanicsOnUnregisteredFace(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Get on an unregistered face to panic")
		}
	}()
	New().Get("missing")
}

func TestRegisterRejectsInvalidFontBytes(t *testing.T) {
	s := New()
	if err := s.Register("broken", []byte("not a font")); err == nil {
		t.Fatal("expected an error for unparsable font bytes")
	}
}
