package logging

import "testing"

func TestNew(t *testing.T) {
	for _, debug := range []bool{true, false} {
		l, err := New(debug)
		if err != nil {
			t.Fatalf("New(%v): %v", debug, err)
		}
		if l.Desugar().Core().Enabled(-1) != debug {
			t.Errorf("New(%v): debug level enabled = %v", debug, !debug)
		}
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l, _ := New(false)
	if OrNop(l) != l {
		t.Error("OrNop should return a non-nil logger unchanged")
	}
}
