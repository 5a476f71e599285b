package leadlag

import (
	"testing"

	"github.com/alicebob/miniredis/v2"

	"nrgchamp/equipment-control/internal/statestore"
)

func testStatestore(t *testing.T) *statestore.Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	s, err := statestore.New("redis://" + mr.Addr() + "/0")
	if err != nil {
		t.Fatalf("statestore.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
