package blockwatch

import "testing"

func Test_Ledger(t *testing.T) {
	l := newLedger(2)

	l.add("a")
	l.add("b")
	l.add("b")

	if !l.contains("a") || !l.contains("b") {
		t.Fatalf("Should remember the added keys.")
	}

	l.add("c")

	if l.contains("a") {
		t.Fatalf("Should evict the oldest key once full.")
	}

	if !l.contains("c") || len(l.keys) != 2 {
		t.Logf("got: %v", l.keys)
		t.Fatalf("Should hold the newest keys.")
	}

	l.reset()

	if l.contains("b") || l.contains("c") {
		t.Fatalf("Should forget everything on reset.")
	}
}
