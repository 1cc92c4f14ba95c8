package admission

import "testing"

func TestFingerprint(t *testing.T) {
	f := NewFingerprinter([32]byte{1, 2, 3})

	a := f.Fingerprint("203.0.113.7", "Mozilla/5.0")
	if len(a) != 32 {
		t.Fatalf("len = %d, want 32", len(a))
	}
	if a != f.Fingerprint("203.0.113.7", "Mozilla/5.0") {
		t.Fatal("fingerprint is not deterministic")
	}
	if a == f.Fingerprint("203.0.113.7Mozilla/5.0") {
		t.Fatal("part boundaries must be significant")
	}
	if a == NewFingerprinter([32]byte{9}).Fingerprint("203.0.113.7", "Mozilla/5.0") {
		t.Fatal("fingerprints must depend on the key")
	}
}
