package keyring

import (
	"errors"
	"testing"
)

func TestDerive_PurposeSeparation(t *testing.T) {
	k, err := New("master-secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a := k.MustDerive(PurposeCredential)
	b := k.MustDerive(PurposeFingerprint)
	if a == b {
		t.Fatal("different purposes produced the same key")
	}
	if again := k.MustDerive(PurposeCredential); again != a {
		t.Fatal("derivation is not deterministic")
	}
}

func TestDerive_DifferentMasters(t *testing.T) {
	k1, _ := New("one")
	k2, _ := New("two")
	if k1.MustDerive(PurposePasscode) == k2.MustDerive(PurposePasscode) {
		t.Fatal("different masters produced the same key")
	}
}

func TestNew_RejectsEmptySecret(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("New(\"\") err = %v, want %v", err, ErrEmptySecret)
	}
}
