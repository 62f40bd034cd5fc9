package library

import (
	"errors"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func tempAdminStore(t *testing.T, hasher PasswordHasher) *AdminStore {
	t.Helper()
	store, err := NewAdminStore(filepath.Join(t.TempDir(), "admins.csv"), hasher)
	if err != nil {
		t.Fatalf("new admin store: %v", err)
	}
	return store
}

func TestFNVHasherFormat(t *testing.T) {
	h, err := FNVHasher{}.Hash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if len(h) != 8 {
		t.Fatalf("want 8 hex digits, got %q", h)
	}
	for _, r := range h {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			t.Fatalf("non-hex digit in %q", h)
		}
	}

	// Deterministic, and distinct inputs diverge.
	h2, _ := FNVHasher{}.Hash("secret")
	if h != h2 {
		t.Fatalf("hash not deterministic: %q vs %q", h, h2)
	}
	other, _ := FNVHasher{}.Hash("Secret")
	if h == other {
		t.Fatalf("distinct passwords collided on %q", h)
	}

	if !(FNVHasher{}).Verify("secret", h) {
		t.Fatal("verify rejected the right password")
	}
	if (FNVHasher{}).Verify("wrong", h) {
		t.Fatal("verify accepted the wrong password")
	}
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost} // fast cost for tests
	hash, err := h.Hash("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !h.Verify("hunter2", hash) {
		t.Fatal("verify rejected the right password")
	}
	if h.Verify("hunter3", hash) {
		t.Fatal("verify accepted the wrong password")
	}
}

func TestAdminAddAndVerify(t *testing.T) {
	store := tempAdminStore(t, BcryptHasher{Cost: bcrypt.MinCost})

	if err := store.AddAdmin("root", "toor"); err != nil {
		t.Fatalf("add: %v", err)
	}
	a, err := store.VerifyAdmin("root", "toor")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if a.Username != "root" {
		t.Fatalf("got username %q", a.Username)
	}

	if _, err := store.VerifyAdmin("root", "wrong"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("wrong password: got %v, want ErrAuthFailed", err)
	}
	if _, err := store.VerifyAdmin("nobody", "toor"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("unknown user: got %v, want ErrAuthFailed", err)
	}
}

func TestAdminDuplicateUsername(t *testing.T) {
	store := tempAdminStore(t, BcryptHasher{Cost: bcrypt.MinCost})
	if err := store.AddAdmin("root", "first"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.AddAdmin("root", "second"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
}

func TestAdminEmptyArguments(t *testing.T) {
	store := tempAdminStore(t, BcryptHasher{Cost: bcrypt.MinCost})
	if err := store.AddAdmin("", "pw"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty username: got %v", err)
	}
	if err := store.AddAdmin("root", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty password: got %v", err)
	}
	if _, err := store.VerifyAdmin("", "pw"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("verify empty username: got %v", err)
	}
}

// Credential files written by older deployments hold FNV hashes; they
// must keep verifying through a store configured with bcrypt.
func TestAdminLegacyFNVFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.csv")
	legacy, err := NewAdminStore(path, FNVHasher{})
	if err != nil {
		t.Fatalf("new legacy store: %v", err)
	}
	if err := legacy.AddAdmin("oldtimer", "pass1234"); err != nil {
		t.Fatalf("add legacy: %v", err)
	}

	modern, err := NewAdminStore(path, BcryptHasher{Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("new modern store: %v", err)
	}
	if _, err := modern.VerifyAdmin("oldtimer", "pass1234"); err != nil {
		t.Fatalf("legacy credential rejected: %v", err)
	}
	if _, err := modern.VerifyAdmin("oldtimer", "nope"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("got %v, want ErrAuthFailed", err)
	}
}

func TestAdminReset(t *testing.T) {
	store := tempAdminStore(t, BcryptHasher{Cost: bcrypt.MinCost})
	if err := store.AddAdmin("root", "old"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.AddAdmin("second", "pw"); err != nil {
		t.Fatalf("add second: %v", err)
	}

	if err := store.ResetAdmin("root", "new"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := store.VerifyAdmin("root", "new"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
	if _, err := store.VerifyAdmin("root", "old"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("old password still works: %v", err)
	}
	// Other records survive the rewrite.
	if _, err := store.VerifyAdmin("second", "pw"); err != nil {
		t.Fatalf("second admin lost: %v", err)
	}

	if err := store.ResetAdmin("nobody", "pw"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestAdminMissingFileIsEmpty(t *testing.T) {
	store := tempAdminStore(t, BcryptHasher{Cost: bcrypt.MinCost})
	if _, err := store.VerifyAdmin("anyone", "pw"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("got %v, want ErrAuthFailed", err)
	}
}
